package wire

import (
	"context"

	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/buffer"
	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/types"
)

// Statement is a server-side prepared statement (§4.8). Prepare runs
// Parse+Describe once; every subsequent call binds fresh parameters to a
// portal and executes it, reusing the cached parameter/result shape.
type Statement struct {
	conn      *Conn
	name      string
	sql       string
	paramOIDs []uint32
	row       protocol.RowDescription
}

// Prepare parses and describes sql, returning a reusable Statement.
func (c *Conn) Prepare(ctx context.Context, sql string) (*Statement, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.txStatus == types.TxnFailed {
		return nil, pgerror.ErrInFailedBlock
	}

	name := c.statements.next()

	batch := []protocol.Encodable{
		protocol.Parse{Name: name, SQL: sql},
		protocol.Describe{Kind: buffer.PrepareStatement, Name: name},
		protocol.Sync{},
	}
	if err := protocol.Batch(c.writer, batch...); err != nil {
		return nil, pgerror.Transport(err)
	}

	stmt := &Statement{conn: c, name: name, sql: sql}

	for {
		kind, err := c.next()
		if err != nil {
			return nil, err
		}

		switch kind {
		case types.ServerParseComplete:
			continue

		case types.ServerParameterDescription:
			desc, err := protocol.DecodeParameterDescription(c.reader)
			if err != nil {
				return nil, pgerror.Protocol(err)
			}
			stmt.paramOIDs = desc.Types

		case types.ServerRowDescription:
			desc, err := protocol.DecodeRowDescription(c.reader)
			if err != nil {
				return nil, pgerror.Protocol(err)
			}
			stmt.row = desc

		case types.ServerNoData:
			continue

		case types.ServerErrorResponse:
			fields, err := protocol.DecodeErrorResponse(c.reader)
			if err != nil {
				return nil, pgerror.Protocol(err)
			}
			c.drainUntilReady()
			return nil, decodeServerError(fields)

		case types.ServerReady:
			ready, err := protocol.DecodeReadyForQuery(c.reader)
			if err != nil {
				return nil, pgerror.Protocol(err)
			}
			c.txStatus = ready.Status
			c.statements.put(&preparedStatement{name: name, sql: sql, paramOIDs: stmt.paramOIDs, row: stmt.row})
			return stmt, nil

		default:
			return nil, pgerror.Protocolf("unexpected message %s while preparing statement", kind)
		}
	}
}

// Close releases the statement's server-side resources. Any portal bound
// from it becomes invalid.
func (s *Statement) Close(ctx context.Context) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()

	batch := []protocol.Encodable{
		protocol.Close{Kind: buffer.PrepareStatement, Name: s.name},
		protocol.Sync{},
	}
	if err := protocol.Batch(s.conn.writer, batch...); err != nil {
		return pgerror.Transport(err)
	}

	for {
		kind, err := s.conn.next()
		if err != nil {
			return err
		}
		switch kind {
		case types.ServerCloseComplete:
			continue
		case types.ServerReady:
			ready, err := protocol.DecodeReadyForQuery(s.conn.reader)
			if err != nil {
				return pgerror.Protocol(err)
			}
			s.conn.txStatus = ready.Status
			s.conn.statements.delete(s.name)
			return nil
		case types.ServerErrorResponse:
			fields, err := protocol.DecodeErrorResponse(s.conn.reader)
			if err != nil {
				return pgerror.Protocol(err)
			}
			s.conn.drainUntilReady()
			return decodeServerError(fields)
		default:
			return pgerror.Protocolf("unexpected message %s while closing statement", kind)
		}
	}
}

// bindOutcome is the result of one Bind+Execute+Sync cycle against a portal.
type bindOutcome struct {
	rows      []protocol.DataRow
	tag       string
	suspended bool
}

// bindExecute binds args to portal (named or "" for the unnamed portal),
// executes it up to maxRows (0 = unlimited), and returns every row the
// server sent back before the terminating CommandComplete/PortalSuspended.
// The caller holds conn.mu for the duration (see Exec and First).
func (s *Statement) bindExecute(portal string, args []any, maxRows int32) (bindOutcome, error) {
	params, err := encodeParams(args)
	if err != nil {
		return bindOutcome{}, pgerror.Parameter(err, -1, "")
	}

	paramFormats := make([]types.FormatCode, len(params))
	paramValues := make([][]byte, len(params))
	for i, p := range params {
		paramFormats[i] = p.Format()
		paramValues[i] = p.Value()
	}

	batch := []protocol.Encodable{
		protocol.Bind{
			Portal:        portal,
			Statement:     s.name,
			ParamFormats:  paramFormats,
			Params:        paramValues,
			ResultFormats: []types.FormatCode{types.BinaryFormat},
		},
		protocol.Execute{Portal: portal, MaxRows: maxRows},
		protocol.Sync{},
	}
	if err := protocol.Batch(s.conn.writer, batch...); err != nil {
		return bindOutcome{}, pgerror.Transport(err)
	}

	var out bindOutcome
	for {
		kind, err := s.conn.next()
		if err != nil {
			return bindOutcome{}, err
		}

		switch kind {
		case types.ServerBindComplete:
			continue

		case types.ServerDataRow:
			row, err := protocol.DecodeDataRow(s.conn.reader)
			if err != nil {
				return bindOutcome{}, pgerror.Protocol(err)
			}
			out.rows = append(out.rows, row)

		case types.ServerCommandComplete:
			tag, err := protocol.DecodeCommandComplete(s.conn.reader)
			if err != nil {
				return bindOutcome{}, pgerror.Protocol(err)
			}
			out.tag = tag.Tag

		case types.ServerPortalSuspended:
			out.suspended = true

		case types.ServerEmptyQuery:
			continue

		case types.ServerErrorResponse:
			fields, err := protocol.DecodeErrorResponse(s.conn.reader)
			if err != nil {
				return bindOutcome{}, pgerror.Protocol(err)
			}
			s.conn.drainUntilReady()
			return bindOutcome{}, decodeServerError(fields)

		case types.ServerReady:
			ready, err := protocol.DecodeReadyForQuery(s.conn.reader)
			if err != nil {
				return bindOutcome{}, pgerror.Protocol(err)
			}
			s.conn.txStatus = ready.Status
			return out, nil

		default:
			return bindOutcome{}, pgerror.Protocolf("unexpected message %s during execute", kind)
		}
	}
}

func (s *Statement) decodeRows(ctx context.Context, raw []protocol.DataRow) ([]Row, error) {
	rows := make([]Row, len(raw))
	for i, data := range raw {
		row, err := newRow(ctx, s.row, data, s.conn.registry, s.conn.ParameterStatus("server_encoding"))
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

// Exec runs the statement once with the given positional arguments,
// reading every row before returning (§4.8: "Statement(args) -> list[Row]").
// conn.mu is released before decodeRows, matching First: decoding can
// recurse into the type registry's catalog lookups (C7), which run their
// own statement over this same *Conn and would deadlock on a
// non-reentrant mutex still held by this call.
func (s *Statement) Exec(ctx context.Context, args ...any) ([]Row, error) {
	s.conn.mu.Lock()
	outcome, err := func() (bindOutcome, error) {
		if s.conn.txStatus == types.TxnFailed {
			return bindOutcome{}, pgerror.ErrInFailedBlock
		}
		return s.bindExecute("", args, 0)
	}()
	s.conn.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return s.decodeRows(ctx, outcome.rows)
}

// CommandTag pairs a non-SELECT command's tag with its affected row count.
type CommandTag struct {
	Tag      string
	RowCount int64
}

// First runs the statement and returns: the bare value if exactly one
// column and one row came back; the first Row if more than one row or
// column came back; or a CommandTag if no rows came back at all (a DML
// statement) — mirroring §4.8's `Statement.first`.
func (s *Statement) First(ctx context.Context, args ...any) (any, error) {
	s.conn.mu.Lock()
	outcome, err := func() (bindOutcome, error) {
		if s.conn.txStatus == types.TxnFailed {
			return bindOutcome{}, pgerror.ErrInFailedBlock
		}
		return s.bindExecute("", args, 0)
	}()
	s.conn.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if len(outcome.rows) == 0 {
		return CommandTag{Tag: outcome.tag, RowCount: parseRowCount(outcome.tag)}, nil
	}

	rows, err := s.decodeRows(ctx, outcome.rows[:1])
	if err != nil {
		return nil, err
	}

	if len(s.row.Fields) == 1 && len(outcome.rows) == 1 {
		return rows[0].Get(0)
	}

	return rows[0], nil
}

// Column runs the statement and returns only the first column of each row
// (§4.8's `Statement.column`).
func (s *Statement) Column(ctx context.Context, args ...any) ([]any, error) {
	rows, err := s.Exec(ctx, args...)
	if err != nil {
		return nil, err
	}

	out := make([]any, len(rows))
	for i, row := range rows {
		v, err := row.Get(0)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseRowCount(tag string) int64 {
	var n int64
	i := len(tag) - 1
	mul := int64(1)
	for ; i >= 0 && tag[i] >= '0' && tag[i] <= '9'; i-- {
		n += int64(tag[i]-'0') * mul
		mul *= 10
	}
	return n
}
