package wire

import (
	"context"
	"strings"

	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/types"
)

// execSimple runs sql through the simple query protocol (§4.6), discarding
// any result rows. Used internally for statements that cannot be
// parameterized (LISTEN/UNLISTEN, transaction control).
func (c *Conn) execSimple(ctx context.Context, sql string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	isRollback := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "ROLLBACK")
	if c.txStatus == types.TxnFailed && !isRollback {
		return pgerror.ErrInFailedBlock
	}

	msg := protocol.Query{SQL: sql}
	if err := msg.Encode(c.writer); err != nil {
		return pgerror.Transport(err)
	}

	for {
		kind, err := c.next()
		if err != nil {
			return err
		}

		switch kind {
		case types.ServerRowDescription:
			if _, err := protocol.DecodeRowDescription(c.reader); err != nil {
				return pgerror.Protocol(err)
			}

		case types.ServerDataRow:
			if _, err := protocol.DecodeDataRow(c.reader); err != nil {
				return pgerror.Protocol(err)
			}

		case types.ServerCommandComplete:
			if _, err := protocol.DecodeCommandComplete(c.reader); err != nil {
				return pgerror.Protocol(err)
			}

		case types.ServerEmptyQuery:
			continue

		case types.ServerErrorResponse:
			fields, err := protocol.DecodeErrorResponse(c.reader)
			if err != nil {
				return pgerror.Protocol(err)
			}
			c.drainUntilReady()
			return decodeServerError(fields)

		case types.ServerReady:
			ready, err := protocol.DecodeReadyForQuery(c.reader)
			if err != nil {
				return pgerror.Protocol(err)
			}
			c.txStatus = ready.Status
			return nil

		default:
			return pgerror.Protocolf("unexpected message %s during simple query", kind)
		}
	}
}

// Exec runs sql as a simple-query command with no parameters and no
// result rows expected (e.g. DDL, or a command whose rows the caller does
// not need). For parameterized statements use Prepare.
func (c *Conn) Exec(ctx context.Context, sql string) error {
	return c.execSimple(ctx, sql)
}

// querySimpleRows runs sql through the simple query protocol and decodes
// every returned row, used by the cursor layer for MOVE/FETCH commands
// whose arguments (row counts, directions) cannot be bind parameters.
// querySimpleRows holds conn.mu only for the wire round trip. Row decoding
// can recurse into the type registry's catalog lookups (C7), which run
// their own statement over this same *Conn and would deadlock on a
// non-reentrant mutex still held by the caller, so the lock is released
// before newRow is ever called.
func (c *Conn) querySimpleRows(ctx context.Context, sql string) ([]Row, error) {
	c.mu.Lock()

	if c.txStatus == types.TxnFailed {
		c.mu.Unlock()
		return nil, pgerror.ErrInFailedBlock
	}

	msg := protocol.Query{SQL: sql}
	if err := msg.Encode(c.writer); err != nil {
		c.mu.Unlock()
		return nil, pgerror.Transport(err)
	}

	var desc protocol.RowDescription
	var raw []protocol.DataRow

	for {
		kind, err := c.next()
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}

		switch kind {
		case types.ServerRowDescription:
			desc, err = protocol.DecodeRowDescription(c.reader)
			if err != nil {
				c.mu.Unlock()
				return nil, pgerror.Protocol(err)
			}

		case types.ServerDataRow:
			row, err := protocol.DecodeDataRow(c.reader)
			if err != nil {
				c.mu.Unlock()
				return nil, pgerror.Protocol(err)
			}
			raw = append(raw, row)

		case types.ServerCommandComplete:
			if _, err := protocol.DecodeCommandComplete(c.reader); err != nil {
				c.mu.Unlock()
				return nil, pgerror.Protocol(err)
			}

		case types.ServerEmptyQuery:
			continue

		case types.ServerErrorResponse:
			fields, err := protocol.DecodeErrorResponse(c.reader)
			if err != nil {
				c.mu.Unlock()
				return nil, pgerror.Protocol(err)
			}
			c.drainUntilReady()
			c.mu.Unlock()
			return nil, decodeServerError(fields)

		case types.ServerReady:
			ready, err := protocol.DecodeReadyForQuery(c.reader)
			if err != nil {
				c.mu.Unlock()
				return nil, pgerror.Protocol(err)
			}
			c.txStatus = ready.Status
			c.mu.Unlock()

			encoding := c.ParameterStatus("server_encoding")
			rows := make([]Row, len(raw))
			for i, data := range raw {
				row, err := newRow(ctx, desc, data, c.registry, encoding)
				if err != nil {
					return nil, err
				}
				rows[i] = row
			}
			return rows, nil

		default:
			c.mu.Unlock()
			return nil, pgerror.Protocolf("unexpected message %s during simple query", kind)
		}
	}
}
