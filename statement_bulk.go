package wire

import (
	"context"

	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/types"
)

// defaultChunkSize bounds how many rows a single Execute asks for when
// streaming through Chunks, so a large result set never has to be buffered
// in full before the first batch is handed to the caller.
const defaultChunkSize = 256

// Chunks runs the statement against a named portal and invokes fn with
// each batch of rows the server returns, stopping either when fn returns
// false or the portal is exhausted (§4.8's `Statement.chunks`: "batches
// align with server DataRow groups"). conn.mu is held only around each
// wire round trip (bind, each Execute+Sync cycle, the closing Close+Sync)
// and released before decodeRows and fn run: decoding can recurse into
// the type registry's catalog lookups (C7), which run their own
// statement over this same *Conn and would deadlock on a non-reentrant
// mutex still held here, and fn is caller-supplied code that should never
// run while the connection is locked.
func (s *Statement) Chunks(ctx context.Context, args []any, fn func([]Row) (bool, error)) error {
	s.conn.mu.Lock()

	if s.conn.txStatus == types.TxnFailed {
		s.conn.mu.Unlock()
		return pgerror.ErrInFailedBlock
	}

	portal := s.conn.portals.next()
	defer s.conn.portals.delete(portal)

	params, err := encodeParams(args)
	if err != nil {
		s.conn.mu.Unlock()
		return pgerror.Parameter(err, -1, "")
	}
	paramFormats := make([]types.FormatCode, len(params))
	paramValues := make([][]byte, len(params))
	for i, p := range params {
		paramFormats[i] = p.Format()
		paramValues[i] = p.Value()
	}

	bind := protocol.Bind{
		Portal:        portal,
		Statement:     s.name,
		ParamFormats:  paramFormats,
		Params:        paramValues,
		ResultFormats: []types.FormatCode{types.BinaryFormat},
	}
	if err := bind.Encode(s.conn.writer); err != nil {
		s.conn.mu.Unlock()
		return pgerror.Transport(err)
	}

	for {
		batch, suspended, err := s.executeChunk(portal)
		s.conn.mu.Unlock()
		if err != nil {
			return err
		}

		rows, err := s.decodeRows(ctx, batch)
		if err != nil {
			return err
		}

		if len(rows) > 0 {
			keepGoing, err := fn(rows)
			if err != nil {
				return err
			}
			if !keepGoing {
				s.conn.mu.Lock()
				err := s.closePortal(portal)
				s.conn.mu.Unlock()
				return err
			}
		}

		if !suspended {
			return nil
		}

		s.conn.mu.Lock()
	}
}

func (s *Statement) executeChunk(portal string) ([]protocol.DataRow, bool, error) {
	batch := []protocol.Encodable{
		protocol.Execute{Portal: portal, MaxRows: defaultChunkSize},
		protocol.Sync{},
	}
	if err := protocol.Batch(s.conn.writer, batch...); err != nil {
		return nil, false, pgerror.Transport(err)
	}

	var rows []protocol.DataRow
	var suspended bool
	for {
		kind, err := s.conn.next()
		if err != nil {
			return nil, false, err
		}

		switch kind {
		case types.ServerBindComplete:
			continue
		case types.ServerDataRow:
			row, err := protocol.DecodeDataRow(s.conn.reader)
			if err != nil {
				return nil, false, pgerror.Protocol(err)
			}
			rows = append(rows, row)
		case types.ServerCommandComplete:
			if _, err := protocol.DecodeCommandComplete(s.conn.reader); err != nil {
				return nil, false, pgerror.Protocol(err)
			}
		case types.ServerPortalSuspended:
			suspended = true
		case types.ServerErrorResponse:
			fields, err := protocol.DecodeErrorResponse(s.conn.reader)
			if err != nil {
				return nil, false, pgerror.Protocol(err)
			}
			s.conn.drainUntilReady()
			return nil, false, decodeServerError(fields)
		case types.ServerReady:
			ready, err := protocol.DecodeReadyForQuery(s.conn.reader)
			if err != nil {
				return nil, false, pgerror.Protocol(err)
			}
			s.conn.txStatus = ready.Status
			return rows, suspended, nil
		default:
			return nil, false, pgerror.Protocolf("unexpected message %s during chunked execute", kind)
		}
	}
}

func (s *Statement) closePortal(portal string) error {
	batch := []protocol.Encodable{
		protocol.Close{Kind: 'P', Name: portal},
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
			return nil
		default:
			return pgerror.Protocolf("unexpected message %s while closing portal", kind)
		}
	}
}

// Rows streams every row one at a time to fn, stopping early if fn returns
// false (§4.8's `Statement.rows`). Built on Chunks so the transport-level
// batching stays server-aligned even though the caller sees single rows.
func (s *Statement) Rows(ctx context.Context, args []any, fn func(Row) (bool, error)) error {
	return s.Chunks(ctx, args, func(rows []Row) (bool, error) {
		for _, row := range rows {
			keepGoing, err := fn(row)
			if err != nil || !keepGoing {
				return false, err
			}
		}
		return true, nil
	})
}

// LoadRows runs the statement once per element of argSets, pipelining the
// Bind+Execute requests (no intermediate Sync) and reading their
// acknowledgements back in order, per §4.8's `Statement.load_rows`. The
// first row-affecting error aborts the remaining pipeline.
func (s *Statement) LoadRows(ctx context.Context, argSets [][]any) error {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()

	if s.conn.txStatus == types.TxnFailed {
		return pgerror.ErrInFailedBlock
	}

	for _, args := range argSets {
		params, err := encodeParams(args)
		if err != nil {
			return pgerror.Parameter(err, -1, "")
		}
		paramFormats := make([]types.FormatCode, len(params))
		paramValues := make([][]byte, len(params))
		for i, p := range params {
			paramFormats[i] = p.Format()
			paramValues[i] = p.Value()
		}

		bind := protocol.Bind{Statement: s.name, ParamFormats: paramFormats, Params: paramValues}
		execute := protocol.Execute{}
		if err := protocol.Batch(s.conn.writer, bind, execute); err != nil {
			return pgerror.Transport(err)
		}
	}

	sync := protocol.Sync{}
	if err := sync.Encode(s.conn.writer); err != nil {
		return pgerror.Transport(err)
	}

	for {
		kind, err := s.conn.next()
		if err != nil {
			return err
		}
		switch kind {
		case types.ServerBindComplete:
			continue
		case types.ServerCommandComplete:
			if _, err := protocol.DecodeCommandComplete(s.conn.reader); err != nil {
				return pgerror.Protocol(err)
			}
		case types.ServerErrorResponse:
			fields, err := protocol.DecodeErrorResponse(s.conn.reader)
			if err != nil {
				return pgerror.Protocol(err)
			}
			s.conn.drainUntilReady()
			return decodeServerError(fields)
		case types.ServerReady:
			ready, err := protocol.DecodeReadyForQuery(s.conn.reader)
			if err != nil {
				return pgerror.Protocol(err)
			}
			s.conn.txStatus = ready.Status
			return nil
		default:
			return pgerror.Protocolf("unexpected message %s during load_rows", kind)
		}
	}
}

// LoadChunks is like LoadRows but each element of argChunks is itself a
// batch of argument sets pipelined together before the next chunk's
// acknowledgements are read, the bulk path named in §4.8's
// `Statement.load_chunks`.
func (s *Statement) LoadChunks(ctx context.Context, argChunks [][][]any) error {
	for _, chunk := range argChunks {
		if err := s.LoadRows(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}
