package wire

import (
	"context"
	"fmt"
	"strconv"

	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/types"
)

// QueryCatalogRow implements typeregistry.Querier. It runs sql as an
// unnamed extended-query statement and returns every result column of
// every returned row, flattened in row-major order. Column names are not
// needed by any catalog query the registry issues, so they are not
// collected. This intentionally bypasses the type registry itself (args
// are encoded as plain text literals) to avoid the circular dependency of
// using the registry to resolve the types needed to query the registry.
func (c *Conn) QueryCatalogRow(ctx context.Context, sql string, args ...any) ([]string, [][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	params := make([][]byte, len(args))
	for i, a := range args {
		encoded, err := encodeCatalogArg(a)
		if err != nil {
			return nil, nil, pgerror.Parameter(err, i, fmt.Sprintf("%T", a))
		}
		params[i] = encoded
	}

	batch := []protocol.Encodable{
		protocol.Parse{SQL: sql, ParamOIDs: make([]uint32, len(args))},
		protocol.Bind{
			ParamFormats:  repeatFormat(types.TextFormat, len(args)),
			Params:        params,
			ResultFormats: []types.FormatCode{types.TextFormat},
		},
		protocol.Execute{},
		protocol.Sync{},
	}

	if err := protocol.Batch(c.writer, batch...); err != nil {
		return nil, nil, pgerror.Transport(err)
	}

	var values [][]byte
	for {
		kind, err := c.next()
		if err != nil {
			return nil, nil, err
		}

		switch kind {
		case types.ServerParseComplete, types.ServerBindComplete:
			continue

		case types.ServerDataRow:
			row, err := protocol.DecodeDataRow(c.reader)
			if err != nil {
				return nil, nil, pgerror.Protocol(err)
			}
			values = append(values, row.Values...)

		case types.ServerCommandComplete:
			if _, err := protocol.DecodeCommandComplete(c.reader); err != nil {
				return nil, nil, pgerror.Protocol(err)
			}

		case types.ServerEmptyQuery:
			continue

		case types.ServerErrorResponse:
			fields, err := protocol.DecodeErrorResponse(c.reader)
			if err != nil {
				return nil, nil, pgerror.Protocol(err)
			}
			c.drainUntilReady()
			return nil, nil, decodeServerError(fields)

		case types.ServerReady:
			ready, err := protocol.DecodeReadyForQuery(c.reader)
			if err != nil {
				return nil, nil, pgerror.Protocol(err)
			}
			c.txStatus = ready.Status
			return nil, values, nil

		default:
			return nil, nil, pgerror.Protocolf("unexpected message %s during catalog query", kind)
		}
	}
}

// drainUntilReady discards messages after a mid-pipeline error until
// ReadyForQuery, the recovery the server's Sync response guarantees.
func (c *Conn) drainUntilReady() {
	for {
		kind, err := c.next()
		if err != nil {
			return
		}
		switch kind {
		case types.ServerReady:
			ready, err := protocol.DecodeReadyForQuery(c.reader)
			if err == nil {
				c.txStatus = ready.Status
			}
			return
		case types.ServerErrorResponse:
			_, _ = protocol.DecodeErrorResponse(c.reader)
		default:
			_ = c.reader.Remaining()
		}
	}
}

func repeatFormat(f types.FormatCode, n int) []types.FormatCode {
	out := make([]types.FormatCode, n)
	for i := range out {
		out[i] = f
	}
	return out
}

func encodeCatalogArg(v any) ([]byte, error) {
	switch n := v.(type) {
	case int32:
		return []byte(strconv.FormatInt(int64(n), 10)), nil
	case int64:
		return []byte(strconv.FormatInt(n, 10)), nil
	case int:
		return []byte(strconv.Itoa(n)), nil
	case string:
		return []byte(n), nil
	default:
		return nil, fmt.Errorf("unsupported catalog argument type %T", v)
	}
}
