// Package typeregistry implements the type I/O registry (C7): resolving a
// column or parameter's OID to a codec.Codec, bootstrapping the handful of
// types needed to run the catalog queries that resolve everything else.
package typeregistry

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq/oid"
	"github.com/riftwire/pgclient/pkg/codec"
	"github.com/riftwire/pgclient/pkg/types"
)

// Querier is the subset of the statement-execution machinery (C8) the
// registry needs to run catalog lookups for OIDs it hasn't seen before.
// Implemented by *Conn in the top-level package; kept as an interface here
// to avoid an import cycle between typeregistry and the connection.
type Querier interface {
	QueryCatalogRow(ctx context.Context, sql string, args ...any) (columns []string, values [][]byte, err error)
}

// Registry resolves OIDs to codec.Codec, caching everything it has ever
// resolved for the lifetime of the owning connection.
type Registry struct {
	mu      sync.RWMutex
	codecs  map[oid.Oid]codec.Codec
	typeMap *pgtype.Map
	query   Querier
}

// bootstrapOIDs breaks the cyclic registry dependency: the registry must
// issue SQL to resolve unknown types, but running that SQL requires
// decoding its own result columns, which are always drawn from this set.
var bootstrapOIDs = []oid.Oid{
	oid.T_oid,
	oid.T_text,
	oid.T_char,
	oid.T_bool,
	oid.T_name,
	oid.T_int2,
	oid.T_int4,
	oid.T_int8,
}

// New constructs a Registry seeded with the bootstrap codecs. query may be
// nil until the owning connection has completed its handshake; catalog
// resolution of non-bootstrap OIDs will fail until it is set via SetQuerier.
func New(query Querier) *Registry {
	r := &Registry{
		codecs:  make(map[oid.Oid]codec.Codec, 64),
		typeMap: pgtype.NewMap(),
		query:   query,
	}

	for _, o := range bootstrapOIDs {
		r.codecs[o] = bootstrapCodec(o)
	}

	return r
}

// SetQuerier attaches the catalog-query executor once the connection has
// finished its handshake and is ready to run statements.
func (r *Registry) SetQuerier(q Querier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.query = q
}

func bootstrapCodec(o oid.Oid) codec.Codec {
	switch o {
	case oid.T_oid, oid.T_int4:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				i, err := asInt32(v)
				if err != nil {
					return nil, err
				}
				return codec.PackInt4(format, i), nil
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackInt4(format, data)
			},
		}
	case oid.T_int2:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				i, err := asInt16(v)
				if err != nil {
					return nil, err
				}
				return codec.PackInt2(format, i), nil
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackInt2(format, data)
			},
		}
	case oid.T_int8:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				i, err := asInt64(v)
				if err != nil {
					return nil, err
				}
				return codec.PackInt8(format, i), nil
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackInt8(format, data)
			},
		}
	case oid.T_bool:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				b, ok := v.(bool)
				if !ok {
					return nil, fmt.Errorf("bool: expected bool, got %T", v)
				}
				return codec.PackBool(format, b), nil
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackBool(format, data)
			},
		}
	default: // text, char, name: identical byte-for-byte handling
		return codec.Func{
			EncodeFn: func(_ types.FormatCode, v any) ([]byte, error) {
				s, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("text: expected string, got %T", v)
				}
				return codec.PackText(s), nil
			},
			DecodeFn: func(_ types.FormatCode, data []byte) (any, error) {
				return codec.UnpackText(data), nil
			},
		}
	}
}

func asInt32(v any) (int32, error) {
	switch n := v.(type) {
	case int32:
		return n, nil
	case int:
		return int32(n), nil
	default:
		return 0, fmt.Errorf("int4: expected integer, got %T", v)
	}
}

func asInt16(v any) (int16, error) {
	switch n := v.(type) {
	case int16:
		return n, nil
	case int:
		return int16(n), nil
	default:
		return 0, fmt.Errorf("int2: expected integer, got %T", v)
	}
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("int8: expected integer, got %T", v)
	}
}

// Lookup resolves an OID to its codec, querying pg_type (and, for
// composites/domains/arrays, recursing into their constituent OIDs) the
// first time an OID is seen, then caching the result.
func (r *Registry) Lookup(ctx context.Context, o oid.Oid) (codec.Codec, error) {
	r.mu.RLock()
	c, ok := r.codecs[o]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	if builtin, ok := builtinCodec(o); ok {
		r.store(o, builtin)
		return builtin, nil
	}

	resolved, err := r.resolveFromCatalog(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("typeregistry: resolve oid %d: %w", o, err)
	}

	r.store(o, resolved)
	return resolved, nil
}

func (r *Registry) store(o oid.Oid, c codec.Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[o] = c
}

// TypeMap exposes the underlying pgx type map, for callers that pass it to
// a codec's Decode or Encode.
func (r *Registry) TypeMap() *pgtype.Map {
	return r.typeMap
}
