package typeregistry

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lib/pq/oid"
	"github.com/riftwire/pgclient/pkg/codec"
)

// pgTypeLookupSQL mirrors the catalog query named in the external
// interfaces section: given an OID, find out whether it is a base type, a
// domain (has a non-zero typbasetype), a composite (typtype = 'c'), or an
// array (typelem != 0).
const pgTypeLookupSQL = `
SELECT typtype, typbasetype, typelem, typrelid
FROM pg_catalog.pg_type
WHERE oid = $1
`

// pgAttributeLookupSQL enumerates a composite type's member columns in
// declaration order, used to decode row-typed values field by field.
const pgAttributeLookupSQL = `
SELECT attname, atttypid
FROM pg_catalog.pg_attribute
WHERE attrelid = $1 AND attnum > 0 AND NOT attisdropped
ORDER BY attnum
`

// CompositeField is one member of a resolved composite (row) type.
type CompositeField struct {
	Name string
	OID  oid.Oid
}

// CompositeCodec decodes/encodes a ROW value field by field, each field
// using the codec its own OID resolves to.
type CompositeCodec struct {
	Fields  []CompositeField
	Resolve func(context.Context, oid.Oid) (codec.Codec, error)
}

func (r *Registry) resolveFromCatalog(ctx context.Context, target oid.Oid) (codec.Codec, error) {
	if r.query == nil {
		return nil, fmt.Errorf("no catalog querier attached yet")
	}

	_, values, err := r.query.QueryCatalogRow(ctx, pgTypeLookupSQL, int32(target))
	if err != nil {
		return nil, err
	}
	if len(values) != 4 {
		return nil, fmt.Errorf("pg_type lookup for oid %d returned %d columns, expected 4", target, len(values))
	}

	typtype := string(values[0])
	typbasetype, err := parseOidColumn(values[1])
	if err != nil {
		return nil, err
	}
	typelem, err := parseOidColumn(values[2])
	if err != nil {
		return nil, err
	}
	typrelid, err := parseOidColumn(values[3])
	if err != nil {
		return nil, err
	}

	switch {
	case typtype == "d" && typbasetype != 0:
		// Domain: resolve and reuse the base type's codec directly (C7:
		// "recursing for ... domain base types").
		return r.Lookup(ctx, typbasetype)

	case typelem != 0:
		elemCodec, err := r.Lookup(ctx, typelem)
		if err != nil {
			return nil, fmt.Errorf("array element oid %d: %w", typelem, err)
		}
		_ = elemCodec
		return codec.ArrayCodec{
			ElementOID: typelem,
			Resolve: func(o oid.Oid) (codec.Codec, error) {
				return r.Lookup(ctx, o)
			},
		}, nil

	case typtype == "c" && typrelid != 0:
		return r.resolveComposite(ctx, typrelid)

	default:
		return nil, fmt.Errorf("oid %d: unrecognized typtype %q (not a base, domain, array, or composite type)", target, typtype)
	}
}

func (r *Registry) resolveComposite(ctx context.Context, typrelid oid.Oid) (codec.Codec, error) {
	_, values, err := r.query.QueryCatalogRow(ctx, pgAttributeLookupSQL, int32(typrelid))
	if err != nil {
		return nil, err
	}

	// QueryCatalogRow returns one row's worth of columns for scalar lookups;
	// for multi-row composite attribute listings the querier concatenates
	// rows pairwise (name, oid, name, oid, ...) so callers here only need
	// the single-call contract defined by the Querier interface.
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("pg_attribute lookup for relid %d returned an odd column count", typrelid)
	}

	fields := make([]CompositeField, 0, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		o, err := parseOidColumn(values[i+1])
		if err != nil {
			return nil, err
		}
		fields = append(fields, CompositeField{Name: string(values[i]), OID: o})
	}

	return CompositeCodec{
		Fields: fields,
		Resolve: func(ctx context.Context, o oid.Oid) (codec.Codec, error) {
			return r.Lookup(ctx, o)
		},
	}, nil
}

func parseOidColumn(data []byte) (oid.Oid, error) {
	if len(data) == 0 {
		return 0, nil
	}

	v, err := strconv.ParseUint(string(data), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse oid column %q: %w", data, err)
	}
	return oid.Oid(v), nil
}
