package typeregistry

import (
	"context"
	"strconv"
	"testing"

	"github.com/lib/pq/oid"
	"github.com/riftwire/pgclient/pkg/codec"
	"github.com/riftwire/pgclient/pkg/types"
	"github.com/stretchr/testify/require"
)

// fakeQuerier answers QueryCatalogRow from a fixed table of canned rows,
// standing in for the *Conn-backed Querier a Registry normally talks to.
type fakeQuerier struct {
	typeRows map[oid.Oid][][]byte
	attrRows map[oid.Oid][][]byte
	calls    int
}

func (f *fakeQuerier) QueryCatalogRow(ctx context.Context, sql string, args ...any) ([]string, [][]byte, error) {
	f.calls++

	o := oid.Oid(args[0].(int32))
	switch sql {
	case pgTypeLookupSQL:
		return nil, f.typeRows[o], nil
	case pgAttributeLookupSQL:
		return nil, f.attrRows[o], nil
	default:
		panic("fakeQuerier: unexpected SQL: " + sql)
	}
}

func oidBytes(o oid.Oid) []byte {
	return []byte(strconv.FormatUint(uint64(o), 10))
}

func TestLookupReturnsBootstrapCodecWithoutQuerying(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{}
	r := New(q)

	c, err := r.Lookup(context.Background(), oid.T_int4)
	require.NoError(t, err)

	data, err := c.Encode(nil, types.BinaryFormat, int32(42))
	require.NoError(t, err)
	got, err := c.Decode(nil, types.BinaryFormat, data)
	require.NoError(t, err)
	require.Equal(t, int32(42), got)
	require.Zero(t, q.calls, "bootstrap OIDs must never hit the catalog")
}

func TestLookupReturnsBuiltinCodecWithoutQuerying(t *testing.T) {
	t.Parallel()

	q := &fakeQuerier{}
	r := New(q)

	c, err := r.Lookup(context.Background(), oid.T_float8)
	require.NoError(t, err)

	data, err := c.Encode(nil, types.BinaryFormat, 3.25)
	require.NoError(t, err)
	got, err := c.Decode(nil, types.BinaryFormat, data)
	require.NoError(t, err)
	require.InDelta(t, 3.25, got, 0.0001)
	require.Zero(t, q.calls)
}

func TestLookupDoesNotCacheFailedCatalogResolution(t *testing.T) {
	t.Parallel()

	const myEnumOID oid.Oid = 50000

	q := &fakeQuerier{
		typeRows: map[oid.Oid][][]byte{
			myEnumOID: {[]byte("e"), oidBytes(0), oidBytes(0), oidBytes(0)},
		},
	}
	r := New(q)

	// An enum is typtype 'e', which resolveFromCatalog doesn't special-case,
	// so this exercises the "unrecognized typtype" error path, and does so
	// without ever taking conn.mu: Lookup must be safe to call reentrantly
	// from within a statement execution that is itself resolving this OID.
	_, err := r.Lookup(context.Background(), myEnumOID)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unrecognized typtype")
	require.Equal(t, 1, q.calls)

	// The failure is not cached: a second Lookup re-queries rather than
	// silently repeating a stale error forever.
	_, err = r.Lookup(context.Background(), myEnumOID)
	require.Error(t, err)
	require.Equal(t, 2, q.calls)
}

func TestLookupResolvesDomainToBaseCodec(t *testing.T) {
	t.Parallel()

	const domainOID oid.Oid = 60000

	q := &fakeQuerier{
		typeRows: map[oid.Oid][][]byte{
			domainOID: {[]byte("d"), oidBytes(oid.T_int4), oidBytes(0), oidBytes(0)},
		},
	}
	r := New(q)

	c, err := r.Lookup(context.Background(), domainOID)
	require.NoError(t, err)

	data, err := c.Encode(nil, types.BinaryFormat, int32(7))
	require.NoError(t, err)
	got, err := c.Decode(nil, types.BinaryFormat, data)
	require.NoError(t, err)
	require.Equal(t, int32(7), got)

	// int4 is a builtin, so resolving the domain only costs one catalog
	// round trip: the base type never needs its own lookup.
	require.Equal(t, 1, q.calls)
}

func TestLookupResolvesArrayElement(t *testing.T) {
	t.Parallel()

	const arrayOID oid.Oid = 70000

	q := &fakeQuerier{
		typeRows: map[oid.Oid][][]byte{
			arrayOID: {[]byte("b"), oidBytes(0), oidBytes(oid.T_int4), oidBytes(0)},
		},
	}
	r := New(q)

	c, err := r.Lookup(context.Background(), arrayOID)
	require.NoError(t, err)

	arr, ok := c.(codec.ArrayCodec)
	require.True(t, ok)
	require.Equal(t, oid.T_int4, arr.ElementOID)

	elemCodec, err := arr.Resolve(oid.T_int4)
	require.NoError(t, err)
	encoded, err := elemCodec.Encode(nil, types.BinaryFormat, int32(9))
	require.NoError(t, err)
	decoded, err := elemCodec.Decode(nil, types.BinaryFormat, encoded)
	require.NoError(t, err)
	require.Equal(t, int32(9), decoded)

	// int4 is a builtin, so resolving the array element never touches the
	// catalog beyond the one lookup for the array type itself.
	require.Equal(t, 1, q.calls)
}

func TestLookupResolvesComposite(t *testing.T) {
	t.Parallel()

	const compositeOID oid.Oid = 80000
	const relOID oid.Oid = 80001

	q := &fakeQuerier{
		typeRows: map[oid.Oid][][]byte{
			compositeOID: {[]byte("c"), oidBytes(0), oidBytes(0), oidBytes(relOID)},
		},
		attrRows: map[oid.Oid][][]byte{
			relOID: {
				[]byte("id"), oidBytes(oid.T_int4),
				[]byte("label"), oidBytes(oid.T_text),
			},
		},
	}
	r := New(q)

	c, err := r.Lookup(context.Background(), compositeOID)
	require.NoError(t, err)

	cc, ok := c.(CompositeCodec)
	require.True(t, ok)
	require.Len(t, cc.Fields, 2)
	require.Equal(t, "id", cc.Fields[0].Name)
	require.Equal(t, oid.T_int4, cc.Fields[0].OID)
	require.Equal(t, "label", cc.Fields[1].Name)
	require.Equal(t, oid.T_text, cc.Fields[1].OID)

	value := CompositeValue{
		Values: [][]byte{[]byte{0, 0, 0, 9}, []byte("hello")},
		Nulls:  []bool{false, false},
	}

	got, err := cc.Field(context.Background(), value, "label", types.BinaryFormat)
	require.NoError(t, err)
	require.Equal(t, "hello", got)
}

func TestLookupWithoutQuerierFails(t *testing.T) {
	t.Parallel()

	r := New(nil)

	_, err := r.Lookup(context.Background(), oid.Oid(90000))
	require.Error(t, err)
}

func TestSetQuerierAttachesLateBoundConnection(t *testing.T) {
	t.Parallel()

	const domainOID oid.Oid = 60001

	r := New(nil)

	_, err := r.Lookup(context.Background(), domainOID)
	require.Error(t, err)

	q := &fakeQuerier{
		typeRows: map[oid.Oid][][]byte{
			domainOID: {[]byte("d"), oidBytes(oid.T_text), oidBytes(0), oidBytes(0)},
		},
	}
	r.SetQuerier(q)

	c, err := r.Lookup(context.Background(), domainOID)
	require.NoError(t, err)
	got, err := c.Decode(nil, types.TextFormat, []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, "hi", got)
}
