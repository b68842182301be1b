package wire

import (
	"context"
	"testing"

	"github.com/lib/pq/oid"
	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/typeregistry"
	"github.com/stretchr/testify/require"
)

func TestNewRowDecodesAndNamesColumns(t *testing.T) {
	t.Parallel()

	registry := typeregistry.New(nil)
	desc := protocol.RowDescription{Fields: []protocol.FieldDescription{
		{Name: "name", DataTypeOID: oid.T_text, Format: 0},
		{Name: "age", DataTypeOID: oid.T_int4, Format: 0},
	}}
	data := protocol.DataRow{Values: [][]byte{[]byte("John"), []byte("29")}}

	row, err := newRow(context.Background(), desc, data, registry, "")
	require.NoError(t, err)
	require.Equal(t, 2, row.Len())
	require.Equal(t, []string{"name", "age"}, row.Names())

	name, err := row.GetNamed("name")
	require.NoError(t, err)
	require.Equal(t, "John", name)

	age, err := row.GetNamed("age")
	require.NoError(t, err)
	require.Equal(t, int32(29), age)
}

func TestNewRowNullColumn(t *testing.T) {
	t.Parallel()

	registry := typeregistry.New(nil)
	desc := protocol.RowDescription{Fields: []protocol.FieldDescription{
		{Name: "name", DataTypeOID: oid.T_text, Format: 0},
	}}
	data := protocol.DataRow{Values: [][]byte{nil}}

	row, err := newRow(context.Background(), desc, data, registry, "")
	require.NoError(t, err)

	v, err := row.Get(0)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestRowTransform(t *testing.T) {
	t.Parallel()

	registry := typeregistry.New(nil)
	desc := protocol.RowDescription{Fields: []protocol.FieldDescription{
		{Name: "age", DataTypeOID: oid.T_int4, Format: 0},
	}}
	data := protocol.DataRow{Values: [][]byte{[]byte("29")}}

	row, err := newRow(context.Background(), desc, data, registry, "")
	require.NoError(t, err)

	doubled := row.Transform(func(v any) any { return v.(int32) * 2 })
	v, err := doubled.Get(0)
	require.NoError(t, err)
	require.Equal(t, int32(58), v)

	original, err := row.Get(0)
	require.NoError(t, err)
	require.Equal(t, int32(29), original)
}
