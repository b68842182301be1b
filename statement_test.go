package wire

import (
	"context"
	"testing"

	"github.com/lib/pq/oid"
	"github.com/riftwire/pgclient/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestPrepareAndExec(t *testing.T) {
	t.Parallel()

	c, srv := newTestConn(t)
	ctx := context.Background()

	go func() {
		srv.recv() // Parse
		srv.recv() // Describe
		srv.recv() // Sync
		srv.parseComplete()
		srv.parameterDescription([]uint32{uint32(oid.T_int4)})
		srv.rowDescription([]string{"id", "name"}, []uint32{uint32(oid.T_int4), uint32(oid.T_text)})
		srv.readyForQuery(types.TxnIdle)
	}()

	stmt, err := c.Prepare(ctx, "SELECT id, name FROM people WHERE id = $1")
	require.NoError(t, err)
	require.Equal(t, []uint32{uint32(oid.T_int4)}, stmt.paramOIDs)

	go func() {
		srv.recv() // Bind
		srv.recv() // Execute
		srv.recv() // Sync
		srv.bindComplete()
		srv.dataRow([][]byte{[]byte("1"), []byte("John")})
		srv.commandComplete("SELECT 1")
		srv.readyForQuery(types.TxnIdle)
	}()

	rows, err := stmt.Exec(ctx, int32(1))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	name, err := rows[0].GetNamed("name")
	require.NoError(t, err)
	require.Equal(t, "John", name)
}

func TestStatementFirstReturnsBareScalarForSingleColumn(t *testing.T) {
	t.Parallel()

	c, srv := newTestConn(t)
	ctx := context.Background()

	go func() {
		srv.recv()
		srv.recv()
		srv.recv()
		srv.parseComplete()
		srv.parameterDescription(nil)
		srv.rowDescription([]string{"count"}, []uint32{uint32(oid.T_int4)})
		srv.readyForQuery(types.TxnIdle)
	}()

	stmt, err := c.Prepare(ctx, "SELECT count(*) FROM people")
	require.NoError(t, err)

	go func() {
		srv.recv()
		srv.recv()
		srv.recv()
		srv.bindComplete()
		srv.dataRow([][]byte{[]byte("42")})
		srv.commandComplete("SELECT 1")
		srv.readyForQuery(types.TxnIdle)
	}()

	v, err := stmt.First(ctx)
	require.NoError(t, err)
	require.Equal(t, int32(42), v)
}

func TestStatementFirstReturnsCommandTagWhenNoRows(t *testing.T) {
	t.Parallel()

	c, srv := newTestConn(t)
	ctx := context.Background()

	go func() {
		srv.recv()
		srv.recv()
		srv.recv()
		srv.parseComplete()
		srv.parameterDescription(nil)
		srv.readyForQuery(types.TxnIdle)
	}()

	stmt, err := c.Prepare(ctx, "DELETE FROM people WHERE id = 1")
	require.NoError(t, err)

	go func() {
		srv.recv()
		srv.recv()
		srv.recv()
		srv.bindComplete()
		srv.commandComplete("DELETE 1")
		srv.readyForQuery(types.TxnIdle)
	}()

	v, err := stmt.First(ctx)
	require.NoError(t, err)
	tag, ok := v.(CommandTag)
	require.True(t, ok)
	require.Equal(t, int64(1), tag.RowCount)
}
