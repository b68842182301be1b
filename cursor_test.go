package wire

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/lib/pq/oid"
	"github.com/riftwire/pgclient/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestCursorSeekAndRead(t *testing.T) {
	t.Parallel()

	c, srv := newTestConn(t)
	cur := &Cursor{conn: c, name: "pgclient_portal_1"}

	ctx := context.Background()

	// Seek issues a bare MOVE with no result rows.
	go func() {
		kind := srv.recv()
		sql, err := srv.reader.GetString()
		require.NoError(t, err)
		require.Equal(t, types.ClientMessage('Q'), kind)
		require.Contains(t, sql, "MOVE ABSOLUTE 5")
		srv.commandComplete("MOVE 1")
		srv.readyForQuery(types.TxnInBlock)
	}()

	require.NoError(t, cur.Seek(ctx, 5, SeekAbsolute))
	time.Sleep(10 * time.Millisecond)

	// Read issues a FETCH and decodes the returned rows.
	go func() {
		srv.recv()
		_, _ = srv.reader.GetString()
		srv.rowDescription([]string{"id"}, []uint32{uint32(oid.T_int4)})
		srv.dataRow([][]byte{[]byte("7")})
		srv.commandComplete("FETCH 1")
		srv.readyForQuery(types.TxnInBlock)
	}()

	rows, err := cur.Read(ctx, 1, Forward)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	v, err := rows[0].GetNamed("id")
	require.NoError(t, err)
	require.Equal(t, int32(7), v)

	go func() {
		kind := srv.recv()
		sql, _ := srv.reader.GetString()
		require.Equal(t, types.ClientMessage('Q'), kind)
		require.Contains(t, sql, "CLOSE")
		srv.commandComplete("CLOSE CURSOR")
		srv.readyForQuery(types.TxnInBlock)
	}()

	require.NoError(t, cur.Close(ctx))
	time.Sleep(10 * time.Millisecond)
}

// TestCursorSymmetryScenario exercises seed scenario 6 directly: scanning
// backward from the end of an ascending 0..99 series must return the same
// ascending row values a forward read would, not the raw descending order
// the wire protocol's FETCH BACKWARD sends them in.
func TestCursorSymmetryScenario(t *testing.T) {
	t.Parallel()

	c, srv := newTestConn(t)
	cur := &Cursor{conn: c, name: "pgclient_portal_1"}
	ctx := context.Background()

	go func() {
		kind := srv.recv()
		sql, err := srv.reader.GetString()
		require.NoError(t, err)
		require.Equal(t, types.ClientMessage('Q'), kind)
		require.Contains(t, sql, "MOVE ABSOLUTE -1")
		srv.commandComplete("MOVE 1")
		srv.readyForQuery(types.TxnInBlock)
	}()

	require.NoError(t, cur.Seek(ctx, 0, SeekFromEnd))
	time.Sleep(10 * time.Millisecond)

	// A real backend's FETCH BACKWARD 5 from the end of an ascending
	// generate_series sends rows nearest the cursor first: 99, 98, ..., 95.
	go func() {
		kind := srv.recv()
		sql, err := srv.reader.GetString()
		require.NoError(t, err)
		require.Equal(t, types.ClientMessage('Q'), kind)
		require.Contains(t, sql, "FETCH BACKWARD 5")

		srv.rowDescription([]string{"i"}, []uint32{uint32(oid.T_int4)})
		for i := int32(99); i >= 95; i-- {
			srv.dataRow([][]byte{[]byte(strconv.Itoa(int(i)))})
		}
		srv.commandComplete("FETCH 5")
		srv.readyForQuery(types.TxnInBlock)
	}()

	backward, err := cur.Read(ctx, 5, Backward)
	require.NoError(t, err)
	require.Len(t, backward, 5)

	got := make([]int32, len(backward))
	for i, row := range backward {
		v, err := row.GetNamed("i")
		require.NoError(t, err)
		got[i] = v.(int32)
	}
	require.Equal(t, []int32{95, 96, 97, 98, 99}, got)

	// Reading the same rows forward must land on the same ascending slice
	// of values.
	forwardCur := &Cursor{conn: c, name: "pgclient_portal_2"}

	go func() {
		kind := srv.recv()
		sql, err := srv.reader.GetString()
		require.NoError(t, err)
		require.Equal(t, types.ClientMessage('Q'), kind)
		require.Contains(t, sql, "MOVE ABSOLUTE 95")
		srv.commandComplete("MOVE 1")
		srv.readyForQuery(types.TxnInBlock)
	}()

	require.NoError(t, forwardCur.Seek(ctx, 95, SeekAbsolute))
	time.Sleep(10 * time.Millisecond)

	go func() {
		kind := srv.recv()
		sql, err := srv.reader.GetString()
		require.NoError(t, err)
		require.Equal(t, types.ClientMessage('Q'), kind)
		require.Contains(t, sql, "FETCH FORWARD 5")

		srv.rowDescription([]string{"i"}, []uint32{uint32(oid.T_int4)})
		for i := int32(95); i <= 99; i++ {
			srv.dataRow([][]byte{[]byte(strconv.Itoa(int(i)))})
		}
		srv.commandComplete("FETCH 5")
		srv.readyForQuery(types.TxnInBlock)
	}()

	forward, err := forwardCur.Read(ctx, 5, Forward)
	require.NoError(t, err)

	gotForward := make([]int32, len(forward))
	for i, row := range forward {
		v, err := row.GetNamed("i")
		require.NoError(t, err)
		gotForward[i] = v.(int32)
	}
	require.Equal(t, got, gotForward)
}
