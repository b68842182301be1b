package wire

import (
	"context"
	"testing"
	"time"

	"github.com/riftwire/pgclient/pkg/types"
	"github.com/stretchr/testify/require"
)

// serveSimple starts a goroutine that replies to every incoming simple
// query with one CommandComplete + ReadyForQuery pair, tagging the backend
// as being in the given transaction status on each reply. Tests that need a
// different reply sequence for a specific statement build it inline instead.
func serveSimple(t *testing.T, srv *fakeServer, statuses <-chan types.TxnStatus) {
	t.Helper()
	go func() {
		for status := range statuses {
			srv.recv()
			srv.commandComplete("OK")
			srv.readyForQuery(status)
		}
	}()
}

func TestCommitBecomesRollbackAfterFailedBlock(t *testing.T) {
	t.Parallel()

	c, srv := newTestConn(t)

	replies := make(chan types.TxnStatus, 8)
	serveSimple(t, srv, replies)

	ctx := context.Background()

	replies <- types.TxnInBlock
	tx, err := c.Begin(ctx, TxOptions{})
	require.NoError(t, err)

	// Simulate a statement that failed mid-transaction, as execSimple or
	// Statement.Exec would when the server reports a failed block.
	c.txStatus = types.TxnFailed

	replies <- types.TxnIdle
	err = tx.Commit(ctx)
	require.NoError(t, err)

	close(replies)
	waitDrained(t, srv)
}

func TestSavepointRollback(t *testing.T) {
	t.Parallel()

	c, srv := newTestConn(t)

	replies := make(chan types.TxnStatus, 8)
	serveSimple(t, srv, replies)

	ctx := context.Background()

	replies <- types.TxnInBlock
	tx, err := c.Begin(ctx, TxOptions{})
	require.NoError(t, err)

	replies <- types.TxnInBlock
	sp, err := tx.Savepoint(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sp.depth)

	replies <- types.TxnInBlock
	require.NoError(t, sp.Rollback(ctx))

	replies <- types.TxnIdle
	require.NoError(t, tx.Commit(ctx))

	close(replies)
	waitDrained(t, srv)
}

// waitDrained gives the fake server's goroutine a moment to finish handling
// the last queued reply before the test's net.Pipe is torn down.
func waitDrained(t *testing.T, srv *fakeServer) {
	t.Helper()
	time.Sleep(10 * time.Millisecond)
}
