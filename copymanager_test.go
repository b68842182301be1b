package wire

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/riftwire/pgclient/pkg/types"
	"github.com/stretchr/testify/require"
)

// collectingReceiver returns a CopyReceiver that appends every pushed chunk
// to got, for asserting fan-out reached every receiver.
func collectingReceiver(name string, got *[][]byte, mu *sync.Mutex) CopyReceiver {
	return CopyReceiver{
		Name: name,
		Push: func(chunk []byte) error {
			mu.Lock()
			*got = append(*got, append([]byte(nil), chunk...))
			mu.Unlock()
			return nil
		},
		Finish: func() (int64, error) {
			mu.Lock()
			defer mu.Unlock()
			return int64(len(*got)), nil
		},
		Abort: func(reason error) error { return nil },
	}
}

func sliceSource(chunks [][]byte) CopySource {
	i := 0
	return CopySource{
		Name: "source",
		Next: func() ([]byte, error) {
			if i >= len(chunks) {
				return nil, io.EOF
			}
			c := chunks[i]
			i++
			return c, nil
		},
		Abort: func(reason error) error { return nil },
	}
}

func TestCopyManagerFanOut(t *testing.T) {
	t.Parallel()

	chunks := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	var mu sync.Mutex
	var gotA, gotB [][]byte

	mgr := NewCopyManager(sliceSource(chunks),
		collectingReceiver("a", &gotA, &mu),
		collectingReceiver("b", &gotB, &mu),
	)

	rows, err := mgr.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"a": 3, "b": 3}, rows)
	require.Len(t, gotA, 3)
	require.Len(t, gotB, 3)
}

func TestCopyManagerReceiverFaultIsolation(t *testing.T) {
	t.Parallel()

	chunks := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	var mu sync.Mutex
	var gotGood [][]byte
	pushes := 0

	bad := CopyReceiver{
		Name: "bad",
		Push: func(chunk []byte) error {
			pushes++
			if pushes == 1 {
				return errors.New("disk full")
			}
			return nil
		},
		Finish: func() (int64, error) { return 0, nil },
		Abort:  func(reason error) error { return nil },
	}
	good := collectingReceiver("good", &gotGood, &mu)

	var faults []*ReceiverFault
	mgr := NewCopyManager(sliceSource(chunks), bad, good)
	mgr.OnReceiverFault = func(f *ReceiverFault) { faults = append(faults, f) }

	rows, err := mgr.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, faults, 1)
	require.Equal(t, "bad", faults[0].Receiver)

	// bad faulted on the first chunk and was never reconciled, so it drops
	// out of the final row count entirely.
	_, stillPresent := rows["bad"]
	require.False(t, stillPresent)
	require.Equal(t, int64(3), rows["good"])
	require.Len(t, gotGood, 3)
}

func TestCopyManagerReconcile(t *testing.T) {
	t.Parallel()

	chunks := [][]byte{[]byte("a"), []byte("b"), []byte("c")}

	pushes := 0
	var delivered [][]byte

	flaky := CopyReceiver{
		Name: "flaky",
		Push: func(chunk []byte) error {
			pushes++
			if pushes == 1 {
				return errors.New("transient")
			}
			delivered = append(delivered, chunk)
			return nil
		},
		Finish: func() (int64, error) { return int64(len(delivered)), nil },
		Abort:  func(reason error) error { return nil },
	}

	mgr := NewCopyManager(sliceSource(chunks), flaky)
	mgr.OnReceiverFault = func(f *ReceiverFault) {
		require.NoError(t, mgr.Reconcile(f.Receiver))
	}

	rows, err := mgr.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), rows["flaky"])
	require.Equal(t, [][]byte{[]byte("b"), []byte("c")}, delivered)
}

func TestCopyManagerProducerFault(t *testing.T) {
	t.Parallel()

	sent := 0
	source := CopySource{
		Name: "source",
		Next: func() ([]byte, error) {
			sent++
			if sent == 1 {
				return []byte("a"), nil
			}
			return nil, errors.New("read error")
		},
		Abort: func(reason error) error { return nil },
	}

	var abortReason error
	receiver := CopyReceiver{
		Name: "r",
		Push: func(chunk []byte) error { return nil },
		Finish: func() (int64, error) {
			t.Fatal("Finish should not be called after a producer fault")
			return 0, nil
		},
		Abort: func(reason error) error {
			abortReason = reason
			return nil
		},
	}

	mgr := NewCopyManager(source, receiver)
	rows, err := mgr.Run(context.Background())

	require.Nil(t, rows)
	require.Error(t, err)

	var failure *CopyFailure
	require.ErrorAs(t, err, &failure)

	var pf *ProducerFault
	require.ErrorAs(t, err, &pf)
	require.EqualError(t, pf.Err, "read error")
	require.Error(t, abortReason)
}

func TestCopyManagerNoActiveReceiversAborts(t *testing.T) {
	t.Parallel()

	chunks := [][]byte{[]byte("a"), []byte("b")}
	faulty := CopyReceiver{
		Name:   "only",
		Push:   func(chunk []byte) error { return errors.New("gone") },
		Finish: func() (int64, error) { return 0, nil },
		Abort:  func(reason error) error { return nil },
	}

	mgr := NewCopyManager(sliceSource(chunks), faulty)
	rows, err := mgr.Run(context.Background())

	require.Nil(t, rows)
	var failure *CopyFailure
	require.ErrorAs(t, err, &failure)
}

// TestCopyManagerConnectionToConnection drives a real COPY OUT on one *Conn
// into a real COPY IN on a second *Conn through the manager, matching a
// connection-to-connection transfer rather than plain in-process callbacks.
func TestCopyManagerConnectionToConnection(t *testing.T) {
	t.Parallel()

	srcConn, srcSrv := newTestConn(t)
	dstConn, dstSrv := newTestConn(t)
	ctx := context.Background()

	go func() {
		srcSrv.recv()
		_, _ = srcSrv.reader.GetString()

		srcSrv.start(types.ServerCopyOutResponse)
		srcSrv.writer.AddByte(0)
		srcSrv.writer.AddInt16(0)
		srcSrv.end()

		srcSrv.start(types.ServerCopyData)
		srcSrv.writer.AddBytes([]byte("1,a\n"))
		srcSrv.end()

		srcSrv.start(types.ServerCopyData)
		srcSrv.writer.AddBytes([]byte("2,b\n"))
		srcSrv.end()

		srcSrv.start(types.ServerCopyDone)
		srcSrv.end()

		srcSrv.commandComplete("COPY 2")
		srcSrv.readyForQuery(types.TxnIdle)
	}()

	go func() {
		dstSrv.recv()
		_, _ = dstSrv.reader.GetString()

		dstSrv.start(types.ServerCopyInResponse)
		dstSrv.writer.AddByte(0)
		dstSrv.writer.AddInt16(0)
		dstSrv.end()

		for {
			kind := dstSrv.recv()
			switch kind {
			case types.ClientCopyData:
				dstSrv.reader.Remaining()
			case types.ClientCopyDone:
				dstSrv.commandComplete("COPY 2")
				dstSrv.readyForQuery(types.TxnIdle)
				return
			}
		}
	}()

	source := srcConn.NewCopyOutSource(ctx, "src", "COPY t TO STDOUT")
	receiver := dstConn.NewCopyInReceiver(ctx, "dst", "COPY t FROM STDIN")

	mgr := NewCopyManager(source, receiver)
	rows, err := mgr.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), rows["dst"])
}
