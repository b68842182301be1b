package wire

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/riftwire/pgclient/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestCopyFromRoundTrip(t *testing.T) {
	t.Parallel()

	c, srv := newTestConn(t)
	ctx := context.Background()

	go func() {
		srv.recv() // Query
		_, _ = srv.reader.GetString()

		srv.start(types.ServerCopyInResponse)
		srv.writer.AddByte(0)
		srv.writer.AddInt16(0)
		srv.end()

		for {
			kind := srv.recv()
			switch kind {
			case types.ClientCopyData:
				srv.reader.Remaining()
			case types.ClientCopyDone:
				srv.commandComplete("COPY 2")
				srv.readyForQuery(types.TxnIdle)
				return
			}
		}
	}()

	lines := [][]byte{[]byte("a\n"), []byte("b\n")}
	i := 0
	rows, err := c.CopyFrom(ctx, "COPY t FROM STDIN", func() ([]byte, error) {
		if i >= len(lines) {
			return nil, io.EOF
		}
		line := lines[i]
		i++
		return line, nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), rows)
}

func TestCopyToRoundTrip(t *testing.T) {
	t.Parallel()

	c, srv := newTestConn(t)
	ctx := context.Background()

	go func() {
		srv.recv()
		_, _ = srv.reader.GetString()

		srv.start(types.ServerCopyOutResponse)
		srv.writer.AddByte(0)
		srv.writer.AddInt16(0)
		srv.end()

		srv.start(types.ServerCopyData)
		srv.writer.AddBytes([]byte("a\n"))
		srv.end()

		srv.start(types.ServerCopyDone)
		srv.end()

		srv.commandComplete("COPY 1")
		srv.readyForQuery(types.TxnIdle)
	}()

	var got []byte
	rows, err := c.CopyTo(ctx, "COPY t TO STDOUT", func(chunk []byte) error {
		got = append(got, chunk...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)
	require.Equal(t, "a\n", string(got))

	time.Sleep(5 * time.Millisecond)
}
