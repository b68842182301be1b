package wire

import (
	"context"
	"testing"
	"time"

	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func TestWaitForNotificationZeroTimeoutIsNonBlocking(t *testing.T) {
	t.Parallel()

	c, _ := newTestConn(t)

	zero := time.Duration(0)
	n, err := c.WaitForNotification(context.Background(), &zero)
	require.NoError(t, err)
	require.Nil(t, n)
}

func TestWaitForNotificationDeliversQueued(t *testing.T) {
	t.Parallel()

	c, _ := newTestConn(t)
	c.deliverNotification(protocol.NotificationResponse{PID: 99, Channel: "chan", Payload: "payload"})

	n, err := c.WaitForNotification(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "chan", n.Channel)
	require.Equal(t, "payload", n.Payload)
	require.Equal(t, int32(99), n.PID)
}

func TestWaitForNotificationGarbageConnectionErrors(t *testing.T) {
	t.Parallel()

	c, _ := newTestConn(t)
	c.markGarbage()

	_, err := c.WaitForNotification(context.Background(), nil)
	require.Error(t, err)
}

func TestQuoteIdentifierEscapesDoubleQuotes(t *testing.T) {
	t.Parallel()

	require.Equal(t, `"simple"`, quoteIdentifier("simple"))
	require.Equal(t, `"weird""name"`, quoteIdentifier(`weird"name`))
}
