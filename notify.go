package wire

import (
	"context"
	"time"

	pgerror "github.com/riftwire/pgclient/errors"
)

// Notification is a decoded NotificationResponse delivered asynchronously
// by the server in response to a NOTIFY issued on a channel this connection
// has LISTENed to (§4.10).
type Notification struct {
	PID     int32
	Channel string
	Payload string
}

// WaitForNotification returns the next notification queued on this
// connection, waiting until one is queued, timeout elapses, or ctx is
// cancelled. It does not read from the socket itself: notifications are
// queued only while another operation on this Conn is reading server
// messages. A nil timeout waits indefinitely, zero returns immediately with
// whatever is already queued, and a positive timeout waits at most that
// long.
func (c *Conn) WaitForNotification(ctx context.Context, timeout *time.Duration) (*Notification, error) {
	if c.garbage.Load() {
		return nil, pgerror.State(errConnectionGarbage)
	}

	select {
	case n := <-c.notifyCh:
		return n, nil
	default:
	}

	if timeout != nil && *timeout == 0 {
		return nil, nil
	}

	var timer *time.Timer
	var after <-chan time.Time
	if timeout != nil {
		timer = time.NewTimer(*timeout)
		defer timer.Stop()
		after = timer.C
	}

	select {
	case n := <-c.notifyCh:
		return n, nil
	case <-after:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Listen issues LISTEN for the given channel name. Postgres channel
// identifiers cannot be parameterized, so the name is quoted as an
// identifier rather than passed as a bind parameter; it is not otherwise
// validated.
func (c *Conn) Listen(ctx context.Context, channel string) error {
	return c.execSimple(ctx, "LISTEN "+quoteIdentifier(channel))
}

// Unlisten issues UNLISTEN for the given channel name.
func (c *Conn) Unlisten(ctx context.Context, channel string) error {
	return c.execSimple(ctx, "UNLISTEN "+quoteIdentifier(channel))
}

// UnlistenAll issues UNLISTEN *.
func (c *Conn) UnlistenAll(ctx context.Context) error {
	return c.execSimple(ctx, "UNLISTEN *")
}

// markGarbage moves the connection into the faulted set referenced by
// §4.10 once a protocol or transport error occurs. WaitForNotification and
// Ping refuse to run on a connection so marked; other operations do not
// check the flag.
func (c *Conn) markGarbage() {
	c.garbage.Store(true)
}

var errConnectionGarbage = errGarbageConn{}

type errGarbageConn struct{}

func (errGarbageConn) Error() string {
	return "connection is faulted and no longer eligible for notification polling"
}

func quoteIdentifier(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, '"')
	for i := 0; i < len(name); i++ {
		if name[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, name[i])
	}
	out = append(out, '"')
	return string(out)
}
