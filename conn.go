package wire

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/buffer"
	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/types"
	"github.com/riftwire/pgclient/pkg/typeregistry"
)

// Conn is a single session against a Postgres backend: one TCP or Unix
// socket, one authenticated login, one transaction-status machine (C6).
// A Conn is not safe for concurrent use by multiple goroutines; callers
// that need concurrency should use a separate Conn per goroutine.
type Conn struct {
	netConn net.Conn
	reader  *buffer.Reader
	writer  *buffer.Writer
	config  *Config
	logger  *slog.Logger

	mu sync.Mutex

	registry *typeregistry.Registry

	backendPID    int32
	backendSecret int32
	txStatus      types.TxnStatus
	parameters    map[string]string

	statements *StatementCache
	portals    *PortalCache

	notifyCh chan *Notification
	garbage  atomic.Bool // set once a protocol/transport fault makes the connection unusable for notification polling

	closed atomic.Bool
}

// Connect dials, optionally upgrades to TLS, authenticates, and completes
// startup against the server named by dsn, returning a ready-to-use Conn.
func Connect(ctx context.Context, dsn string, opts ...OptionFn) (*Conn, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return connect(ctx, cfg)
}

func connect(ctx context.Context, cfg *Config) (*Conn, error) {
	netConn, err := dial(ctx, cfg)
	if err != nil {
		return nil, pgerror.Transport(err)
	}

	c := &Conn{
		netConn:    netConn,
		config:     cfg,
		logger:     cfg.Logger,
		txStatus:   types.TxnIdle,
		parameters: make(map[string]string, 8),
		statements: newStatementCache(),
		portals:    newPortalCache(),
		notifyCh:   make(chan *Notification, 64),
	}

	if cfg.ConnectTimeout > 0 {
		_ = netConn.SetDeadline(time.Now().Add(cfg.ConnectTimeout))
	}

	netConn, err = negotiateTLS(netConn, cfg)
	if err != nil {
		c.netConn.Close()
		return nil, err
	}

	c.netConn = netConn
	c.reader = buffer.NewReader(c.logger, netConn, buffer.DefaultBufferSize)
	c.writer = buffer.NewWriter(c.logger, netConn)
	c.registry = typeregistry.New(c)

	if err := c.startup(ctx); err != nil {
		c.netConn.Close()
		return nil, err
	}

	_ = c.netConn.SetDeadline(time.Time{})

	return c, nil
}

func dial(ctx context.Context, cfg *Config) (net.Conn, error) {
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}

	if cfg.Unix != "" {
		return dialer.DialContext(ctx, "unix", cfg.Unix)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return dialer.DialContext(ctx, "tcp", addr)
}

// Close terminates the session gracefully, sending Terminate before
// closing the underlying socket. Safe to call more than once.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	msg := protocol.Terminate{}
	_ = msg.Encode(c.writer)
	return c.netConn.Close()
}

// TxStatus reports the connection's cached transaction status (C6),
// updated from the Status byte of every ReadyForQuery message.
func (c *Conn) TxStatus() types.TxnStatus {
	return c.txStatus
}

// BackendPID returns the process ID the server reported in BackendKeyData,
// used to issue a CancelRequest (§4.6) on a separate connection.
func (c *Conn) BackendPID() int32 {
	return c.backendPID
}

// ParameterStatus returns the last known value of a server reported
// run-time parameter (e.g. "server_encoding", "TimeZone"), or "" if the
// server never reported it.
func (c *Conn) ParameterStatus(name string) string {
	return c.parameters[name]
}

// dispatchAsync handles the message kinds that can arrive unsolicited
// between command replies (§9): NoticeResponse, ParameterStatus and
// NotificationResponse. It returns true if kind was one of these and has
// been fully consumed, false if the caller's normal dispatch should handle
// it instead.
func (c *Conn) dispatchAsync(kind types.ServerMessage) (bool, error) {
	switch kind {
	case types.ServerNoticeResponse:
		fields, err := protocol.DecodeNoticeResponse(c.reader)
		if err != nil {
			return true, pgerror.Protocol(err)
		}
		c.config.Hooks.dispatch(noticeFromFields(fields))
		return true, nil

	case types.ServerParameterStatus:
		status, err := protocol.DecodeParameterStatus(c.reader)
		if err != nil {
			return true, pgerror.Protocol(err)
		}
		c.parameters[status.Name] = status.Value
		return true, nil

	case types.ServerNotificationResponse:
		notification, err := protocol.DecodeNotificationResponse(c.reader)
		if err != nil {
			return true, pgerror.Protocol(err)
		}
		c.deliverNotification(notification)
		return true, nil

	default:
		return false, nil
	}
}

// deliverNotification queues a decoded NotificationResponse for consumption
// through Listen/WaitForNotification (notify.go). A full channel drops the
// oldest queued notification rather than blocking the read loop.
func (c *Conn) deliverNotification(n protocol.NotificationResponse) {
	notification := &Notification{PID: n.PID, Channel: n.Channel, Payload: n.Payload}

	select {
	case c.notifyCh <- notification:
	default:
		select {
		case <-c.notifyCh:
		default:
		}
		select {
		case c.notifyCh <- notification:
		default:
		}
	}
}

func noticeFromFields(msg protocol.FieldedMessage) *Notice {
	n := &Notice{}
	if v, ok := msg.Fields[buffer.ServerErrFieldSeverity]; ok {
		n.Severity = v
	}
	if v, ok := msg.Fields[buffer.ServerErrFieldSQLState]; ok {
		n.Code = v
	}
	if v, ok := msg.Fields[buffer.ServerErrFieldMsgPrimary]; ok {
		n.Message = v
	}
	if v, ok := msg.Fields[buffer.ServerErrFieldDetail]; ok {
		n.Detail = v
	}
	if v, ok := msg.Fields[buffer.ServerErrFieldHint]; ok {
		n.Hint = v
	}
	return n
}

// next reads the next frame, transparently absorbing asynchronous messages
// (notices, parameter status, notifications) until it finds one the caller
// has to act on.
func (c *Conn) next() (types.ServerMessage, error) {
	for {
		kind, _, err := c.reader.ReadTypedMsg()
		if err != nil {
			c.markGarbage()
			return 0, pgerror.Transport(err)
		}

		handled, err := c.dispatchAsync(kind)
		if err != nil {
			c.markGarbage()
			return 0, err
		}
		if !handled {
			return kind, nil
		}
	}
}

