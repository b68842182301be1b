package wire

import (
	"net"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/riftwire/pgclient/pkg/buffer"
	"github.com/riftwire/pgclient/pkg/types"
	"github.com/riftwire/pgclient/pkg/typeregistry"
	"github.com/stretchr/testify/require"
)

// fakeServer is the backend half of an in-process net.Pipe, used to drive a
// *Conn through its handshake and command machinery without a real socket.
type fakeServer struct {
	t      *testing.T
	reader *buffer.Reader
	writer *buffer.Writer
}

func newFakeServer(t *testing.T, conn net.Conn) *fakeServer {
	logger := slogt.New(t)
	return &fakeServer{
		t:      t,
		reader: buffer.NewReader(logger, conn, buffer.DefaultBufferSize),
		writer: buffer.NewWriter(logger, conn),
	}
}

// recv reads and discards the next client message, returning its type.
func (f *fakeServer) recv() types.ClientMessage {
	f.t.Helper()
	kind, _, err := f.reader.ReadTypedMsg()
	require.NoError(f.t, err)
	return types.ClientMessage(kind)
}

// start begins a new outgoing message of the given kind; callers fill the
// body with f.writer helpers and finish with f.end().
func (f *fakeServer) start(kind types.ServerMessage) {
	f.writer.Start(types.ClientMessage(kind))
}

func (f *fakeServer) end() {
	require.NoError(f.t, f.writer.End())
}

// authOK writes AuthenticationOk, BackendKeyData, a couple of
// ParameterStatus messages and the initial ReadyForQuery, the minimum
// sequence that satisfies startup() after a trivial (no challenge) auth.
func (f *fakeServer) authOK(pid, secret int32) {
	f.start(types.ServerMessage('R'))
	f.writer.AddInt32(int32(types.AuthOk))
	f.end()

	f.start(types.ServerBackendKeyData)
	f.writer.AddInt32(pid)
	f.writer.AddInt32(secret)
	f.end()

	f.parameterStatus("server_version", "16.0")
	f.parameterStatus("client_encoding", "UTF8")

	f.readyForQuery(types.TxnIdle)
}

func (f *fakeServer) parameterStatus(name, value string) {
	f.start(types.ServerParameterStatus)
	f.writer.AddString(name)
	f.writer.AddNullTerminate()
	f.writer.AddString(value)
	f.writer.AddNullTerminate()
	f.end()
}

func (f *fakeServer) readyForQuery(status types.TxnStatus) {
	f.start(types.ServerReady)
	f.writer.AddByte(byte(status))
	f.end()
}

func (f *fakeServer) rowDescription(names []string, oids []uint32) {
	f.start(types.ServerRowDescription)
	f.writer.AddInt16(int16(len(names)))
	for i, name := range names {
		f.writer.AddString(name)
		f.writer.AddNullTerminate()
		f.writer.AddInt32(0)  // table OID
		f.writer.AddInt16(0)  // column
		f.writer.AddInt32(int32(oids[i]))
		f.writer.AddInt16(-1) // type size
		f.writer.AddInt32(-1) // type modifier
		f.writer.AddInt16(int16(types.TextFormat))
	}
	f.end()
}

func (f *fakeServer) dataRow(values [][]byte) {
	f.start(types.ServerDataRow)
	f.writer.AddInt16(int16(len(values)))
	for _, v := range values {
		if v == nil {
			f.writer.AddInt32(-1)
			continue
		}
		f.writer.AddInt32(int32(len(v)))
		f.writer.AddBytes(v)
	}
	f.end()
}

func (f *fakeServer) commandComplete(tag string) {
	f.start(types.ServerCommandComplete)
	f.writer.AddString(tag)
	f.writer.AddNullTerminate()
	f.end()
}

func (f *fakeServer) parseComplete() {
	f.start(types.ServerParseComplete)
	f.end()
}

func (f *fakeServer) bindComplete() {
	f.start(types.ServerBindComplete)
	f.end()
}

func (f *fakeServer) parameterDescription(oids []uint32) {
	f.start(types.ServerMessage('t'))
	f.writer.AddInt16(int16(len(oids)))
	for _, o := range oids {
		f.writer.AddInt32(int32(o))
	}
	f.end()
}

func (f *fakeServer) errorResponse(code, message string) {
	f.start(types.ServerErrorResponse)
	f.writer.AddByte('S')
	f.writer.AddString("ERROR")
	f.writer.AddNullTerminate()
	f.writer.AddByte('C')
	f.writer.AddString(code)
	f.writer.AddNullTerminate()
	f.writer.AddByte('M')
	f.writer.AddString(message)
	f.writer.AddNullTerminate()
	f.writer.AddByte(0)
	f.end()
}

// newTestConn builds a *Conn wired to one end of a net.Pipe and a
// fakeServer on the other end, skipping DSN parsing, dialing and TLS
// negotiation so tests can drive the wire protocol directly.
func newTestConn(t *testing.T) (*Conn, *fakeServer) {
	t.Helper()

	client, server := net.Pipe()
	logger := slogt.New(t)

	c := &Conn{
		netConn:    client,
		config:     &Config{SSLMode: SSLDisable, Logger: logger, Database: "postgres", User: "postgres"},
		logger:     logger,
		txStatus:   types.TxnIdle,
		parameters: make(map[string]string, 8),
		statements: newStatementCache(),
		portals:    newPortalCache(),
		notifyCh:   make(chan *Notification, 64),
	}
	c.reader = buffer.NewReader(logger, client, buffer.DefaultBufferSize)
	c.writer = buffer.NewWriter(logger, client)
	c.registry = typeregistry.New(c)

	return c, newFakeServer(t, server)
}
