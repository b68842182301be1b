package protocol

import (
	"github.com/riftwire/pgclient/pkg/buffer"
	"github.com/riftwire/pgclient/pkg/types"
)

// Startup is the first message sent on a new connection. It carries no kind
// octet: the frame is length(4) + protocol version(4) + key/value pairs,
// each null-terminated, terminated by a final zero byte.
type Startup struct {
	Version    types.Version
	Parameters map[string]string
}

func (msg Startup) Encode(writer *buffer.Writer) error {
	writer.StartUntyped()
	writer.AddInt32(int32(msg.Version))

	for k, v := range msg.Parameters {
		writer.AddString(k)
		writer.AddNullTerminate()
		writer.AddString(v)
		writer.AddNullTerminate()
	}

	writer.AddNullTerminate()
	return writer.End()
}

// SSLRequest asks the server whether it is willing to negotiate TLS before
// the startup message is sent. Also carries no kind octet.
type SSLRequest struct{}

func (msg SSLRequest) Encode(writer *buffer.Writer) error {
	writer.StartUntyped()
	writer.AddInt32(int32(types.VersionSSLRequest))
	return writer.End()
}

// CancelRequest is sent on a fresh connection (not the one being cancelled)
// to ask the server to abort whatever the target backend is doing.
type CancelRequest struct {
	ProcessID int32
	SecretKey int32
}

func (msg CancelRequest) Encode(writer *buffer.Writer) error {
	writer.StartUntyped()
	writer.AddInt32(int32(types.VersionCancel))
	writer.AddInt32(msg.ProcessID)
	writer.AddInt32(msg.SecretKey)
	return writer.End()
}

// PasswordMessage carries a cleartext or MD5-hashed password response, or
// (reused for the same kind octet) a SASL initial/continuation payload.
type PasswordMessage struct {
	Password string
}

func (msg PasswordMessage) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientPassword)
	writer.AddString(msg.Password)
	writer.AddNullTerminate()
	return writer.End()
}

// SASLInitialResponse begins a SASL exchange (AuthSASL), naming the chosen
// mechanism and supplying its first client message.
type SASLInitialResponse struct {
	Mechanism string
	Data      []byte
}

func (msg SASLInitialResponse) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientPassword)
	writer.AddString(msg.Mechanism)
	writer.AddNullTerminate()

	if msg.Data == nil {
		writer.AddInt32(-1)
	} else {
		writer.AddInt32(int32(len(msg.Data)))
		writer.AddBytes(msg.Data)
	}

	return writer.End()
}

// SASLResponse carries a subsequent SASL exchange message (AuthSASLContinue).
type SASLResponse struct {
	Data []byte
}

func (msg SASLResponse) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientPassword)
	writer.AddBytes(msg.Data)
	return writer.End()
}

// Query sends a simple-query protocol request: the server parses, binds,
// executes and replies for every statement found in the string in one shot.
type Query struct {
	SQL string
}

func (msg Query) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientSimpleQuery)
	writer.AddString(msg.SQL)
	writer.AddNullTerminate()
	return writer.End()
}

// Parse requests a named (or unnamed, if Name == "") prepared statement be
// created from the given SQL, with the given parameter type OIDs supplied
// as hints (0 lets the server infer the type).
type Parse struct {
	Name      string
	SQL       string
	ParamOIDs []uint32
}

func (msg Parse) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientParse)
	writer.AddString(msg.Name)
	writer.AddNullTerminate()
	writer.AddString(msg.SQL)
	writer.AddNullTerminate()

	writer.AddInt16(int16(len(msg.ParamOIDs)))
	for _, oid := range msg.ParamOIDs {
		writer.AddInt32(int32(oid))
	}

	return writer.End()
}

// Bind binds parameter values to a prepared statement, producing a portal.
type Bind struct {
	Portal        string
	Statement     string
	ParamFormats  []types.FormatCode
	Params        [][]byte
	ResultFormats []types.FormatCode
}

func (msg Bind) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientBind)
	writer.AddString(msg.Portal)
	writer.AddNullTerminate()
	writer.AddString(msg.Statement)
	writer.AddNullTerminate()

	writer.AddInt16(int16(len(msg.ParamFormats)))
	for _, f := range msg.ParamFormats {
		writer.AddInt16(int16(f))
	}

	writer.AddInt16(int16(len(msg.Params)))
	for _, p := range msg.Params {
		if p == nil {
			writer.AddInt32(-1)
			continue
		}
		writer.AddInt32(int32(len(p)))
		writer.AddBytes(p)
	}

	writer.AddInt16(int16(len(msg.ResultFormats)))
	for _, f := range msg.ResultFormats {
		writer.AddInt16(int16(f))
	}

	return writer.End()
}

// Describe asks the server to return the ParameterDescription and/or
// RowDescription of a named statement or portal, without executing it.
type Describe struct {
	Kind buffer.PrepareType
	Name string
}

func (msg Describe) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientDescribe)
	writer.AddByte(byte(msg.Kind))
	writer.AddString(msg.Name)
	writer.AddNullTerminate()
	return writer.End()
}

// Execute requests rows from a bound portal, up to MaxRows (0 means no
// limit). PortalSuspended is returned in place of CommandComplete when the
// limit truncates the result.
type Execute struct {
	Portal  string
	MaxRows int32
}

func (msg Execute) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientExecute)
	writer.AddString(msg.Portal)
	writer.AddNullTerminate()
	writer.AddInt32(msg.MaxRows)
	return writer.End()
}

// Close closes a named (or unnamed) statement or portal, releasing its
// server-side resources.
type Close struct {
	Kind buffer.PrepareType
	Name string
}

func (msg Close) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientClose)
	writer.AddByte(byte(msg.Kind))
	writer.AddString(msg.Name)
	writer.AddNullTerminate()
	return writer.End()
}

// Sync closes out an extended-query pipeline, causing the server to issue
// ReadyForQuery and, on error, resume accepting messages after discarding
// the rest of the failed pipeline.
type Sync struct{}

func (msg Sync) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientSync)
	return writer.End()
}

// Flush asks the server to deliver any pending response data immediately,
// without closing out the pipeline the way Sync does.
type Flush struct{}

func (msg Flush) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientFlush)
	return writer.End()
}

// Terminate cleanly ends the session; the server closes the connection
// without replying.
type Terminate struct{}

func (msg Terminate) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientTerminate)
	return writer.End()
}

// CopyDataOut carries a single outbound chunk of COPY payload.
type CopyDataOut struct {
	Data []byte
}

func (msg CopyDataOut) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientCopyData)
	writer.AddBytes(msg.Data)
	return writer.End()
}

// CopyDoneOut signals that the client has no more COPY data to send.
type CopyDoneOut struct{}

func (msg CopyDoneOut) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientCopyDone)
	return writer.End()
}

// CopyFail aborts a COPY-in operation with an explanatory message, which
// the server surfaces back to the client as an ErrorResponse.
type CopyFail struct {
	Message string
}

func (msg CopyFail) Encode(writer *buffer.Writer) error {
	writer.Start(types.ClientCopyFail)
	writer.AddString(msg.Message)
	writer.AddNullTerminate()
	return writer.End()
}
