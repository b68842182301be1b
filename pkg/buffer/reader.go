package buffer

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"unsafe"

	"github.com/riftwire/pgclient/pkg/types"
)

// DefaultBufferSize represents the default buffer size whenever the buffer size
// is not set or a negative value is presented.
const DefaultBufferSize = 1 << 24 // 16777216 bytes

// BufferedReader extended io.Reader with some convenience methods.
type BufferedReader interface {
	io.Reader
	ReadString(delim byte) (string, error)
	ReadByte() (byte, error)
	UnreadByte() error
}

// Reader provides a convenient way to read pgwire protocol messages off of a
// connection to a Postgres backend. Unlike the server-oriented reader this
// decodes ServerMessage kind octets: a client never reads a ClientMessage
// off the wire.
type Reader struct {
	logger         *slog.Logger
	Buffer         BufferedReader
	Msg            []byte
	MaxMessageSize int
	header         [4]byte
}

// NewReader constructs a new Postgres wire buffer for the given io.Reader
func NewReader(logger *slog.Logger, reader io.Reader, bufferSize int) *Reader {
	if reader == nil {
		return nil
	}

	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Reader{
		logger:         logger,
		Buffer:         bufio.NewReaderSize(reader, bufferSize),
		MaxMessageSize: bufferSize,
	}
}

// reset sets reader.Msg to exactly size, attempting to use spare capacity
// at the end of the existing slice when possible and allocating a new
// slice when necessary.
func (reader *Reader) reset(size int) {
	if reader.Msg != nil {
		reader.Msg = reader.Msg[len(reader.Msg):]
	}

	if cap(reader.Msg) >= size {
		reader.Msg = reader.Msg[:size]
		return
	}

	allocSize := size
	if allocSize < 4096 {
		allocSize = 4096
	}
	reader.Msg = make([]byte, size, allocSize)
}

// ReadType reads the server message kind octet from the provided reader.
func (reader *Reader) ReadType() (types.ServerMessage, error) {
	b, err := reader.Buffer.ReadByte()
	if err != nil {
		return 0, err
	}

	return types.ServerMessage(b), nil
}

// PeekType reads the next server message kind octet without consuming it,
// so the caller can decide whether the frame belongs to the current mode
// (e.g. COPY data vs. the frame that follows it) before dispatching.
func (reader *Reader) PeekType() (types.ServerMessage, error) {
	b, err := reader.Buffer.ReadByte()
	if err != nil {
		return 0, err
	}

	if err := reader.Buffer.UnreadByte(); err != nil {
		return 0, err
	}

	return types.ServerMessage(b), nil
}

// ReadTypedMsg reads a message from the provided reader, returning its type code and body.
// It returns the message type, number of bytes read, and an error if there was one.
func (reader *Reader) ReadTypedMsg() (types.ServerMessage, int, error) {
	typed, err := reader.ReadType()
	if err != nil {
		return typed, 0, err
	}

	n, err := reader.ReadUntypedMsg()
	if err != nil {
		return 0, 0, err
	}

	return typed, n, nil
}

// Slurp reads and discards the given number of remaining bytes. Used to
// recover the byte stream position after a message size violation.
func (reader *Reader) Slurp(size int) error {
	remaining := size
	for remaining > 0 {
		reading := remaining

		if reading > reader.MaxMessageSize {
			reading = reader.MaxMessageSize
		}

		reader.reset(reading)

		n, err := io.ReadFull(reader.Buffer, reader.Msg)
		if err != nil {
			return err
		}

		remaining -= n
	}

	return nil
}

// ReadMsgSize reads the length of the next message from the provided reader.
func (reader *Reader) ReadMsgSize() (int, error) {
	nread, err := io.ReadFull(reader.Buffer, reader.header[:])
	if err != nil {
		return nread, err
	}

	size := int(binary.BigEndian.Uint32(reader.header[:]))
	if size < 4 {
		return size, NewInvalidFrameHeader(size)
	}

	// size includes itself.
	size -= 4

	return size, nil
}

// ReadUntypedMsg reads a length-prefixed message body with no leading kind
// octet. [ReadTypedMsg] calls it after consuming the kind octet; called
// directly, it reads the untyped startup/cancel/SSLRequest frame layout.
// This returns the number of bytes read
// and an error, if there was one. The number of bytes returned can be
// non-zero even with an error (e.g. if data was read but didn't validate) so
// that callers can more accurately measure network traffic.
//
// If the error is related to consuming a buffer that is larger than the
// maxMessageSize, the remaining bytes will be read but discarded.
func (reader *Reader) ReadUntypedMsg() (int, error) {
	size, err := reader.ReadMsgSize()
	if err != nil {
		return 0, err
	}

	if size > reader.MaxMessageSize || size < 0 {
		return size, NewMessageSizeExceeded(reader.MaxMessageSize, size)
	}

	reader.reset(size)
	n, err := io.ReadFull(reader.Buffer, reader.Msg)
	return len(reader.header) + n, err
}

// GetString reads a null-terminated string.
func (reader *Reader) GetString() (string, error) {
	pos := bytes.IndexByte(reader.Msg, 0)
	if pos == -1 {
		return "", NewMissingNulTerminator()
	}

	// Note: this is a conversion from a byte slice to a string which avoids
	// allocation and copying. It is safe because we never reuse the bytes in our
	// read buffer. It is effectively the same as: "s := string(b.Msg[:pos])"
	s := reader.Msg[:pos]
	reader.Msg = reader.Msg[pos+1:]
	return *((*string)(unsafe.Pointer(&s))), nil
}

// GetPrepareType returns the buffer's contents as a PrepareType, used to
// decode the Describe/Close message's target-kind byte ('S' or 'P').
func (reader *Reader) GetPrepareType() (PrepareType, error) {
	v, err := reader.GetBytes(1)
	if err != nil {
		return 0, err
	}

	return PrepareType(v[0]), nil
}

// GetBytes returns the buffer's contents as a []byte.
func (reader *Reader) GetBytes(n int) ([]byte, error) {
	// NULL parameter
	if n == -1 {
		return nil, nil
	}
	if len(reader.Msg) < n {
		return nil, NewInsufficientData(len(reader.Msg))
	}

	v := reader.Msg[:n]
	reader.Msg = reader.Msg[n:]
	return v, nil
}

// GetByte returns the buffer's next byte.
func (reader *Reader) GetByte() (byte, error) {
	b, err := reader.GetBytes(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// GetUint16 returns the buffer's contents as a uint16.
func (reader *Reader) GetUint16() (uint16, error) {
	if len(reader.Msg) < 2 {
		return 0, NewInsufficientData(len(reader.Msg))
	}

	v := binary.BigEndian.Uint16(reader.Msg[:2])
	reader.Msg = reader.Msg[2:]
	return v, nil
}

// GetInt16 returns the buffer's contents as an int16.
func (reader *Reader) GetInt16() (int16, error) {
	v, err := reader.GetUint16()
	return int16(v), err
}

// GetUint32 returns the buffer's contents as a uint32.
func (reader *Reader) GetUint32() (uint32, error) {
	if len(reader.Msg) < 4 {
		return 0, NewInsufficientData(len(reader.Msg))
	}

	v := binary.BigEndian.Uint32(reader.Msg[:4])
	reader.Msg = reader.Msg[4:]
	return v, nil
}

// GetInt32 returns the buffer's contents as an int32.
func (reader *Reader) GetInt32() (int32, error) {
	if len(reader.Msg) < 4 {
		return 0, NewInsufficientData(len(reader.Msg))
	}

	unsignedVal := binary.BigEndian.Uint32(reader.Msg[:4])
	signedVal := int32(unsignedVal)
	reader.Msg = reader.Msg[4:]
	return signedVal, nil
}

// GetUint64 returns the buffer's contents as a uint64.
func (reader *Reader) GetUint64() (uint64, error) {
	if len(reader.Msg) < 8 {
		return 0, NewInsufficientData(len(reader.Msg))
	}

	v := binary.BigEndian.Uint64(reader.Msg[:8])
	reader.Msg = reader.Msg[8:]
	return v, nil
}

// GetInt64 returns the buffer's contents as an int64.
func (reader *Reader) GetInt64() (int64, error) {
	v, err := reader.GetUint64()
	return int64(v), err
}

// GetFloat32 returns the buffer's contents as an IEEE-754 float32.
func (reader *Reader) GetFloat32() (float32, error) {
	v, err := reader.GetUint32()
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(v), nil
}

// GetFloat64 returns the buffer's contents as an IEEE-754 float64.
func (reader *Reader) GetFloat64() (float64, error) {
	v, err := reader.GetUint64()
	if err != nil {
		return 0, err
	}

	return math.Float64frombits(v), nil
}

// ReadCopyData reads the next frame under the expectation that it is a COPY
// data chunk. If the frame is instead CopyDone, CommandComplete,
// ReadyForQuery, or ErrorResponse — any of the frame kinds that end a COPY
// sub-protocol phase — done is returned true and the frame is left peeked
// (not consumed) so the caller's normal dispatch loop picks it up next.
func (reader *Reader) ReadCopyData() (data []byte, done bool, err error) {
	kind, err := reader.PeekType()
	if err != nil {
		return nil, false, err
	}

	if kind != types.ServerCopyData {
		return nil, true, nil
	}

	if _, _, err := reader.ReadTypedMsg(); err != nil {
		return nil, false, err
	}

	return reader.Remaining(), false, nil
}

// Remaining returns every remaining unread byte of the current message.
func (reader *Reader) Remaining() []byte {
	v := reader.Msg
	reader.Msg = reader.Msg[len(reader.Msg):]
	return v
}
