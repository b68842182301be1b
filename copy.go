package wire

import (
	"context"
	"io"

	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/types"
)

// Producer supplies successive chunks of COPY-in data. It returns io.EOF
// (with no data, or with a final chunk of data) once exhausted.
type Producer func() ([]byte, error)

// Receiver consumes successive chunks of COPY-out data.
type Receiver func(chunk []byte) error

// CopyFrom runs a `COPY ... FROM STDIN` command, feeding it whatever
// producer yields until producer returns io.EOF, and returns the number of
// rows the server reports having loaded (§4.11's copy-in manager).
func (c *Conn) CopyFrom(ctx context.Context, sql string, producer Producer) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.txStatus == types.TxnFailed {
		return 0, pgerror.ErrInFailedBlock
	}

	msg := protocol.Query{SQL: sql}
	if err := msg.Encode(c.writer); err != nil {
		return 0, pgerror.Transport(err)
	}

	kind, err := c.next()
	if err != nil {
		return 0, err
	}
	if kind != types.ServerCopyInResponse {
		return 0, c.unexpectedCopyStart(kind, "copy-in")
	}
	if _, err := protocol.DecodeCopyResponse(c.reader); err != nil {
		return 0, pgerror.Protocol(err)
	}

	var bytesSent int
	for {
		chunk, perr := producer()
		if len(chunk) > 0 {
			out := protocol.CopyDataOut{Data: chunk}
			if err := out.Encode(c.writer); err != nil {
				return 0, pgerror.Transport(err)
			}
			bytesSent += len(chunk)
		}

		if perr == io.EOF {
			break
		}
		if perr != nil {
			fail := protocol.CopyFail{Message: perr.Error()}
			if err := fail.Encode(c.writer); err != nil {
				return 0, pgerror.Transport(err)
			}
			break
		}
	}

	done := protocol.CopyDoneOut{}
	if err := done.Encode(c.writer); err != nil {
		return 0, pgerror.Transport(err)
	}

	rows, err := c.finishCopy(ctx)
	if err == nil && c.config.Metrics != nil {
		c.config.Metrics.observeCopy("in", int(rows), bytesSent)
	}
	return rows, err
}

// CopyTo runs a `COPY ... TO STDOUT` command, handing every received chunk
// to receiver, and returns the number of rows the server reports having
// unloaded (§4.11's copy-out manager).
func (c *Conn) CopyTo(ctx context.Context, sql string, receiver Receiver) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.txStatus == types.TxnFailed {
		return 0, pgerror.ErrInFailedBlock
	}

	msg := protocol.Query{SQL: sql}
	if err := msg.Encode(c.writer); err != nil {
		return 0, pgerror.Transport(err)
	}

	kind, err := c.next()
	if err != nil {
		return 0, err
	}
	if kind != types.ServerCopyOutResponse && kind != types.ServerCopyBothResponse {
		return 0, c.unexpectedCopyStart(kind, "copy-out")
	}
	if _, err := protocol.DecodeCopyResponse(c.reader); err != nil {
		return 0, pgerror.Protocol(err)
	}

	var bytesReceived int
	for {
		kind, err := c.next()
		if err != nil {
			return 0, err
		}

		switch kind {
		case types.ServerCopyData:
			data, err := protocol.DecodeCopyData(c.reader)
			if err != nil {
				return 0, pgerror.Protocol(err)
			}
			bytesReceived += len(data.Data)
			if err := receiver(data.Data); err != nil {
				return 0, pgerror.Copy(err)
			}

		case types.ServerCopyDone:
			rows, err := c.finishCopy(ctx)
			if err == nil && c.config.Metrics != nil {
				c.config.Metrics.observeCopy("out", int(rows), bytesReceived)
			}
			return rows, err

		case types.ServerErrorResponse:
			fields, err := protocol.DecodeErrorResponse(c.reader)
			if err != nil {
				return 0, pgerror.Protocol(err)
			}
			c.drainUntilReady()
			return 0, decodeServerError(fields)

		default:
			return 0, pgerror.Protocolf("unexpected message %s during copy-out", kind)
		}
	}
}

// finishCopy reads the CommandComplete/ReadyForQuery pair that follows a
// CopyDone on either side of the COPY sub-protocol, parsing the row count
// out of the command tag (e.g. "COPY 42").
func (c *Conn) finishCopy(ctx context.Context) (int64, error) {
	for {
		kind, err := c.next()
		if err != nil {
			return 0, err
		}

		switch kind {
		case types.ServerCommandComplete:
			tag, err := protocol.DecodeCommandComplete(c.reader)
			if err != nil {
				return 0, pgerror.Protocol(err)
			}
			rows := parseRowCount(tag.Tag)
			for {
				k2, err := c.next()
				if err != nil {
					return rows, err
				}
				if k2 == types.ServerReady {
					ready, err := protocol.DecodeReadyForQuery(c.reader)
					if err != nil {
						return rows, pgerror.Protocol(err)
					}
					c.txStatus = ready.Status
					return rows, nil
				}
			}

		case types.ServerErrorResponse:
			fields, err := protocol.DecodeErrorResponse(c.reader)
			if err != nil {
				return 0, pgerror.Protocol(err)
			}
			c.drainUntilReady()
			return 0, decodeServerError(fields)

		default:
			return 0, pgerror.Protocolf("unexpected message %s finishing copy", kind)
		}
	}
}

func (c *Conn) unexpectedCopyStart(kind types.ServerMessage, want string) error {
	if kind == types.ServerErrorResponse {
		fields, err := protocol.DecodeErrorResponse(c.reader)
		if err != nil {
			return pgerror.Protocol(err)
		}
		c.drainUntilReady()
		return decodeServerError(fields)
	}
	return pgerror.Protocolf("expected %s response, got %s", want, kind)
}
