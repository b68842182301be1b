package errors

import (
	"errors"
	"fmt"

	"github.com/riftwire/pgclient/codes"
)

// Kind classifies an error into exactly one of the §7 error taxonomy
// categories. Every error surfaced to a caller of the client runtime belongs
// to exactly one kind.
type Kind string

const (
	KindProtocol  Kind = "protocol"
	KindServer    Kind = "server"
	KindAuth      Kind = "auth"
	KindTransport Kind = "transport"
	KindParameter Kind = "parameter"
	KindState     Kind = "state"
	KindCopy      Kind = "copy"
)

// withKind decorates an error with a taxonomy Kind, mirroring the shape of
// withCode/withSeverity so that Kind participates in the same Unwrap chain.
type withKind struct {
	cause error
	kind  Kind
}

func (w *withKind) Error() string { return w.cause.Error() }
func (w *withKind) Unwrap() error { return w.cause }

// WithKind decorates the error with a taxonomy classification.
func WithKind(err error, kind Kind) error {
	if err == nil {
		return nil
	}

	return &withKind{cause: err, kind: kind}
}

// GetKind returns the taxonomy Kind of the given error, or "" if unclassified.
func GetKind(err error) Kind {
	var w *withKind
	if errors.As(err, &w) {
		return w.kind
	}

	return ""
}

// Protocol wraps err as a protocol error: a frame header invalid, unexpected
// frame kind for the current state, or a response-sequence mismatch. Protocol
// errors are always fatal to the connection.
func Protocol(err error) error {
	return WithKind(WithSeverity(WithCode(err, codes.ProtocolViolation), LevelFatal), KindProtocol)
}

// Protocolf is a convenience constructor building a Protocol error from a
// format string.
func Protocolf(format string, args ...any) error {
	return Protocol(fmt.Errorf(format, args...))
}

// Auth wraps err as an authentication error: unsupported mechanism,
// rejected credentials, or missing channel binding.
func Auth(err error) error {
	return WithKind(WithSeverity(WithCode(err, codes.InvalidPassword), LevelFatal), KindAuth)
}

// Transport wraps err as a transport error (connect/read/write/TLS/timeout
// failure). Subdivided by recoverability via errors.Is against net.Error.
func Transport(err error) error {
	return WithKind(WithCode(err, codes.ConnectionFailure), KindTransport)
}

// Parameter wraps err as a parameter error: the caller supplied a value the
// target codec cannot accept. column is -1 when not applicable.
type ParameterError struct {
	cause  error
	Column int
	Type   string
}

func (e *ParameterError) Error() string {
	if e.Column >= 0 {
		return fmt.Sprintf("parameter %d (%s): %s", e.Column, e.Type, e.cause.Error())
	}
	return fmt.Sprintf("parameter (%s): %s", e.Type, e.cause.Error())
}

func (e *ParameterError) Unwrap() error { return e.cause }

// Parameter constructs a parameter error wrapping cause with the offending
// column index and target type name.
func Parameter(cause error, column int, typ string) error {
	return WithKind(WithCode(&ParameterError{cause: cause, Column: column, Type: typ}, codes.InvalidParameterValue), KindParameter)
}

// State wraps err as a state error: an operation issued in the wrong state
// (command in failed-block, portal use after transaction end, copy-in after
// the manager already closed). State errors never cause network I/O.
func State(err error) error {
	return WithKind(WithCode(err, codes.ObjectNotInPrerequisiteState), KindState)
}

// ErrInFailedBlock is returned, without any network round-trip, by any
// command other than ROLLBACK/ROLLBACK TO SAVEPOINT issued while the
// connection's cached transaction status is failed-block.
var ErrInFailedBlock = State(errors.New("current transaction is aborted, commands ignored until end of transaction block"))

// Copy wraps err as a copy error (producer/receiver fault, reconciliation
// required, or aborted transfer).
func Copy(err error) error {
	return WithKind(WithCode(err, codes.Uncategorized), KindCopy)
}

// Server constructs a normalized server error from a decoded ErrorResponse.
// It is the read-side counterpart of Flatten: Flatten turns an error into
// wire fields, Server turns wire fields back into an error.
func Server(fields Error) error {
	var err error = errors.New(fields.Message)
	err = WithCode(err, fields.Code)
	err = WithSeverity(err, fields.Severity)

	if fields.Detail != "" {
		err = WithDetail(err, fields.Detail)
	}
	if fields.Hint != "" {
		err = WithHint(err, fields.Hint)
	}
	if fields.ConstraintName != "" {
		err = WithConstraintName(err, fields.ConstraintName)
	}
	if fields.Source != nil {
		err = WithSource(err, fields.Source.File, fields.Source.Line, fields.Source.Function)
	}

	return WithKind(err, KindServer)
}
