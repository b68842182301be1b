// Package protocol implements the element codec (C3): one Go type per
// PostgreSQL v3.0 message kind, each able to decode itself from a frame body
// already split out by pkg/buffer, or encode itself back into one.
package protocol

import (
	"github.com/lib/pq/oid"
	"github.com/riftwire/pgclient/pkg/buffer"
	"github.com/riftwire/pgclient/pkg/types"
)

// Authentication represents a decoded AuthenticationRequest message and its
// subtype-specific payload.
type Authentication struct {
	Type       types.AuthType
	Salt       [4]byte  // AuthMD5Password
	Mechanisms []string // AuthSASL
	Data       []byte   // AuthSASLContinue / AuthSASLFinal
}

func DecodeAuthentication(reader *buffer.Reader) (Authentication, error) {
	var auth Authentication

	code, err := reader.GetInt32()
	if err != nil {
		return auth, err
	}

	auth.Type = types.AuthType(code)

	switch auth.Type {
	case types.AuthMD5Password:
		salt, err := reader.GetBytes(4)
		if err != nil {
			return auth, err
		}
		copy(auth.Salt[:], salt)
	case types.AuthSASL:
		for {
			mechanism, err := reader.GetString()
			if err != nil {
				return auth, err
			}
			if mechanism == "" {
				break
			}
			auth.Mechanisms = append(auth.Mechanisms, mechanism)
		}
	case types.AuthSASLContinue, types.AuthSASLFinal:
		auth.Data = reader.Remaining()
	}

	return auth, nil
}

// BackendKeyData carries the process ID and secret key used for CancelRequest.
type BackendKeyData struct {
	ProcessID int32
	SecretKey int32
}

func DecodeBackendKeyData(reader *buffer.Reader) (BackendKeyData, error) {
	var msg BackendKeyData
	var err error

	msg.ProcessID, err = reader.GetInt32()
	if err != nil {
		return msg, err
	}

	msg.SecretKey, err = reader.GetInt32()
	return msg, err
}

// CommandComplete carries the command tag (e.g. "SELECT 3", "INSERT 0 1").
type CommandComplete struct {
	Tag string
}

func DecodeCommandComplete(reader *buffer.Reader) (CommandComplete, error) {
	tag, err := reader.GetString()
	return CommandComplete{Tag: tag}, err
}

// CopyResponse is shared by CopyInResponse/CopyOutResponse/CopyBothResponse.
type CopyResponse struct {
	Format        types.CopyFormat
	ColumnFormats []types.FormatCode
}

func DecodeCopyResponse(reader *buffer.Reader) (CopyResponse, error) {
	var msg CopyResponse

	format, err := reader.GetByte()
	if err != nil {
		return msg, err
	}
	msg.Format = types.CopyFormat(format)

	n, err := reader.GetUint16()
	if err != nil {
		return msg, err
	}

	msg.ColumnFormats = make([]types.FormatCode, n)
	for i := range msg.ColumnFormats {
		f, err := reader.GetUint16()
		if err != nil {
			return msg, err
		}
		msg.ColumnFormats[i] = types.FormatCode(f)
	}

	return msg, nil
}

// CopyData carries a single chunk of COPY payload, in either direction.
type CopyData struct {
	Data []byte
}

func DecodeCopyData(reader *buffer.Reader) (CopyData, error) {
	return CopyData{Data: reader.Remaining()}, nil
}

// DataRow carries one row of raw, type-agnostic column bytes; a nil entry
// is a SQL NULL. Typed conversion happens downstream via the type registry.
type DataRow struct {
	Values [][]byte
}

func DecodeDataRow(reader *buffer.Reader) (DataRow, error) {
	n, err := reader.GetUint16()
	if err != nil {
		return DataRow{}, err
	}

	row := DataRow{Values: make([][]byte, n)}
	for i := range row.Values {
		size, err := reader.GetInt32()
		if err != nil {
			return row, err
		}

		v, err := reader.GetBytes(int(size))
		if err != nil {
			return row, err
		}

		row.Values[i] = v
	}

	return row, nil
}

// FieldDescription describes one column of a RowDescription.
type FieldDescription struct {
	Name         string
	TableOID     oid.Oid
	Column       int16
	DataTypeOID  oid.Oid
	DataTypeSize int16
	TypeModifier int32
	Format       types.FormatCode
}

// RowDescription describes the shape of the rows a query will return.
type RowDescription struct {
	Fields []FieldDescription
}

func DecodeRowDescription(reader *buffer.Reader) (RowDescription, error) {
	n, err := reader.GetUint16()
	if err != nil {
		return RowDescription{}, err
	}

	msg := RowDescription{Fields: make([]FieldDescription, n)}
	for i := range msg.Fields {
		f := &msg.Fields[i]

		f.Name, err = reader.GetString()
		if err != nil {
			return msg, err
		}
		tableOID, err := reader.GetUint32()
		if err != nil {
			return msg, err
		}
		f.TableOID = oid.Oid(tableOID)

		f.Column, err = reader.GetInt16()
		if err != nil {
			return msg, err
		}

		typeOID, err := reader.GetUint32()
		if err != nil {
			return msg, err
		}
		f.DataTypeOID = oid.Oid(typeOID)

		f.DataTypeSize, err = reader.GetInt16()
		if err != nil {
			return msg, err
		}

		f.TypeModifier, err = reader.GetInt32()
		if err != nil {
			return msg, err
		}

		format, err := reader.GetInt16()
		if err != nil {
			return msg, err
		}
		f.Format = types.FormatCode(format)
	}

	return msg, nil
}

// ParameterDescription carries the OIDs of a prepared statement's parameters.
type ParameterDescription struct {
	Types []oid.Oid
}

func DecodeParameterDescription(reader *buffer.Reader) (ParameterDescription, error) {
	n, err := reader.GetUint16()
	if err != nil {
		return ParameterDescription{}, err
	}

	msg := ParameterDescription{Types: make([]oid.Oid, n)}
	for i := range msg.Types {
		v, err := reader.GetUint32()
		if err != nil {
			return msg, err
		}
		msg.Types[i] = oid.Oid(v)
	}

	return msg, nil
}

// ParameterStatus reports a server runtime-parameter value (§3 invariants:
// client_encoding, server_version, standard_conforming_strings,
// integer_datetimes, DateStyle among others).
type ParameterStatus struct {
	Name  string
	Value string
}

func DecodeParameterStatus(reader *buffer.Reader) (ParameterStatus, error) {
	name, err := reader.GetString()
	if err != nil {
		return ParameterStatus{}, err
	}

	value, err := reader.GetString()
	return ParameterStatus{Name: name, Value: value}, err
}

// NotificationResponse is an asynchronous NOTIFY delivery.
type NotificationResponse struct {
	PID     int32
	Channel string
	Payload string
}

func DecodeNotificationResponse(reader *buffer.Reader) (NotificationResponse, error) {
	var msg NotificationResponse
	var err error

	msg.PID, err = reader.GetInt32()
	if err != nil {
		return msg, err
	}

	msg.Channel, err = reader.GetString()
	if err != nil {
		return msg, err
	}

	msg.Payload, err = reader.GetString()
	return msg, err
}

// ReadyForQuery ends every server reply cycle.
type ReadyForQuery struct {
	Status types.TxnStatus
}

func DecodeReadyForQuery(reader *buffer.Reader) (ReadyForQuery, error) {
	b, err := reader.GetByte()
	return ReadyForQuery{Status: types.TxnStatus(b)}, err
}

// FunctionCallResponse carries the result of a (legacy) function call.
type FunctionCallResponse struct {
	Value []byte
}

func DecodeFunctionCallResponse(reader *buffer.Reader) (FunctionCallResponse, error) {
	size, err := reader.GetInt32()
	if err != nil {
		return FunctionCallResponse{}, err
	}

	v, err := reader.GetBytes(int(size))
	return FunctionCallResponse{Value: v}, err
}

// FieldedMessage is shared by ErrorResponse/NoticeResponse: a set of
// single-byte-tagged, null-terminated fields as described in §7.
type FieldedMessage struct {
	Fields map[buffer.ServerErrFieldType]string
}

func decodeFieldedMessage(reader *buffer.Reader) (FieldedMessage, error) {
	msg := FieldedMessage{Fields: make(map[buffer.ServerErrFieldType]string, 8)}

	for {
		kind, err := reader.GetByte()
		if err != nil {
			return msg, err
		}

		if kind == 0 {
			return msg, nil
		}

		value, err := reader.GetString()
		if err != nil {
			return msg, err
		}

		msg.Fields[buffer.ServerErrFieldType(kind)] = value
	}
}

// DecodeErrorResponse decodes an ErrorResponse frame body.
func DecodeErrorResponse(reader *buffer.Reader) (FieldedMessage, error) {
	return decodeFieldedMessage(reader)
}

// DecodeNoticeResponse decodes a NoticeResponse frame body.
func DecodeNoticeResponse(reader *buffer.Reader) (FieldedMessage, error) {
	return decodeFieldedMessage(reader)
}
