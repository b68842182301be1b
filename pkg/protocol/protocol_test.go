package protocol_test

import (
	"bytes"
	"testing"

	"github.com/lib/pq/oid"
	"github.com/neilotoole/slogt"
	"github.com/riftwire/pgclient/pkg/buffer"
	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestParseEncode(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	writer := buffer.NewWriter(slogt.New(t), out)

	msg := protocol.Parse{Name: "stmt1", SQL: "SELECT $1", ParamOIDs: []uint32{uint32(oid.T_int4)}}
	require.NoError(t, msg.Encode(writer))

	reader := buffer.NewReader(slogt.New(t), out, buffer.DefaultBufferSize)
	kind, _, err := reader.ReadTypedMsg()
	require.NoError(t, err)
	require.Equal(t, types.ClientParse, types.ClientMessage(kind))

	name, err := reader.GetString()
	require.NoError(t, err)
	require.Equal(t, "stmt1", name)

	sql, err := reader.GetString()
	require.NoError(t, err)
	require.Equal(t, "SELECT $1", sql)

	n, err := reader.GetUint16()
	require.NoError(t, err)
	require.Equal(t, uint16(1), n)

	paramOID, err := reader.GetUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(oid.T_int4), paramOID)
}

func TestBindEncode(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	writer := buffer.NewWriter(slogt.New(t), out)

	bind := protocol.Bind{
		Portal:        "",
		Statement:     "stmt1",
		ParamFormats:  []types.FormatCode{types.TextFormat},
		Params:        [][]byte{[]byte("42"), nil},
		ResultFormats: []types.FormatCode{types.TextFormat},
	}
	require.NoError(t, bind.Encode(writer))

	reader := buffer.NewReader(slogt.New(t), out, buffer.DefaultBufferSize)
	kind, _, err := reader.ReadTypedMsg()
	require.NoError(t, err)
	require.Equal(t, types.ClientBind, types.ClientMessage(kind))
}

func TestDecodeRowDescription(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	writer := buffer.NewWriter(slogt.New(t), out)

	writer.Start(types.ClientMessage('T')) // kind byte is irrelevant; body is decoded directly below
	writer.AddInt16(1)
	writer.AddString("id")
	writer.AddNullTerminate()
	writer.AddInt32(0)
	writer.AddInt16(1)
	writer.AddInt32(int32(oid.T_int4))
	writer.AddInt16(4)
	writer.AddInt32(-1)
	writer.AddInt16(int16(types.TextFormat))
	require.NoError(t, writer.End())

	reader := buffer.NewReader(slogt.New(t), out, buffer.DefaultBufferSize)
	_, _, err := reader.ReadTypedMsg()
	require.NoError(t, err)

	desc, err := protocol.DecodeRowDescription(reader)
	require.NoError(t, err)
	require.Len(t, desc.Fields, 1)
	require.Equal(t, "id", desc.Fields[0].Name)
	require.Equal(t, oid.T_int4, desc.Fields[0].DataTypeOID)
}

func TestDecodeReadyForQuery(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	writer := buffer.NewWriter(slogt.New(t), out)
	writer.Start(types.ClientMessage(types.ServerReady))
	writer.AddByte(byte(types.TxnIdle))
	require.NoError(t, writer.End())

	reader := buffer.NewReader(slogt.New(t), out, buffer.DefaultBufferSize)
	_, _, err := reader.ReadTypedMsg()
	require.NoError(t, err)

	msg, err := protocol.DecodeReadyForQuery(reader)
	require.NoError(t, err)
	require.Equal(t, types.TxnIdle, msg.Status)
}
