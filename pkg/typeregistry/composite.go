package typeregistry

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/riftwire/pgclient/pkg/types"
)

// CompositeValue is the decoded form of a ROW value: one raw field per
// declared column, in declaration order, alongside its nullability.
type CompositeValue struct {
	Values [][]byte
	Nulls  []bool
}

// Decode implements codec.Codec for CompositeCodec. Binary composite frames
// are: field count (int32), then per field: type oid (int32), length
// (int32, -1 for NULL), bytes.
func (c CompositeCodec) Decode(m *pgtype.Map, format types.FormatCode, data []byte) (any, error) {
	if format != types.BinaryFormat {
		return nil, fmt.Errorf("composite: text-format ROW decoding is not supported")
	}

	if len(data) < 4 {
		return nil, fmt.Errorf("composite: short buffer: %d bytes", len(data))
	}

	n := int32(binary.BigEndian.Uint32(data[0:4]))
	if int(n) != len(c.Fields) {
		return nil, fmt.Errorf("composite: frame declares %d fields, type has %d", n, len(c.Fields))
	}

	pos := 4
	out := CompositeValue{Values: make([][]byte, n), Nulls: make([]bool, n)}

	for i := 0; i < int(n); i++ {
		if len(data) < pos+8 {
			return nil, fmt.Errorf("composite: short buffer reading field %d header", i)
		}
		pos += 4 // skip the per-field type oid; already known from catalog
		size := int32(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		if size == -1 {
			out.Nulls[i] = true
			continue
		}

		if len(data) < pos+int(size) {
			return nil, fmt.Errorf("composite: short buffer reading field %d body", i)
		}
		out.Values[i] = data[pos : pos+int(size)]
		pos += int(size)
	}

	return out, nil
}

// Encode implements codec.Codec for CompositeCodec.
func (c CompositeCodec) Encode(m *pgtype.Map, format types.FormatCode, value any) ([]byte, error) {
	if format != types.BinaryFormat {
		return nil, fmt.Errorf("composite: text-format ROW encoding is not supported")
	}

	v, ok := value.(CompositeValue)
	if !ok {
		return nil, fmt.Errorf("composite: expected typeregistry.CompositeValue, got %T", value)
	}
	if len(v.Values) != len(c.Fields) {
		return nil, fmt.Errorf("composite: value has %d fields, type has %d", len(v.Values), len(c.Fields))
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(c.Fields)))
	out := append([]byte{}, header...)

	for i, f := range c.Fields {
		binary.BigEndian.PutUint32(header, uint32(f.OID))
		out = append(out, header...)

		if i < len(v.Nulls) && v.Nulls[i] {
			binary.BigEndian.PutUint32(header, uint32(int32(-1)))
			out = append(out, header...)
			continue
		}

		binary.BigEndian.PutUint32(header, uint32(int32(len(v.Values[i]))))
		out = append(out, header...)
		out = append(out, v.Values[i]...)
	}

	return out, nil
}

// Field looks up a composite value's field by name, returning its resolved
// Go value via the field's own codec.
func (c CompositeCodec) Field(ctx context.Context, v CompositeValue, name string, format types.FormatCode) (any, error) {
	for i, f := range c.Fields {
		if f.Name != name {
			continue
		}
		if i >= len(v.Values) || v.Values[i] == nil {
			return nil, nil
		}

		fc, err := c.Resolve(ctx, f.OID)
		if err != nil {
			return nil, err
		}
		return fc.Decode(nil, format, v.Values[i])
	}

	return nil, fmt.Errorf("composite: no field named %q", name)
}
