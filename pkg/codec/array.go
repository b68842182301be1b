package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq/oid"
	"github.com/riftwire/pgclient/pkg/types"
)

// Array holds a decoded 1-dimensional Postgres array: the raw per-element
// bytes plus a parallel nullability slice, leaving element interpretation
// to the registry's element codec.
type Array struct {
	ElementOID oid.Oid
	Elements   [][]byte
	Nulls      []bool
}

// ArrayCodec decodes/encodes any 1-D array type, keeping each element as
// raw bytes in an Array. Binary decoding looks up the element codec through
// the supplied resolve callback (the type registry, C7) and fails if none
// resolves, but does not apply it to the elements.
type ArrayCodec struct {
	ElementOID oid.Oid
	Resolve    func(oid.Oid) (Codec, error)
}

func (c ArrayCodec) Decode(m *pgtype.Map, format types.FormatCode, data []byte) (any, error) {
	if format == types.BinaryFormat {
		return c.decodeBinary(m, data)
	}
	return c.decodeText(m, data)
}

func (c ArrayCodec) decodeBinary(m *pgtype.Map, data []byte) (any, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("array: short buffer: %d bytes", len(data))
	}

	ndim := int32(binary.BigEndian.Uint32(data[0:4]))
	hasNull := binary.BigEndian.Uint32(data[4:8]) != 0
	elemOID := oid.Oid(binary.BigEndian.Uint32(data[8:12]))
	pos := 12

	if ndim == 0 {
		return Array{ElementOID: elemOID}, nil
	}
	if ndim != 1 {
		return nil, fmt.Errorf("array: only 1-dimensional arrays are supported, got %d dims", ndim)
	}

	if len(data) < pos+8 {
		return nil, fmt.Errorf("array: short buffer reading dimension header")
	}
	n := int32(binary.BigEndian.Uint32(data[pos : pos+4]))
	pos += 8 // skip lower bound

	elemCodec, err := c.Resolve(elemOID)
	if err != nil {
		return nil, err
	}

	out := Array{ElementOID: elemOID, Elements: make([][]byte, n), Nulls: make([]bool, n)}

	for i := 0; i < int(n); i++ {
		if len(data) < pos+4 {
			return nil, fmt.Errorf("array: short buffer reading element %d length", i)
		}
		size := int32(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4

		if size == -1 {
			out.Nulls[i] = true
			continue
		}

		if len(data) < pos+int(size) {
			return nil, fmt.Errorf("array: short buffer reading element %d body", i)
		}
		out.Elements[i] = data[pos : pos+int(size)]
		pos += int(size)
	}

	_ = hasNull
	_ = elemCodec
	return out, nil
}

func (c ArrayCodec) decodeText(m *pgtype.Map, data []byte) (any, error) {
	s := string(data)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")

	out := Array{ElementOID: c.ElementOID}
	if s == "" {
		return out, nil
	}

	for _, part := range splitArrayText(s) {
		if part == "NULL" {
			out.Nulls = append(out.Nulls, true)
			out.Elements = append(out.Elements, nil)
			continue
		}
		out.Nulls = append(out.Nulls, false)
		out.Elements = append(out.Elements, []byte(unquoteArrayElement(part)))
	}

	return out, nil
}

// splitArrayText splits a Postgres array literal's top-level comma list,
// respecting double-quoted elements (which may themselves contain commas).
func splitArrayText(s string) []string {
	var parts []string
	var cur bytes.Buffer
	inQuotes := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '"' && (i == 0 || s[i-1] != '\\'):
			inQuotes = !inQuotes
			cur.WriteByte(ch)
		case ch == ',' && !inQuotes:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	parts = append(parts, cur.String())
	return parts
}

func unquoteArrayElement(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
		s = strings.ReplaceAll(s, `\"`, `"`)
		s = strings.ReplaceAll(s, `\\`, `\`)
	}
	return s
}

func (c ArrayCodec) Encode(m *pgtype.Map, format types.FormatCode, value any) ([]byte, error) {
	arr, ok := value.(Array)
	if !ok {
		return nil, fmt.Errorf("array: expected codec.Array, got %T", value)
	}

	if format == types.BinaryFormat {
		return c.encodeBinary(arr)
	}
	return c.encodeText(arr), nil
}

func (c ArrayCodec) encodeBinary(arr Array) ([]byte, error) {
	buf := &bytes.Buffer{}
	header := make([]byte, 4)

	ndim := int32(1)
	if len(arr.Elements) == 0 {
		ndim = 0
	}
	binary.BigEndian.PutUint32(header, uint32(ndim))
	buf.Write(header)

	hasNull := int32(0)
	for _, n := range arr.Nulls {
		if n {
			hasNull = 1
			break
		}
	}
	binary.BigEndian.PutUint32(header, uint32(hasNull))
	buf.Write(header)

	binary.BigEndian.PutUint32(header, uint32(arr.ElementOID))
	buf.Write(header)

	if ndim == 0 {
		return buf.Bytes(), nil
	}

	binary.BigEndian.PutUint32(header, uint32(len(arr.Elements)))
	buf.Write(header)
	binary.BigEndian.PutUint32(header, 1) // lower bound
	buf.Write(header)

	for i, el := range arr.Elements {
		if i < len(arr.Nulls) && arr.Nulls[i] {
			binary.BigEndian.PutUint32(header, uint32(int32(-1)))
			buf.Write(header)
			continue
		}
		binary.BigEndian.PutUint32(header, uint32(int32(len(el))))
		buf.Write(header)
		buf.Write(el)
	}

	return buf.Bytes(), nil
}

func (c ArrayCodec) encodeText(arr Array) []byte {
	parts := make([]string, len(arr.Elements))
	for i, el := range arr.Elements {
		if i < len(arr.Nulls) && arr.Nulls[i] {
			parts[i] = "NULL"
			continue
		}
		parts[i] = quoteArrayElement(string(el))
	}
	return []byte("{" + strings.Join(parts, ",") + "}")
}

func quoteArrayElement(s string) string {
	if s == "" {
		return `""`
	}
	needsQuote := strings.ContainsAny(s, `,{}" \`)
	if !needsQuote {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
