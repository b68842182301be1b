package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/riftwire/pgclient/pkg/types"
)

// PackBool/UnpackBool handle oid.T_bool.
func PackBool(format types.FormatCode, value bool) []byte {
	if format == types.BinaryFormat {
		if value {
			return []byte{1}
		}
		return []byte{0}
	}
	if value {
		return []byte("t")
	}
	return []byte("f")
}

func UnpackBool(format types.FormatCode, data []byte) (bool, error) {
	if len(data) == 0 {
		return false, fmt.Errorf("bool: empty buffer")
	}

	if format == types.BinaryFormat {
		return data[0] != 0, nil
	}

	return data[0] == 't', nil
}

// PackInt2/UnpackInt2 handle oid.T_int2.
func PackInt2(format types.FormatCode, value int16) []byte {
	if format == types.BinaryFormat {
		buf := make([]byte, 2)
		binary.BigEndian.PutUint16(buf, uint16(value))
		return buf
	}
	return []byte(strconv.FormatInt(int64(value), 10))
}

func UnpackInt2(format types.FormatCode, data []byte) (int16, error) {
	if format == types.BinaryFormat {
		if len(data) != 2 {
			return 0, fmt.Errorf("int2: expected 2 bytes, got %d", len(data))
		}
		return int16(binary.BigEndian.Uint16(data)), nil
	}

	v, err := strconv.ParseInt(string(data), 10, 16)
	return int16(v), err
}

// PackInt4/UnpackInt4 handle oid.T_int4.
func PackInt4(format types.FormatCode, value int32) []byte {
	if format == types.BinaryFormat {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(value))
		return buf
	}
	return []byte(strconv.FormatInt(int64(value), 10))
}

func UnpackInt4(format types.FormatCode, data []byte) (int32, error) {
	if format == types.BinaryFormat {
		if len(data) != 4 {
			return 0, fmt.Errorf("int4: expected 4 bytes, got %d", len(data))
		}
		return int32(binary.BigEndian.Uint32(data)), nil
	}

	v, err := strconv.ParseInt(string(data), 10, 32)
	return int32(v), err
}

// PackInt8/UnpackInt8 handle oid.T_int8.
func PackInt8(format types.FormatCode, value int64) []byte {
	if format == types.BinaryFormat {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(value))
		return buf
	}
	return []byte(strconv.FormatInt(value, 10))
}

func UnpackInt8(format types.FormatCode, data []byte) (int64, error) {
	if format == types.BinaryFormat {
		if len(data) != 8 {
			return 0, fmt.Errorf("int8: expected 8 bytes, got %d", len(data))
		}
		return int64(binary.BigEndian.Uint64(data)), nil
	}

	return strconv.ParseInt(string(data), 10, 64)
}

// PackFloat4/UnpackFloat4 handle oid.T_float4.
func PackFloat4(format types.FormatCode, value float32) []byte {
	if format == types.BinaryFormat {
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, math.Float32bits(value))
		return buf
	}
	return []byte(strconv.FormatFloat(float64(value), 'g', -1, 32))
}

func UnpackFloat4(format types.FormatCode, data []byte) (float32, error) {
	if format == types.BinaryFormat {
		if len(data) != 4 {
			return 0, fmt.Errorf("float4: expected 4 bytes, got %d", len(data))
		}
		return math.Float32frombits(binary.BigEndian.Uint32(data)), nil
	}

	v, err := strconv.ParseFloat(string(data), 32)
	return float32(v), err
}

// PackFloat8/UnpackFloat8 handle oid.T_float8.
func PackFloat8(format types.FormatCode, value float64) []byte {
	if format == types.BinaryFormat {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(value))
		return buf
	}
	return []byte(strconv.FormatFloat(value, 'g', -1, 64))
}

func UnpackFloat8(format types.FormatCode, data []byte) (float64, error) {
	if format == types.BinaryFormat {
		if len(data) != 8 {
			return 0, fmt.Errorf("float8: expected 8 bytes, got %d", len(data))
		}
		return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
	}

	return strconv.ParseFloat(string(data), 64)
}

// PackText/UnpackText handle oid.T_text/T_varchar/T_bpchar/T_name, which
// are identical on the wire regardless of format.
func PackText(value string) []byte {
	return []byte(value)
}

func UnpackText(data []byte) string {
	return string(data)
}

// PackBytea/UnpackBytea handle oid.T_bytea. Binary format is the raw bytes;
// text format uses Postgres's "\x"-prefixed hex escape (the modern default,
// bytea_output = hex).
func PackBytea(format types.FormatCode, value []byte) []byte {
	if format == types.BinaryFormat {
		return value
	}

	out := make([]byte, 2+len(value)*2)
	copy(out, `\x`)
	const hextable = "0123456789abcdef"
	for i, b := range value {
		out[2+i*2] = hextable[b>>4]
		out[2+i*2+1] = hextable[b&0x0f]
	}
	return out
}

func UnpackBytea(format types.FormatCode, data []byte) ([]byte, error) {
	if format == types.BinaryFormat {
		return data, nil
	}

	if len(data) < 2 || data[0] != '\\' || data[1] != 'x' {
		return nil, fmt.Errorf("bytea: text value missing \\x escape prefix")
	}

	hex := data[2:]
	out := make([]byte, len(hex)/2)
	for i := range out {
		hi := hexDigit(hex[i*2])
		lo := hexDigit(hex[i*2+1])
		if hi < 0 || lo < 0 {
			return nil, fmt.Errorf("bytea: invalid hex digit at offset %d", i*2)
		}
		out[i] = byte(hi<<4 | lo)
	}
	return out, nil
}

func hexDigit(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10
	default:
		return -1
	}
}
