package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/riftwire/pgclient/pkg/types"
	"github.com/shopspring/decimal"
)

// numericSignPositive/numericSignNegative/numericSignNaN mirror the wire
// sign field carried by the binary numeric format.
const (
	numericSignPositive uint16 = 0x0000
	numericSignNegative uint16 = 0x4000
	numericSignNaN      uint16 = 0xC000
)

// Numeric is the decoded binary representation of the NUMERIC type: base
// 10000 digits, a weight (power of 10000 of the first digit) and a display
// scale (digits after the decimal point).
type Numeric struct {
	Weight int16
	Sign   uint16
	Scale  uint16
	Digits []int16
}

// PackNumeric renders a decimal.Decimal as NUMERIC text.
func PackNumeric(value decimal.Decimal) []byte {
	return []byte(value.String())
}

// UnpackNumericText parses NUMERIC text into a decimal.Decimal.
func UnpackNumericText(data []byte) (decimal.Decimal, error) {
	if data == nil {
		return decimal.Decimal{}, nil
	}
	return decimal.NewFromString(string(data))
}

// UnpackNumericBinary decodes the binary NUMERIC wire format into a
// decimal.Decimal, going through the base-10000 digit groups.
func UnpackNumericBinary(data []byte) (decimal.Decimal, error) {
	if len(data) < 8 {
		return decimal.Decimal{}, fmt.Errorf("numeric: short buffer: %d bytes", len(data))
	}

	ndigits := binary.BigEndian.Uint16(data[0:2])
	weight := int16(binary.BigEndian.Uint16(data[2:4]))
	sign := binary.BigEndian.Uint16(data[4:6])
	scale := binary.BigEndian.Uint16(data[6:8])

	if sign == numericSignNaN {
		return decimal.Decimal{}, fmt.Errorf("numeric: NaN has no decimal.Decimal representation")
	}

	pos := 8
	result := decimal.Zero
	base := decimal.New(10000, 0)

	for i := 0; i < int(ndigits); i++ {
		if len(data) < pos+2 {
			return decimal.Decimal{}, fmt.Errorf("numeric: short buffer reading digit %d", i)
		}

		digit := int64(binary.BigEndian.Uint16(data[pos : pos+2]))
		pos += 2

		exp := int32(weight) - int32(i)
		term := decimal.New(digit, 0).Mul(base.Pow(decimal.New(int64(exp), 0)))
		result = result.Add(term)
	}

	if sign == numericSignNegative {
		result = result.Neg()
	}

	return result.Round(int32(scale)), nil
}

func unpackNumericAny(format types.FormatCode, data []byte) (any, error) {
	if format == types.BinaryFormat {
		return UnpackNumericBinary(data)
	}
	return UnpackNumericText(data)
}

func encodeNumericAny(format types.FormatCode, value any) ([]byte, error) {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return nil, fmt.Errorf("numeric: expected decimal.Decimal, got %T", value)
	}

	if format == types.BinaryFormat {
		return nil, ErrUnsupportedFormat("numeric", format)
	}

	return PackNumeric(d), nil
}

// NumericCodec is the Codec for oid.T_numeric.
var NumericCodec = Func{EncodeFn: encodeNumericAny, DecodeFn: unpackNumericAny}
