package wire

import (
	"fmt"
	"net"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/riftwire/pgclient/pkg/codec"
	"github.com/riftwire/pgclient/pkg/types"
	"github.com/shopspring/decimal"
)

// encodeParam marshals a Go value into a Parameter ready for a Bind
// message. Scalar Go types are encoded directly, in binary format except
// for strings, decimal.Decimal values and nil, which are sent as text,
// without consulting the type registry: the client already knows the Go type it is
// sending, so there is nothing to look up. Values already wrapped with
// NewParameter pass through untouched, letting callers supply a
// pre-encoded value for a type this list doesn't cover.
func encodeParam(v any) (Parameter, error) {
	switch value := v.(type) {
	case Parameter:
		return value, nil
	case nil:
		return NewParameter(types.TextFormat, nil), nil
	case bool:
		return NewParameter(types.BinaryFormat, codec.PackBool(types.BinaryFormat, value)), nil
	case int16:
		return NewParameter(types.BinaryFormat, codec.PackInt2(types.BinaryFormat, value)), nil
	case int32:
		return NewParameter(types.BinaryFormat, codec.PackInt4(types.BinaryFormat, value)), nil
	case int:
		return NewParameter(types.BinaryFormat, codec.PackInt8(types.BinaryFormat, int64(value))), nil
	case int64:
		return NewParameter(types.BinaryFormat, codec.PackInt8(types.BinaryFormat, value)), nil
	case float32:
		return NewParameter(types.BinaryFormat, codec.PackFloat4(types.BinaryFormat, value)), nil
	case float64:
		return NewParameter(types.BinaryFormat, codec.PackFloat8(types.BinaryFormat, value)), nil
	case string:
		return NewParameter(types.TextFormat, codec.PackText(value)), nil
	case []byte:
		return NewParameter(types.BinaryFormat, codec.PackBytea(types.BinaryFormat, value)), nil
	case decimal.Decimal:
		return NewParameter(types.TextFormat, codec.PackNumeric(value)), nil
	case time.Time:
		data, err := codec.PackTimestamp(types.BinaryFormat, value)
		if err != nil {
			return Parameter{}, err
		}
		return NewParameter(types.BinaryFormat, data), nil
	case civil.Date:
		data, err := codec.PackDate(types.BinaryFormat, value)
		if err != nil {
			return Parameter{}, err
		}
		return NewParameter(types.BinaryFormat, data), nil
	case civil.Time:
		data, err := codec.PackTimeOfDay(types.BinaryFormat, value)
		if err != nil {
			return Parameter{}, err
		}
		return NewParameter(types.BinaryFormat, data), nil
	case codec.TimeTZ:
		data, err := codec.PackTimeTZ(types.BinaryFormat, value)
		if err != nil {
			return Parameter{}, err
		}
		return NewParameter(types.BinaryFormat, data), nil
	case pgtype.Interval:
		data, err := codec.PackInterval(types.BinaryFormat, value)
		if err != nil {
			return Parameter{}, err
		}
		return NewParameter(types.BinaryFormat, data), nil
	case net.IPNet:
		data, err := codec.PackInet(types.BinaryFormat, value, false)
		if err != nil {
			return Parameter{}, err
		}
		return NewParameter(types.BinaryFormat, data), nil
	default:
		return Parameter{}, fmt.Errorf("encode parameter: unsupported Go type %T", v)
	}
}

func encodeParams(args []any) ([]Parameter, error) {
	out := make([]Parameter, len(args))
	for i, a := range args {
		p, err := encodeParam(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}
