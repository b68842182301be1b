package typeregistry

import (
	"fmt"
	"net"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq/oid"
	"github.com/riftwire/pgclient/pkg/codec"
	"github.com/riftwire/pgclient/pkg/types"
)

// builtinCodec returns the statically-known codec for well-known scalar
// OIDs without a catalog round trip. Anything not listed here falls
// through to resolveFromCatalog.
func builtinCodec(o oid.Oid) (codec.Codec, bool) {
	switch o {
	case oid.T_varchar, oid.T_bpchar:
		return codec.Func{
			EncodeFn: func(_ types.FormatCode, v any) ([]byte, error) {
				s, ok := v.(string)
				if !ok {
					return nil, fmt.Errorf("varchar: expected string, got %T", v)
				}
				return codec.PackText(s), nil
			},
			DecodeFn: func(_ types.FormatCode, data []byte) (any, error) {
				return codec.UnpackText(data), nil
			},
		}, true
	case oid.T_float4:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				f, ok := v.(float32)
				if !ok {
					return nil, fmt.Errorf("float4: expected float32, got %T", v)
				}
				return codec.PackFloat4(format, f), nil
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackFloat4(format, data)
			},
		}, true
	case oid.T_float8:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				f, ok := v.(float64)
				if !ok {
					return nil, fmt.Errorf("float8: expected float64, got %T", v)
				}
				return codec.PackFloat8(format, f), nil
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackFloat8(format, data)
			},
		}, true
	case oid.T_bytea:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				b, ok := v.([]byte)
				if !ok {
					return nil, fmt.Errorf("bytea: expected []byte, got %T", v)
				}
				return codec.PackBytea(format, b), nil
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackBytea(format, data)
			},
		}, true
	case oid.T_numeric:
		return codec.NumericCodec, true
	case oid.T_date:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				d, ok := v.(civil.Date)
				if !ok {
					return nil, fmt.Errorf("date: expected civil.Date, got %T", v)
				}
				return codec.PackDate(format, d)
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackDate(format, data)
			},
		}, true
	case oid.T_time:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				tm, ok := v.(civil.Time)
				if !ok {
					return nil, fmt.Errorf("time: expected civil.Time, got %T", v)
				}
				return codec.PackTimeOfDay(format, tm)
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackTimeOfDay(format, data)
			},
		}, true
	case oid.T_timetz:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				tz, ok := v.(codec.TimeTZ)
				if !ok {
					return nil, fmt.Errorf("timetz: expected codec.TimeTZ, got %T", v)
				}
				return codec.PackTimeTZ(format, tz)
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackTimeTZ(format, data)
			},
		}, true
	case oid.T_interval:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				iv, ok := v.(pgtype.Interval)
				if !ok {
					return nil, fmt.Errorf("interval: expected pgtype.Interval, got %T", v)
				}
				return codec.PackInterval(format, iv)
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackInterval(format, data)
			},
		}, true
	case oid.T_timestamp, oid.T_timestamptz:
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				t, ok := v.(time.Time)
				if !ok {
					return nil, fmt.Errorf("timestamp: expected time.Time, got %T", v)
				}
				return codec.PackTimestamp(format, t)
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackTimestamp(format, data)
			},
		}, true
	case oid.T_inet, oid.T_cidr:
		isCIDR := o == oid.T_cidr
		return codec.Func{
			EncodeFn: func(format types.FormatCode, v any) ([]byte, error) {
				n, ok := v.(net.IPNet)
				if !ok {
					return nil, fmt.Errorf("inet: expected net.IPNet, got %T", v)
				}
				return codec.PackInet(format, n, isCIDR)
			},
			DecodeFn: func(format types.FormatCode, data []byte) (any, error) {
				return codec.UnpackInet(format, data)
			},
		}, true
	case oid.T__int4, oid.T__int8, oid.T__text, oid.T__varchar:
		elem := arrayElementOID(o)
		return codec.ArrayCodec{ElementOID: elem, Resolve: staticResolve}, true
	}

	return nil, false
}

func arrayElementOID(array oid.Oid) oid.Oid {
	switch array {
	case oid.T__int4:
		return oid.T_int4
	case oid.T__int8:
		return oid.T_int8
	case oid.T__text:
		return oid.T_text
	case oid.T__varchar:
		return oid.T_varchar
	default:
		return oid.T_text
	}
}

// staticResolve backs ArrayCodec instances created from builtinCodec, which
// only ever need to resolve other static element types.
func staticResolve(o oid.Oid) (codec.Codec, error) {
	if c, ok := builtinCodec(o); ok {
		return c, nil
	}
	return nil, fmt.Errorf("typeregistry: no static codec for array element oid %d", o)
}
