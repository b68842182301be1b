package codec_test

import (
	"testing"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/riftwire/pgclient/pkg/codec"
	"github.com/riftwire/pgclient/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestInt4RoundTrip(t *testing.T) {
	t.Parallel()

	for _, format := range []types.FormatCode{types.TextFormat, types.BinaryFormat} {
		packed := codec.PackInt4(format, -42)
		got, err := codec.UnpackInt4(format, packed)
		require.NoError(t, err)
		require.Equal(t, int32(-42), got)
	}
}

func TestInt8RoundTrip(t *testing.T) {
	t.Parallel()

	for _, format := range []types.FormatCode{types.TextFormat, types.BinaryFormat} {
		packed := codec.PackInt8(format, 1<<40)
		got, err := codec.UnpackInt8(format, packed)
		require.NoError(t, err)
		require.Equal(t, int64(1<<40), got)
	}
}

func TestBoolRoundTrip(t *testing.T) {
	t.Parallel()

	for _, format := range []types.FormatCode{types.TextFormat, types.BinaryFormat} {
		packed := codec.PackBool(format, true)
		got, err := codec.UnpackBool(format, packed)
		require.NoError(t, err)
		require.True(t, got)
	}
}

func TestByteaRoundTrip(t *testing.T) {
	t.Parallel()

	value := []byte{0x00, 0xFF, 0x10, 0x42}
	for _, format := range []types.FormatCode{types.TextFormat, types.BinaryFormat} {
		packed := codec.PackBytea(format, value)
		got, err := codec.UnpackBytea(format, packed)
		require.NoError(t, err)
		require.Equal(t, value, got)
	}
}

func TestNumericTextRoundTrip(t *testing.T) {
	t.Parallel()

	value := decimal.RequireFromString("256.23")
	packed := codec.PackNumeric(value)
	got, err := codec.UnpackNumericText(packed)
	require.NoError(t, err)
	require.True(t, value.Equal(got))
}

func TestIntervalBinaryRoundTrip(t *testing.T) {
	t.Parallel()

	value := pgtype.Interval{Months: 14, Days: 3, Microseconds: 3723000000, Valid: true}
	packed, err := codec.PackInterval(types.BinaryFormat, value)
	require.NoError(t, err)

	got, err := codec.UnpackInterval(types.BinaryFormat, packed)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestIntervalTextRoundTrip(t *testing.T) {
	t.Parallel()

	value := pgtype.Interval{Months: 14, Days: 3, Microseconds: 3723000000, Valid: true}
	packed, err := codec.PackInterval(types.TextFormat, value)
	require.NoError(t, err)
	require.Equal(t, "1 year 2 mons 3 days 01:02:03.000000", string(packed))

	got, err := codec.UnpackInterval(types.TextFormat, packed)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestIntervalTextNegativeTime(t *testing.T) {
	t.Parallel()

	value := pgtype.Interval{Days: 1, Microseconds: -3600000000, Valid: true}
	packed, err := codec.PackInterval(types.TextFormat, value)
	require.NoError(t, err)

	got, err := codec.UnpackInterval(types.TextFormat, packed)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestTimeTZBinaryRoundTrip(t *testing.T) {
	t.Parallel()

	value := codec.TimeTZ{Time: civil.Time{Hour: 4, Minute: 5, Second: 6}, Zone: -19800}
	packed, err := codec.PackTimeTZ(types.BinaryFormat, value)
	require.NoError(t, err)
	require.Len(t, packed, 12)

	got, err := codec.UnpackTimeTZ(types.BinaryFormat, packed)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestTimeTZTextRoundTrip(t *testing.T) {
	t.Parallel()

	value := codec.TimeTZ{Time: civil.Time{Hour: 4, Minute: 5, Second: 6}, Zone: -19800}
	packed, err := codec.PackTimeTZ(types.TextFormat, value)
	require.NoError(t, err)

	got, err := codec.UnpackTimeTZ(types.TextFormat, packed)
	require.NoError(t, err)
	require.Equal(t, value.Time, got.Time)
	require.Equal(t, value.Zone, got.Zone)
}
