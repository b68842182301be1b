package codec

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/riftwire/pgclient/pkg/types"
)

// postgresEpoch is 2000-01-01, the zero point of the binary date/timestamp
// wire formats (as opposed to Unix epoch).
var postgresEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// PackDate/UnpackDate handle oid.T_date. Binary value is the signed number
// of days since postgresEpoch.
func PackDate(format types.FormatCode, value civil.Date) ([]byte, error) {
	if format == types.BinaryFormat {
		days := value.In(time.UTC).Sub(postgresEpoch).Hours() / 24
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, uint32(int32(days)))
		return buf, nil
	}

	return []byte(value.String()), nil
}

func UnpackDate(format types.FormatCode, data []byte) (civil.Date, error) {
	if format == types.BinaryFormat {
		if len(data) != 4 {
			return civil.Date{}, fmt.Errorf("date: expected 4 bytes, got %d", len(data))
		}
		days := int32(binary.BigEndian.Uint32(data))
		t := postgresEpoch.AddDate(0, 0, int(days))
		return civil.DateOf(t), nil
	}

	return civil.ParseDate(string(data))
}

// PackTimestamp/UnpackTimestamp handle oid.T_timestamp/T_timestamptz.
// Binary value is microseconds since postgresEpoch (assumes
// integer_datetimes, the only server build style since Postgres 10).
func PackTimestamp(format types.FormatCode, value time.Time) ([]byte, error) {
	if format == types.BinaryFormat {
		micros := value.UTC().Sub(postgresEpoch).Microseconds()
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(micros))
		return buf, nil
	}

	return []byte(value.Format("2006-01-02 15:04:05.999999Z07:00")), nil
}

func UnpackTimestamp(format types.FormatCode, data []byte) (time.Time, error) {
	if format == types.BinaryFormat {
		if len(data) != 8 {
			return time.Time{}, fmt.Errorf("timestamp: expected 8 bytes, got %d", len(data))
		}
		micros := int64(binary.BigEndian.Uint64(data))
		return postgresEpoch.Add(time.Duration(micros) * time.Microsecond), nil
	}

	layouts := []string{
		"2006-01-02 15:04:05.999999Z07:00",
		"2006-01-02 15:04:05.999999",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
	}

	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, string(data))
		if err == nil {
			return t, nil
		}
		lastErr = err
	}

	return time.Time{}, lastErr
}

// PackTimeOfDay/UnpackTimeOfDay handle oid.T_time. Binary value is
// microseconds since midnight.
func PackTimeOfDay(format types.FormatCode, value civil.Time) ([]byte, error) {
	if format == types.BinaryFormat {
		micros := int64(value.Hour)*3600e6 + int64(value.Minute)*60e6 +
			int64(value.Second)*1e6 + int64(value.Nanosecond)/1000
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(micros))
		return buf, nil
	}

	return []byte(value.String()), nil
}

func UnpackTimeOfDay(format types.FormatCode, data []byte) (civil.Time, error) {
	if format == types.BinaryFormat {
		if len(data) != 8 {
			return civil.Time{}, fmt.Errorf("time: expected 8 bytes, got %d", len(data))
		}
		micros := int64(binary.BigEndian.Uint64(data))
		return civil.Time{
			Hour:       int(micros / 3600e6),
			Minute:     int((micros / 60e6) % 60),
			Second:     int((micros / 1e6) % 60),
			Nanosecond: int(micros%1e6) * 1000,
		}, nil
	}

	return civil.ParseTime(string(data))
}

// TimeTZ pairs a time-of-day with the UTC offset it was recorded in
// (oid.T_timetz). Unlike plain time, timetz's binary payload does not fit
// the 8-byte microseconds-since-midnight format alone.
type TimeTZ struct {
	Time civil.Time
	// Zone is the offset in seconds WEST of UTC, matching the sign
	// PostgreSQL's timetz_recv/timetz_send use on the wire (the negation
	// of the more familiar "seconds east" convention time.Time.Zone uses).
	Zone int32
}

// PackTimeTZ/UnpackTimeTZ handle oid.T_timetz. The binary value is the same
// 8-byte microseconds-since-midnight payload as plain time, followed by a
// 4-byte zone offset in seconds (12 bytes total).
func PackTimeTZ(format types.FormatCode, value TimeTZ) ([]byte, error) {
	if format == types.BinaryFormat {
		micros := int64(value.Time.Hour)*3600e6 + int64(value.Time.Minute)*60e6 +
			int64(value.Time.Second)*1e6 + int64(value.Time.Nanosecond)/1000
		buf := make([]byte, 12)
		binary.BigEndian.PutUint64(buf[0:8], uint64(micros))
		binary.BigEndian.PutUint32(buf[8:12], uint32(value.Zone))
		return buf, nil
	}

	east := -value.Zone
	sign := "+"
	if east < 0 {
		sign = "-"
		east = -east
	}
	hours := east / 3600
	minutes := (east % 3600) / 60
	return []byte(fmt.Sprintf("%s%s%02d:%02d", value.Time.String(), sign, hours, minutes)), nil
}

func UnpackTimeTZ(format types.FormatCode, data []byte) (TimeTZ, error) {
	if format == types.BinaryFormat {
		if len(data) != 12 {
			return TimeTZ{}, fmt.Errorf("timetz: expected 12 bytes, got %d", len(data))
		}
		micros := int64(binary.BigEndian.Uint64(data[0:8]))
		zone := int32(binary.BigEndian.Uint32(data[8:12]))
		return TimeTZ{
			Time: civil.Time{
				Hour:       int(micros / 3600e6),
				Minute:     int((micros / 60e6) % 60),
				Second:     int((micros / 1e6) % 60),
				Nanosecond: int(micros%1e6) * 1000,
			},
			Zone: zone,
		}, nil
	}

	layouts := []string{
		"15:04:05.999999Z07:00",
		"15:04:05Z07:00",
	}
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, string(data))
		if err == nil {
			_, east := t.Zone()
			return TimeTZ{
				Time: civil.Time{
					Hour:       t.Hour(),
					Minute:     t.Minute(),
					Second:     t.Second(),
					Nanosecond: t.Nanosecond(),
				},
				Zone: int32(-east),
			}, nil
		}
		lastErr = err
	}
	return TimeTZ{}, lastErr
}

var intervalFieldPattern = regexp.MustCompile(`(-?\d+)\s+(year|mon|day)s?`)
var intervalTimePattern = regexp.MustCompile(`(-?\d+):(\d+):(\d+)(\.\d+)?`)

// PackInterval/UnpackInterval handle oid.T_interval. PostgreSQL keeps
// months, days and microseconds separate rather than folding them into a
// single duration, since a month's length depends on the calendar; the
// binary payload is microseconds(int64) + days(int32) + months(int32), 16
// bytes total.
func PackInterval(format types.FormatCode, value pgtype.Interval) ([]byte, error) {
	if format == types.BinaryFormat {
		buf := make([]byte, 16)
		binary.BigEndian.PutUint64(buf[0:8], uint64(value.Microseconds))
		binary.BigEndian.PutUint32(buf[8:12], uint32(value.Days))
		binary.BigEndian.PutUint32(buf[12:16], uint32(value.Months))
		return buf, nil
	}

	return []byte(formatIntervalText(value)), nil
}

func UnpackInterval(format types.FormatCode, data []byte) (pgtype.Interval, error) {
	if format == types.BinaryFormat {
		if len(data) != 16 {
			return pgtype.Interval{}, fmt.Errorf("interval: expected 16 bytes, got %d", len(data))
		}
		return pgtype.Interval{
			Microseconds: int64(binary.BigEndian.Uint64(data[0:8])),
			Days:         int32(binary.BigEndian.Uint32(data[8:12])),
			Months:       int32(binary.BigEndian.Uint32(data[12:16])),
			Valid:        true,
		}, nil
	}

	return parseIntervalText(string(data))
}

// parseIntervalText covers PostgreSQL's default ("postgres") IntervalStyle
// output, not sql_standard or iso_8601 formatting.
func parseIntervalText(s string) (pgtype.Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Interval{Valid: true}, nil
	}

	var months, days int32

	for _, m := range intervalFieldPattern.FindAllStringSubmatch(s, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return pgtype.Interval{}, fmt.Errorf("interval: %w", err)
		}
		switch m[2] {
		case "year":
			months += int32(n) * 12
		case "mon":
			months += int32(n)
		case "day":
			days += int32(n)
		}
	}

	var micros int64
	if m := intervalTimePattern.FindStringSubmatch(s); m != nil {
		hours, _ := strconv.Atoi(m[1])
		minutes, _ := strconv.Atoi(m[2])
		seconds, _ := strconv.Atoi(m[3])

		sign := int64(1)
		if hours < 0 {
			sign = -1
			hours = -hours
		}
		micros = sign * (int64(hours)*3600e6 + int64(minutes)*60e6 + int64(seconds)*1e6)

		if m[4] != "" {
			frac, err := strconv.ParseFloat("0"+m[4], 64)
			if err != nil {
				return pgtype.Interval{}, fmt.Errorf("interval: %w", err)
			}
			micros += sign * int64(frac*1e6)
		}
	}

	return pgtype.Interval{Microseconds: micros, Days: days, Months: months, Valid: true}, nil
}

func formatIntervalText(v pgtype.Interval) string {
	var parts []string

	if years := v.Months / 12; years != 0 {
		parts = append(parts, fmt.Sprintf("%d year%s", years, plural(years)))
	}
	if mons := v.Months % 12; mons != 0 {
		parts = append(parts, fmt.Sprintf("%d mon%s", mons, plural(mons)))
	}
	if v.Days != 0 {
		parts = append(parts, fmt.Sprintf("%d day%s", v.Days, plural(v.Days)))
	}

	micros := v.Microseconds
	sign := ""
	if micros < 0 {
		sign = "-"
		micros = -micros
	}
	hours := micros / 3600e6
	minutes := (micros / 60e6) % 60
	seconds := float64(micros%60e6) / 1e6
	parts = append(parts, fmt.Sprintf("%s%02d:%02d:%09.6f", sign, hours, minutes, seconds))

	return strings.Join(parts, " ")
}

func plural(n int32) string {
	if n == 1 || n == -1 {
		return ""
	}
	return "s"
}
