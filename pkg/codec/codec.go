// Package codec implements the byte-level encoding (C1) for Postgres wire
// values: pack/unpack pairs for the scalar types, plus a Codec interface so
// pkg/typeregistry can store one per OID without knowing its Go shape.
package codec

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/riftwire/pgclient/pkg/types"
)

// Codec converts between a column's wire representation and a Go value.
// Encode/Decode both take a *pgtype.Map so every codec shares one
// signature; none of the codecs in this module read it.
type Codec interface {
	Encode(m *pgtype.Map, format types.FormatCode, value any) ([]byte, error)
	Decode(m *pgtype.Map, format types.FormatCode, data []byte) (any, error)
}

// Func adapts a pair of plain functions to the Codec interface.
type Func struct {
	EncodeFn func(format types.FormatCode, value any) ([]byte, error)
	DecodeFn func(format types.FormatCode, data []byte) (any, error)
}

func (f Func) Encode(_ *pgtype.Map, format types.FormatCode, value any) ([]byte, error) {
	return f.EncodeFn(format, value)
}

func (f Func) Decode(_ *pgtype.Map, format types.FormatCode, data []byte) (any, error) {
	return f.DecodeFn(format, data)
}

// ErrUnsupportedFormat is returned by a codec asked to work in a
// FormatCode it doesn't implement (most text-only codecs reject binary).
func ErrUnsupportedFormat(name string, format types.FormatCode) error {
	return fmt.Errorf("codec %s: unsupported format %s", name, format)
}
