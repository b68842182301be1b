package wire

import (
	"context"
	"fmt"
)

// Cursor is a scrollable, WITH HOLD server-side cursor (§4.8's
// `Statement.declare`), letting a caller seek to an arbitrary logical
// position and fetch rows forward or backward from there.
type Cursor struct {
	conn *Conn
	name string
}

// Declare opens a scrollable cursor over the statement's query, bound with
// args, and returns it ready for Seek/Read.
func (s *Statement) Declare(ctx context.Context, args ...any) (*Cursor, error) {
	name := s.conn.portals.next()

	declareSQL := "DECLARE " + quoteIdentifier(name) + " SCROLL CURSOR WITH HOLD FOR " + s.sql

	wrapped, err := s.conn.Prepare(ctx, declareSQL)
	if err != nil {
		return nil, fmt.Errorf("declare cursor: %w", err)
	}
	defer wrapped.Close(ctx)

	if _, err := wrapped.Exec(ctx, args...); err != nil {
		return nil, fmt.Errorf("declare cursor: %w", err)
	}

	return &Cursor{conn: s.conn, name: name}, nil
}

// Whence selects what a Seek offset is measured relative to.
type Whence string

const (
	SeekAbsolute Whence = "absolute"
	SeekFromEnd  Whence = "from-end"
	SeekRelative Whence = "relative"
)

// Seek repositions the cursor without fetching rows, via Postgres's MOVE
// command (§8's cursor symmetry property).
func (c *Cursor) Seek(ctx context.Context, offset int64, whence Whence) error {
	var sql string
	switch whence {
	case SeekAbsolute:
		sql = fmt.Sprintf("MOVE ABSOLUTE %d IN %s", offset, quoteIdentifier(c.name))
	case SeekFromEnd:
		sql = fmt.Sprintf("MOVE ABSOLUTE %d IN %s", -1-offset, quoteIdentifier(c.name))
	case SeekRelative:
		sql = fmt.Sprintf("MOVE RELATIVE %d IN %s", offset, quoteIdentifier(c.name))
	default:
		return fmt.Errorf("cursor seek: unknown whence %q", whence)
	}

	_, err := c.conn.querySimpleRows(ctx, sql)
	return err
}

// Direction selects which way Read fetches rows from the cursor's current
// position.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// Read fetches up to n rows in the given direction, advancing the cursor's
// position by however many rows were actually returned. Postgres's own
// `FETCH BACKWARD` sends rows nearest-to-cursor first, i.e. in descending
// logical order; Read reverses a backward batch before returning it so that
// `seek(0, from-end); read(n, backward)` yields the same ascending row
// order as reading the equivalent reversed query forward (§8's cursor
// symmetry property, seed scenario 6).
func (c *Cursor) Read(ctx context.Context, n int, direction Direction) ([]Row, error) {
	keyword := "FORWARD"
	if direction == Backward {
		keyword = "BACKWARD"
	}

	sql := fmt.Sprintf("FETCH %s %d FROM %s", keyword, n, quoteIdentifier(c.name))
	rows, err := c.conn.querySimpleRows(ctx, sql)
	if err != nil {
		return nil, err
	}

	if direction == Backward {
		reverseRows(rows)
	}
	return rows, nil
}

func reverseRows(rows []Row) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// Close releases the cursor's server-side resources.
func (c *Cursor) Close(ctx context.Context) error {
	return c.conn.execSimple(ctx, "CLOSE "+quoteIdentifier(c.name))
}
