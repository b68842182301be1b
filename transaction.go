package wire

import (
	"context"
	"fmt"
	"strconv"

	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/types"
)

// Isolation names the transaction's isolation level, passed verbatim into
// BEGIN's ISOLATION LEVEL clause.
type Isolation string

const (
	ReadCommitted  Isolation = "READ COMMITTED"
	RepeatableRead Isolation = "REPEATABLE READ"
	Serializable   Isolation = "SERIALIZABLE"
)

// TxOptions configures Begin. The zero value starts a default
// read-committed, read-write, non-deferrable transaction.
type TxOptions struct {
	Isolation   Isolation
	ReadOnly    bool
	Deferrable  bool
}

// Tx represents an open transaction block (§4.9). Every statement and
// savepoint issued through it observes the single most important guarantee
// of this layer: if the connection's transaction status is ever
// failed-block when Tx exits, Rollback runs instead of Commit regardless of
// what the caller asked for.
type Tx struct {
	conn  *Conn
	depth int // savepoint nesting depth; 0 at the top-level BEGIN
	done  bool
}

// Begin starts a new transaction block with the given options.
func (c *Conn) Begin(ctx context.Context, opts TxOptions) (*Tx, error) {
	sql := "BEGIN"
	if opts.Isolation != "" {
		sql += " ISOLATION LEVEL " + string(opts.Isolation)
	}
	if opts.ReadOnly {
		sql += " READ ONLY"
	}
	if opts.Deferrable {
		sql += " DEFERRABLE"
	}

	if err := c.execSimple(ctx, sql); err != nil {
		return nil, err
	}

	return &Tx{conn: c}, nil
}

// Savepoint opens a nested savepoint named deterministically from the
// current nesting depth, returning a child Tx whose Commit releases the
// savepoint and whose Rollback rolls back to it.
func (tx *Tx) Savepoint(ctx context.Context) (*Tx, error) {
	child := &Tx{conn: tx.conn, depth: tx.depth + 1}
	if err := tx.conn.execSimple(ctx, "SAVEPOINT "+child.savepointName()); err != nil {
		return nil, err
	}
	return child, nil
}

func (tx *Tx) savepointName() string {
	return "__pg_savepoint_" + strconv.Itoa(tx.depth) + "__"
}

// Commit commits the transaction (or, for a savepoint, releases it). If the
// connection's transaction status is failed-block, Commit rolls back
// instead — §4.9's guarantee that a failed block can never be silently
// committed.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return fmt.Errorf("transaction already closed")
	}
	tx.done = true

	if tx.conn.txStatus == types.TxnFailed {
		return tx.rollback(ctx)
	}

	if tx.depth == 0 {
		return tx.conn.execSimple(ctx, "COMMIT")
	}
	return tx.conn.execSimple(ctx, "RELEASE SAVEPOINT "+tx.savepointName())
}

// Rollback rolls back the transaction (or, for a savepoint, rolls back to
// it, leaving the parent transaction usable).
func (tx *Tx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	return tx.rollback(ctx)
}

func (tx *Tx) rollback(ctx context.Context) error {
	if tx.depth == 0 {
		return tx.conn.execSimple(ctx, "ROLLBACK")
	}
	return tx.conn.execSimple(ctx, "ROLLBACK TO SAVEPOINT "+tx.savepointName())
}

// WithTransaction runs fn inside a transaction, committing on a nil return
// and rolling back otherwise (or if fn panics, before re-panicking) — the
// context-scoped commit/rollback pattern named in §4.9.
func (c *Conn) WithTransaction(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx *Tx) error) (err error) {
	tx, err := c.Begin(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return pgerror.State(fmt.Errorf("%w (rollback also failed: %v)", err, rbErr))
		}
		return err
	}

	return tx.Commit(ctx)
}
