package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor. Every transaction it opens runs at
// the isolation level chosen at construction; ledger correctness leans on
// store isolation rather than in-process locking.
type Transactor struct {
	pool      Pool
	isolation pgx.TxIsoLevel
}

// NewTransactor creates a Transactor with the given isolation level name
// (read_committed, repeatable_read, serializable; unknown values fall back to
// repeatable_read).
func NewTransactor(pool Pool, isolation string) *Transactor {
	return &Transactor{pool: pool, isolation: parseIsolation(isolation)}
}

// Begin starts a new database transaction at the configured isolation level.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: t.isolation})
}

func parseIsolation(level string) pgx.TxIsoLevel {
	switch level {
	case "read_committed":
		return pgx.ReadCommitted
	case "serializable":
		return pgx.Serializable
	case "repeatable_read":
		return pgx.RepeatableRead
	default:
		return pgx.RepeatableRead
	}
}
