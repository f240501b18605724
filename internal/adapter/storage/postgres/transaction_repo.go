package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, type, state, account_a_id, account_b_id, amount_out, amount_in,
		currency, meta, provider_session_id, payment_intent_id, created_at, completed_at, updated_at`

// Create inserts a new transaction within a database transaction.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, type, state, account_a_id, account_b_id, amount_out, amount_in,
		currency, meta, provider_session_id, payment_intent_id, created_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.Type, t.State, t.AccountAID, t.AccountBID,
		t.AmountOut, t.AmountIn, t.Currency, t.Meta,
		t.ProviderSessionID, t.PaymentIntentID,
		t.CreatedAt, t.CompletedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUpdate fetches a transaction with a pessimistic row lock so a
// state transition cannot race a concurrent redelivery.
// MUST be called within a transaction.
func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(tx.QueryRow(ctx, query, id))
}

// GetByAccountID fetches all transactions touching an account, newest first.
func (r *TransactionRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE account_a_id = $1 OR account_b_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(
			&t.ID, &t.Type, &t.State, &t.AccountAID, &t.AccountBID,
			&t.AmountOut, &t.AmountIn, &t.Currency, &t.Meta,
			&t.ProviderSessionID, &t.PaymentIntentID,
			&t.CreatedAt, &t.CompletedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

// GetByPaymentIntentID fetches a transaction by its idempotency key.
func (r *TransactionRepo) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE payment_intent_id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, paymentIntentID))
}

// GetByProviderSessionID fetches a transaction by checkout session id.
func (r *TransactionRepo) GetByProviderSessionID(ctx context.Context, sessionID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE provider_session_id = $1`
	return scanTransaction(r.pool.QueryRow(ctx, query, sessionID))
}

// MarkCompleted moves a transaction to COMPLETED and stamps completed_at,
// within the caller's transaction.
func (r *TransactionRepo) MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	now := time.Now().UTC()
	query := `UPDATE transactions SET state = $1, completed_at = $2, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, domain.TransferStateCompleted, now, id)
	if err != nil {
		return fmt.Errorf("mark transaction completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// MarkFailed moves a transaction to FAILED within the caller's transaction.
func (r *TransactionRepo) MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE transactions SET state = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, domain.TransferStateFailed, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark transaction failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// UpdateMeta rewrites a transaction's meta within the caller's transaction.
func (r *TransactionRepo) UpdateMeta(ctx context.Context, tx pgx.Tx, id uuid.UUID, meta domain.TransferMeta) error {
	query := `UPDATE transactions SET meta = $1, updated_at = $2 WHERE id = $3`

	tag, err := tx.Exec(ctx, query, meta, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update transaction meta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// SetProviderRefs persists provider correlation ids on a HOLD transaction.
// The unique constraints on both columns reject a second transaction claiming
// the same session or intent.
func (r *TransactionRepo) SetProviderRefs(ctx context.Context, id uuid.UUID, sessionID, paymentIntentID string) error {
	query := `UPDATE transactions SET provider_session_id = $1, payment_intent_id = $2, updated_at = $3 WHERE id = $4`

	tag, err := r.pool.Exec(ctx, query, sessionID, paymentIntentID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set provider refs: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// SumCompleted aggregates the completed history for one account: amount_in
// where it is destination, amount_out where it is source.
func (r *TransactionRepo) SumCompleted(ctx context.Context, accountID uuid.UUID) (*ports.BalanceSums, error) {
	query := `SELECT
		COALESCE(SUM(amount_in) FILTER (WHERE account_b_id = $1), 0) AS incoming,
		COALESCE(SUM(amount_out) FILTER (WHERE account_a_id = $1), 0) AS outgoing
		FROM transactions
		WHERE state = $2 AND (account_a_id = $1 OR account_b_id = $1)`

	sums := &ports.BalanceSums{}
	err := r.pool.QueryRow(ctx, query, accountID, domain.TransferStateCompleted).
		Scan(&sums.Incoming, &sums.Outgoing)
	if err != nil {
		return nil, fmt.Errorf("sum completed transactions: %w", err)
	}
	return sums, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.Type, &t.State, &t.AccountAID, &t.AccountBID,
		&t.AmountOut, &t.AmountIn, &t.Currency, &t.Meta,
		&t.ProviderSessionID, &t.PaymentIntentID,
		&t.CreatedAt, &t.CompletedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
