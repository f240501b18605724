package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

import (
	"context"

	"balance-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx run inside the caller's store transaction; the
// ForUpdate variants take row locks and MUST be called with ids already in
// ascending order when locking more than one account.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	// ApplyDelta adds the given deltas to balance, incoming and outgoing in a
	// single statement inside the store transaction.
	ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, balance, incoming, outgoing decimal.Decimal) error
}

// BalanceSums aggregates an account's completed history: incoming over rows
// where the account is destination, outgoing where it is source.
type BalanceSums struct {
	Incoming decimal.Decimal
	Outgoing decimal.Decimal
}

// TransactionRepository defines persistence operations for ledger transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Transaction, error)
	GetByProviderSessionID(ctx context.Context, sessionID string) (*domain.Transaction, error)
	// MarkCompleted moves a transaction to COMPLETED and stamps completed_at.
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	// MarkFailed moves a transaction to FAILED.
	MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	// UpdateMeta annotates a transaction's meta; only legal within the same
	// store transaction that made the row terminal.
	UpdateMeta(ctx context.Context, tx pgx.Tx, id uuid.UUID, meta domain.TransferMeta) error
	// SetProviderRefs persists the provider session and payment intent ids
	// obtained after the HOLD row was created.
	SetProviderRefs(ctx context.Context, id uuid.UUID, sessionID, paymentIntentID string) error
	// SumCompleted computes the completed-history aggregate for an account.
	SumCompleted(ctx context.Context, accountID uuid.UUID) (*BalanceSums, error)
}

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

// ProductRepository defines read access to the product catalog.
type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

// UserRepository defines read access to users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// DBTransactor provides store transaction management with the configured
// isolation level.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
