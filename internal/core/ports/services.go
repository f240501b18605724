package ports

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

import (
	"context"
	"time"

	"balance-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Collaborator ports ---

// EventPublisher is the post-commit notification sink. Implementations are
// best-effort: the ledger never fails a request over a publish error, and the
// publisher is never invoked while a store transaction is open.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// ProviderSession is an opaque checkout session handed to the client.
type ProviderSession struct {
	SessionID       string
	URL             string
	PaymentIntentID string
}

// ProviderEvent is a parsed payment confirmation signal.
type ProviderEvent struct {
	Type            string // "success" or "failed"; anything else is ignored
	TransactionID   string
	PaymentIntentID string
	Amount          *decimal.Decimal
	Metadata        map[string]string
}

// PaymentProvider is the narrow provider contract the ledger consumes:
// session creation and event parsing. Signature verification and real
// settlement live outside this system.
type PaymentProvider interface {
	CreateSession(ctx context.Context, txn *domain.Transaction, user *domain.User, product *domain.Product) (*ProviderSession, error)
	ParseEvent(raw []byte) (*ProviderEvent, error)
}

// LookupCache memoizes read-mostly lookups (users, products).
type LookupCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil, nil on miss
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// --- Service ports (business logic) ---

// TransactionEngine owns the transfer state machine and the atomic-transfer
// primitive.
type TransactionEngine interface {
	InitiateTransfer(ctx context.Context, accountA, accountB uuid.UUID, amount decimal.Decimal, transferType domain.TransferType, meta domain.TransferMeta) (*domain.Transaction, error)
	CompleteImmediately(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	CompletePayTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FailTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	CalculateBalanceFromHistory(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	FindByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Transaction, error)
	FindByProviderSessionID(ctx context.Context, sessionID string) (*domain.Transaction, error)
}

// PaymentLink is the client-facing result of opening a checkout session.
type PaymentLink struct {
	URL             string    `json:"url"`
	TransactionID   uuid.UUID `json:"transaction_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
}

// PurchaseResult pairs the purchase transaction with its order.
type PurchaseResult struct {
	Transaction *domain.Transaction
	Order       *domain.Order
}

// PaymentOrchestrator composes the refill, purchase and partial-payment flows.
type PaymentOrchestrator interface {
	CreatePaymentLink(ctx context.Context, userID uuid.UUID, productID *uuid.UUID) (*PaymentLink, error)
	HandleProviderWebhook(ctx context.Context, event *ProviderEvent) error
	PurchaseWithBalance(ctx context.Context, userID, productID uuid.UUID) (*PurchaseResult, error)
	Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error)
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error)
	AccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	History(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	OrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	Products(ctx context.Context) ([]domain.Product, error)
}

// ReconciliationAuditor recomputes balances from history and compares them to
// the cached value.
type ReconciliationAuditor interface {
	AuditBalance(ctx context.Context, accountID uuid.UUID) (*domain.BalanceAudit, error)
}
