package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"
	"balance-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// TransactionEngineImpl implements ports.TransactionEngine: the transfer state
// machine and the atomic-transfer primitive. Every mutation runs as one store
// transaction under the bounded retry policy; events queue in a per-unit
// outbox and publish strictly after commit.
type TransactionEngineImpl struct {
	txRepo      ports.TransactionRepository
	orderRepo   ports.OrderRepository
	productRepo ports.ProductRepository
	ledger      *AccountLedger
	transactor  ports.DBTransactor
	publisher   ports.EventPublisher
	auditor     ports.ReconciliationAuditor
	log         zerolog.Logger
}

// NewTransactionEngine creates a new TransactionEngineImpl. The auditor is
// optional; when set, every completed transfer triggers an async balance audit
// of both accounts.
func NewTransactionEngine(
	txRepo ports.TransactionRepository,
	orderRepo ports.OrderRepository,
	productRepo ports.ProductRepository,
	ledger *AccountLedger,
	transactor ports.DBTransactor,
	publisher ports.EventPublisher,
	auditor ports.ReconciliationAuditor,
	log zerolog.Logger,
) *TransactionEngineImpl {
	return &TransactionEngineImpl{
		txRepo:      txRepo,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		ledger:      ledger,
		transactor:  transactor,
		publisher:   publisher,
		auditor:     auditor,
		log:         log,
	}
}

// InitiateTransfer creates a HOLD ledger row. No balance effect until the
// transaction completes.
func (e *TransactionEngineImpl) InitiateTransfer(ctx context.Context, accountA, accountB uuid.UUID, amount decimal.Decimal, transferType domain.TransferType, meta domain.TransferMeta) (*domain.Transaction, error) {
	if accountA == accountB {
		return nil, apperror.ErrSameAccount()
	}
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	source, err := e.ledger.GetByID(ctx, accountA)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:         uuid.New(),
		Type:       transferType,
		State:      domain.TransferStateHold,
		AccountAID: accountA,
		AccountBID: accountB,
		AmountOut:  amount,
		AmountIn:   amount,
		Currency:   source.Currency,
		Meta:       meta,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = withRetry(ctx, e.log, "initiate_transfer", func(ctx context.Context) error {
		dbTx, err := e.transactor.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		if err := e.txRepo.Create(ctx, dbTx, txn); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}
		return dbTx.Commit(ctx)
	})
	if err != nil {
		return nil, e.wrapStoreError(err)
	}

	e.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("type", string(transferType)).
		Str("amount", amount.String()).
		Msg("transfer initiated")

	return txn, nil
}

// CompleteImmediately moves a HOLD transaction to COMPLETED and applies the
// balance effect in one atomic unit. Idempotent: an already-COMPLETED
// transaction returns unchanged. A PRODUCT_PURCHASE carrying a product meta
// also gets its PAID order created in the same unit.
func (e *TransactionEngineImpl) CompleteImmediately(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var (
		result *domain.Transaction
		outbox []domain.Event
	)

	err := withRetry(ctx, e.log, "complete_immediately", func(ctx context.Context) error {
		outbox = outbox[:0]

		dbTx, err := e.transactor.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		txn, err := e.txRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return fmt.Errorf("lock transaction: %w", err)
		}
		if txn == nil {
			return apperror.ErrNotFound("transaction")
		}
		if txn.State == domain.TransferStateCompleted {
			result = txn
			return dbTx.Commit(ctx)
		}
		if !txn.CanComplete() {
			return apperror.ErrInvalidStateTransition(string(txn.State), string(domain.TransferStateCompleted))
		}

		if err := e.completeInTx(ctx, dbTx, txn, &outbox); err != nil {
			return err
		}

		result = txn
		return dbTx.Commit(ctx)
	})
	if err != nil {
		return nil, e.wrapStoreError(err)
	}

	e.afterCommit(ctx, result, outbox)
	return result, nil
}

// CompletePayTransaction is the webhook-driven two-phase completion. Already
// terminal is a silent no-op. The refill leg completes first; a product meta
// then derives the purchase leg(s) and the PAID order, all in the same unit.
func (e *TransactionEngineImpl) CompletePayTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var (
		result *domain.Transaction
		outbox []domain.Event
	)

	err := withRetry(ctx, e.log, "complete_pay_transaction", func(ctx context.Context) error {
		outbox = outbox[:0]

		dbTx, err := e.transactor.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		txn, err := e.txRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return fmt.Errorf("lock transaction: %w", err)
		}
		if txn == nil {
			return apperror.ErrNotFound("transaction")
		}
		if txn.IsTerminal() {
			// Redelivered confirmation: the first delivery already settled it.
			result = txn
			return dbTx.Commit(ctx)
		}

		// Phase 1: complete the refill leg.
		if err := e.completeInTx(ctx, dbTx, txn, &outbox); err != nil {
			return err
		}

		// Phase 2: derive the purchase leg(s) when a product is attached.
		if txn.Meta.HasProduct() {
			if err := e.settlePurchase(ctx, dbTx, txn, &outbox); err != nil {
				return err
			}
		}

		result = txn
		return dbTx.Commit(ctx)
	})
	if err != nil {
		return nil, e.wrapStoreError(err)
	}

	e.afterCommit(ctx, result, outbox)
	return result, nil
}

// FailTransaction moves a non-terminal transaction to FAILED. Idempotent for
// already-FAILED rows; failing a COMPLETED transaction is a Conflict. HOLD
// never touched balances, so there is nothing to reverse.
func (e *TransactionEngineImpl) FailTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	var result *domain.Transaction

	err := withRetry(ctx, e.log, "fail_transaction", func(ctx context.Context) error {
		dbTx, err := e.transactor.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		txn, err := e.txRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return fmt.Errorf("lock transaction: %w", err)
		}
		if txn == nil {
			return apperror.ErrNotFound("transaction")
		}
		if txn.State == domain.TransferStateFailed {
			result = txn
			return dbTx.Commit(ctx)
		}
		if txn.State == domain.TransferStateCompleted {
			return apperror.ErrInvalidStateTransition(string(txn.State), string(domain.TransferStateFailed))
		}

		if err := e.txRepo.MarkFailed(ctx, dbTx, txn.ID); err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		txn.State = domain.TransferStateFailed

		result = txn
		return dbTx.Commit(ctx)
	})
	if err != nil {
		return nil, e.wrapStoreError(err)
	}

	e.drainOutbox(ctx, []domain.Event{domain.TransactionChanged(result.ID)})

	e.log.Info().
		Str("tx_id", result.ID.String()).
		Msg("transaction failed")

	return result, nil
}

// CalculateBalanceFromHistory recomputes an account's balance from its
// completed transactions. This is the source of truth; the cached column is
// only an optimization over it.
func (e *TransactionEngineImpl) CalculateBalanceFromHistory(ctx context.Context, accountID uuid.UUID) (decimal.Decimal, error) {
	sums, err := e.txRepo.SumCompleted(ctx, accountID)
	if err != nil {
		return decimal.Zero, apperror.InternalError(fmt.Errorf("sum completed history: %w", err))
	}
	return sums.Incoming.Sub(sums.Outgoing), nil
}

// FindByID fetches a transaction, NotFound when absent.
func (e *TransactionEngineImpl) FindByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := e.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	return txn, nil
}

// FindByAccountID fetches an account's transactions, newest first.
func (e *TransactionEngineImpl) FindByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Transaction, error) {
	txns, err := e.txRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}

// FindByPaymentIntentID fetches a transaction by idempotency key; nil, nil
// when absent so the webhook path can fall through to the transaction id.
func (e *TransactionEngineImpl) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*domain.Transaction, error) {
	txn, err := e.txRepo.GetByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction by intent: %w", err))
	}
	return txn, nil
}

// FindByProviderSessionID fetches a transaction by checkout session id.
func (e *TransactionEngineImpl) FindByProviderSessionID(ctx context.Context, sessionID string) (*domain.Transaction, error) {
	txn, err := e.txRepo.GetByProviderSessionID(ctx, sessionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get transaction by session: %w", err))
	}
	return txn, nil
}

// completeInTx applies the balance effect and marks the row COMPLETED within
// the caller's store transaction, queueing the resulting events.
func (e *TransactionEngineImpl) completeInTx(ctx context.Context, dbTx pgx.Tx, txn *domain.Transaction, outbox *[]domain.Event) error {
	if err := e.ledger.ApplyComplete(ctx, dbTx, txn); err != nil {
		return err
	}
	if err := e.txRepo.MarkCompleted(ctx, dbTx, txn.ID); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	now := time.Now().UTC()
	txn.State = domain.TransferStateCompleted
	txn.CompletedAt = &now

	*outbox = append(*outbox,
		domain.TransactionChanged(txn.ID),
		domain.BalanceChanged(txn.AccountAID),
		domain.BalanceChanged(txn.AccountBID),
	)

	// Purchase completed directly from balance: the order belongs to the same
	// unit. The balance leg of a split payment waits for its card leg instead.
	if txn.Type == domain.TransferTypePurchase && txn.Meta.Kind == domain.MetaKindPurchase {
		order, err := e.createOrderInTx(ctx, dbTx, txn, []uuid.UUID{txn.ID})
		if err != nil {
			return err
		}
		*outbox = append(*outbox, domain.OrderCreated(order.ID))
	}
	return nil
}

// settlePurchase derives the purchase leg(s) for a completed product refill:
// the card-covered PRODUCT_PURCHASE leg, the PAID order, and the meta
// annotation linking them all, in the caller's store transaction.
func (e *TransactionEngineImpl) settlePurchase(ctx context.Context, dbTx pgx.Tx, refill *domain.Transaction, outbox *[]domain.Event) error {
	now := time.Now().UTC()

	// The refill credited account_b from account_a; the purchase pushes the
	// money back for the product.
	purchase := &domain.Transaction{
		ID:         uuid.New(),
		Type:       domain.TransferTypePurchase,
		State:      domain.TransferStateHold,
		AccountAID: refill.AccountBID,
		AccountBID: refill.AccountAID,
		AmountOut:  refill.AmountIn,
		AmountIn:   refill.AmountIn,
		Currency:   refill.Currency,
		Meta:       domain.PurchaseMeta(*refill.Meta.ProductID),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.txRepo.Create(ctx, dbTx, purchase); err != nil {
		return fmt.Errorf("create purchase leg: %w", err)
	}
	if err := e.ledger.ApplyComplete(ctx, dbTx, purchase); err != nil {
		return err
	}
	if err := e.txRepo.MarkCompleted(ctx, dbTx, purchase.ID); err != nil {
		return fmt.Errorf("mark purchase leg completed: %w", err)
	}
	purchase.State = domain.TransferStateCompleted
	purchase.CompletedAt = &now

	purchaseIDs := []uuid.UUID{purchase.ID}
	if refill.Meta.IsPartial() {
		// The balance-covered leg completed before the checkout opened.
		purchaseIDs = append([]uuid.UUID{*refill.Meta.LinkedTransactionID}, purchaseIDs...)
	}

	order, err := e.createOrderInTx(ctx, dbTx, refill, purchaseIDs)
	if err != nil {
		return err
	}

	// Annotate the refill with the derived rows. Legal only because the same
	// commit produced the terminal state.
	meta := refill.Meta
	meta.PurchaseTransactionIDs = purchaseIDs
	meta.OrderID = &order.ID
	if err := e.txRepo.UpdateMeta(ctx, dbTx, refill.ID, meta); err != nil {
		return fmt.Errorf("annotate refill meta: %w", err)
	}
	refill.Meta = meta

	*outbox = append(*outbox,
		domain.TransactionChanged(purchase.ID),
		domain.BalanceChanged(purchase.AccountAID),
		domain.BalanceChanged(purchase.AccountBID),
		domain.OrderCreated(order.ID),
	)
	return nil
}

// createOrderInTx builds the PAID order for a purchase-bearing transaction.
// Total price is always the full product price, independent of how the legs
// split between balance and card.
func (e *TransactionEngineImpl) createOrderInTx(ctx context.Context, dbTx pgx.Tx, txn *domain.Transaction, purchaseIDs []uuid.UUID) (*domain.Order, error) {
	product, err := e.productRepo.GetByID(ctx, *txn.Meta.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product for order: %w", err)
	}
	if product == nil {
		return nil, apperror.ErrNotFound("product")
	}

	buyerAccountID := txn.AccountAID
	if txn.Type == domain.TransferTypeRefill {
		// A refill flows service -> user; the buyer is the destination.
		buyerAccountID = txn.AccountBID
	}
	buyer, err := e.ledger.GetByID(ctx, buyerAccountID)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:           uuid.New(),
		ProductID:    product.ID,
		BuyerUserID:  buyer.UserID,
		SellerUserID: product.SellerUserID,
		TotalPrice:   product.Price,
		Currency:     product.Currency,
		Status:       domain.OrderStatusPaid,
		CreatedAt:    time.Now().UTC(),
	}
	if err := e.orderRepo.Create(ctx, dbTx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// Back-link the order on the transaction that carried the product.
	meta := txn.Meta
	meta.OrderID = &order.ID
	if err := e.txRepo.UpdateMeta(ctx, dbTx, txn.ID, meta); err != nil {
		return nil, fmt.Errorf("link order on transaction: %w", err)
	}
	txn.Meta = meta

	return order, nil
}

// afterCommit drains the outbox and triggers the async balance audit. Runs
// strictly after the store transaction committed.
func (e *TransactionEngineImpl) afterCommit(ctx context.Context, txn *domain.Transaction, outbox []domain.Event) {
	e.drainOutbox(ctx, outbox)

	if e.auditor != nil && txn.State == domain.TransferStateCompleted {
		go e.auditPair(txn.AccountAID, txn.AccountBID)
	}
}

// drainOutbox publishes queued events best-effort; a failed publish is logged
// and never surfaces to the caller.
func (e *TransactionEngineImpl) drainOutbox(ctx context.Context, outbox []domain.Event) {
	for _, event := range outbox {
		if err := e.publisher.Publish(ctx, event); err != nil {
			e.log.Warn().
				Err(err).
				Str("type", string(event.Type)).
				Msg("event publish failed")
		}
	}
}

func (e *TransactionEngineImpl) auditPair(a, b uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, id := range []uuid.UUID{a, b} {
		if _, err := e.auditor.AuditBalance(ctx, id); err != nil {
			e.log.Error().
				Err(err).
				Str("account_id", id.String()).
				Msg("post-completion audit failed")
		}
	}
}

// wrapStoreError keeps structured errors intact and wraps everything else as
// an internal error.
func (e *TransactionEngineImpl) wrapStoreError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.InternalError(err)
}
