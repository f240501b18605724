package service

import (
	"context"
	"fmt"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"
	"balance-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PaymentOrchestratorImpl implements ports.PaymentOrchestrator: it composes
// the refill, purchase and partial-payment flows on top of the transaction
// engine, talking to the hosted checkout provider.
type PaymentOrchestratorImpl struct {
	engine      ports.TransactionEngine
	ledger      *AccountLedger
	txRepo      ports.TransactionRepository
	orderRepo   ports.OrderRepository
	productRepo ports.ProductRepository
	userRepo    ports.UserRepository
	provider    ports.PaymentProvider

	serviceAccountID uuid.UUID
	currency         string
	refillAmount     decimal.Decimal

	log zerolog.Logger
}

// NewPaymentOrchestrator creates a new PaymentOrchestratorImpl.
func NewPaymentOrchestrator(
	engine ports.TransactionEngine,
	ledger *AccountLedger,
	txRepo ports.TransactionRepository,
	orderRepo ports.OrderRepository,
	productRepo ports.ProductRepository,
	userRepo ports.UserRepository,
	provider ports.PaymentProvider,
	serviceAccountID uuid.UUID,
	currency string,
	refillAmount decimal.Decimal,
	log zerolog.Logger,
) *PaymentOrchestratorImpl {
	return &PaymentOrchestratorImpl{
		engine:           engine,
		ledger:           ledger,
		txRepo:           txRepo,
		orderRepo:        orderRepo,
		productRepo:      productRepo,
		userRepo:         userRepo,
		provider:         provider,
		serviceAccountID: serviceAccountID,
		currency:         currency,
		refillAmount:     refillAmount,
		log:              log,
	}
}

// CreatePaymentLink opens a hosted checkout session. The flow splits on how
// much of the product price the user's history balance already covers; the
// refill HOLD row carries the linkage the webhook later needs.
func (o *PaymentOrchestratorImpl) CreatePaymentLink(ctx context.Context, userID uuid.UUID, productID *uuid.UUID) (*ports.PaymentLink, error) {
	account, err := o.ledger.GetOrCreate(ctx, userID, o.currency)
	if err != nil {
		return nil, err
	}

	var (
		hold    *domain.Transaction
		product *domain.Product
	)

	if productID != nil {
		product, err = o.productRepo.GetByID(ctx, *productID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get product: %w", err))
		}
		if product == nil {
			return nil, apperror.ErrNotFound("product")
		}
		if !product.IsPurchasable() {
			return nil, apperror.ErrProductInactive()
		}

		balance, err := o.engine.CalculateBalanceFromHistory(ctx, account.ID)
		if err != nil {
			return nil, err
		}

		switch {
		case balance.GreaterThanOrEqual(product.Price):
			// The flows are mutually exclusive: a covering balance must go
			// through the direct purchase path.
			return nil, apperror.ErrBalanceCoversPrice()

		case balance.IsPositive():
			// Split payment: settle the balance portion now, charge the card
			// for the remainder.
			balanceLeg, err := o.engine.InitiateTransfer(ctx,
				account.ID, o.serviceAccountID, balance,
				domain.TransferTypePurchase, domain.PartialPurchaseMeta(product.ID))
			if err != nil {
				return nil, err
			}
			if _, err := o.engine.CompleteImmediately(ctx, balanceLeg.ID); err != nil {
				return nil, err
			}

			remainder := product.Price.Sub(balance)
			hold, err = o.engine.InitiateTransfer(ctx,
				o.serviceAccountID, account.ID, remainder,
				domain.TransferTypeRefill, domain.PartialRefillMeta(product.ID, balanceLeg.ID))
			if err != nil {
				return nil, err
			}

		default:
			hold, err = o.engine.InitiateTransfer(ctx,
				o.serviceAccountID, account.ID, product.Price,
				domain.TransferTypeRefill, domain.ProductRefillMeta(product.ID))
			if err != nil {
				return nil, err
			}
		}
	} else {
		hold, err = o.engine.InitiateTransfer(ctx,
			o.serviceAccountID, account.ID, o.refillAmount,
			domain.TransferTypeRefill, domain.RefillMeta())
		if err != nil {
			return nil, err
		}
	}

	user, err := o.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get user: %w", err))
	}

	session, err := o.provider.CreateSession(ctx, hold, user, product)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create checkout session: %w", err))
	}

	if err := o.txRepo.SetProviderRefs(ctx, hold.ID, session.SessionID, session.PaymentIntentID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("persist provider refs: %w", err))
	}

	o.log.Info().
		Str("tx_id", hold.ID.String()).
		Str("session_id", session.SessionID).
		Str("user_id", userID.String()).
		Msg("payment link created")

	return &ports.PaymentLink{
		URL:             session.URL,
		TransactionID:   hold.ID,
		PaymentIntentID: session.PaymentIntentID,
	}, nil
}

// HandleProviderWebhook resolves the HOLD transaction behind a provider event
// and drives the matching state transition. Any delivery for an already
// terminal transaction is acknowledged without dispatching, even when it
// contradicts the recorded outcome: the first delivery won.
func (o *PaymentOrchestratorImpl) HandleProviderWebhook(ctx context.Context, event *ports.ProviderEvent) error {
	txn, err := o.resolveEventTransaction(ctx, event)
	if err != nil {
		return err
	}
	if txn == nil {
		return apperror.ErrNotFound("transaction")
	}
	if txn.IsTerminal() {
		o.log.Info().
			Str("event_type", event.Type).
			Str("tx_id", txn.ID.String()).
			Str("state", string(txn.State)).
			Msg("ignoring provider redelivery for terminal transaction")
		return nil
	}

	switch event.Type {
	case "success":
		_, err = o.engine.CompletePayTransaction(ctx, txn.ID)
		return err
	case "failed":
		_, err = o.engine.FailTransaction(ctx, txn.ID)
		return err
	default:
		o.log.Warn().
			Str("event_type", event.Type).
			Str("tx_id", txn.ID.String()).
			Msg("ignoring unknown provider event type")
		return nil
	}
}

// PurchaseWithBalance buys a product entirely from the user's balance:
// one PRODUCT_PURCHASE completed immediately, with the PAID order created in
// the same unit. No mutation happens when the balance does not cover the price.
func (o *PaymentOrchestratorImpl) PurchaseWithBalance(ctx context.Context, userID, productID uuid.UUID) (*ports.PurchaseResult, error) {
	account, err := o.ledger.GetOrCreate(ctx, userID, o.currency)
	if err != nil {
		return nil, err
	}

	product, err := o.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get product: %w", err))
	}
	if product == nil {
		return nil, apperror.ErrNotFound("product")
	}
	if !product.IsPurchasable() {
		return nil, apperror.ErrProductInactive()
	}

	balance, err := o.engine.CalculateBalanceFromHistory(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(product.Price) {
		return nil, apperror.ErrInsufficientBalance(balance.String(), product.Price.String())
	}

	txn, err := o.engine.InitiateTransfer(ctx,
		account.ID, o.serviceAccountID, product.Price,
		domain.TransferTypePurchase, domain.PurchaseMeta(product.ID))
	if err != nil {
		return nil, err
	}

	completed, err := o.engine.CompleteImmediately(ctx, txn.ID)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	if completed.Meta.OrderID != nil {
		order, err = o.orderRepo.GetByID(ctx, *completed.Meta.OrderID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
		}
	}

	o.log.Info().
		Str("tx_id", completed.ID.String()).
		Str("product_id", productID.String()).
		Str("user_id", userID.String()).
		Msg("balance purchase completed")

	return &ports.PurchaseResult{Transaction: completed, Order: order}, nil
}

// Credit moves funds from the service account into the user's account.
func (o *PaymentOrchestratorImpl) Credit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	account, err := o.ledger.GetOrCreate(ctx, userID, o.currency)
	if err != nil {
		return nil, err
	}

	txn, err := o.engine.InitiateTransfer(ctx,
		o.serviceAccountID, account.ID, amount,
		domain.TransferTypeCredit, domain.PlainTransferMeta())
	if err != nil {
		return nil, err
	}
	return o.engine.CompleteImmediately(ctx, txn.ID)
}

// Debit moves funds from the user's account to the service account, rejecting
// the request when the history balance does not cover the amount.
func (o *PaymentOrchestratorImpl) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	account, err := o.ledger.GetOrCreate(ctx, userID, o.currency)
	if err != nil {
		return nil, err
	}

	balance, err := o.engine.CalculateBalanceFromHistory(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		return nil, apperror.ErrInsufficientBalance(balance.String(), amount.String())
	}

	txn, err := o.engine.InitiateTransfer(ctx,
		account.ID, o.serviceAccountID, amount,
		domain.TransferTypeDebit, domain.PlainTransferMeta())
	if err != nil {
		return nil, err
	}
	return o.engine.CompleteImmediately(ctx, txn.ID)
}

// AccountByUserID returns the user's account, provisioning it on first use.
func (o *PaymentOrchestratorImpl) AccountByUserID(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return o.ledger.GetOrCreate(ctx, userID, o.currency)
}

// History returns the user's transactions, newest first.
func (o *PaymentOrchestratorImpl) History(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	account, err := o.ledger.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return o.engine.FindByAccountID(ctx, account.ID)
}

// OrderByID returns one order.
func (o *PaymentOrchestratorImpl) OrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := o.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}

// Products lists the purchasable catalog.
func (o *PaymentOrchestratorImpl) Products(ctx context.Context) ([]domain.Product, error) {
	products, err := o.productRepo.List(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list products: %w", err))
	}
	return products, nil
}

// resolveEventTransaction finds the ledger row a provider event refers to:
// payment intent first, then the raw transaction id.
func (o *PaymentOrchestratorImpl) resolveEventTransaction(ctx context.Context, event *ports.ProviderEvent) (*domain.Transaction, error) {
	if event.PaymentIntentID != "" {
		txn, err := o.engine.FindByPaymentIntentID(ctx, event.PaymentIntentID)
		if err != nil {
			return nil, err
		}
		if txn != nil {
			return txn, nil
		}
	}

	if event.TransactionID != "" {
		id, err := uuid.Parse(event.TransactionID)
		if err != nil {
			return nil, apperror.Validation("invalid transaction id in provider event")
		}
		txn, err := o.txRepo.GetByID(ctx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get transaction: %w", err))
		}
		return txn, nil
	}

	return nil, nil
}
