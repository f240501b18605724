package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferType represents the kind of money movement.
type TransferType string

const (
	TransferTypeCredit   TransferType = "CREDIT"
	TransferTypeDebit    TransferType = "DEBIT"
	TransferTypeRefill   TransferType = "ACCOUNT_REFILL"
	TransferTypePurchase TransferType = "PRODUCT_PURCHASE"
)

// TransferState represents the lifecycle state of a transaction.
// HOLD is the initial state and carries no balance effect; PENDING is accepted
// as an alias of the initial state. COMPLETED and FAILED are terminal.
type TransferState string

const (
	TransferStateHold      TransferState = "HOLD"
	TransferStatePending   TransferState = "PENDING"
	TransferStateCompleted TransferState = "COMPLETED"
	TransferStateFailed    TransferState = "FAILED"
)

// MetaKind tags the shape of a transaction's meta, one variant per flow.
type MetaKind string

const (
	// MetaKindTransfer is a plain credit or debit with no product attached.
	MetaKindTransfer MetaKind = "TRANSFER"
	// MetaKindRefill is a standalone balance refill for a fixed amount.
	MetaKindRefill MetaKind = "REFILL"
	// MetaKindProductRefill is a refill opened to pay a product in full by card.
	MetaKindProductRefill MetaKind = "PRODUCT_REFILL"
	// MetaKindPartialRefill is a refill covering the card remainder of a
	// purchase whose balance-covered leg already completed.
	MetaKindPartialRefill MetaKind = "PARTIAL_REFILL"
	// MetaKindPurchase is a product purchase leg.
	MetaKindPurchase MetaKind = "PURCHASE"
	// MetaKindPartialPurchase is the balance-covered leg of a split payment.
	// It completes when the checkout opens; the order waits for the card leg.
	MetaKindPartialPurchase MetaKind = "PARTIAL_PURCHASE"
)

// TransferMeta carries structured linkage between the refill, purchase and
// order rows of a payment flow. The kind tag determines which fields are set;
// the constructors below are the only way flows build one.
type TransferMeta struct {
	Kind                   MetaKind    `json:"kind"`
	ProductID              *uuid.UUID  `json:"product_id,omitempty"`
	LinkedTransactionID    *uuid.UUID  `json:"linked_transaction_id,omitempty"`
	PurchaseTransactionIDs []uuid.UUID `json:"purchase_transaction_ids,omitempty"`
	OrderID                *uuid.UUID  `json:"order_id,omitempty"`
}

// PlainTransferMeta tags a direct credit or debit.
func PlainTransferMeta() TransferMeta {
	return TransferMeta{Kind: MetaKindTransfer}
}

// RefillMeta tags a standalone balance refill.
func RefillMeta() TransferMeta {
	return TransferMeta{Kind: MetaKindRefill}
}

// ProductRefillMeta tags a refill that settles a full-price card purchase.
func ProductRefillMeta(productID uuid.UUID) TransferMeta {
	return TransferMeta{Kind: MetaKindProductRefill, ProductID: &productID}
}

// PartialRefillMeta tags a refill for the card remainder of a partial payment,
// back-linking the already-completed balance leg.
func PartialRefillMeta(productID, balanceLegID uuid.UUID) TransferMeta {
	return TransferMeta{
		Kind:                MetaKindPartialRefill,
		ProductID:           &productID,
		LinkedTransactionID: &balanceLegID,
	}
}

// PurchaseMeta tags a product purchase leg.
func PurchaseMeta(productID uuid.UUID) TransferMeta {
	return TransferMeta{Kind: MetaKindPurchase, ProductID: &productID}
}

// PartialPurchaseMeta tags the balance-covered leg of a split payment.
func PartialPurchaseMeta(productID uuid.UUID) TransferMeta {
	return TransferMeta{Kind: MetaKindPartialPurchase, ProductID: &productID}
}

// HasProduct reports whether this meta carries a purchase intent.
func (m TransferMeta) HasProduct() bool {
	return m.ProductID != nil
}

// IsPartial reports whether a balance-covered leg completed before this one.
func (m TransferMeta) IsPartial() bool {
	return m.Kind == MetaKindPartialRefill && m.LinkedTransactionID != nil
}

// Transaction is an immutable dual-entry ledger record. Once terminal, the only
// permitted mutation is meta annotation within the commit that produced the
// terminal state.
type Transaction struct {
	ID                uuid.UUID       `json:"id"`
	Type              TransferType    `json:"type"`
	State             TransferState   `json:"state"`
	AccountAID        uuid.UUID       `json:"account_a_id"` // source
	AccountBID        uuid.UUID       `json:"account_b_id"` // destination
	AmountOut         decimal.Decimal `json:"amount_out"`
	AmountIn          decimal.Decimal `json:"amount_in"` // equal to AmountOut: no fees, no FX
	Currency          string          `json:"currency"`
	Meta              TransferMeta    `json:"meta"`
	ProviderSessionID *string         `json:"provider_session_id,omitempty"`
	PaymentIntentID   *string         `json:"payment_intent_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// IsTerminal returns true if the transaction reached a final state.
func (t *Transaction) IsTerminal() bool {
	return t.State == TransferStateCompleted || t.State == TransferStateFailed
}

// CanComplete returns true while the transaction is still in its initial state.
func (t *Transaction) CanComplete() bool {
	return t.State == TransferStateHold || t.State == TransferStatePending
}
