package dto

import (
	"time"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// CreditRequest is the request body for crediting a user's account.
type CreditRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// DebitRequest is the request body for debiting a user's account. When
// productId is set the debit is a balance purchase and amount is ignored:
// the product price decides the figure.
type DebitRequest struct {
	Amount    string     `json:"amount,omitempty"`
	ProductID *uuid.UUID `json:"productId,omitempty"`
}

// PaymentURLRequest is the request body for opening a checkout session.
type PaymentURLRequest struct {
	UserID    uuid.UUID  `json:"userId" binding:"required"`
	ProductID *uuid.UUID `json:"productId,omitempty"`
}

// CreateOrderRequest is the request body for a balance-funded order.
type CreateOrderRequest struct {
	UserID    uuid.UUID `json:"userId" binding:"required"`
	ProductID uuid.UUID `json:"productId" binding:"required"`
}

// PaymentLinkResponse is the response body for a created checkout session.
type PaymentLinkResponse struct {
	URL             string `json:"url"`
	TransactionID   string `json:"transactionId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// NewPaymentLinkResponse maps a payment link to its response body.
func NewPaymentLinkResponse(link *ports.PaymentLink) PaymentLinkResponse {
	return PaymentLinkResponse{
		URL:             link.URL,
		TransactionID:   link.TransactionID.String(),
		PaymentIntentID: link.PaymentIntentID,
	}
}

// WebhookAck acknowledges receipt of a provider event.
type WebhookAck struct {
	Received bool `json:"received"`
}

// DebitResponse pairs the debit transaction with the order it produced,
// if the debit was a product purchase.
type DebitResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	OrderID     *string             `json:"orderId,omitempty"`
}

// TransactionResponse is the response body for a ledger transaction.
// Amounts render as decimal strings.
type TransactionResponse struct {
	ID                string              `json:"id"`
	Type              string              `json:"type"`
	State             string              `json:"state"`
	AccountAID        string              `json:"account_a_id"`
	AccountBID        string              `json:"account_b_id"`
	AmountOut         string              `json:"amount_out"`
	AmountIn          string              `json:"amount_in"`
	Currency          string              `json:"currency"`
	Meta              domain.TransferMeta `json:"meta"`
	ProviderSessionID *string             `json:"provider_session_id,omitempty"`
	PaymentIntentID   *string             `json:"payment_intent_id,omitempty"`
	CreatedAt         string              `json:"created_at"`
	CompletedAt       *string             `json:"completed_at,omitempty"`
}

// NewTransactionResponse maps a domain transaction to its response body.
func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                t.ID.String(),
		Type:              string(t.Type),
		State:             string(t.State),
		AccountAID:        t.AccountAID.String(),
		AccountBID:        t.AccountBID.String(),
		AmountOut:         t.AmountOut.String(),
		AmountIn:          t.AmountIn.String(),
		Currency:          t.Currency,
		Meta:              t.Meta,
		ProviderSessionID: t.ProviderSessionID,
		PaymentIntentID:   t.PaymentIntentID,
		CreatedAt:         t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.CompletedAt != nil {
		completed := t.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	return resp
}

// NewTransactionListResponse maps a transaction slice to response bodies.
func NewTransactionListResponse(txns []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, NewTransactionResponse(&txns[i]))
	}
	return out
}

// AccountResponse is the response body for an account.
type AccountResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	Incoming  string `json:"incoming"`
	Outgoing  string `json:"outgoing"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// NewAccountResponse maps a domain account to its response body.
func NewAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID.String(),
		UserID:    a.UserID.String(),
		Currency:  a.Currency,
		Balance:   a.Balance.String(),
		Incoming:  a.Incoming.String(),
		Outgoing:  a.Outgoing.String(),
		CreatedAt: a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// AuditResponse is the response body for a balance reconciliation report.
type AuditResponse struct {
	AccountID         string `json:"account_id"`
	CurrentBalance    string `json:"current_balance"`
	CalculatedBalance string `json:"calculated_balance"`
	Difference        string `json:"difference"`
	IsValid           bool   `json:"is_valid"`
}

// NewAuditResponse maps a reconciliation report to its response body.
func NewAuditResponse(r *domain.BalanceAudit) AuditResponse {
	return AuditResponse{
		AccountID:         r.AccountID.String(),
		CurrentBalance:    r.CurrentBalance.String(),
		CalculatedBalance: r.CalculatedBalance.String(),
		Difference:        r.Difference.String(),
		IsValid:           r.IsValid,
	}
}

// OrderResponse is the response body for an order.
type OrderResponse struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	BuyerUserID  string `json:"buyer_user_id"`
	SellerUserID string `json:"seller_user_id"`
	TotalPrice   string `json:"total_price"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

// NewOrderResponse maps a domain order to its response body.
func NewOrderResponse(o *domain.Order) OrderResponse {
	return OrderResponse{
		ID:           o.ID.String(),
		ProductID:    o.ProductID.String(),
		BuyerUserID:  o.BuyerUserID.String(),
		SellerUserID: o.SellerUserID.String(),
		TotalPrice:   o.TotalPrice.String(),
		Currency:     o.Currency,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ProductResponse is the response body for a catalog product.
type ProductResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	Currency     string `json:"currency"`
	SellerUserID string `json:"seller_user_id"`
	Active       bool   `json:"active"`
}

// NewProductListResponse maps catalog products to response bodies.
func NewProductListResponse(products []domain.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, ProductResponse{
			ID:           p.ID.String(),
			Name:         p.Name,
			Price:        p.Price.String(),
			Currency:     p.Currency,
			SellerUserID: p.SellerUserID.String(),
			Active:       p.Active,
		})
	}
	return out
}
