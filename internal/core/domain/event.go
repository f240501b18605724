package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a post-commit notification.
type EventType string

const (
	EventBalanceChanged     EventType = "balance.changed"
	EventTransactionChanged EventType = "transaction.changed"
	EventOrderCreated       EventType = "order.created"
)

// Event is a post-commit notification. Events are collected while a store
// transaction is open and drained to the publisher strictly after commit, so
// listeners only ever observe durable state.
type Event struct {
	Type          EventType  `json:"type"`
	AccountID     *uuid.UUID `json:"account_id,omitempty"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
	OrderID       *uuid.UUID `json:"order_id,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// BalanceChanged builds a balance.changed event for one account.
func BalanceChanged(accountID uuid.UUID) Event {
	return Event{Type: EventBalanceChanged, AccountID: &accountID, OccurredAt: time.Now().UTC()}
}

// TransactionChanged builds a transaction.changed event.
func TransactionChanged(transactionID uuid.UUID) Event {
	return Event{Type: EventTransactionChanged, TransactionID: &transactionID, OccurredAt: time.Now().UTC()}
}

// OrderCreated builds an order.created event.
func OrderCreated(orderID uuid.UUID) Event {
	return Event{Type: EventOrderCreated, OrderID: &orderID, OccurredAt: time.Now().UTC()}
}
