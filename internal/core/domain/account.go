package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds one user's cached balance and cumulative movement counters.
// Balance is a cache over the transaction history: eventually
// balance = incoming - outgoing within the audit tolerance. Only the account
// ledger mutates these fields, inside the same store transaction that moves a
// Transaction to COMPLETED.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
	Incoming  decimal.Decimal `json:"incoming"`
	Outgoing  decimal.Decimal `json:"outgoing"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CounterDrift returns balance - (incoming - outgoing), the deviation of the
// cached balance from its own movement counters.
func (a *Account) CounterDrift() decimal.Decimal {
	return a.Balance.Sub(a.Incoming.Sub(a.Outgoing))
}
