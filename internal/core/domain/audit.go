package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceAudit is the result of reconciling an account's cached balance
// against the balance recomputed from completed transaction history.
type BalanceAudit struct {
	AccountID         uuid.UUID       `json:"account_id"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	CalculatedBalance decimal.Decimal `json:"calculated_balance"`
	Difference        decimal.Decimal `json:"difference"`
	IsValid           bool            `json:"is_valid"`
}
