package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is read-only pricing input owned by an external catalog.
type Product struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	SellerUserID uuid.UUID       `json:"seller_user_id"`
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
}

// IsPurchasable returns true if the product can currently be bought.
func (p *Product) IsPurchasable() bool {
	return p.Active
}
