package models

import (
	"time"

	"github.com/uptrace/bun"
)

// TicketSale is one purchased unit. Rows are never updated after insert.
type TicketSale struct {
	bun.BaseModel `bun:"table:ticket_sales,alias:ts"`

	ID              string       `bun:"id,pk" json:"id"`
	UserID          string       `bun:"user_id,nullzero" json:"user_id,omitempty"`
	CustomerEmail   string       `bun:"customer_email,notnull" json:"customer_email"`
	StripePaymentID string       `bun:"stripe_payment_id,nullzero" json:"stripe_payment_id,omitempty"`
	TicketID        string       `bun:"ticket_id,notnull" json:"ticket_id"`
	Metadata        SaleMetadata `bun:"metadata,type:jsonb" json:"metadata"`
	CreatedAt       time.Time    `bun:"created_at,notnull" json:"created_at"`
}

type SaleMetadata struct {
	PricePaid   float64 `json:"price_paid"`
	Currency    string  `json:"currency"`
	PurchasedAt int64   `json:"purchased_at"`
}
