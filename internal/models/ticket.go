package models

import (
	"time"

	"github.com/uptrace/bun"
)

// UnlimitedQuantity marks a ticket without a sales cap.
const UnlimitedQuantity = -1

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ID                  string    `bun:"id,pk" json:"id"`
	Code                string    `bun:"code,unique,notnull" json:"code"`
	Name                string    `bun:"name,notnull" json:"name"`
	StripeProductID     string    `bun:"stripe_product_id,unique,notnull" json:"stripe_product_id"`
	StripePaymentLinkID string    `bun:"stripe_payment_link_id,nullzero" json:"stripe_payment_link_id,omitempty"`
	LimitQuantity       int       `bun:"limit_quantity,notnull" json:"limit_quantity"`
	AchievementCode     string    `bun:"achievement_code,nullzero" json:"achievement_code,omitempty"`
	EmailTemplate       string    `bun:"email_template,nullzero" json:"email_template,omitempty"`
	CreatedAt           time.Time `bun:"created_at,notnull" json:"created_at"`
}

// IsLimited reports whether sales of the ticket are capped.
func (t *Ticket) IsLimited() bool {
	return t.LimitQuantity >= 0
}

type TicketSummary struct {
	Ticket    `bun:",extend"`
	SoldCount int `bun:"sold_count" json:"sold_count"`
}
