package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ms-camp-tickets/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ErrTicketNotFound = errors.New("ticket not found")

type DB struct {
	Bun *bun.DB
}

// ---------------- USERS ----------------

// FindUserByEmail → oldest account whose email matches case-insensitively, nil when none
func (d *DB) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("LOWER(u.email) = ?", strings.ToLower(email)).
		Order("u.created_at ASC", "u.id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ---------------- TICKETS ----------------

// GetOrCreateTicket → insert defaults unless a ticket for the same Stripe
// product exists, then read the stored row back. The bool reports creation.
func (d *DB) GetOrCreateTicket(ctx context.Context, defaults models.Ticket) (*models.Ticket, bool, error) {
	if defaults.ID == "" {
		defaults.ID = uuid.NewString()
	}
	if defaults.CreatedAt.IsZero() {
		defaults.CreatedAt = time.Now().UTC()
	}

	res, err := d.Bun.NewInsert().
		Model(&defaults).
		On("CONFLICT (stripe_product_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}
	created := false
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		created = true
	}

	var ticket models.Ticket
	err = d.Bun.NewSelect().
		Model(&ticket).
		Where("t.stripe_product_id = ?", defaults.StripeProductID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, false, err
	}
	return &ticket, created, nil
}

// GetTicketByCode → ErrTicketNotFound when no ticket carries the code
func (d *DB) GetTicketByCode(ctx context.Context, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("t.code = ?", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ListTickets → every ticket with the number of recorded sales
func (d *DB) ListTickets(ctx context.Context) ([]models.TicketSummary, error) {
	var summaries []models.TicketSummary
	err := d.Bun.NewSelect().
		Model(&summaries).
		ColumnExpr("t.*").
		ColumnExpr("(SELECT COUNT(*) FROM ticket_sales AS ts WHERE ts.ticket_id = t.id) AS sold_count").
		Order("t.created_at ASC", "t.code ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// ---------------- SALES ----------------

// CreateSales → insert all sale rows in one statement
func (d *DB) CreateSales(ctx context.Context, sales []models.TicketSale) error {
	if len(sales) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range sales {
		if sales[i].ID == "" {
			sales[i].ID = uuid.NewString()
		}
		if sales[i].CreatedAt.IsZero() {
			sales[i].CreatedAt = now
		}
	}
	_, err := d.Bun.NewInsert().Model(&sales).Exec(ctx)
	return err
}

// CountSales → number of sales recorded for a ticket
func (d *DB) CountSales(ctx context.Context, ticketID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.TicketSale)(nil)).
		Where("ts.ticket_id = ?", ticketID).
		Count(ctx)
}

// ListSalesByTicketCode → sales of a ticket, newest first
func (d *DB) ListSalesByTicketCode(ctx context.Context, code string) ([]models.TicketSale, error) {
	ticket, err := d.GetTicketByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	var sales []models.TicketSale
	err = d.Bun.NewSelect().
		Model(&sales).
		Where("ts.ticket_id = ?", ticket.ID).
		Order("ts.created_at DESC", "ts.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return sales, nil
}

// ---------------- ACHIEVEMENTS ----------------

// GrantAchievement → record the pair unless it already exists. The bool
// reports a new grant.
func (d *DB) GrantAchievement(ctx context.Context, userID, achievementCode string) (bool, error) {
	grant := models.UserAchievement{
		ID:              uuid.NewString(),
		UserID:          userID,
		AchievementCode: achievementCode,
		CreatedAt:       time.Now().UTC(),
	}
	res, err := d.Bun.NewInsert().
		Model(&grant).
		On("CONFLICT (user_id, achievement_code) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
