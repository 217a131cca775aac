package tickets

import (
	"context"
	"fmt"
	"strings"

	"ms-camp-tickets/internal/logger"
	"ms-camp-tickets/internal/models"
	"ms-camp-tickets/internal/notifications/email"
	paystripe "ms-camp-tickets/internal/payment/stripe"
)

// TicketStore is the persistence the purchase flow needs.
type TicketStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetOrCreateTicket(ctx context.Context, defaults models.Ticket) (*models.Ticket, bool, error)
	CreateSales(ctx context.Context, sales []models.TicketSale) error
	CountSales(ctx context.Context, ticketID string) (int, error)
	GrantAchievement(ctx context.Context, userID, achievementCode string) (bool, error)
}

// PaymentGateway is the part of the Stripe client the purchase flow needs.
type PaymentGateway interface {
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (*paystripe.CheckoutSession, error)
	DeactivatePaymentLink(ctx context.Context, paymentLinkID string) bool
}

// Notifier hands a confirmation email to the background queue.
type Notifier interface {
	Dispatch(ctx context.Context, templateName, recipient string, data email.ConfirmationData) error
}

// CheckoutCompleted is the webhook's view of a finished checkout session.
type CheckoutCompleted struct {
	SessionID       string
	CustomerEmail   string
	PaymentIntentID string
	// Created is the session creation time in unix seconds
	Created int64
}

type PurchaseResult struct {
	TicketsCreated      int
	SalesRecorded       int
	LinksDeactivated    int
	AchievementsGranted int
	TemplatesNotified   int
}

type PurchaseService struct {
	DB       TicketStore
	Gateway  PaymentGateway
	Notifier Notifier
	Logger   *logger.Logger
}

func NewPurchaseService(db TicketStore, gateway PaymentGateway, notifier Notifier, log *logger.Logger) *PurchaseService {
	return &PurchaseService{DB: db, Gateway: gateway, Notifier: notifier, Logger: log}
}

// ProcessCheckoutSession records every purchased unit of the session.
// Rows written before a failure stay committed.
func (s *PurchaseService) ProcessCheckoutSession(ctx context.Context, in CheckoutCompleted) (*PurchaseResult, error) {
	customerEmail := strings.ToLower(strings.TrimSpace(in.CustomerEmail))
	result := &PurchaseResult{}

	user, err := s.DB.FindUserByEmail(ctx, customerEmail)
	if err != nil {
		return result, fmt.Errorf("failed to look up user %s: %w", customerEmail, err)
	}
	if user == nil {
		s.Logger.Info("TICKETS", fmt.Sprintf("No account for %s, recording sales without user", customerEmail))
	}

	session, err := s.Gateway.RetrieveCheckoutSession(ctx, in.SessionID)
	if err != nil {
		return result, err
	}

	var templates []string
	seenTemplates := make(map[string]bool)
	var ticketNames []string

	for _, item := range session.LineItems {
		if item.Quantity <= 0 {
			s.Logger.Warn("TICKETS", fmt.Sprintf("Skipping line item for %s with quantity %d", item.ProductID, item.Quantity))
			continue
		}
		ticket, created, err := s.DB.GetOrCreateTicket(ctx, models.Ticket{
			Code:            item.ProductID,
			Name:            item.ProductName,
			StripeProductID: item.ProductID,
			LimitQuantity:   models.UnlimitedQuantity,
		})
		if err != nil {
			return result, fmt.Errorf("failed to resolve ticket for product %s: %w", item.ProductID, err)
		}
		if created {
			result.TicketsCreated++
			s.Logger.Info("TICKETS", fmt.Sprintf("Created ticket %s for new product %s", ticket.Code, item.ProductID))
		}
		ticketNames = append(ticketNames, ticket.Name)

		sales := make([]models.TicketSale, 0, item.Quantity)
		for i := int64(0); i < item.Quantity; i++ {
			sale := models.TicketSale{
				CustomerEmail:   customerEmail,
				StripePaymentID: in.PaymentIntentID,
				TicketID:        ticket.ID,
				Metadata: models.SaleMetadata{
					PricePaid:   float64(item.UnitAmount) / 100,
					Currency:    item.Currency,
					PurchasedAt: in.Created,
				},
			}
			if user != nil {
				sale.UserID = user.ID
			}
			sales = append(sales, sale)
		}
		if err := s.DB.CreateSales(ctx, sales); err != nil {
			return result, fmt.Errorf("failed to record sales for ticket %s: %w", ticket.Code, err)
		}
		result.SalesRecorded += len(sales)
		s.Logger.LogDatabase("INSERT", "ticket_sales", fmt.Sprintf("%d sale(s) of %s for %s", len(sales), ticket.Code, customerEmail))

		deactivated, err := s.enforceLimit(ctx, ticket)
		if err != nil {
			return result, err
		}
		if deactivated {
			result.LinksDeactivated++
		}

		if user != nil && ticket.AchievementCode != "" {
			granted, err := s.DB.GrantAchievement(ctx, user.ID, ticket.AchievementCode)
			if err != nil {
				return result, fmt.Errorf("failed to grant achievement %s: %w", ticket.AchievementCode, err)
			}
			if granted {
				result.AchievementsGranted++
				s.Logger.Info("TICKETS", fmt.Sprintf("Granted achievement %s to user %s", ticket.AchievementCode, user.ID))
			}
		}

		if ticket.EmailTemplate != "" && !seenTemplates[ticket.EmailTemplate] {
			seenTemplates[ticket.EmailTemplate] = true
			templates = append(templates, ticket.EmailTemplate)
		}
	}

	data := email.ConfirmationData{
		User:       user,
		Email:      customerEmail,
		PaymentID:  in.PaymentIntentID,
		Tickets:    ticketNames,
		SalesCount: result.SalesRecorded,
	}
	for _, tmpl := range templates {
		if err := s.Notifier.Dispatch(ctx, tmpl, customerEmail, data); err != nil {
			s.Logger.Error("EMAIL", fmt.Sprintf("Failed to dispatch %s to %s: %v", tmpl, customerEmail, err))
			continue
		}
		result.TemplatesNotified++
	}

	return result, nil
}

// enforceLimit deactivates the purchase link once a limited ticket sells out.
// Tickets without a link are never checked.
func (s *PurchaseService) enforceLimit(ctx context.Context, ticket *models.Ticket) (bool, error) {
	if !ticket.IsLimited() || ticket.StripePaymentLinkID == "" {
		return false, nil
	}

	count, err := s.DB.CountSales(ctx, ticket.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count sales for ticket %s: %w", ticket.Code, err)
	}
	if count < ticket.LimitQuantity {
		return false, nil
	}

	s.Logger.Info("TICKETS", fmt.Sprintf("Ticket %s reached its limit (%d/%d)", ticket.Code, count, ticket.LimitQuantity))
	return s.Gateway.DeactivatePaymentLink(ctx, ticket.StripePaymentLinkID), nil
}
