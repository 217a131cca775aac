package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ms-camp-tickets/internal/logger"
	paystripe "ms-camp-tickets/internal/payment/stripe"
	paywebhook "ms-camp-tickets/internal/payment/webhook"
	tickets "ms-camp-tickets/internal/tickets/service"
	"ms-camp-tickets/internal/utils"

	"github.com/go-chi/chi/v5"
	stripego "github.com/stripe/stripe-go/v82"
)

const (
	bodyOK             = "[ok]"
	bodyUnknownEvent   = "[unknown event]"
	bodyInvalidSession = "[invalid session]"
	bodyInternalError  = "[internal error]"
	bodyInProgress     = "[in progress]"
)

type EventVerifier interface {
	Verify(r *http.Request) (stripego.Event, error)
}

type PurchaseProcessor interface {
	ProcessCheckoutSession(ctx context.Context, in tickets.CheckoutCompleted) (*tickets.PurchaseResult, error)
}

// EventLedger tracks delivered events. It is optional.
type EventLedger interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
	MarkProcessed(ctx context.Context, eventID string) (bool, error)
}

type WebhookHandler struct {
	verifier  EventVerifier
	processor PurchaseProcessor
	ledger    EventLedger
	logger    *logger.Logger
}

func NewWebhookHandler(verifier EventVerifier, processor PurchaseProcessor, ledger EventLedger, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:  verifier,
		processor: processor,
		ledger:    ledger,
		logger:    logger,
	}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe/tickets", h.HandleTicketSale)
}

// HandleTicketSale answers Stripe checkout webhooks for ticket purchases.
func (h *WebhookHandler) HandleTicketSale(w http.ResponseWriter, r *http.Request) {
	event, err := h.verifier.Verify(r)
	if err != nil {
		var vErr *paywebhook.VerificationError
		if errors.As(err, &vErr) {
			h.logger.LogSecurity("WEBHOOK_REJECTED", vErr.Error())
			utils.WriteText(w, vErr.StatusCode, vErr.Message)
			return
		}
		h.logger.Error("WEBHOOK", fmt.Sprintf("Verification failed: %v", err))
		utils.WriteText(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("WEBHOOK", fmt.Sprintf("Received %s (%s)", event.Type, event.ID))

	if event.Type != stripego.EventTypeCheckoutSessionCompleted {
		utils.WriteText(w, http.StatusBadRequest, bodyUnknownEvent)
		return
	}

	ctx := r.Context()
	if h.alreadyProcessed(ctx, event.ID) {
		h.logger.Info("WEBHOOK", fmt.Sprintf("Event %s already processed, skipping", event.ID))
		utils.WriteText(w, http.StatusOK, bodyOK)
		return
	}

	in, err := checkoutCompleted(event)
	if err != nil {
		h.logger.Warn("WEBHOOK", fmt.Sprintf("Event %s: %v", event.ID, err))
		utils.WriteText(w, http.StatusBadRequest, bodyInvalidSession)
		return
	}

	if !h.claim(ctx, event.ID) {
		h.logger.Info("WEBHOOK", fmt.Sprintf("Event %s is being processed by another delivery", event.ID))
		utils.WriteText(w, http.StatusConflict, bodyInProgress)
		return
	}

	result, err := h.processor.ProcessCheckoutSession(ctx, in)
	if err != nil {
		h.release(ctx, event.ID)
		var apiErr *paystripe.APIError
		if errors.As(err, &apiErr) {
			h.logger.Error("STRIPE", fmt.Sprintf("Stripe API error: %s", apiErr.Message))
			utils.WriteText(w, http.StatusInternalServerError, "Stripe API error: "+apiErr.Message)
			return
		}
		h.logger.Error("WEBHOOK", fmt.Sprintf("Failed to process session %s: %v", in.SessionID, err))
		utils.WriteText(w, http.StatusInternalServerError, bodyInternalError)
		return
	}

	h.logger.Info("WEBHOOK", fmt.Sprintf(
		"Session %s for %s (created %s): %d sale(s), %d new ticket(s), %d link(s) deactivated, %d achievement(s), %d email(s)",
		in.SessionID, in.CustomerEmail, utils.UnixTimeToTime(in.Created).Format("2006-01-02 15:04:05"),
		result.SalesRecorded, result.TicketsCreated, result.LinksDeactivated, result.AchievementsGranted, result.TemplatesNotified))

	h.markProcessed(ctx, event.ID)
	utils.WriteText(w, http.StatusOK, bodyOK)
}

func checkoutCompleted(event stripego.Event) (tickets.CheckoutCompleted, error) {
	session, err := paywebhook.CheckoutSessionFromEvent(event)
	if err != nil {
		return tickets.CheckoutCompleted{}, err
	}
	if session.ID == "" {
		return tickets.CheckoutCompleted{}, errors.New("session has no id")
	}
	if session.CustomerDetails == nil || strings.TrimSpace(session.CustomerDetails.Email) == "" {
		return tickets.CheckoutCompleted{}, fmt.Errorf("session %s has no customer email", session.ID)
	}

	in := tickets.CheckoutCompleted{
		SessionID:     session.ID,
		CustomerEmail: session.CustomerDetails.Email,
		Created:       session.Created,
	}
	if session.PaymentIntent != nil {
		in.PaymentIntentID = session.PaymentIntent.ID
	}
	return in, nil
}

func (h *WebhookHandler) alreadyProcessed(ctx context.Context, eventID string) bool {
	if h.ledger == nil {
		return false
	}
	seen, err := h.ledger.IsProcessed(ctx, eventID)
	if err != nil {
		h.logger.Warn("REDIS", fmt.Sprintf("Event ledger unavailable, processing %s anyway: %v", eventID, err))
		return false
	}
	return seen
}

// claim reports false only when another delivery holds the event.
func (h *WebhookHandler) claim(ctx context.Context, eventID string) bool {
	if h.ledger == nil {
		return true
	}
	ok, err := h.ledger.Claim(ctx, eventID)
	if err != nil {
		h.logger.Warn("REDIS", fmt.Sprintf("Event ledger unavailable, processing %s unclaimed: %v", eventID, err))
		return true
	}
	return ok
}

func (h *WebhookHandler) release(ctx context.Context, eventID string) {
	if h.ledger == nil {
		return
	}
	if err := h.ledger.Release(ctx, eventID); err != nil {
		h.logger.Warn("REDIS", fmt.Sprintf("Failed to release event %s: %v", eventID, err))
	}
}

func (h *WebhookHandler) markProcessed(ctx context.Context, eventID string) {
	if h.ledger == nil {
		return
	}
	if _, err := h.ledger.MarkProcessed(ctx, eventID); err != nil {
		h.logger.Warn("REDIS", fmt.Sprintf("Failed to record event %s: %v", eventID, err))
	}
}
