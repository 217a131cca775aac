package stripe

import (
	"context"
	"errors"
	"fmt"

	"ms-camp-tickets/internal/logger"

	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// APIError wraps every failure surfaced by the payment gateway.
type APIError struct {
	Message string
	Err     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe API error: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func wrapAPIError(err error) error {
	msg := err.Error()
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		msg = stripeErr.Msg
	}
	return &APIError{Message: msg, Err: err}
}

// CheckoutSession is the part of a Stripe checkout session the purchase flow reads.
type CheckoutSession struct {
	ID        string
	LineItems []LineItem
}

type LineItem struct {
	ProductID   string
	ProductName string
	Quantity    int64
	// UnitAmount is in minor currency units
	UnitAmount int64
	Currency   string
}

// Gateway talks to Stripe through one explicitly configured client.
type Gateway struct {
	api *client.API
	log *logger.Logger
}

// NewGateway builds a client for apiKey. nil backends means the Stripe defaults.
func NewGateway(apiKey string, backends *stripego.Backends, log *logger.Logger) *Gateway {
	return &Gateway{
		api: client.New(apiKey, backends),
		log: log,
	}
}

// RetrieveCheckoutSession re-fetches a session with its line items and products expanded.
func (g *Gateway) RetrieveCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripego.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("line_items")
	params.AddExpand("line_items.data.price.product")

	session, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to retrieve checkout session %s: %v", sessionID, err))
		return nil, wrapAPIError(err)
	}

	return toCheckoutSession(session), nil
}

func toCheckoutSession(session *stripego.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{ID: session.ID}
	if session.LineItems == nil {
		return out
	}

	for _, item := range session.LineItems.Data {
		if item == nil || item.Price == nil || item.Price.Product == nil || item.Quantity <= 0 {
			continue
		}
		currency := string(item.Price.Currency)
		if currency == "" {
			currency = string(item.Currency)
		}
		out.LineItems = append(out.LineItems, LineItem{
			ProductID:   item.Price.Product.ID,
			ProductName: item.Price.Product.Name,
			Quantity:    item.Quantity,
			UnitAmount:  item.Price.UnitAmount,
			Currency:    currency,
		})
	}
	return out
}

// DeactivatePaymentLink marks the link inactive. The outcome is logged and
// reported, never returned as an error.
func (g *Gateway) DeactivatePaymentLink(ctx context.Context, paymentLinkID string) bool {
	params := &stripego.PaymentLinkParams{Active: stripego.Bool(false)}
	params.Context = ctx

	if _, err := g.api.PaymentLinks.Update(paymentLinkID, params); err != nil {
		g.log.Error("STRIPE", fmt.Sprintf("Failed to deactivate payment link %s: %v", paymentLinkID, wrapAPIError(err)))
		return false
	}

	g.log.Info("STRIPE", fmt.Sprintf("Payment link %s has been deactivated due to sales limit", paymentLinkID))
	return true
}
