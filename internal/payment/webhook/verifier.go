package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	stripego "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const maxBodyBytes = int64(65536)

var ErrMissingSecret = errors.New("webhook signing secret is not configured")

// VerificationError is safe to return to the caller as is.
type VerificationError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks the Stripe-Signature header against the body and parses the event.
func (v *Verifier) Verify(r *http.Request) (stripego.Event, error) {
	if v.secret == "" {
		return stripego.Event{}, &VerificationError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Webhook secret is not configured",
			Err:        ErrMissingSecret,
		}
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return stripego.Event{}, &VerificationError{StatusCode: http.StatusBadRequest, Message: "Invalid payload", Err: err}
	}
	if int64(len(payload)) > maxBodyBytes {
		return stripego.Event{}, &VerificationError{StatusCode: http.StatusBadRequest, Message: "Payload too large"}
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return stripego.Event{}, &VerificationError{StatusCode: http.StatusBadRequest, Message: "No Stripe-Signature header"}
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripego.Event{}, &VerificationError{StatusCode: http.StatusBadRequest, Message: "Invalid signature", Err: err}
	}
	return event, nil
}

// CheckoutSessionFromEvent decodes the session carried by a checkout event.
func CheckoutSessionFromEvent(event stripego.Event) (*stripego.CheckoutSession, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, errors.New("event carries no object")
	}
	var session stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	return &session, nil
}
