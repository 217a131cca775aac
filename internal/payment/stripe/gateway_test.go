package stripe_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"ms-camp-tickets/internal/logger"
	paystripe "ms-camp-tickets/internal/payment/stripe"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripego "github.com/stripe/stripe-go/v82"
)

const checkoutSessionJSON = `{
  "id": "cs_test_1",
  "object": "checkout.session",
  "line_items": {
    "object": "list",
    "has_more": false,
    "data": [
      {
        "id": "li_1",
        "object": "item",
        "quantity": 2,
        "currency": "rub",
        "price": {
          "id": "price_1",
          "object": "price",
          "unit_amount": 1500000,
          "currency": "rub",
          "product": {"id": "prod_camp", "object": "product", "name": "Camp 2025"}
        }
      }
    ]
  }
}`

func newGateway(t *testing.T, r http.Handler) *paystripe.Gateway {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	backend := stripego.GetBackendWithConfig(stripego.APIBackend, &stripego.BackendConfig{
		URL:               stripego.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelNull},
	})
	return paystripe.NewGateway("sk_test_123", &stripego.Backends{API: backend}, logger.NewWithWriters(nil, nil))
}

func TestRetrieveCheckoutSessionExpandsLineItems(t *testing.T) {
	var expands []string
	r := chi.NewRouter()
	r.Get("/v1/checkout/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "cs_test_1", chi.URLParam(req, "id"))
		assert.Equal(t, "Bearer sk_test_123", req.Header.Get("Authorization"))
		for key, values := range req.URL.Query() {
			if strings.HasPrefix(key, "expand") {
				expands = append(expands, values...)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(checkoutSessionJSON))
	})

	session, err := newGateway(t, r).RetrieveCheckoutSession(context.Background(), "cs_test_1")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"line_items", "line_items.data.price.product"}, expands)
	assert.Equal(t, "cs_test_1", session.ID)
	require.Len(t, session.LineItems, 1)
	assert.Equal(t, paystripe.LineItem{
		ProductID:   "prod_camp",
		ProductName: "Camp 2025",
		Quantity:    2,
		UnitAmount:  1500000,
		Currency:    "rub",
	}, session.LineItems[0])
}

func TestRetrieveCheckoutSessionSkipsEmptyLineItems(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v1/checkout/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "id": "cs_test_2",
  "object": "checkout.session",
  "line_items": {
    "object": "list",
    "data": [
      {"id": "li_0", "object": "item", "quantity": 0,
       "price": {"id": "price_0", "object": "price", "unit_amount": 100, "currency": "rub",
                 "product": {"id": "prod_zero", "object": "product", "name": "Zero"}}},
      {"id": "li_neg", "object": "item", "quantity": -1,
       "price": {"id": "price_neg", "object": "price", "unit_amount": 100, "currency": "rub",
                 "product": {"id": "prod_neg", "object": "product", "name": "Negative"}}},
      {"id": "li_1", "object": "item", "quantity": 1,
       "price": {"id": "price_1", "object": "price", "unit_amount": 100, "currency": "rub",
                 "product": {"id": "prod_camp", "object": "product", "name": "Camp 2025"}}}
    ]
  }
}`))
	})

	session, err := newGateway(t, r).RetrieveCheckoutSession(context.Background(), "cs_test_2")
	require.NoError(t, err)

	require.Len(t, session.LineItems, 1)
	assert.Equal(t, "prod_camp", session.LineItems[0].ProductID)
}

func TestRetrieveCheckoutSessionWrapsAPIErrors(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v1/checkout/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such checkout.session: cs_missing"}}`))
	})

	_, err := newGateway(t, r).RetrieveCheckoutSession(context.Background(), "cs_missing")
	require.Error(t, err)

	var apiErr *paystripe.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "No such checkout.session: cs_missing", apiErr.Message)
}

func TestDeactivatePaymentLink(t *testing.T) {
	var form url.Values
	r := chi.NewRouter()
	r.Post("/v1/payment_links/{id}", func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		form, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"plink_1","object":"payment_link","active":false}`))
	})

	ok := newGateway(t, r).DeactivatePaymentLink(context.Background(), "plink_1")

	assert.True(t, ok)
	assert.Equal(t, "false", form.Get("active"))
}

func TestDeactivatePaymentLinkFailureReturnsFalse(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/v1/payment_links/{id}", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"No such payment link"}}`))
	})

	assert.False(t, newGateway(t, r).DeactivatePaymentLink(context.Background(), "plink_missing"))
}
