package ticket_api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-camp-tickets/internal/auth"
	"ms-camp-tickets/internal/logger"
	"ms-camp-tickets/internal/models"
	"ms-camp-tickets/internal/tickets/db"
	qr "ms-camp-tickets/internal/tickets/qr_generator"
	"ms-camp-tickets/internal/utils"

	"github.com/go-chi/chi/v5"
)

type TicketReader interface {
	ListTickets(ctx context.Context) ([]models.TicketSummary, error)
	ListSalesByTicketCode(ctx context.Context, code string) ([]models.TicketSale, error)
}

type Handler struct {
	DB          TicketReader
	QRGenerator *qr.QRGenerator
	Logger      *logger.Logger
}

func NewHandler(reader TicketReader, qrGen *qr.QRGenerator, log *logger.Logger) *Handler {
	return &Handler{DB: reader, QRGenerator: qrGen, Logger: log}
}

// RegisterRoutes mounts the staff ticket endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/tickets", h.ListTickets)
	r.Get("/api/tickets/{code}/sales", h.ListSales)
	r.Post("/api/tickets/passes/verify", h.VerifyPass)
}

type saleView struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id,omitempty"`
	CustomerEmail   string    `json:"customer_email"`
	StripePaymentID string    `json:"stripe_payment_id,omitempty"`
	PricePaid       float64   `json:"price_paid"`
	Currency        string    `json:"currency"`
	PurchasedAt     time.Time `json:"purchased_at"`
	CreatedAt       time.Time `json:"created_at"`
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.DB.ListTickets(r.Context())
	if err != nil {
		h.Logger.Error("TICKETS", fmt.Sprintf("Failed to list tickets: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list tickets", err.Error()))
		return
	}
	if summaries == nil {
		summaries = []models.TicketSummary{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tickets", summaries))
}

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	sales, err := h.DB.ListSalesByTicketCode(r.Context(), code)
	if errors.Is(err, db.ErrTicketNotFound) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Ticket not found", code))
		return
	}
	if err != nil {
		h.Logger.Error("TICKETS", fmt.Sprintf("Failed to list sales of %s: %v", code, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list sales", err.Error()))
		return
	}

	views := make([]saleView, 0, len(sales))
	for _, s := range sales {
		views = append(views, saleView{
			ID:              s.ID,
			UserID:          s.UserID,
			CustomerEmail:   s.CustomerEmail,
			StripePaymentID: s.StripePaymentID,
			PricePaid:       s.Metadata.PricePaid,
			Currency:        s.Metadata.Currency,
			PurchasedAt:     utils.UnixTimeToTime(s.Metadata.PurchasedAt),
			CreatedAt:       s.CreatedAt,
		})
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(fmt.Sprintf("Sales of %s", code), views))
}

// VerifyPass decodes the QR pass shown at the camp entrance.
// Expected POST request body: {"encrypted_qr": "token"}
func (h *Handler) VerifyPass(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		EncryptedQR string `json:"encrypted_qr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil || requestBody.EncryptedQR == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "encrypted_qr is required"))
		return
	}

	if h.QRGenerator == nil {
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Pass verification disabled", "QR_SECRET_KEY not set"))
		return
	}

	pass, err := h.QRGenerator.DecryptPass(requestBody.EncryptedQR)
	if err != nil {
		h.Logger.LogSecurity("PASS_REJECTED", fmt.Sprintf("scanner %s: %v", auth.UserID(r.Context()), err))
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("Invalid pass", err.Error()))
		return
	}

	h.Logger.Info("TICKETS", fmt.Sprintf("Pass for %s verified by %s", pass.Email, auth.UserID(r.Context())))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Pass verified", pass))
}
