package comment_api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ms-camp-tickets/internal/comments/db"
	"ms-camp-tickets/internal/logger"
	"ms-camp-tickets/internal/models"
	"ms-camp-tickets/internal/utils"

	"github.com/go-chi/chi/v5"
)

type HistoryReader interface {
	ListHistory(ctx context.Context, commentID string, limit int) ([]models.HistoricalComment, error)
	LatestHistory(ctx context.Context, commentID string) (*models.HistoricalComment, error)
}

type Handler struct {
	DB     HistoryReader
	Logger *logger.Logger
}

func NewHandler(reader HistoryReader, log *logger.Logger) *Handler {
	return &Handler{DB: reader, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/comments/{commentId}/history", h.ListHistory)
	r.Get("/api/comments/{commentId}/history/latest", h.LatestHistory)
}

// ListHistory accepts an optional ?limit=N.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	commentID := chi.URLParam(r, "commentId")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid limit", raw))
			return
		}
		limit = n
	}

	rows, err := h.DB.ListHistory(r.Context(), commentID, limit)
	if err != nil {
		h.Logger.Error("DATABASE", fmt.Sprintf("Failed to list history of comment %s: %v", commentID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to list history", err.Error()))
		return
	}
	if rows == nil {
		rows = []models.HistoricalComment{}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Comment history", rows))
}

func (h *Handler) LatestHistory(w http.ResponseWriter, r *http.Request) {
	commentID := chi.URLParam(r, "commentId")

	row, err := h.DB.LatestHistory(r.Context(), commentID)
	if errors.Is(err, db.ErrNoHistory) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("No history", commentID))
		return
	}
	if err != nil {
		h.Logger.Error("DATABASE", fmt.Sprintf("Failed to load latest history of comment %s: %v", commentID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to load history", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Latest comment history", row))
}
