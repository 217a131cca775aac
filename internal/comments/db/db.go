package db

import (
	"context"
	"database/sql"
	"errors"

	"ms-camp-tickets/internal/models"

	"github.com/uptrace/bun"
)

const DefaultHistoryLimit = 50

var ErrNoHistory = errors.New("comment has no history")

// HistoryStore reads the comment audit table newest first.
type HistoryStore struct {
	Bun *bun.DB
}

func latestFirst(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Order("hc.history_date DESC", "hc.history_id DESC")
}

// ListHistory returns up to limit audit rows of a comment. limit <= 0 means DefaultHistoryLimit.
func (s *HistoryStore) ListHistory(ctx context.Context, commentID string, limit int) ([]models.HistoricalComment, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var rows []models.HistoricalComment
	err := s.Bun.NewSelect().
		Model(&rows).
		Where("hc.id = ?", commentID).
		Apply(latestFirst).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LatestHistory returns the most recent audit row of a comment.
func (s *HistoryStore) LatestHistory(ctx context.Context, commentID string) (*models.HistoricalComment, error) {
	var row models.HistoricalComment
	err := s.Bun.NewSelect().
		Model(&row).
		Where("hc.id = ?", commentID).
		Apply(latestFirst).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
