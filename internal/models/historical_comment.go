package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	HistoryCreated = "+"
	HistoryChanged = "~"
	HistoryDeleted = "-"
)

// HistoricalComment is one audit row of a comment. Rows are ordered newest
// first by (history_date, history_id).
type HistoricalComment struct {
	bun.BaseModel `bun:"table:comments_historicalcomment,alias:hc"`

	HistoryID           int64     `bun:"history_id,pk,autoincrement" json:"history_id"`
	HistoryDate         time.Time `bun:"history_date,notnull" json:"history_date"`
	HistoryChangeReason string    `bun:"history_change_reason,nullzero" json:"history_change_reason,omitempty"`
	HistoryType         string    `bun:"history_type,notnull" json:"history_type"`
	HistoryUserID       string    `bun:"history_user_id,nullzero" json:"history_user_id,omitempty"`
	CommentID           string    `bun:"id,notnull" json:"id"`
	Text                string    `bun:"text,notnull" json:"text"`
	AuthorID            string    `bun:"author_id,nullzero" json:"author_id,omitempty"`
	PostID              string    `bun:"post_id,nullzero" json:"post_id,omitempty"`
	CreatedAt           time.Time `bun:"created_at,notnull" json:"created_at"`
}
