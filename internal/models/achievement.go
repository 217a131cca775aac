package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Achievement struct {
	bun.BaseModel `bun:"table:achievements,alias:a"`

	Code string `bun:"code,pk" json:"code"`
	Name string `bun:"name,notnull" json:"name"`
}

// UserAchievement exists at most once per (user, achievement) pair.
type UserAchievement struct {
	bun.BaseModel `bun:"table:user_achievements,alias:ua"`

	ID              string    `bun:"id,pk" json:"id"`
	UserID          string    `bun:"user_id,notnull,unique:user_achievement_pair" json:"user_id"`
	AchievementCode string    `bun:"achievement_code,notnull,unique:user_achievement_pair" json:"achievement_code"`
	CreatedAt       time.Time `bun:"created_at,notnull" json:"created_at"`
}
