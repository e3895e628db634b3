package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Like is both the reaction ledger and the "already seen" source.
// One row per ordered (from, to) pair.
type Like struct {
	FromUserID uint      `gorm:"primaryKey;autoIncrement:false" json:"from_user_id"`
	ToUserID   uint      `gorm:"primaryKey;autoIncrement:false;index:idx_likes_to_is_like,priority:1" json:"to_user_id"`
	IsLike     bool      `gorm:"not null;index:idx_likes_to_is_like,priority:2" json:"is_like"`
	LikedAt    time.Time `gorm:"not null" json:"liked_at"`
}

// Match records a mutual like once per unordered pair; UserLowID < UserHighID.
type Match struct {
	ID         string    `gorm:"type:uuid;primary_key" json:"id"`
	UserLowID  uint      `gorm:"not null;uniqueIndex:uq_matches_pair,priority:1" json:"user_low_id"`
	UserHighID uint      `gorm:"not null;uniqueIndex:uq_matches_pair,priority:2" json:"user_high_id"`
	MatchedAt  time.Time `gorm:"not null" json:"matched_at"`
}

func (m *Match) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// NewMatch orders the pair so that (a, b) and (b, a) collide on the unique index.
func NewMatch(a, b uint, at time.Time) *Match {
	if a > b {
		a, b = b, a
	}
	return &Match{UserLowID: a, UserHighID: b, MatchedAt: at}
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{&User{}, &Photo{}, &Preference{}, &Like{}, &Match{}}
}
