package models

import "time"

type Photo struct {
	ID      uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID  uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	URL     string    `gorm:"not null" json:"url"`
	AddedAt time.Time `gorm:"autoCreateTime" json:"added_at"`
}

type Preference struct {
	UserID          uint     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PreferredGender string   `gorm:"size:16;not null;default:'any'" json:"preferred_gender"`
	MinAge          *int     `gorm:"check:chk_preferences_min_age,min_age >= 10" json:"min_age"`
	MaxAge          *int     `gorm:"check:chk_preferences_max_age,max_age <= 110" json:"max_age"`
	MinRating       *float64 `gorm:"check:chk_preferences_min_rating,min_rating >= 0 AND min_rating <= 5" json:"min_rating"`
	MaxRating       *float64 `gorm:"check:chk_preferences_max_rating,max_rating >= 0 AND max_rating <= 5" json:"max_rating"`
}

// DefaultPreference is the unfiltered preference row written at registration.
func DefaultPreference(userID uint) *Preference {
	minAge, maxAge := MinAge, MaxAge
	minRating, maxRating := MinRating, MaxRating
	return &Preference{
		UserID:          userID,
		PreferredGender: AnyGender,
		MinAge:          &minAge,
		MaxAge:          &maxAge,
		MinRating:       &minRating,
		MaxRating:       &maxRating,
	}
}
