package models

import (
	"strings"
	"time"
)

const (
	MinAge = 10
	MaxAge = 110

	MinRating     = 0.0
	MaxRating     = 5.0
	DefaultRating = 2.5

	// AnyGender disables the gender filter of a Preference.
	AnyGender = "any"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlatformID   int64     `gorm:"column:tg_id;uniqueIndex;not null" json:"tg_id"`
	Username     string    `gorm:"column:tg_username;size:64" json:"tg_username"`
	Firstname    string    `gorm:"size:25;not null" json:"firstname"`
	Lastname     string    `gorm:"size:25;not null" json:"lastname"`
	Mname        string    `gorm:"size:25;not null;default:''" json:"mname"`
	Age          int       `gorm:"not null;check:chk_users_age,age BETWEEN 10 AND 110" json:"age"`
	Gender       string    `gorm:"size:16;not null" json:"gender"`
	Bio          string    `gorm:"size:200;not null;default:''" json:"bio"`
	Rating       float64   `gorm:"not null;default:2.5;check:chk_users_rating,rating BETWEEN 0 AND 5" json:"rating"`
	LikeCount    int       `gorm:"not null;default:0" json:"like_count"`
	DislikeCount int       `gorm:"not null;default:0" json:"dislike_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Photo      *Photo      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"photo,omitempty"`
	Preference *Preference `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"preference,omitempty"`
}

// FullName renders "lastname firstname middle-name", skipping empty parts.
func (u *User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.Lastname, u.Firstname, u.Mname} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// HasPreferredGender reports whether gender filtering is active for g.
func HasPreferredGender(g string) bool {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "", AnyGender, "любой":
		return false
	}
	return true
}
