package entity

import (
	"strings"
	"time"
)

type Profile struct {
	ID           uint      `json:"id"`
	PlatformID   int64     `json:"tg_id"`
	Username     string    `json:"tg_username"`
	Firstname    string    `json:"firstname"`
	Lastname     string    `json:"lastname"`
	Mname        string    `json:"mname"`
	Age          int       `json:"age"`
	Gender       string    `json:"gender"`
	Bio          string    `json:"bio"`
	PhotoURL     string    `json:"photo"`
	Rating       float64   `json:"rating"`
	LikeCount    int       `json:"like_count"`
	DislikeCount int       `json:"dislike_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName renders "lastname firstname middle-name", skipping empty parts.
func (p *Profile) FullName() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Lastname, p.Firstname, p.Mname} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func (p *Profile) Party() *MatchParty {
	return &MatchParty{
		PlatformID: p.PlatformID,
		Username:   p.Username,
		Firstname:  p.Firstname,
		Lastname:   p.Lastname,
	}
}

// Registration is the validated input of profile creation.
type Registration struct {
	PlatformID int64
	Username   string
	Firstname  string
	Lastname   string
	Mname      string
	Age        int
	Gender     string
	Bio        string
	PhotoURL   string
}

type Preference struct {
	UserID          uint
	PreferredGender string
	MinAge          *int
	MaxAge          *int
	MinRating       *float64
	MaxRating       *float64
}

type Rating struct {
	Value        float64 `json:"rating"`
	LikeCount    int     `json:"like_count"`
	DislikeCount int     `json:"dislike_count"`
}
