package entity

import "math"

const (
	BaseRating    = 2.5
	LikeWeight    = 0.1
	DislikeWeight = 0.15
	MinRating     = 0.0
	MaxRating     = 5.0
)

// ComputeRating is the rating of a user with the given reaction counts.
// The store evaluates the same formula in SQL.
func ComputeRating(likes, dislikes int) float64 {
	r := BaseRating + LikeWeight*float64(likes) - DislikeWeight*float64(dislikes)
	return math.Max(MinRating, math.Min(MaxRating, r))
}

// MatchParty is the public identity passed to match notifications.
type MatchParty struct {
	PlatformID int64  `json:"tg_id"`
	Username   string `json:"tg_username"`
	Firstname  string `json:"firstname"`
	Lastname   string `json:"lastname"`
}

type ReactionResult struct {
	FromPlatformID int64
	ToUserID       uint
	IsLike         bool
	Rating         Rating
	Match          bool
	// NewMatch is set when this reaction created the Match record.
	NewMatch    bool
	MatchedUser *MatchParty
	FromUser    *MatchParty
}
