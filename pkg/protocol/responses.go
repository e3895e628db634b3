package protocol

import "fmt"

type Status string

const (
	StatusSuccess Status = "success"
	StatusEmpty   Status = "empty"
	StatusUpdated Status = "updated"
	StatusError   Status = "error"
)

// RemoteError is a status=error reply surfaced on the calling side.
type RemoteError struct {
	Action  Action
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Action, e.Message)
}

type ResponseHeader struct {
	Action Action `msgpack:"action"`
	Status Status `msgpack:"status,omitempty"`
	Error  string `msgpack:"error,omitempty"`
}

func (h *ResponseHeader) responseHeader() *ResponseHeader { return h }

// Fail marks the response as failed with err's message.
func (h *ResponseHeader) Fail(err error) {
	h.Status = StatusError
	h.Error = err.Error()
}

// Err returns a *RemoteError when the worker reported a failure.
func (h *ResponseHeader) Err() error {
	if h.Status != StatusError {
		return nil
	}
	return &RemoteError{Action: h.Action, Message: h.Error}
}

// Response is implemented by every reply type of this package.
type Response interface {
	Fail(err error)
	Err() error
	responseHeader() *ResponseHeader
}

type CheckUserResponse struct {
	ResponseHeader `msgpack:",inline"`
	UserID         int64 `msgpack:"user_id"`
	Exists         bool  `msgpack:"exists"`
}

type UpdatePreferencesResponse struct {
	ResponseHeader `msgpack:",inline"`
	UserTgID       int64    `msgpack:"user_tg_id"`
	UpdatedFields  []string `msgpack:"updated_fields"`
}

type UpdatePhotoResponse struct {
	ResponseHeader `msgpack:",inline"`
	UserTgID       int64  `msgpack:"user_tg_id"`
	PhotoURL       string `msgpack:"photo_url,omitempty"`
}

// Profile is the read-only candidate view shown to the acting user.
type Profile struct {
	ID        uint    `msgpack:"id" json:"id"`
	Firstname string  `msgpack:"firstname" json:"firstname"`
	Lastname  string  `msgpack:"lastname" json:"lastname"`
	Mname     string  `msgpack:"mname" json:"mname"`
	FullName  string  `msgpack:"full_name" json:"full_name"`
	Photo     string  `msgpack:"photo" json:"photo"`
	Bio       string  `msgpack:"bio" json:"bio"`
	Age       int     `msgpack:"age" json:"age"`
	Gender    string  `msgpack:"gender" json:"gender"`
	Rating    float64 `msgpack:"rating" json:"rating"`
}

type NextProfileResponse struct {
	ResponseHeader `msgpack:",inline"`
	UserTgID       int64    `msgpack:"user_tg_id"`
	Profile        *Profile `msgpack:"profile,omitempty"`
}

// MatchParty is the public identity of one side of a match.
type MatchParty struct {
	TgID       int64  `msgpack:"tg_id" json:"tg_id"`
	TgUsername string `msgpack:"tg_username" json:"tg_username"`
	Firstname  string `msgpack:"firstname" json:"firstname"`
	Lastname   string `msgpack:"lastname" json:"lastname"`
}

func (p MatchParty) DisplayName() string {
	switch {
	case p.Firstname != "" && p.Lastname != "":
		return p.Firstname + " " + p.Lastname
	case p.Firstname != "":
		return p.Firstname
	default:
		return p.Lastname
	}
}

type ReactionResponse struct {
	ResponseHeader `msgpack:",inline"`
	FromUserTgID   int64       `msgpack:"from_user_tg_id"`
	ToUserID       uint        `msgpack:"to_user_id"`
	IsLike         bool        `msgpack:"is_like"`
	Match          bool        `msgpack:"match,omitempty"`
	MatchedUser    *MatchParty `msgpack:"matched_user,omitempty"`
	FromUserData   *MatchParty `msgpack:"from_user_data,omitempty"`
}

type UpdateProfileFieldResponse struct {
	ResponseHeader `msgpack:",inline"`
	UserTgID       int64    `msgpack:"user_tg_id"`
	ActionType     string   `msgpack:"action_type,omitempty"`
	UpdatedFields  []string `msgpack:"updated_fields"`
}

type RatingResponse struct {
	ResponseHeader `msgpack:",inline"`
	UserTgID       int64   `msgpack:"user_tg_id"`
	Rating         float64 `msgpack:"rating"`
	LikeCount      int     `msgpack:"like_count"`
	DislikeCount   int     `msgpack:"dislike_count"`
}

// MatchAlert is published to match_notifications for each side of a match.
type MatchAlert struct {
	ToPlatformID   int64  `msgpack:"to_platform_id"`
	PeerPlatformID int64  `msgpack:"peer_platform_id"`
	PeerUsername   string `msgpack:"peer_username"`
	PeerName       string `msgpack:"peer_name"`
}
