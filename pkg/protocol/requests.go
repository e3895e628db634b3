package protocol

// Header carries the action tag of a request.
type Header struct {
	Action Action `msgpack:"action"`
}

func (h *Header) header() *Header { return h }

// Request is implemented only by the request types of this package. The
// worker dispatches with an exhaustive type switch over them.
type Request interface {
	Kind() Action
	// ReplyUserID is the platform id whose reply queue receives the answer.
	ReplyUserID() int64
	header() *Header
}

type CheckUserRequest struct {
	Header `msgpack:",inline"`
	UserID int64 `msgpack:"user_id"`
}

func (r *CheckUserRequest) Kind() Action       { return ActionCheckUser }
func (r *CheckUserRequest) ReplyUserID() int64 { return r.UserID }

// UserData is the registration form collected by the conversation layer.
type UserData struct {
	FullName string `msgpack:"full_name"`
	Age      int    `msgpack:"age"`
	Gender   string `msgpack:"gender"`
	Bio      string `msgpack:"bio"`
	Photo    string `msgpack:"photo"`
}

type CreateUserProfileRequest struct {
	Header   `msgpack:",inline"`
	UserID   int64    `msgpack:"user_id"`
	UserData UserData `msgpack:"user_data"`
	Username string   `msgpack:"tg_username"`
}

func (r *CreateUserProfileRequest) Kind() Action       { return ActionCreateUserProfile }
func (r *CreateUserProfileRequest) ReplyUserID() int64 { return r.UserID }

// PreferenceUpdate is a partial update; nil fields are left untouched.
type PreferenceUpdate struct {
	PreferredGender *string  `msgpack:"preferred_gender,omitempty"`
	MinAge          *int     `msgpack:"min_age,omitempty"`
	MaxAge          *int     `msgpack:"max_age,omitempty"`
	MinRating       *float64 `msgpack:"min_rating,omitempty"`
	MaxRating       *float64 `msgpack:"max_rating,omitempty"`
}

// Fields lists the wire names of the fields present in the update.
func (u PreferenceUpdate) Fields() []string {
	fields := make([]string, 0, 5)
	if u.PreferredGender != nil {
		fields = append(fields, "preferred_gender")
	}
	if u.MinAge != nil {
		fields = append(fields, "min_age")
	}
	if u.MaxAge != nil {
		fields = append(fields, "max_age")
	}
	if u.MinRating != nil {
		fields = append(fields, "min_rating")
	}
	if u.MaxRating != nil {
		fields = append(fields, "max_rating")
	}
	return fields
}

type UpdatePreferencesRequest struct {
	Header   `msgpack:",inline"`
	UserTgID int64            `msgpack:"user_tg_id"`
	Data     PreferenceUpdate `msgpack:"data"`
}

func (r *UpdatePreferencesRequest) Kind() Action       { return ActionUpdatePreferences }
func (r *UpdatePreferencesRequest) ReplyUserID() int64 { return r.UserTgID }

type UpdatePhotoRequest struct {
	Header   `msgpack:",inline"`
	UserTgID int64  `msgpack:"user_tg_id"`
	FileData []byte `msgpack:"file_data"`
	Filename string `msgpack:"filename"`
}

func (r *UpdatePhotoRequest) Kind() Action       { return ActionUpdatePhoto }
func (r *UpdatePhotoRequest) ReplyUserID() int64 { return r.UserTgID }

type GetNextProfileRequest struct {
	Header      `msgpack:",inline"`
	CurrentTgID int64 `msgpack:"current_tg_id"`
	// CommentedButNotRated is the id of a profile the user left without
	// reacting to; it is offered again first while still eligible.
	CommentedButNotRated *uint `msgpack:"commented_but_not_rated,omitempty"`
}

func (r *GetNextProfileRequest) Kind() Action       { return ActionGetNextProfile }
func (r *GetNextProfileRequest) ReplyUserID() int64 { return r.CurrentTgID }

// ReactionRequest serves both process_like and process_dislike.
type ReactionRequest struct {
	Header       `msgpack:",inline"`
	FromUserTgID int64 `msgpack:"from_user_tg_id"`
	ToUserID     uint  `msgpack:"to_user_id"`
	IsLike       bool  `msgpack:"is_like"`
}

func (r *ReactionRequest) Kind() Action {
	if r.IsLike {
		return ActionProcessLike
	}
	return ActionProcessDislike
}

func (r *ReactionRequest) ReplyUserID() int64 { return r.FromUserTgID }

// ProfileUpdate whitelists the user columns a request may change.
type ProfileUpdate struct {
	FullName  *string `msgpack:"full_name,omitempty"`
	Firstname *string `msgpack:"firstname,omitempty"`
	Lastname  *string `msgpack:"lastname,omitempty"`
	Mname     *string `msgpack:"mname,omitempty"`
	Age       *int    `msgpack:"age,omitempty"`
	Gender    *string `msgpack:"gender,omitempty"`
	Bio       *string `msgpack:"bio,omitempty"`
}

func (u ProfileUpdate) Fields() []string {
	fields := make([]string, 0, 7)
	if u.FullName != nil {
		fields = append(fields, "full_name")
	}
	if u.Firstname != nil {
		fields = append(fields, "firstname")
	}
	if u.Lastname != nil {
		fields = append(fields, "lastname")
	}
	if u.Mname != nil {
		fields = append(fields, "mname")
	}
	if u.Age != nil {
		fields = append(fields, "age")
	}
	if u.Gender != nil {
		fields = append(fields, "gender")
	}
	if u.Bio != nil {
		fields = append(fields, "bio")
	}
	return fields
}

type UpdateProfileFieldRequest struct {
	Header     `msgpack:",inline"`
	UserTgID   int64         `msgpack:"user_tg_id"`
	Data       ProfileUpdate `msgpack:"data"`
	ActionType string        `msgpack:"action_type"`
}

func (r *UpdateProfileFieldRequest) Kind() Action       { return ActionUpdateProfileField }
func (r *UpdateProfileFieldRequest) ReplyUserID() int64 { return r.UserTgID }

type GetRatingRequest struct {
	Header   `msgpack:",inline"`
	UserTgID int64 `msgpack:"user_tg_id"`
}

func (r *GetRatingRequest) Kind() Action       { return ActionGetRating }
func (r *GetRatingRequest) ReplyUserID() int64 { return r.UserTgID }
