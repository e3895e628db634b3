package protocol

import "strconv"

// Action is the tag every broker message carries under the "action" key.
type Action string

const (
	ActionCheckUser          Action = "check_user_in_db"
	ActionCreateUserProfile  Action = "create_user_profile"
	ActionUpdatePreferences  Action = "update_preferences"
	ActionUpdatePhoto        Action = "update_photo"
	ActionGetNextProfile     Action = "get_next_profile"
	ActionProcessLike        Action = "process_like"
	ActionProcessDislike     Action = "process_dislike"
	ActionUpdateProfileField Action = "update_profile_field"
	ActionGetRating          Action = "get_rating"
)

// Topic exchanges, one per response category.
const (
	ExchangeUserCheck          = "user_check"
	ExchangeProfileUpdates     = "profile_updates"
	ExchangePreferencesUpdates = "preferences_updates"
	ExchangePhotoUpdates       = "photo_updates"
	ExchangeMeetingUpdates     = "meeting_updates"
	ExchangeLikesUpdates       = "likes_updates"

	ExchangeMatchNotifications = "match_notifications"
)

// WorkRoutingKey binds the shared work queue on every exchange.
const WorkRoutingKey = "user_messages"

var exchanges = map[Action]string{
	ActionCheckUser:          ExchangeUserCheck,
	ActionCreateUserProfile:  ExchangeProfileUpdates,
	ActionUpdateProfileField: ExchangeProfileUpdates,
	ActionGetRating:          ExchangeProfileUpdates,
	ActionUpdatePreferences:  ExchangePreferencesUpdates,
	ActionUpdatePhoto:        ExchangePhotoUpdates,
	ActionGetNextProfile:     ExchangeMeetingUpdates,
	ActionProcessLike:        ExchangeLikesUpdates,
	ActionProcessDislike:     ExchangeLikesUpdates,
}

// ExchangeFor returns the exchange that requests and replies of an action travel on.
func ExchangeFor(a Action) (string, bool) {
	ex, ok := exchanges[a]
	return ex, ok
}

// AllExchanges lists the request/reply exchanges in a stable order.
func AllExchanges() []string {
	return []string{
		ExchangeUserCheck,
		ExchangeProfileUpdates,
		ExchangePreferencesUpdates,
		ExchangePhotoUpdates,
		ExchangeMeetingUpdates,
		ExchangeLikesUpdates,
	}
}

func (a Action) Valid() bool {
	_, ok := exchanges[a]
	return ok
}

func (a Action) String() string {
	return string(a)
}

// MatchBindingKey selects every match alert.
const MatchBindingKey = "match.*"

// MatchRoutingKey addresses a match alert to one chat user.
func MatchRoutingKey(platformID int64) string {
	return "match." + strconv.FormatInt(platformID, 10)
}
