package protocol

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

const ContentType = "application/msgpack"

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrMissingAction = errors.New("message has no action")
	// ErrInternal is the reply message for failures the caller cannot fix.
	ErrInternal = errors.New("internal error")
)

// EncodeRequest stamps the request's action tag and serializes it.
func EncodeRequest(req Request) ([]byte, error) {
	req.header().Action = req.Kind()
	body, err := msgpack.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", req.Kind(), err)
	}
	return body, nil
}

// Decode reads the action tag and decodes the body into the matching
// request type.
func Decode(body []byte) (Request, error) {
	var head Header
	if err := msgpack.Unmarshal(body, &head); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	var req Request
	switch head.Action {
	case "":
		return nil, ErrMissingAction
	case ActionCheckUser:
		req = &CheckUserRequest{}
	case ActionCreateUserProfile:
		req = &CreateUserProfileRequest{}
	case ActionUpdatePreferences:
		req = &UpdatePreferencesRequest{}
	case ActionUpdatePhoto:
		req = &UpdatePhotoRequest{}
	case ActionGetNextProfile:
		req = &GetNextProfileRequest{}
	case ActionProcessLike:
		req = &ReactionRequest{IsLike: true}
	case ActionProcessDislike:
		req = &ReactionRequest{}
	case ActionUpdateProfileField:
		req = &UpdateProfileFieldRequest{}
	case ActionGetRating:
		req = &GetRatingRequest{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, head.Action)
	}

	if err := msgpack.Unmarshal(body, req); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Action, err)
	}
	if r, ok := req.(*ReactionRequest); ok && head.Action == ActionProcessDislike {
		r.IsLike = false
	}
	return req, nil
}

// EncodeResponse stamps the reply with the action it answers.
func EncodeResponse(action Action, resp Response) ([]byte, error) {
	resp.responseHeader().Action = action
	body, err := msgpack.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode %s response: %w", action, err)
	}
	return body, nil
}

func DecodeResponse(body []byte, resp Response) error {
	if err := msgpack.Unmarshal(body, resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func EncodeAlert(alert MatchAlert) ([]byte, error) {
	return msgpack.Marshal(&alert)
}
