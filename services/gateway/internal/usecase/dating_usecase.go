package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"matchbot/pkg/logger"
	"matchbot/pkg/models"
	"matchbot/pkg/protocol"
)

var ErrInvalidInput = errors.New("invalid input")

// Caller is implemented by *rpc.Client.
type Caller interface {
	Call(ctx context.Context, req protocol.Request, resp protocol.Response) error
	Send(ctx context.Context, req protocol.Request) error
}

// PhotoStore is implemented by *photostore.Store.
type PhotoStore interface {
	Store(ctx context.Context, data []byte, filename string) (string, error)
	Fetch(ctx context.Context, url string) ([]byte, bool, error)
}

// Notifier is implemented by *notify.MatchNotifier.
type Notifier interface {
	NotifyMatch(ctx context.Context, a, b protocol.MatchParty) error
}

// RegistrationForm is what the conversation collects before create_user_profile.
type RegistrationForm struct {
	FullName string
	Age      int
	Gender   string
	Bio      string
}

// Candidate is a profile to show together with its photo. Photo is nil when
// the stored object is gone.
type Candidate struct {
	Profile protocol.Profile
	Photo   []byte
}

type ReactionOutcome struct {
	Match bool
	Peer  *protocol.MatchParty
}

type RatingView struct {
	Rating       float64 `json:"rating"`
	LikeCount    int     `json:"like_count"`
	DislikeCount int     `json:"dislike_count"`
}

type DatingUseCase interface {
	CheckUser(ctx context.Context, tgID int64) (bool, error)
	Register(ctx context.Context, tgID int64, username string, form RegistrationForm, photo []byte, filename string) error
	// NextProfile returns nil when nobody is left to show.
	NextProfile(ctx context.Context, tgID int64, commentedButNotRated *uint) (*Candidate, error)
	React(ctx context.Context, tgID int64, toUserID uint, isLike bool) (*ReactionOutcome, error)
	UpdatePreferences(ctx context.Context, tgID int64, update protocol.PreferenceUpdate) ([]string, error)
	UpdatePhoto(ctx context.Context, tgID int64, data []byte, filename string) (string, error)
	UpdateProfileField(ctx context.Context, tgID int64, update protocol.ProfileUpdate, actionType string) ([]string, error)
	Rating(ctx context.Context, tgID int64) (*RatingView, error)
	Photo(ctx context.Context, url string) ([]byte, bool, error)
}

type datingUseCase struct {
	rpc      Caller
	photos   PhotoStore
	notifier Notifier
	logger   *logger.Logger
}

func NewDatingUseCase(rpc Caller, photos PhotoStore, notifier Notifier, logger *logger.Logger) DatingUseCase {
	return &datingUseCase{
		rpc:      rpc,
		photos:   photos,
		notifier: notifier,
		logger:   logger,
	}
}

func (uc *datingUseCase) CheckUser(ctx context.Context, tgID int64) (bool, error) {
	var resp protocol.CheckUserResponse
	if err := uc.rpc.Call(ctx, &protocol.CheckUserRequest{UserID: tgID}, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

// Register uploads the photo and hands the profile to the worker. The worker
// does not answer create_user_profile, so the form is checked here first.
func (uc *datingUseCase) Register(ctx context.Context, tgID int64, username string, form RegistrationForm, photo []byte, filename string) error {
	if len(strings.Fields(form.FullName)) < 2 {
		return fmt.Errorf("%w: full name must contain lastname and firstname", ErrInvalidInput)
	}
	if form.Age < models.MinAge || form.Age > models.MaxAge {
		return fmt.Errorf("%w: age must be between %d and %d", ErrInvalidInput, models.MinAge, models.MaxAge)
	}
	if strings.TrimSpace(form.Gender) == "" {
		return fmt.Errorf("%w: gender is required", ErrInvalidInput)
	}
	if len(photo) == 0 {
		return fmt.Errorf("%w: photo is required", ErrInvalidInput)
	}

	url, err := uc.photos.Store(ctx, photo, filename)
	if err != nil {
		return fmt.Errorf("store photo: %w", err)
	}

	err = uc.rpc.Send(ctx, &protocol.CreateUserProfileRequest{
		UserID:   tgID,
		Username: username,
		UserData: protocol.UserData{
			FullName: form.FullName,
			Age:      form.Age,
			Gender:   form.Gender,
			Bio:      form.Bio,
			Photo:    url,
		},
	})
	if err != nil {
		return err
	}

	uc.logger.Info("[DATING] Registration of tg_id=%d sent", tgID)
	return nil
}

func (uc *datingUseCase) NextProfile(ctx context.Context, tgID int64, commentedButNotRated *uint) (*Candidate, error) {
	var resp protocol.NextProfileResponse
	err := uc.rpc.Call(ctx, &protocol.GetNextProfileRequest{
		CurrentTgID:          tgID,
		CommentedButNotRated: commentedButNotRated,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Status == protocol.StatusEmpty || resp.Profile == nil {
		return nil, nil
	}

	candidate := &Candidate{Profile: *resp.Profile}
	if resp.Profile.Photo == "" {
		return candidate, nil
	}

	data, found, err := uc.photos.Fetch(ctx, resp.Profile.Photo)
	switch {
	case err != nil:
		uc.logger.Warn("[DATING] Failed to load photo of user id=%d: %v", resp.Profile.ID, err)
	case !found:
		uc.logger.Warn("[DATING] Photo of user id=%d is missing: %s", resp.Profile.ID, resp.Profile.Photo)
	default:
		candidate.Photo = data
	}
	return candidate, nil
}

// React records the reaction and, on a match, alerts both users. A failed
// alert is logged; the reaction itself has already been stored.
func (uc *datingUseCase) React(ctx context.Context, tgID int64, toUserID uint, isLike bool) (*ReactionOutcome, error) {
	var resp protocol.ReactionResponse
	err := uc.rpc.Call(ctx, &protocol.ReactionRequest{
		FromUserTgID: tgID,
		ToUserID:     toUserID,
		IsLike:       isLike,
	}, &resp)
	if err != nil {
		return nil, err
	}

	outcome := &ReactionOutcome{}
	if !resp.Match || resp.MatchedUser == nil || resp.FromUserData == nil {
		return outcome, nil
	}

	outcome.Match = true
	outcome.Peer = resp.MatchedUser
	if err := uc.notifier.NotifyMatch(ctx, *resp.FromUserData, *resp.MatchedUser); err != nil {
		uc.logger.Error("[DATING] Match between tg_id=%d and tg_id=%d not fully notified: %v", tgID, resp.MatchedUser.TgID, err)
	}
	return outcome, nil
}

func (uc *datingUseCase) UpdatePreferences(ctx context.Context, tgID int64, update protocol.PreferenceUpdate) ([]string, error) {
	if len(update.Fields()) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if update.MinAge != nil && update.MaxAge != nil && *update.MinAge > *update.MaxAge {
		return nil, fmt.Errorf("%w: min_age is greater than max_age", ErrInvalidInput)
	}
	if update.MinRating != nil && update.MaxRating != nil && *update.MinRating > *update.MaxRating {
		return nil, fmt.Errorf("%w: min_rating is greater than max_rating", ErrInvalidInput)
	}

	var resp protocol.UpdatePreferencesResponse
	if err := uc.rpc.Call(ctx, &protocol.UpdatePreferencesRequest{UserTgID: tgID, Data: update}, &resp); err != nil {
		return nil, err
	}
	return resp.UpdatedFields, nil
}

func (uc *datingUseCase) UpdatePhoto(ctx context.Context, tgID int64, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: photo is required", ErrInvalidInput)
	}

	var resp protocol.UpdatePhotoResponse
	err := uc.rpc.Call(ctx, &protocol.UpdatePhotoRequest{UserTgID: tgID, FileData: data, Filename: filename}, &resp)
	if err != nil {
		return "", err
	}
	return resp.PhotoURL, nil
}

func (uc *datingUseCase) UpdateProfileField(ctx context.Context, tgID int64, update protocol.ProfileUpdate, actionType string) ([]string, error) {
	if len(update.Fields()) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}

	var resp protocol.UpdateProfileFieldResponse
	err := uc.rpc.Call(ctx, &protocol.UpdateProfileFieldRequest{UserTgID: tgID, Data: update, ActionType: actionType}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.UpdatedFields, nil
}

func (uc *datingUseCase) Rating(ctx context.Context, tgID int64) (*RatingView, error) {
	var resp protocol.RatingResponse
	if err := uc.rpc.Call(ctx, &protocol.GetRatingRequest{UserTgID: tgID}, &resp); err != nil {
		return nil, err
	}
	return &RatingView{Rating: resp.Rating, LikeCount: resp.LikeCount, DislikeCount: resp.DislikeCount}, nil
}

func (uc *datingUseCase) Photo(ctx context.Context, url string) ([]byte, bool, error) {
	if strings.TrimSpace(url) == "" {
		return nil, false, fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	return uc.photos.Fetch(ctx, url)
}
