package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"matchbot/pkg/logger"
	"matchbot/pkg/models"
	"matchbot/pkg/protocol"
	"matchbot/services/worker/internal/entity"
	"matchbot/services/worker/internal/repo/persistent"
)

const (
	maxNamePartLen = 25
	maxBioLen      = 200
)

// PhotoStorage uploads photo bytes and returns their URL. Remove deletes a
// photo that is no longer referenced.
type PhotoStorage interface {
	Store(ctx context.Context, data []byte, filename string) (string, error)
	Remove(ctx context.Context, url string) error
}

type ProfileUseCase interface {
	CheckUser(ctx context.Context, platformID int64) (bool, error)
	CreateProfile(ctx context.Context, platformID int64, username string, form protocol.UserData) (*entity.Profile, error)
	UpdatePreferences(ctx context.Context, platformID int64, update protocol.PreferenceUpdate) ([]string, error)
	UpdatePhoto(ctx context.Context, platformID int64, data []byte, filename string) (string, error)
	UpdateProfileField(ctx context.Context, platformID int64, update protocol.ProfileUpdate) ([]string, error)
	GetRating(ctx context.Context, platformID int64) (entity.Rating, error)
}

type profileUseCase struct {
	userRepo persistent.UserRepository
	tx       persistent.Transactor
	photos   PhotoStorage
	logger   *logger.Logger
}

func NewProfileUseCase(
	userRepo persistent.UserRepository,
	tx persistent.Transactor,
	photos PhotoStorage,
	logger *logger.Logger,
) ProfileUseCase {
	return &profileUseCase{
		userRepo: userRepo,
		tx:       tx,
		photos:   photos,
		logger:   logger,
	}
}

func (uc *profileUseCase) CheckUser(ctx context.Context, platformID int64) (bool, error) {
	return uc.userRepo.ExistsByPlatformID(ctx, platformID)
}

func (uc *profileUseCase) CreateProfile(ctx context.Context, platformID int64, username string, form protocol.UserData) (*entity.Profile, error) {
	lastname, firstname, mname, err := splitFullName(form.FullName)
	if err != nil {
		return nil, err
	}
	if err := validateAge(form.Age); err != nil {
		return nil, err
	}
	gender := strings.TrimSpace(form.Gender)
	if gender == "" {
		return nil, entity.ErrInvalidGender
	}
	if utf8.RuneCountInString(form.Bio) > maxBioLen {
		return nil, entity.ErrInvalidBio
	}
	if strings.TrimSpace(form.Photo) == "" {
		return nil, entity.ErrInvalidPhoto
	}

	reg := &entity.Registration{
		PlatformID: platformID,
		Username:   username,
		Firstname:  firstname,
		Lastname:   lastname,
		Mname:      mname,
		Age:        form.Age,
		Gender:     gender,
		Bio:        form.Bio,
		PhotoURL:   form.Photo,
	}

	var profile *entity.Profile
	err = uc.tx.WithinTransaction(ctx, func(repos persistent.Repos) error {
		exists, err := repos.Users.ExistsByPlatformID(ctx, platformID)
		if err != nil {
			return err
		}
		if exists {
			return entity.ErrAlreadyRegistered
		}
		profile, err = repos.Users.Create(ctx, reg)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("[PROFILE] Registered tg_id=%d as user id=%d", platformID, profile.ID)
	return profile, nil
}

func (uc *profileUseCase) UpdatePreferences(ctx context.Context, platformID int64, update protocol.PreferenceUpdate) ([]string, error) {
	fields := update.Fields()
	if len(fields) == 0 {
		return nil, entity.ErrEmptyUpdate
	}

	err := uc.tx.WithinTransaction(ctx, func(repos persistent.Repos) error {
		user, err := repos.Users.GetByPlatformID(ctx, platformID)
		if err != nil {
			return err
		}

		pref, err := repos.Users.GetPreference(ctx, user.ID)
		if err != nil {
			return err
		}
		if pref == nil {
			pref = persistent.ToPreferenceEntity(models.DefaultPreference(user.ID))
		}

		merged, err := mergePreference(pref, update)
		if err != nil {
			return err
		}
		return repos.Users.SavePreference(ctx, merged)
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (uc *profileUseCase) UpdatePhoto(ctx context.Context, platformID int64, data []byte, filename string) (string, error) {
	if len(data) == 0 {
		return "", entity.ErrInvalidPhoto
	}

	user, err := uc.userRepo.GetByPlatformID(ctx, platformID)
	if err != nil {
		return "", err
	}

	url, err := uc.photos.Store(ctx, data, filename)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}

	if err := uc.userRepo.UpsertPhoto(ctx, user.ID, url); err != nil {
		return "", fmt.Errorf("save photo: %w", err)
	}

	if old := user.PhotoURL; old != "" && old != url {
		if err := uc.photos.Remove(ctx, old); err != nil {
			uc.logger.Warn("[PROFILE] Failed to remove replaced photo %s of tg_id=%d: %v", old, platformID, err)
		}
	}
	return url, nil
}

func (uc *profileUseCase) UpdateProfileField(ctx context.Context, platformID int64, update protocol.ProfileUpdate) ([]string, error) {
	fields := update.Fields()
	if len(fields) == 0 {
		return nil, entity.ErrEmptyUpdate
	}

	columns, err := profileColumns(update)
	if err != nil {
		return nil, err
	}

	err = uc.tx.WithinTransaction(ctx, func(repos persistent.Repos) error {
		user, err := repos.Users.GetByPlatformID(ctx, platformID)
		if err != nil {
			return err
		}
		return repos.Users.UpdateFields(ctx, user.ID, columns)
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (uc *profileUseCase) GetRating(ctx context.Context, platformID int64) (entity.Rating, error) {
	user, err := uc.userRepo.GetByPlatformID(ctx, platformID)
	if err != nil {
		return entity.Rating{}, err
	}
	return entity.Rating{Value: user.Rating, LikeCount: user.LikeCount, DislikeCount: user.DislikeCount}, nil
}

// splitFullName reads "lastname firstname [middle...]".
func splitFullName(fullName string) (lastname, firstname, mname string, err error) {
	parts := strings.Fields(fullName)
	if len(parts) < 2 {
		return "", "", "", entity.ErrInvalidName
	}
	lastname, firstname = parts[0], parts[1]
	mname = strings.Join(parts[2:], " ")
	for _, p := range []string{lastname, firstname, mname} {
		if err := validateNamePart(p); err != nil {
			return "", "", "", err
		}
	}
	return lastname, firstname, mname, nil
}

func validateNamePart(s string) error {
	if utf8.RuneCountInString(s) > maxNamePartLen {
		return entity.ErrInvalidName
	}
	return nil
}

func validateAge(age int) error {
	if age < models.MinAge || age > models.MaxAge {
		return entity.ErrInvalidAge
	}
	return nil
}

func profileColumns(u protocol.ProfileUpdate) (map[string]interface{}, error) {
	columns := make(map[string]interface{})

	if u.FullName != nil {
		lastname, firstname, mname, err := splitFullName(*u.FullName)
		if err != nil {
			return nil, err
		}
		columns["lastname"] = lastname
		columns["firstname"] = firstname
		columns["mname"] = mname
	}
	for column, value := range map[string]*string{"firstname": u.Firstname, "lastname": u.Lastname, "mname": u.Mname} {
		if value == nil {
			continue
		}
		v := strings.TrimSpace(*value)
		if err := validateNamePart(v); err != nil {
			return nil, err
		}
		if v == "" && column != "mname" {
			return nil, entity.ErrInvalidName
		}
		columns[column] = v
	}
	if u.Age != nil {
		if err := validateAge(*u.Age); err != nil {
			return nil, err
		}
		columns["age"] = *u.Age
	}
	if u.Gender != nil {
		g := strings.TrimSpace(*u.Gender)
		if g == "" {
			return nil, entity.ErrInvalidGender
		}
		columns["gender"] = g
	}
	if u.Bio != nil {
		if utf8.RuneCountInString(*u.Bio) > maxBioLen {
			return nil, entity.ErrInvalidBio
		}
		columns["bio"] = *u.Bio
	}
	return columns, nil
}

// mergePreference applies update over current and validates the result,
// including min <= max for both ranges.
func mergePreference(current *entity.Preference, u protocol.PreferenceUpdate) (*entity.Preference, error) {
	merged := *current

	if u.PreferredGender != nil {
		merged.PreferredGender = strings.TrimSpace(*u.PreferredGender)
		if !models.HasPreferredGender(merged.PreferredGender) {
			merged.PreferredGender = models.AnyGender
		}
	}
	if u.MinAge != nil {
		merged.MinAge = u.MinAge
	}
	if u.MaxAge != nil {
		merged.MaxAge = u.MaxAge
	}
	if u.MinRating != nil {
		merged.MinRating = u.MinRating
	}
	if u.MaxRating != nil {
		merged.MaxRating = u.MaxRating
	}

	for _, age := range []*int{merged.MinAge, merged.MaxAge} {
		if age != nil && (*age < models.MinAge || *age > models.MaxAge) {
			return nil, fmt.Errorf("%w: age bounds must be within [%d, %d]", entity.ErrInvalidPreferences, models.MinAge, models.MaxAge)
		}
	}
	for _, r := range []*float64{merged.MinRating, merged.MaxRating} {
		if r != nil && (*r < models.MinRating || *r > models.MaxRating) {
			return nil, fmt.Errorf("%w: rating bounds must be within [%g, %g]", entity.ErrInvalidPreferences, models.MinRating, models.MaxRating)
		}
	}
	if merged.MinAge != nil && merged.MaxAge != nil && *merged.MinAge > *merged.MaxAge {
		return nil, fmt.Errorf("%w: min_age is greater than max_age", entity.ErrInvalidPreferences)
	}
	if merged.MinRating != nil && merged.MaxRating != nil && *merged.MinRating > *merged.MaxRating {
		return nil, fmt.Errorf("%w: min_rating is greater than max_rating", entity.ErrInvalidPreferences)
	}
	return &merged, nil
}

// IsClientError reports whether err is caused by the request rather than
// the infrastructure.
func IsClientError(err error) bool {
	for _, target := range []error{
		entity.ErrUserNotFound,
		entity.ErrTargetNotFound,
		entity.ErrAlreadyRegistered,
		entity.ErrSelfReaction,
		entity.ErrInvalidName,
		entity.ErrInvalidAge,
		entity.ErrInvalidGender,
		entity.ErrInvalidBio,
		entity.ErrInvalidPreferences,
		entity.ErrInvalidPhoto,
		entity.ErrEmptyUpdate,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
