package persistent

import (
	"context"
	"errors"
	"fmt"

	"matchbot/pkg/models"
	"matchbot/services/worker/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository interface {
	ExistsByPlatformID(ctx context.Context, platformID int64) (bool, error)
	GetByPlatformID(ctx context.Context, platformID int64) (*entity.Profile, error)
	GetByID(ctx context.Context, id uint) (*entity.Profile, error)
	// LockByID takes a row lock on Postgres and checks existence everywhere.
	LockByID(ctx context.Context, id uint) error
	Create(ctx context.Context, reg *entity.Registration) (*entity.Profile, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	UpsertPhoto(ctx context.Context, userID uint, url string) error
	GetPreference(ctx context.Context, userID uint) (*entity.Preference, error)
	SavePreference(ctx context.Context, pref *entity.Preference) error
	// FindCandidate picks a random user that actorID has not reacted to and
	// that has a photo. pref may be nil; onlyID narrows the pool to one user.
	FindCandidate(ctx context.Context, actorID uint, pref *entity.Preference, onlyID *uint) (*entity.Profile, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) ExistsByPlatformID(ctx context.Context, platformID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("tg_id = ?", platformID).Count(&count).Error
	return count > 0, err
}

func (r *userRepository) GetByPlatformID(ctx context.Context, platformID int64) (*entity.Profile, error) {
	var m models.User
	if err := r.db.WithContext(ctx).Preload("Photo").Where("tg_id = ?", platformID).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrUserNotFound
		}
		return nil, err
	}
	return ToProfileEntity(&m), nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*entity.Profile, error) {
	var m models.User
	if err := r.db.WithContext(ctx).Preload("Photo").Where("id = ?", id).Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrUserNotFound
		}
		return nil, err
	}
	return ToProfileEntity(&m), nil
}

func (r *userRepository) LockByID(ctx context.Context, id uint) error {
	q := r.db.WithContext(ctx).Model(&models.User{}).Select("id").Where("id = ?", id)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var locked struct{ ID uint }
	if err := q.Take(&locked).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entity.ErrUserNotFound
		}
		return err
	}
	return nil
}

// Create writes the user, its photo and its default preference. It must
// run inside a transaction to keep the three rows together.
func (r *userRepository) Create(ctx context.Context, reg *entity.Registration) (*entity.Profile, error) {
	db := r.db.WithContext(ctx)

	user := ToUserModel(reg)
	if err := db.Omit(clause.Associations).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, entity.ErrAlreadyRegistered
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	photo := &models.Photo{UserID: user.ID, URL: reg.PhotoURL}
	if err := db.Create(photo).Error; err != nil {
		return nil, fmt.Errorf("create photo: %w", err)
	}

	if err := db.Create(models.DefaultPreference(user.ID)).Error; err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}

	user.Photo = photo
	return ToProfileEntity(user), nil
}

func (r *userRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return entity.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) UpsertPhoto(ctx context.Context, userID uint, url string) error {
	photo := &models.Photo{UserID: userID, URL: url}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "added_at"}),
	}).Create(photo).Error
}

func (r *userRepository) GetPreference(ctx context.Context, userID uint) (*entity.Preference, error) {
	var m models.Preference
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ToPreferenceEntity(&m), nil
}

func (r *userRepository) SavePreference(ctx context.Context, pref *entity.Preference) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(ToPreferenceModel(pref)).Error
}

func (r *userRepository) FindCandidate(ctx context.Context, actorID uint, pref *entity.Preference, onlyID *uint) (*entity.Profile, error) {
	db := r.db.WithContext(ctx)

	reacted := db.Model(&models.Like{}).Select("to_user_id").Where("from_user_id = ?", actorID)
	q := db.Model(&models.User{}).
		Preload("Photo").
		Where("users.id <> ?", actorID).
		Where("users.id NOT IN (?)", reacted).
		Where("EXISTS (SELECT 1 FROM photos WHERE photos.user_id = users.id)")

	if onlyID != nil {
		q = q.Where("users.id = ?", *onlyID)
	}

	if pref != nil {
		if models.HasPreferredGender(pref.PreferredGender) {
			q = q.Where("users.gender = ?", pref.PreferredGender)
		}
		if pref.MinAge != nil {
			q = q.Where("users.age >= ?", *pref.MinAge)
		}
		if pref.MaxAge != nil {
			q = q.Where("users.age <= ?", *pref.MaxAge)
		}
		if pref.MinRating != nil {
			q = q.Where("users.rating >= ?", *pref.MinRating)
		}
		if pref.MaxRating != nil {
			q = q.Where("users.rating <= ?", *pref.MaxRating)
		}
	}

	var m models.User
	if err := q.Order("RANDOM()").Take(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ToProfileEntity(&m), nil
}
