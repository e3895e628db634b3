package persistent

import (
	"matchbot/pkg/models"
	"matchbot/services/worker/internal/entity"
)

func ToProfileEntity(m *models.User) *entity.Profile {
	if m == nil {
		return nil
	}

	p := &entity.Profile{
		ID:           m.ID,
		PlatformID:   m.PlatformID,
		Username:     m.Username,
		Firstname:    m.Firstname,
		Lastname:     m.Lastname,
		Mname:        m.Mname,
		Age:          m.Age,
		Gender:       m.Gender,
		Bio:          m.Bio,
		Rating:       m.Rating,
		LikeCount:    m.LikeCount,
		DislikeCount: m.DislikeCount,
		CreatedAt:    m.CreatedAt,
	}
	if m.Photo != nil {
		p.PhotoURL = m.Photo.URL
	}
	return p
}

func ToUserModel(r *entity.Registration) *models.User {
	if r == nil {
		return nil
	}

	return &models.User{
		PlatformID:   r.PlatformID,
		Username:     r.Username,
		Firstname:    r.Firstname,
		Lastname:     r.Lastname,
		Mname:        r.Mname,
		Age:          r.Age,
		Gender:       r.Gender,
		Bio:          r.Bio,
		Rating:       models.DefaultRating,
		LikeCount:    0,
		DislikeCount: 0,
	}
}

func ToPreferenceEntity(m *models.Preference) *entity.Preference {
	if m == nil {
		return nil
	}

	return &entity.Preference{
		UserID:          m.UserID,
		PreferredGender: m.PreferredGender,
		MinAge:          m.MinAge,
		MaxAge:          m.MaxAge,
		MinRating:       m.MinRating,
		MaxRating:       m.MaxRating,
	}
}

func ToPreferenceModel(e *entity.Preference) *models.Preference {
	if e == nil {
		return nil
	}

	return &models.Preference{
		UserID:          e.UserID,
		PreferredGender: e.PreferredGender,
		MinAge:          e.MinAge,
		MaxAge:          e.MaxAge,
		MinRating:       e.MinRating,
		MaxRating:       e.MaxRating,
	}
}
