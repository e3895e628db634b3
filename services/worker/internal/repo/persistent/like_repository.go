package persistent

import (
	"context"
	"fmt"
	"time"

	"matchbot/pkg/models"
	"matchbot/services/worker/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const reactionCountSQL = "(SELECT COUNT(*) FROM likes WHERE likes.to_user_id = users.id AND likes.is_like = ?)"

// ratingSQL clamps BaseRating + LikeWeight*likes - DislikeWeight*dislikes to
// [MinRating, MaxRating]; it is written without GREATEST/LEAST so SQLite
// accepts it too.
var ratingSQL = func() string {
	raw := fmt.Sprintf("(%g + %g * %s - %g * %s)",
		entity.BaseRating, entity.LikeWeight, reactionCountSQL, entity.DislikeWeight, reactionCountSQL)
	return fmt.Sprintf("CASE WHEN %[1]s < %[2]g THEN %[2]g WHEN %[1]s > %[3]g THEN %[3]g ELSE %[1]s END",
		raw, entity.MinRating, entity.MaxRating)
}()

type LikeRepository interface {
	// Replace drops the previous reaction of from to to and records the new one.
	Replace(ctx context.Context, fromID, toID uint, isLike bool, at time.Time) error
	Exists(ctx context.Context, fromID, toID uint, isLike bool) (bool, error)
	// RecomputeRating rewrites rating and counters of the target from the
	// ledger in a single statement and returns the stored values.
	RecomputeRating(ctx context.Context, toID uint) (entity.Rating, error)
	// CreateMatch records the unordered pair once; created is false when the
	// pair was already recorded.
	CreateMatch(ctx context.Context, a, b uint, at time.Time) (created bool, err error)
}

type likeRepository struct {
	db *gorm.DB
}

func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) Replace(ctx context.Context, fromID, toID uint, isLike bool, at time.Time) error {
	db := r.db.WithContext(ctx)

	if err := db.Where("from_user_id = ? AND to_user_id = ?", fromID, toID).Delete(&models.Like{}).Error; err != nil {
		return fmt.Errorf("delete previous reaction: %w", err)
	}

	like := &models.Like{FromUserID: fromID, ToUserID: toID, IsLike: isLike, LikedAt: at}
	if err := db.Create(like).Error; err != nil {
		return fmt.Errorf("insert reaction: %w", err)
	}
	return nil
}

func (r *likeRepository) Exists(ctx context.Context, fromID, toID uint, isLike bool) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("from_user_id = ? AND to_user_id = ? AND is_like = ?", fromID, toID, isLike).
		Count(&count).Error
	return count > 0, err
}

func (r *likeRepository) RecomputeRating(ctx context.Context, toID uint) (entity.Rating, error) {
	db := r.db.WithContext(ctx)

	res := db.Model(&models.User{}).Where("id = ?", toID).Updates(map[string]interface{}{
		"like_count":    gorm.Expr(reactionCountSQL, true),
		"dislike_count": gorm.Expr(reactionCountSQL, false),
		"rating":        gorm.Expr(ratingSQL, true, false, true, false, true, false),
	})
	if res.Error != nil {
		return entity.Rating{}, fmt.Errorf("recompute rating: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return entity.Rating{}, entity.ErrTargetNotFound
	}

	var u models.User
	if err := db.Select("rating", "like_count", "dislike_count").Where("id = ?", toID).Take(&u).Error; err != nil {
		return entity.Rating{}, err
	}
	return entity.Rating{Value: u.Rating, LikeCount: u.LikeCount, DislikeCount: u.DislikeCount}, nil
}

func (r *likeRepository) CreateMatch(ctx context.Context, a, b uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(models.NewMatch(a, b, at))
	if res.Error != nil {
		return false, fmt.Errorf("record match: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
