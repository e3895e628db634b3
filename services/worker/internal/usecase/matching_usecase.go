package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matchbot/pkg/logger"
	"matchbot/pkg/metrics"
	"matchbot/services/worker/internal/entity"
	"matchbot/services/worker/internal/repo/persistent"
)

type MatchingUseCase interface {
	// NextProfile returns nil when no candidate is eligible or the actor is
	// unknown.
	NextProfile(ctx context.Context, platformID int64, commentedButNotRated *uint) (*entity.Profile, error)
	ProcessReaction(ctx context.Context, fromPlatformID int64, toUserID uint, isLike bool) (*entity.ReactionResult, error)
}

type matchingUseCase struct {
	userRepo persistent.UserRepository
	tx       persistent.Transactor
	now      func() time.Time
	logger   *logger.Logger
}

func NewMatchingUseCase(
	userRepo persistent.UserRepository,
	tx persistent.Transactor,
	logger *logger.Logger,
) MatchingUseCase {
	return &matchingUseCase{
		userRepo: userRepo,
		tx:       tx,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

func (uc *matchingUseCase) NextProfile(ctx context.Context, platformID int64, commentedButNotRated *uint) (*entity.Profile, error) {
	actor, err := uc.userRepo.GetByPlatformID(ctx, platformID)
	if errors.Is(err, entity.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}

	if commentedButNotRated != nil {
		profile, err := uc.userRepo.FindCandidate(ctx, actor.ID, nil, commentedButNotRated)
		if err != nil {
			return nil, fmt.Errorf("load pending profile: %w", err)
		}
		if profile != nil {
			return profile, nil
		}
	}

	pref, err := uc.userRepo.GetPreference(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	profile, err := uc.userRepo.FindCandidate(ctx, actor.ID, pref, nil)
	if err != nil {
		return nil, fmt.Errorf("select candidate: %w", err)
	}
	return profile, nil
}

func (uc *matchingUseCase) ProcessReaction(ctx context.Context, fromPlatformID int64, toUserID uint, isLike bool) (*entity.ReactionResult, error) {
	result := &entity.ReactionResult{
		FromPlatformID: fromPlatformID,
		ToUserID:       toUserID,
		IsLike:         isLike,
	}

	err := uc.tx.WithinTransaction(ctx, func(repos persistent.Repos) error {
		actor, err := repos.Users.GetByPlatformID(ctx, fromPlatformID)
		if err != nil {
			return err
		}
		if actor.ID == toUserID {
			return entity.ErrSelfReaction
		}

		// Serializes concurrent recomputations for the same target.
		if err := repos.Users.LockByID(ctx, toUserID); err != nil {
			if errors.Is(err, entity.ErrUserNotFound) {
				return entity.ErrTargetNotFound
			}
			return err
		}

		now := uc.now()
		if err := repos.Likes.Replace(ctx, actor.ID, toUserID, isLike, now); err != nil {
			return err
		}

		rating, err := repos.Likes.RecomputeRating(ctx, toUserID)
		if err != nil {
			return err
		}
		result.Rating = rating

		if !isLike {
			return nil
		}

		mutual, err := repos.Likes.Exists(ctx, toUserID, actor.ID, true)
		if err != nil {
			return fmt.Errorf("check mutual like: %w", err)
		}
		if !mutual {
			return nil
		}

		peer, err := repos.Users.GetByID(ctx, toUserID)
		if err != nil {
			return err
		}
		created, err := repos.Likes.CreateMatch(ctx, actor.ID, toUserID, now)
		if err != nil {
			return err
		}

		result.Match = true
		result.NewMatch = created
		result.MatchedUser = peer.Party()
		result.FromUser = actor.Party()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.NewMatch {
		metrics.Matches.Inc()
		uc.logger.Info("[MATCH] New match between tg_id=%d and tg_id=%d", fromPlatformID, result.MatchedUser.PlatformID)
	}
	return result, nil
}
