package persistent

import (
	"context"

	"gorm.io/gorm"
)

// Repos is the set of repositories bound to one transaction.
type Repos struct {
	Users UserRepository
	Likes LikeRepository
}

type Transactor interface {
	// WithinTransaction commits when fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(repos Repos) error) error
}

type transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) Transactor {
	return &transactor{db: db}
}

func (t *transactor) WithinTransaction(ctx context.Context, fn func(repos Repos) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Repos{
			Users: NewUserRepository(tx),
			Likes: NewLikeRepository(tx),
		})
	})
}
