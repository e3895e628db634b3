package entity

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTargetNotFound     = errors.New("target user not found")
	ErrAlreadyRegistered  = errors.New("user already registered")
	ErrSelfReaction       = errors.New("cannot react to own profile")
	ErrInvalidName        = errors.New("full name must contain lastname and firstname, each up to 25 characters")
	ErrInvalidAge         = errors.New("age must be between 10 and 110")
	ErrInvalidGender      = errors.New("gender is required")
	ErrInvalidBio         = errors.New("bio must be at most 200 characters")
	ErrInvalidPreferences = errors.New("invalid preferences")
	ErrInvalidPhoto       = errors.New("photo is required")
	ErrEmptyUpdate        = errors.New("nothing to update")
)
