package storage

import "errors"

var (
	ErrUserExists    = errors.New("user already exists")
	ErrUserNotFound  = errors.New("user not found")
	ErrEntryNotFound = errors.New("entry not found")
	ErrTokenNotFound = errors.New("verification token not found")
)
