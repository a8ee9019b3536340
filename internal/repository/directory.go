package repository

import "errors"

var (
	// ErrUserExists is returned by Create when the phone number is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned by Update when there is no record to change.
	ErrUserNotFound = errors.New("user not found")
)
