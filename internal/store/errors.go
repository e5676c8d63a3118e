package store

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrLoginExists        = errors.New("login already exists")
	ErrSignatureNotFound  = errors.New("signature not found")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrInvalidInput       = errors.New("invalid input")
)
