package apperrors

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnknownModel   = errors.New("unknown model")
	ErrNoSchema       = errors.New("no schema available")
	ErrIntentBlocked  = errors.New("message blocked before generation")
	ErrAuthNotEnabled = errors.New("authentication is not configured")
	ErrInvalidLogin   = errors.New("invalid email or password")
)
