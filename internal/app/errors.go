package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrInactiveUser      = errors.New("user is inactive")
	ErrNotAuthorized     = errors.New("not authorized")

	ErrDocumentNotFound = errors.New("document not found")
	ErrEmptyFile        = errors.New("file is empty")
	ErrFileTooLarge     = errors.New("file exceeds the upload limit")

	ErrMessageEmpty         = errors.New("message content is empty")
	ErrInvalidSessionID     = errors.New("session id is too long")
	ErrAssistantUnavailable = errors.New("the assistant is temporarily unavailable, please try again")
)
