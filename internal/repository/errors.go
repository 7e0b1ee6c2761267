package repository

import "errors"

var (
	ErrDuplicate     = errors.New("record already exists")
	ErrInvalidChunks = errors.New("invalid chunk set")
)
