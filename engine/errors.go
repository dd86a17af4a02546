package engine

import "errors"

var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrIndexNotFound = errors.New("index root not found")
	ErrIndexExists   = errors.New("index root already exists")
	ErrBadToken      = errors.New("invalid location token")
	ErrKeyLength     = errors.New("key length out of range")
)
