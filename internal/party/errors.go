package party

import "errors"

var (
	ErrNotFound       = errors.New("party not found")
	ErrInvalidConfig  = errors.New("invalid party config")
	ErrPlayerNotFound = errors.New("player not found")
	ErrUnknownTeam    = errors.New("unknown team")
	ErrNotStarted     = errors.New("game not started")
)
