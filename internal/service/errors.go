// Package service holds the live-session lifecycle: starting, joining and
// ending broadcasts, and archiving ended ones as podcasts.
package service

import "errors"

// Errors returned by the lifecycle manager.  Handlers map them to HTTP
// statuses with errors.Is; details are attached with fmt.Errorf("%w: ...").
var (
	ErrNotFound   = errors.New("live session not found")
	ErrForbidden  = errors.New("only the host can end this session")
	ErrValidation = errors.New("validation failed")
)
