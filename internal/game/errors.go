package game

import "errors"

var (
	// ErrAlreadyActive is returned when a player starts a round while one is in progress.
	ErrAlreadyActive = errors.New("a round is already in progress")
	// ErrInvalidTransition is returned for inputs the session state does not allow.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrSourceExhausted is returned when no character can be drawn.
	ErrSourceExhausted = errors.New("no character available")
)
