package shared

import "errors"

// Engine error taxonomy. Callers branch on these with errors.Is; none of them
// is fatal to the host process.
var (
	ErrNotFound            = errors.New("not found")
	ErrNotCompleted        = errors.New("challenge not completed")
	ErrAlreadyClaimed      = errors.New("reward already claimed")
	ErrInvalidQuality      = errors.New("invalid review quality")
	ErrInvalidPeriodKey    = errors.New("invalid period key")
	ErrInvalidEventType    = errors.New("invalid event type")
	ErrConcurrencyConflict = errors.New("concurrent modification, retry")
	ErrInsufficientStars   = errors.New("insufficient star balance")
)
