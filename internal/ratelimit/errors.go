package ratelimit

import (
	"errors"
	"fmt"
)

// ErrUnknownAction is returned when the engine is asked about an action it
// has no policy for. It signals a programming error in the caller.
var ErrUnknownAction = errors.New("unknown rate limited action")

// ErrInvalidCooldown is returned for a cooldown length outside the allowed
// range.
var ErrInvalidCooldown = errors.New("invalid cooldown length")

func unknownAction(action string) error {
	return fmt.Errorf("%w: %q", ErrUnknownAction, action)
}
