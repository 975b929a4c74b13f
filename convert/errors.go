package convert

import (
	"errors"
	"fmt"
)

// Failure taxonomy for provider attempts. The fallback chain branches on
// these with errors.Is:
//
//	ErrNotAvailable — provider unreachable or unconfigured; advance chain.
//	ErrTimeout      — attempt exceeded its time bound; advance chain.
//	ErrProvider     — provider returned an error or unusable response; advance chain.
//	ErrInvalidInput — the input itself is bad; abort the whole chain.
var (
	ErrNotAvailable = errors.New("converter not available")
	ErrTimeout      = errors.New("conversion timed out")
	ErrProvider     = errors.New("provider error")
	ErrInvalidInput = errors.New("invalid input")
)

func notAvailablef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotAvailable)...)
}

func timeoutf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrTimeout)...)
}

func providerErrf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrProvider)...)
}

func invalidInputf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidInput)...)
}

// retryable reports whether a failed attempt should advance the chain
// rather than abort it.
func retryable(err error) bool {
	return !errors.Is(err, ErrInvalidInput)
}
