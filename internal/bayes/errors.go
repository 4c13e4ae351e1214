package bayes

import (
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped) by every failing core operation.
// Callers match them with errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDegenerateEvidence = errors.New("degenerate evidence")
	ErrEmptyState         = errors.New("empty state")
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func degenerate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDegenerateEvidence, fmt.Sprintf(format, args...))
}
