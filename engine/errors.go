package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidFilterSpec is matched by every *InvalidFilterSpecError.
var ErrInvalidFilterSpec = errors.New("invalid filter spec")

// InvalidFilterSpecError reports why a filter spec was rejected.
type InvalidFilterSpecError struct {
	Dimension string
	Reason    string
}

func (e *InvalidFilterSpecError) Error() string {
	if e.Dimension == "" {
		return fmt.Sprintf("invalid filter spec: %s", e.Reason)
	}
	return fmt.Sprintf("invalid filter spec: %s: %s", e.Dimension, e.Reason)
}

func (e *InvalidFilterSpecError) Unwrap() error { return ErrInvalidFilterSpec }

func invalid(dim, format string, args ...any) error {
	return &InvalidFilterSpecError{Dimension: dim, Reason: fmt.Sprintf(format, args...)}
}
