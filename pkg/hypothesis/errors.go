package hypothesis

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is matched by every configuration failure.
	ErrConfig = errors.New("invalid hypotheses configuration")

	// ErrIndex is matched when a weight edit targets a missing hypothesis.
	ErrIndex = errors.New("hypothesis index out of range")
)

// ConfigError describes why a configuration payload was rejected.
// Entry is the zero-based hypothesis position, or -1 for document-level problems.
type ConfigError struct {
	Entry int
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Entry < 0:
		return fmt.Sprintf("%s: %v", ErrConfig, e.Err)
	case e.Field != "":
		return fmt.Sprintf("%s: entry %d: field %q: %v", ErrConfig, e.Entry, e.Field, e.Err)
	default:
		return fmt.Sprintf("%s: entry %d: %v", ErrConfig, e.Entry, e.Err)
	}
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrConfig, e.Err}
}

// NewConfigError wraps err as a document-level configuration error.
func NewConfigError(err error) *ConfigError {
	return &ConfigError{Entry: -1, Err: err}
}

// IndexError reports an out-of-range hypothesis index.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: %d (registry holds %d)", ErrIndex, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrIndex
}
