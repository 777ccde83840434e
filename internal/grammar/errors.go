package grammar

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a world root without a resolution policy file.
var ErrNotFound = errors.New("resolution grammar not found")

// ValidationError reports a policy file that does not satisfy the grammar
// schema.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "invalid resolution grammar: " + e.Message
	}
	return fmt.Sprintf("invalid resolution grammar %s: %s", e.Path, e.Message)
}

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
