package upstream

import (
	"fmt"
)

// Error carries the classification of a failed upstream call.
type Error struct {
	StatusCode int
	Class      Class
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}
