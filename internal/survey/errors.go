package survey

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyKey means no identifier was entered yet. It is a prompt, not a failure.
	ErrEmptyKey = errors.New("no identifier entered")
	// ErrNotFound means no row matched the identifier.
	ErrNotFound = errors.New("respondent not found")
	// ErrMissingAnswer means the respondent skipped a question.
	ErrMissingAnswer = errors.New("no answer")
	// ErrInsufficientData means a statistic cannot be computed from the answers on hand.
	ErrInsufficientData = errors.New("insufficient data")
)

// NotFoundError carries the key that failed to match.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("respondent not found for code %q", e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// MissingAnswerError indicates the respondent has no value for Question.
type MissingAnswerError struct {
	Question string
}

func (e *MissingAnswerError) Error() string {
	return fmt.Sprintf("no answer to %q", e.Question)
}

func (e *MissingAnswerError) Is(target error) bool { return target == ErrMissingAnswer }

// InsufficientDataError indicates a statistic for Question has nothing to work with.
type InsufficientDataError struct {
	Question string
	Reason   string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("insufficient data for %q: %s", e.Question, e.Reason)
	}
	return fmt.Sprintf("insufficient data for %q", e.Question)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }
