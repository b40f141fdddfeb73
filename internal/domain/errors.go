package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAttemptFinished is returned when an attempt no longer accepts changes.
	ErrAttemptFinished = errors.New("attempt already finished")
	// ErrAttemptLimitReached indicates the user used up the test's attempts.
	ErrAttemptLimitReached = errors.New("attempt limit reached")
	// ErrNoQuestions indicates a test without any gradable question.
	ErrNoQuestions = errors.New("test has no questions")
	// ErrAnswerTypeMismatch indicates a submission shaped for another answer type.
	ErrAnswerTypeMismatch = errors.New("submission does not match question answer type")
	// ErrInvalidQuestion indicates options/correct inconsistent with the answer type.
	ErrInvalidQuestion = errors.New("question options do not match answer type")
)

// NotFoundError reports a missing test, question, attempt or answer.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// StateError reports an operation attempted in the wrong lifecycle state.
type StateError struct {
	AttemptID string
	Err       error
}

func (e *StateError) Error() string {
	if e.AttemptID == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("attempt %s: %v", e.AttemptID, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// ConfigurationError reports a test or question that cannot be graded as authored.
type ConfigurationError struct {
	Subject string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Subject == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Subject, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
