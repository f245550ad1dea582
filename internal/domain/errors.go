package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks an assessment definition that cannot be scored
	// (empty answer key, malformed options, bad time limit). Fatal to the attempt.
	ErrConfiguration = errors.New("assessment configuration error")
	// ErrValidation is returned when a caller input is out of bounds; state is left untouched.
	ErrValidation = errors.New("validation error")
	// ErrTransientPersistence wraps failures of the progress store after retries.
	ErrTransientPersistence = errors.New("progress could not be saved")

	// ErrIncomplete is returned when a standard quiz is submitted with unanswered questions.
	ErrIncomplete = fmt.Errorf("%w: not every question has been answered", ErrValidation)
	// ErrAttemptClosed is returned when an attempt no longer accepts input.
	ErrAttemptClosed = fmt.Errorf("%w: attempt is not in progress", ErrValidation)

	// ErrAssessmentNotFound indicates the assessment definition could not be loaded.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrAttemptNotFound indicates an unknown or already discarded attempt.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrUserNotFound indicates an unknown user account.
	ErrUserNotFound = errors.New("user not found")
)
