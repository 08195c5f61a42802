package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when a quiz session is not live.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrResultsNotFound indicates no results were stored for a session.
	ErrResultsNotFound = errors.New("results not found")

	// ErrNoQuestions rejects sessions built from an empty question set.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrInvalidQuestion rejects malformed question records.
	ErrInvalidQuestion = errors.New("invalid question")

	// ErrOptionOutOfRange indicates a selection outside the question's options.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrNoSelection is returned by submit when nothing is selected.
	ErrNoSelection = errors.New("no option selected")
	// ErrAlreadyAnswered is returned when the current question is read-only.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrNotAnswered blocks forward navigation from an unanswered question.
	ErrNotAnswered = errors.New("current question not answered")
	// ErrNotLastQuestion is returned by finish before the last question.
	ErrNotLastQuestion = errors.New("not on the last question")
	// ErrExitPending rejects actions while the exit confirmation is open.
	ErrExitPending = errors.New("exit confirmation pending")
	// ErrExitNotRequested rejects confirm/cancel without an open prompt.
	ErrExitNotRequested = errors.New("exit not requested")
	// ErrSessionClosed rejects any mutation on a finished session.
	ErrSessionClosed = errors.New("quiz session closed")
	// ErrNothingToRetry is returned by retry when no error is pending.
	ErrNothingToRetry = errors.New("nothing to retry")
)

// ActionKind names the action boundary a recoverable error was captured at.
type ActionKind string

const (
	KindSubmission ActionKind = "submission"
	KindCompletion ActionKind = "completion"
)

// ActionError is a recoverable failure. Committed answers are untouched and
// the session stays where it was until the action is retried.
type ActionError struct {
	Kind ActionKind
	Err  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Kind, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
