package domain

import "errors"

var (
	// ErrNoActiveSession is returned when a user submits before ever fetching a question.
	ErrNoActiveSession = errors.New("no active quiz session")
	// ErrSessionMismatch means the submitted sessionId belongs to a stale question payload.
	ErrSessionMismatch = errors.New("session mismatch")
	// ErrStaleStateVersion means the submitted stateVersion lags the stored one.
	ErrStaleStateVersion = errors.New("stale state version")
	// ErrVersionConflict is the CAS failure signal; the client must refetch and retry.
	ErrVersionConflict = errors.New("concurrent state modification detected")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestionsAvailable means the pool is empty at every fallback level.
	ErrNoQuestionsAvailable = errors.New("no questions available")
	// ErrInvalidAnswerIndex rejects answer indices outside 0..3.
	ErrInvalidAnswerIndex = errors.New("answer index out of range")
	// ErrStateNotFound is the store-level absence signal for user state.
	ErrStateNotFound = errors.New("user state not found")
)
