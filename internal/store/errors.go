package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a keyed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRemoteQuery matches every QueryError.
	ErrRemoteQuery = errors.New("remote query failed")

	// ErrRemoteMutation matches every MutationError.
	ErrRemoteMutation = errors.New("remote mutation failed")

	// ErrInvalidAPIKey is returned when an API key does not verify.
	ErrInvalidAPIKey = errors.New("invalid api key")
)

// QueryError reports a read rejected by the store.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func (e *QueryError) Is(target error) bool { return target == ErrRemoteQuery }

// MutationError reports a write rejected by the store.
type MutationError struct {
	Op  string
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

func (e *MutationError) Is(target error) bool { return target == ErrRemoteMutation }

// IsQueryError reports whether err (or any error in its chain) is a QueryError.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrRemoteQuery)
}

// IsMutationError reports whether err (or any error in its chain) is a
// MutationError.
func IsMutationError(err error) bool {
	return errors.Is(err, ErrRemoteMutation)
}

func queryErr(op string, err error) error {
	return &QueryError{Op: op, Err: err}
}

func mutationErr(op string, err error) error {
	return &MutationError{Op: op, Err: err}
}
