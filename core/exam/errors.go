package exam

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("exam not found")
	// ErrConfigMissing is returned by NewGradingScale for an empty scale. Callers recover by using DefaultScale.
	ErrConfigMissing = errors.New("grading scale not configured")
)

// ParseError reports a typed or pasted value that is not a usable cell value. The cell is skipped.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Reason)
}

// FetchError wraps a failed read from the store of record. Drafts are never touched by it.
type FetchError struct {
	Op  string
	Err error
}

func NewFetchError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &FetchError{Op: op, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Op, e.Err)
}

func (e *FetchError) Cause() error { return e.Err }

// SaveError wraps a failed write. The unsaved drafts are kept for the next attempt.
type SaveError struct {
	Op  string
	Err error
}

func NewSaveError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &SaveError{Op: op, Err: err}
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("saving %s: %v", e.Op, e.Err)
}

func (e *SaveError) Cause() error { return e.Err }

// IsFetchError reports whether a *FetchError is part of err's chain.
func IsFetchError(err error) bool {
	return asFetchError(err) != nil
}

// IsSaveError reports whether a *SaveError is part of err's chain.
func IsSaveError(err error) bool {
	return asSaveError(err) != nil
}

func asFetchError(err error) *FetchError {
	for err != nil {
		if fe, ok := err.(*FetchError); ok {
			return fe
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return nil
		}
		err = cause.Cause()
	}
	return nil
}

func asSaveError(err error) *SaveError {
	for err != nil {
		if se, ok := err.(*SaveError); ok {
			return se
		}
		cause, ok := err.(interface{ Cause() error })
		if !ok {
			return nil
		}
		err = cause.Cause()
	}
	return nil
}
