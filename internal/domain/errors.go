package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable wraps every storage I/O failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotifier marks a failed hand-off to the notifier.
	ErrNotifier = errors.New("notifier failure")
)

// FetchError is a failure of a single source. It never aborts ingestion from other sources.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
