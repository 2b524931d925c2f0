// Package common defines shared constants and sentinel errors used across
// the library. Callers should use errors.Is to match sentinel values and
// errors.As to extract the typed categories.
package common

import (
	"errors"
	"fmt"
)

var (
	// Cause-level errors. These are wrapped into the typed categories below
	// so callers can distinguish e.g. a missing record from a revoked grant.
	ErrNotFound    = errors.New("not found")
	ErrPermission  = errors.New("permission denied")
	ErrUnavailable = errors.New("unavailable")

	// ErrQuotaExceeded marks a local or remote storage quota failure.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// PersistenceError reports a failed create/update/delete against the
// document store. Err carries the cause (ErrNotFound, ErrPermission,
// ErrUnavailable, or a driver error).
type PersistenceError struct {
	Op         string
	Collection string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UploadError reports a failed object-storage upload. A document write that
// depends on the uploaded asset must not proceed after one of these.
type UploadError struct {
	Path string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// LocalStorageError reports a failed write to the durable draft store.
// Non-fatal: the edit session continues in memory-only degraded mode.
type LocalStorageError struct {
	Key string
	Err error
}

func (e *LocalStorageError) Error() string {
	return fmt.Sprintf("local storage %s: %v", e.Key, e.Err)
}

func (e *LocalStorageError) Unwrap() error { return e.Err }

// SubscriptionError reports a failure of the live remote listener. The UI
// should treat data as stale until the surrounding application re-subscribes.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }
