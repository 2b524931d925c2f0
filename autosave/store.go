// Package autosave buffers in-progress edits to durable local storage so
// they survive a crash, and decides when a dirty draft needs to be pushed
// to the remote store.
package autosave

import "context"

// Snapshot is the full editable form state for one entity-in-progress.
// It is owned by the editing session and replaced wholesale on every edit;
// the store treats it as an opaque JSON-serializable document.
type Snapshot = map[string]any

// timestampField is injected into the persisted JSON document on Save and
// stripped again on Load.
const timestampField = "_autosaveTimestamp"

const keyPrefix = "autosave_"

// Key derives the local storage key for a draft identifier.
func Key(draftID string) string {
	return keyPrefix + draftID
}

// Store is a durable key→value store for draft snapshots. Writes outlive
// the calling process.
//
// Save must be atomic from the caller's perspective: a concurrent Load never
// observes a half-written record. Load returns common.ErrNotFound (wrapped)
// when no record exists. Clear is idempotent.
type Store interface {
	Save(ctx context.Context, key string, snap Snapshot) error
	Load(ctx context.Context, key string) (Snapshot, error)
	Clear(ctx context.Context, key string) error
}
