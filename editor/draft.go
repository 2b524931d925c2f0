package editor

import (
	"context"
	"sync"
	"time"

	"github.com/meridianpress/draftsync/autosave"
	"github.com/meridianpress/draftsync/internal/logging"
	"github.com/meridianpress/draftsync/models"
)

// remoteSaveFunc pushes a dirty snapshot to the document store. Facades
// configure it for drafts backed by an existing remote record; a draft
// without one autosaves locally only, until it is published.
type remoteSaveFunc func(ctx context.Context, snap autosave.Snapshot) error

// Draft is one entity-in-progress. The UI owns the snapshot and replaces it
// wholesale on every edit; the draft tracks dirtiness against the last
// persisted/sent state and runs the per-tick autosave work.
//
// A remote change notification never writes into an open dirty draft: the
// facade updates its background cache and leaves the visible fields alone
// until the editor saves or discards (see Facade.applySnapshot).
type Draft struct {
	id   string
	kind models.Kind
	key  string

	mu         sync.Mutex
	snapshot   autosave.Snapshot
	detector   *autosave.Detector
	state      DraftState
	isSaving   bool
	lastSaved  time.Time
	lastErr    error
	degraded   bool
	store      autosave.Store
	remoteSave remoteSaveFunc
	logger     logging.Logger
}

func newDraft(id string, kind models.Kind, initial autosave.Snapshot, store autosave.Store, save remoteSaveFunc, logger logging.Logger) *Draft {
	d := &Draft{
		id:         id,
		kind:       kind,
		key:        autosave.Key(string(kind) + ":" + id),
		snapshot:   copySnapshot(initial),
		detector:   autosave.NewDetector(),
		state:      StateClean,
		store:      store,
		remoteSave: save,
		logger:     logger.With("draft", id),
	}
	d.detector.MarkClean(d.snapshot)
	return d
}

// ID returns the draft identifier.
func (d *Draft) ID() string { return d.id }

// remote reports whether the draft is backed by an existing remote record,
// i.e. publish should merge into it rather than create a new one.
func (d *Draft) remote() bool { return d.remoteSave != nil }

// Set replaces a single field and re-evaluates dirtiness.
func (d *Draft) Set(field string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.terminal() {
		return
	}
	d.snapshot[field] = value
	d.markEdited()
}

// Replace swaps in a whole new snapshot, the way a form binds its state.
func (d *Draft) Replace(snap autosave.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.terminal() {
		return
	}
	d.snapshot = copySnapshot(snap)
	d.markEdited()
}

func (d *Draft) markEdited() {
	if d.detector.Dirty(d.snapshot) {
		d.state = StateDirty
	}
}

// Snapshot returns a copy of the current form state.
func (d *Draft) Snapshot() autosave.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return copySnapshot(d.snapshot)
}

// State returns the current lifecycle state.
func (d *Draft) State() DraftState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsSaving reports whether a remote autosave is in flight.
func (d *Draft) IsSaving() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isSaving
}

// HasUnsavedChanges reports whether the snapshot differs from the last
// persisted/sent state.
func (d *Draft) HasUnsavedChanges() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.state.terminal() && d.detector.Dirty(d.snapshot)
}

// LastSaved returns when a remote autosave last succeeded (zero if never).
func (d *Draft) LastSaved() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSaved
}

// LastError returns the most recent autosave failure, if any.
func (d *Draft) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Tick runs one autosave cycle: the local store is written unconditionally
// (cheap), and the remote save runs only when the draft is dirty and a
// remote save is configured. A failed local write degrades the session to
// memory-only instead of crashing the timer; a failed remote save parks the
// draft in SaveFailed until the next tick retries it.
//
// The remote save runs in its own goroutine so a slow push never blocks
// the next tick; the store's merge semantics make overlapping saves safe.
func (d *Draft) Tick(ctx context.Context) {
	d.mu.Lock()
	if d.state.terminal() {
		d.mu.Unlock()
		return
	}
	if d.state == StateSaveFailed {
		d.state = StateDirty
	}

	snap := copySnapshot(d.snapshot)
	dirty := d.detector.Dirty(snap)
	launchRemote := dirty && d.remoteSave != nil
	if launchRemote {
		d.state = StateSaving
		d.isSaving = true
	}
	save := d.remoteSave
	degraded := d.degraded
	d.mu.Unlock()

	if !degraded {
		if err := d.store.Save(ctx, d.key, snap); err != nil {
			d.logger.Warn(ctx, "local draft save failed, continuing in memory only", "error", err)
			d.mu.Lock()
			d.degraded = true
			d.mu.Unlock()
		}
	}

	if !launchRemote {
		return
	}

	go func() {
		err := save(ctx, snap)

		d.mu.Lock()
		defer d.mu.Unlock()
		d.isSaving = false
		if err != nil {
			d.lastErr = err
			if d.state == StateSaving {
				d.state = StateSaveFailed
			}
			d.logger.Warn(ctx, "remote autosave failed, will retry on next tick", "error", err)
			return
		}
		d.lastErr = nil
		d.lastSaved = time.Now()
		d.detector.MarkClean(snap)
		// Edits made while the save was in flight keep the draft dirty
		// against the new baseline.
		if d.state == StateSaving && !d.detector.Dirty(d.snapshot) {
			d.state = StateClean
		} else if d.state == StateSaving {
			d.state = StateDirty
		}
	}()
}

// adoptRemote refreshes a clean draft from a remote snapshot. Never called
// for a dirty draft: local edits win for the open draft.
func (d *Draft) adoptRemote(fields map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateClean {
		return
	}
	d.snapshot = copySnapshot(fields)
	d.detector.MarkClean(d.snapshot)
}

// discard abandons the draft and clears its local record.
func (d *Draft) discard(ctx context.Context) error {
	d.mu.Lock()
	d.state = StateDiscarded
	d.mu.Unlock()
	return d.store.Clear(ctx, d.key)
}

// published marks the draft terminal after a successful publish and clears
// its local record.
func (d *Draft) published(ctx context.Context) error {
	d.mu.Lock()
	d.state = StatePublished
	d.mu.Unlock()
	return d.store.Clear(ctx, d.key)
}

func copySnapshot(snap autosave.Snapshot) autosave.Snapshot {
	out := make(autosave.Snapshot, len(snap))
	for k, v := range snap {
		out[k] = v
	}
	return out
}
