// Package editor composes the draft store, change detection, asset uploads
// and the remote document client into the operations an editorial UI calls:
// load, create, update, delete, subscribe, and the autosave tick.
package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/meridianpress/draftsync/assets"
	"github.com/meridianpress/draftsync/autosave"
	"github.com/meridianpress/draftsync/internal/logging"
	"github.com/meridianpress/draftsync/models"
	"github.com/meridianpress/draftsync/remote"
)

// Deps carries the collaborators a facade needs. Janitor may be nil (no
// superseded-asset cleanup); Subscriptions may be nil for write-only use.
type Deps struct {
	Client        remote.Client
	Subscriptions *remote.Manager
	Uploader      assets.Coordinator
	Janitor       *assets.Janitor
	Drafts        autosave.Store
	Logger        logging.Logger
}

// Facade is the per-entity-kind entry point. One facade per kind (News,
// Brand); all of them share the same synchronization machinery.
type Facade[T models.Entity] struct {
	kind       models.Kind
	collection string
	deps       Deps
	logger     logging.Logger

	mu     sync.Mutex
	state  UIState
	drafts map[string]*Draft
	busy   bool
}

func New[T models.Entity](deps Deps) *Facade[T] {
	var zero T
	kind := zero.Kind()
	return &Facade[T]{
		kind:       kind,
		collection: string(kind),
		deps:       deps,
		logger:     deps.Logger.With("module", "editor", "kind", kind),
		drafts:     make(map[string]*Draft),
	}
}

// State returns a copy of the current UI-facing collection state.
func (f *Facade[T]) State() UIState {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	s.Entities = append([]models.RemoteEntity(nil), f.state.Entities...)
	return s
}

// Busy reports whether a create/update/delete is in flight.
func (f *Facade[T]) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func (f *Facade[T]) setBusy(b bool) {
	f.mu.Lock()
	f.busy = b
	f.mu.Unlock()
}

// Load fetches the current collection contents into the UI state.
func (f *Facade[T]) Load(ctx context.Context, filter remote.Filter) ([]models.RemoteEntity, error) {
	f.mu.Lock()
	f.state.Loading = true
	f.mu.Unlock()

	entities, err := f.deps.Client.List(ctx, f.collection, filter)

	f.mu.Lock()
	f.state.Loading = false
	f.state.Err = err
	if err == nil {
		f.state.Entities = entities
	}
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return entities, nil
}

// Create uploads the accompanying image (if any) and then inserts the
// entity. The upload is awaited first: if it fails, the document write is
// never issued and the error is upload-tagged, distinct from a persistence
// failure.
func (f *Facade[T]) Create(ctx context.Context, entity T, image *assets.File, imageField string) (string, error) {
	f.setBusy(true)
	defer f.setBusy(false)

	fields, err := models.Fields(entity)
	if err != nil {
		return "", fmt.Errorf("failed to flatten %s entity: %w", f.kind, err)
	}

	uploaded, err := f.attachImage(ctx, fields, image, imageField)
	if err != nil {
		return "", err
	}

	id, err := f.deps.Client.Create(ctx, f.collection, fields)
	if err != nil {
		f.cleanupAsset(ctx, uploaded)
		return "", err
	}
	f.logger.Info(ctx, "entity created", "id", id)
	return id, nil
}

// Update uploads the replacement image (if any), merges the partial fields
// into the remote record, and queues best-effort cleanup of the superseded
// asset. Cleanup failure never fails the update.
func (f *Facade[T]) Update(ctx context.Context, id string, fields map[string]any, image *assets.File, imageField string) error {
	f.setBusy(true)
	defer f.setBusy(false)

	superseded := f.assetPath(id, imageField)

	uploaded, err := f.attachImage(ctx, fields, image, imageField)
	if err != nil {
		return err
	}

	if err := f.deps.Client.Update(ctx, f.collection, id, fields); err != nil {
		f.cleanupAsset(ctx, uploaded)
		return err
	}

	if uploaded != "" && superseded != "" && superseded != uploaded {
		f.cleanupAsset(ctx, superseded)
	}
	return nil
}

// Delete removes the entity and queues best-effort cleanup of its asset.
// An open draft for the id is discarded along with its local record.
func (f *Facade[T]) Delete(ctx context.Context, id string, imageField string) error {
	f.setBusy(true)
	defer f.setBusy(false)

	superseded := f.assetPath(id, imageField)

	if err := f.deps.Client.Delete(ctx, f.collection, id); err != nil {
		return err
	}

	f.cleanupAsset(ctx, superseded)

	f.mu.Lock()
	d := f.drafts[id]
	delete(f.drafts, id)
	f.mu.Unlock()
	if d != nil {
		if err := d.discard(ctx); err != nil {
			f.logger.Warn(ctx, "failed to clear draft after delete", "id", id, "error", err)
		}
	}
	return nil
}

// Subscribe opens a live view over the collection. Every delivery replaces
// the facade's background cache wholesale (remote wins for read views) and
// refreshes any open clean draft, while a dirty draft's visible fields are
// left alone (local wins for the actively open draft). The returned
// unsubscribe is idempotent and must be called when the view is torn down.
func (f *Facade[T]) Subscribe(ctx context.Context, filter remote.Filter, onChange func(UIState)) (func(), error) {
	return f.deps.Subscriptions.Subscribe(ctx, f.collection, filter, func(entities []models.RemoteEntity) {
		f.applySnapshot(entities)
		if onChange != nil {
			onChange(f.State())
		}
	})
}

func (f *Facade[T]) applySnapshot(entities []models.RemoteEntity) {
	f.mu.Lock()
	f.state.Entities = entities
	f.state.Err = nil
	open := make(map[string]*Draft, len(f.drafts))
	for id, d := range f.drafts {
		open[id] = d
	}
	f.mu.Unlock()

	for _, e := range entities {
		if d, ok := open[e.ID]; ok {
			// No-op for dirty drafts: a concurrent remote push must not
			// erase the editor's keystrokes.
			d.adoptRemote(e.Fields)
		}
	}
}

// OpenDraft starts (or resumes) editing. With an empty id a fresh draft is
// created under a new identifier and autosaves locally only until publish.
// For an existing entity the draft resumes from the crash-surviving local
// record if one exists, else from the cached remote fields, and its dirty
// ticks push a merge to the remote record.
func (f *Facade[T]) OpenDraft(ctx context.Context, id string) (*Draft, error) {
	var save remoteSaveFunc
	if id == "" {
		id = uuid.NewString()
	} else {
		entityID := id
		save = func(ctx context.Context, snap autosave.Snapshot) error {
			return f.deps.Client.Update(ctx, f.collection, entityID, snap)
		}
	}

	f.mu.Lock()
	if d, ok := f.drafts[id]; ok {
		f.mu.Unlock()
		return d, nil
	}
	f.mu.Unlock()

	initial := f.initialSnapshot(ctx, id)
	d := newDraft(id, f.kind, initial, f.deps.Drafts, save, f.logger)

	f.mu.Lock()
	f.drafts[id] = d
	f.mu.Unlock()
	return d, nil
}

func (f *Facade[T]) initialSnapshot(ctx context.Context, id string) autosave.Snapshot {
	key := autosave.Key(string(f.kind) + ":" + id)
	if snap, err := f.deps.Drafts.Load(ctx, key); err == nil {
		f.logger.Info(ctx, "resumed draft from local store", "id", id)
		return snap
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.state.Entities {
		if e.ID == id {
			return copySnapshot(e.Fields)
		}
	}
	return autosave.Snapshot{}
}

// Tick runs one autosave cycle over every open draft. Wire it to an
// autosave.Runner for the fixed-interval behavior.
func (f *Facade[T]) Tick(ctx context.Context) {
	f.mu.Lock()
	open := make([]*Draft, 0, len(f.drafts))
	for _, d := range f.drafts {
		open = append(open, d)
	}
	f.mu.Unlock()

	for _, d := range open {
		d.Tick(ctx)
	}
}

// Publish commits the draft to the document store with a published status:
// an update for drafts backed by an existing record, a create otherwise.
// On success the draft goes terminal and its local record is cleared.
func (f *Facade[T]) Publish(ctx context.Context, d *Draft, image *assets.File, imageField string) (string, error) {
	f.setBusy(true)
	defer f.setBusy(false)

	fields := d.Snapshot()
	fields["status"] = string(models.StatusPublished)

	uploaded, err := f.attachImage(ctx, fields, image, imageField)
	if err != nil {
		return "", err
	}

	id := d.ID()
	if d.remote() {
		err = f.deps.Client.Update(ctx, f.collection, id, fields)
	} else {
		id, err = f.deps.Client.Create(ctx, f.collection, fields)
	}
	if err != nil {
		f.cleanupAsset(ctx, uploaded)
		return "", err
	}

	if err := d.published(ctx); err != nil {
		f.logger.Warn(ctx, "failed to clear published draft", "id", d.ID(), "error", err)
	}
	f.mu.Lock()
	delete(f.drafts, d.ID())
	f.mu.Unlock()

	f.logger.Info(ctx, "draft published", "id", id)
	return id, nil
}

// Discard abandons a draft, clearing its local record.
func (f *Facade[T]) Discard(ctx context.Context, d *Draft) error {
	f.mu.Lock()
	delete(f.drafts, d.ID())
	f.mu.Unlock()
	return d.discard(ctx)
}

// attachImage uploads the file and embeds its reference under imageField.
// Returns the uploaded storage path ("" if no file accompanied the call).
func (f *Facade[T]) attachImage(ctx context.Context, fields map[string]any, image *assets.File, imageField string) (string, error) {
	if image == nil {
		return "", nil
	}
	ref, err := f.deps.Uploader.Upload(ctx, f.kind, *image)
	if err != nil {
		return "", err
	}
	fields[imageField] = ref
	return ref.StoragePath, nil
}

// assetPath digs the storage path of an entity's current asset out of the
// background cache, for superseded-asset cleanup.
func (f *Facade[T]) assetPath(id, imageField string) string {
	if imageField == "" {
		return ""
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.state.Entities {
		if e.ID != id {
			continue
		}
		ref, ok := e.Fields[imageField].(map[string]any)
		if !ok {
			return ""
		}
		path, _ := ref["storagePath"].(string)
		return path
	}
	return ""
}

func (f *Facade[T]) cleanupAsset(ctx context.Context, storagePath string) {
	if storagePath == "" || f.deps.Janitor == nil {
		return
	}
	f.deps.Janitor.CleanupAsync(ctx, storagePath)
}
