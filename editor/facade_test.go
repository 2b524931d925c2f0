package editor

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/meridianpress/draftsync/assets"
	"github.com/meridianpress/draftsync/autosave"
	"github.com/meridianpress/draftsync/internal/common"
	"github.com/meridianpress/draftsync/internal/logging"
	"github.com/meridianpress/draftsync/models"
	"github.com/meridianpress/draftsync/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updateCall struct {
	collection string
	id         string
	fields     map[string]any
}

type fakeClient struct {
	mu        sync.Mutex
	creates   []map[string]any
	updates   []updateCall
	deletes   []string
	entities  []models.RemoteEntity
	createErr error
	updateErr error
	deleteErr error
	nextID    string
}

func (c *fakeClient) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return "", c.createErr
	}
	c.creates = append(c.creates, fields)
	if c.nextID == "" {
		c.nextID = "generated-id"
	}
	return c.nextID, nil
}

func (c *fakeClient) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updateErr != nil {
		return c.updateErr
	}
	c.updates = append(c.updates, updateCall{collection: collection, id: id, fields: fields})
	return nil
}

func (c *fakeClient) Delete(ctx context.Context, collection, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deletes = append(c.deletes, id)
	return nil
}

func (c *fakeClient) Get(ctx context.Context, collection, id string) (*models.RemoteEntity, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeClient) List(ctx context.Context, collection string, f remote.Filter) ([]models.RemoteEntity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.RemoteEntity(nil), c.entities...), nil
}

func (c *fakeClient) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

type fakeUploader struct {
	mu      sync.Mutex
	err     error
	uploads []string
	removed []string
}

func (u *fakeUploader) Upload(ctx context.Context, kind models.Kind, f assets.File) (*models.AssetReference, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return nil, &common.UploadError{Path: f.Name, Err: u.err}
	}
	path := string(kind) + "/1-" + f.Name
	u.uploads = append(u.uploads, path)
	return &models.AssetReference{
		URL:         "https://cdn.example.com/" + path,
		StoragePath: path,
		ContentType: f.ContentType,
		Size:        f.Size,
	}, nil
}

func (u *fakeUploader) Remove(ctx context.Context, storagePath string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.removed = append(u.removed, storagePath)
	return nil
}

func (u *fakeUploader) removedPaths() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.removed...)
}

func newTestFacade(t *testing.T, client *fakeClient, uploader *fakeUploader, store autosave.Store) *Facade[models.News] {
	t.Helper()
	if store == nil {
		store = autosave.NewMemoryStore()
	}
	return New[models.News](Deps{
		Client:   client,
		Uploader: uploader,
		Janitor:  assets.NewJanitor(uploader, logging.Discard()),
		Drafts:   store,
		Logger:   logging.Discard(),
	})
}

func testImage() *assets.File {
	return &assets.File{
		Name:        "cover.png",
		ContentType: "image/png",
		Size:        4,
		Body:        bytes.NewReader([]byte("data")),
	}
}

func TestCreate_UploadBeforeCommit(t *testing.T) {
	client := &fakeClient{}
	uploader := &fakeUploader{err: errors.New("quota")}
	f := newTestFacade(t, client, uploader, nil)

	_, err := f.Create(context.Background(), models.News{Title: "A"}, testImage(), "image")
	require.Error(t, err)

	var ue *common.UploadError
	assert.True(t, errors.As(err, &ue), "error must be tagged upload-origin")
	assert.Empty(t, client.creates, "a failed upload must never be followed by a document write")
	assert.False(t, f.Busy(), "busy flag cleared on the error path")
}

func TestCreate_EmbedsAssetReference(t *testing.T) {
	client := &fakeClient{nextID: "doc-1"}
	uploader := &fakeUploader{}
	f := newTestFacade(t, client, uploader, nil)

	id, err := f.Create(context.Background(), models.News{Title: "A"}, testImage(), "image")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)

	require.Len(t, client.creates, 1)
	ref, ok := client.creates[0]["image"].(*models.AssetReference)
	require.True(t, ok)
	assert.Equal(t, "news/1-cover.png", ref.StoragePath)
}

func TestCreate_WithoutImageSkipsUploader(t *testing.T) {
	client := &fakeClient{}
	uploader := &fakeUploader{err: errors.New("should not be called")}
	f := newTestFacade(t, client, uploader, nil)

	_, err := f.Create(context.Background(), models.News{Title: "A"}, nil, "image")
	require.NoError(t, err)
	require.Len(t, client.creates, 1)
}

func TestUpdate_CleansUpSupersededAsset(t *testing.T) {
	client := &fakeClient{entities: []models.RemoteEntity{{
		ID: "doc-1",
		Fields: map[string]any{
			"title": "A",
			"image": map[string]any{"storagePath": "news/0-old.png"},
		},
	}}}
	uploader := &fakeUploader{}
	f := newTestFacade(t, client, uploader, nil)

	_, err := f.Load(context.Background(), remote.Filter{})
	require.NoError(t, err)

	err = f.Update(context.Background(), "doc-1", map[string]any{"title": "B"}, testImage(), "image")
	require.NoError(t, err)
	require.Len(t, client.updates, 1)

	assert.Eventually(t, func() bool {
		paths := uploader.removedPaths()
		return len(paths) == 1 && paths[0] == "news/0-old.png"
	}, time.Second, 5*time.Millisecond, "old asset cleanup is queued after a successful update")
}

func TestUpdate_PersistenceFailureDoesNotRemoveOldAsset(t *testing.T) {
	client := &fakeClient{updateErr: &common.PersistenceError{Op: "update", Collection: "news", Err: common.ErrUnavailable}}
	uploader := &fakeUploader{}
	f := newTestFacade(t, client, uploader, nil)

	err := f.Update(context.Background(), "doc-1", map[string]any{"title": "B"}, testImage(), "image")
	require.Error(t, err)

	var pe *common.PersistenceError
	assert.True(t, errors.As(err, &pe), "persistence failures keep their own taxonomy")

	// The freshly uploaded (now orphaned) object is queued for cleanup.
	assert.Eventually(t, func() bool {
		paths := uploader.removedPaths()
		return len(paths) == 1 && paths[0] == "news/1-cover.png"
	}, time.Second, 5*time.Millisecond)
	assert.False(t, f.Busy())
}

func TestDelete_RemovesDocAndDraft(t *testing.T) {
	store := autosave.NewMemoryStore()
	client := &fakeClient{entities: []models.RemoteEntity{{ID: "doc-1", Fields: map[string]any{"title": "A"}}}}
	f := newTestFacade(t, client, &fakeUploader{}, store)

	_, err := f.Load(context.Background(), remote.Filter{})
	require.NoError(t, err)

	d, err := f.OpenDraft(context.Background(), "doc-1")
	require.NoError(t, err)
	d.Set("title", "edited")
	d.Tick(context.Background()) // persist locally

	require.NoError(t, f.Delete(context.Background(), "doc-1", "image"))
	assert.Equal(t, []string{"doc-1"}, client.deletes)

	_, err = store.Load(context.Background(), autosave.Key("news:doc-1"))
	assert.ErrorIs(t, err, common.ErrNotFound, "draft record cleared with the entity")
}

func TestApplySnapshot_NoDraftClobber(t *testing.T) {
	client := &fakeClient{}
	f := newTestFacade(t, client, &fakeUploader{}, nil)

	ctx := context.Background()
	d, err := f.OpenDraft(ctx, "doc-1")
	require.NoError(t, err)
	d.Set("title", "my unsaved keystrokes")
	require.Equal(t, StateDirty, d.State())

	// A concurrent editor changed the same record remotely.
	f.applySnapshot([]models.RemoteEntity{{
		ID:     "doc-1",
		Fields: map[string]any{"title": "remote title"},
	}})

	assert.Equal(t, "my unsaved keystrokes", d.Snapshot()["title"],
		"an incoming remote snapshot must not overwrite an open dirty draft")
	assert.Equal(t, "remote title", f.State().Entities[0].Field("title"),
		"the read view adopts the remote value unconditionally")
}

func TestApplySnapshot_CleanDraftAdoptsRemote(t *testing.T) {
	f := newTestFacade(t, &fakeClient{}, &fakeUploader{}, nil)

	ctx := context.Background()
	d, err := f.OpenDraft(ctx, "doc-1")
	require.NoError(t, err)
	require.Equal(t, StateClean, d.State())

	f.applySnapshot([]models.RemoteEntity{{
		ID:     "doc-1",
		Fields: map[string]any{"title": "remote title"},
	}})

	assert.Equal(t, "remote title", d.Snapshot()["title"],
		"a clean draft follows the canonical remote state")
	assert.Equal(t, StateClean, d.State())
}

func TestAutosave_CrashResumeThenRemoteSaveOnce(t *testing.T) {
	ctx := context.Background()
	store := autosave.NewMemoryStore()

	// First session: a draft is saved locally, then the process "dies".
	f1 := newTestFacade(t, &fakeClient{}, &fakeUploader{}, store)
	d1, err := f1.OpenDraft(ctx, "doc-1")
	require.NoError(t, err)
	d1.Set("title", "A")
	d1.Tick(ctx)

	// Second session resumes from the surviving local record.
	client := &fakeClient{}
	f2 := newTestFacade(t, client, &fakeUploader{}, store)
	d2, err := f2.OpenDraft(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "A", d2.Snapshot()["title"])

	d2.Set("title", "B")
	d2.Tick(ctx)

	assert.Eventually(t, func() bool { return client.updateCount() == 1 },
		time.Second, 5*time.Millisecond, "one remote save per dirty tick")

	client.mu.Lock()
	call := client.updates[0]
	client.mu.Unlock()
	assert.Equal(t, "doc-1", call.id)
	assert.Equal(t, "B", call.fields["title"])

	snap, err := store.Load(ctx, autosave.Key("news:doc-1"))
	require.NoError(t, err)
	assert.Equal(t, "B", snap["title"], "local entry overwritten on the dirty tick")

	// A save-free tick afterwards must not re-send.
	assert.Eventually(t, func() bool { return !d2.IsSaving() }, time.Second, 5*time.Millisecond)
	f2.Tick(ctx)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, client.updateCount(), "clean ticks never hit the network")
}

func TestPublish_NewDraftCreatesAndClearsLocal(t *testing.T) {
	ctx := context.Background()
	store := autosave.NewMemoryStore()
	client := &fakeClient{nextID: "doc-9"}
	f := newTestFacade(t, client, &fakeUploader{}, store)

	d, err := f.OpenDraft(ctx, "")
	require.NoError(t, err)
	d.Set("title", "fresh")
	d.Tick(ctx)

	id, err := f.Publish(ctx, d, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "doc-9", id)
	assert.Equal(t, StatePublished, d.State())

	require.Len(t, client.creates, 1)
	assert.Equal(t, string(models.StatusPublished), client.creates[0]["status"])

	_, err = store.Load(ctx, autosave.Key("news:"+d.ID()))
	assert.ErrorIs(t, err, common.ErrNotFound, "published drafts leave no local record behind")
}

func TestPublish_ExistingDraftMerges(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	f := newTestFacade(t, client, &fakeUploader{}, nil)

	d, err := f.OpenDraft(ctx, "doc-1")
	require.NoError(t, err)
	d.Set("title", "B")

	id, err := f.Publish(ctx, d, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", id)
	require.Len(t, client.updates, 1)
	assert.Empty(t, client.creates)
}

func TestDiscard_ClearsLocalRecord(t *testing.T) {
	ctx := context.Background()
	store := autosave.NewMemoryStore()
	f := newTestFacade(t, &fakeClient{}, &fakeUploader{}, store)

	d, err := f.OpenDraft(ctx, "doc-1")
	require.NoError(t, err)
	d.Set("title", "scratch")
	d.Tick(ctx)

	require.NoError(t, f.Discard(ctx, d))
	assert.Equal(t, StateDiscarded, d.State())

	_, err = store.Load(ctx, autosave.Key("news:doc-1"))
	assert.ErrorIs(t, err, common.ErrNotFound)

	d.Set("title", "too late")
	assert.Equal(t, StateDiscarded, d.State(), "terminal drafts ignore further edits")
}

func TestOpenDraft_IsIdempotentPerID(t *testing.T) {
	ctx := context.Background()
	f := newTestFacade(t, &fakeClient{}, &fakeUploader{}, nil)

	a, err := f.OpenDraft(ctx, "doc-1")
	require.NoError(t, err)
	b, err := f.OpenDraft(ctx, "doc-1")
	require.NoError(t, err)
	assert.Same(t, a, b)
}
