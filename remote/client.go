// Package remote talks to the canonical document store: CRUD on named
// collections plus live change subscriptions. The store is PostgreSQL; each
// document is a JSONB field map with server-assigned id and timestamps.
package remote

import (
	"context"

	"github.com/meridianpress/draftsync/models"
)

// Client performs create/update/delete against the document store.
//
// Update merges: fields omitted from the partial map are left untouched on
// the remote record. All writes stamp updatedAt (and createdAt on create)
// with the server's clock, so ordering stays well-defined across editing
// sessions with skewed client clocks. Failures come back as
// *common.PersistenceError carrying the cause.
type Client interface {
	// Create inserts a document and returns the server-assigned id.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Update merges partial fields into an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document.
	Delete(ctx context.Context, collection, id string) error

	// Get fetches a single document.
	Get(ctx context.Context, collection, id string) (*models.RemoteEntity, error)

	// List runs a filtered, ordered query over a collection.
	List(ctx context.Context, collection string, f Filter) ([]models.RemoteEntity, error)
}
