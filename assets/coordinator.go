// Package assets couples binary uploads to object storage with the document
// writes that reference them: a document write must only ever commit a
// reference produced by a completed upload.
package assets

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/meridianpress/draftsync/models"
)

// File is the binary accompanying a create/update call.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Coordinator uploads binaries and removes superseded ones.
//
// Upload is awaited to completion before the owning document write is
// issued; on failure it returns a common.UploadError and the document
// operation must not proceed. Remove is best-effort cleanup of a
// superseded object (see Janitor).
type Coordinator interface {
	Upload(ctx context.Context, kind models.Kind, f File) (*models.AssetReference, error)
	Remove(ctx context.Context, storagePath string) error
}

// StorageKey builds the object key for an upload. The timestamp prefix
// avoids collisions between assets sharing an original filename.
func StorageKey(kind models.Kind, filename string) (string, error) {
	base := path.Base(filename)
	if base == "" || base == "." || base == ".." || base != filename {
		return "", fmt.Errorf("invalid asset filename %q: must be a plain name, not a path", filename)
	}
	return fmt.Sprintf("%s/%d-%s", kind, time.Now().Unix(), base), nil
}
