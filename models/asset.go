package models

// AssetReference points at an uploaded binary object. A RemoteEntity must
// never reference an AssetReference whose underlying object does not exist,
// so references are only produced after a successful upload.
type AssetReference struct {
	URL         string `json:"url"`
	StoragePath string `json:"storagePath"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}
