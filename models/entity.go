// Package models defines the entity kinds the editorial console manages and
// the canonical remote record shape they share.
package models

import (
	"encoding/json"
	"time"
)

// Kind names a content type sharing the same synchronization machinery.
// It doubles as the remote collection name.
type Kind string

const (
	KindNews  Kind = "news"
	KindBrand Kind = "brand"
)

// Status is the publication state of an entity.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Entity is implemented by every content type handled by the facade.
type Entity interface {
	Kind() Kind
}

// RemoteEntity is the canonical persisted record as held by the document
// store. The client only ever keeps a cached copy; the store owns it.
type RemoteEntity struct {
	ID        string         `json:"id"`
	Fields    map[string]any `json:"fields"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Field returns a single domain field, or nil if absent.
func (e RemoteEntity) Field(name string) any {
	return e.Fields[name]
}

// Fields flattens a typed entity into the generic field map sent to the
// document store. Field names follow the struct's json tags.
func Fields(v Entity) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode rebuilds a typed entity from a generic field map.
func Decode[T Entity](fields map[string]any) (T, error) {
	var out T
	b, err := json.Marshal(fields)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, err
	}
	return out, nil
}
