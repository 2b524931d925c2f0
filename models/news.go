package models

import "time"

// News is a news article rendered on the marketing pages.
type News struct {
	Title       string          `json:"title"`
	Slug        string          `json:"slug"`
	Summary     string          `json:"summary"`
	Body        string          `json:"body"`
	Category    string          `json:"category"`
	Status      Status          `json:"status"`
	Image       *AssetReference `json:"image,omitempty"`
	PublishedAt *time.Time      `json:"publishedAt,omitempty"`
}

func (News) Kind() Kind { return KindNews }
