package database

import (
	"time"
)

// PublishedRecord is a persisted item: the normalized candidate plus storage
// metadata. Created once per accepted item; only cross_post_id is ever
// updated afterwards. Never deleted by the pipeline.
type PublishedRecord struct {
	ID          string
	Kind        string
	Title       string
	Link        string
	PublishedAt time.Time
	SourceName  string
	Category    string
	Summary     string
	ImageURL    string
	Slug        string
	CrossPostID *string
	CreatedAt   time.Time
}

// RecentItem is the slice of a published record the deduplication engine
// compares against.
type RecentItem struct {
	Title       string
	Link        string
	PublishedAt time.Time
}

// Post is one row in the secondary social feed, written by the low-level
// cross-post fallback path.
type Post struct {
	ID         string
	Author     string
	Body       string
	Link       string
	ImageURL   string
	Visibility string
	ItemID     string
	CreatedAt  time.Time
}
