package database

import (
	"time"
)

// ItemStore is the storage interface the pipeline consumes for canonical
// published records.
type ItemStore interface {
	QueryRecent(kind string, since time.Time) ([]RecentItem, error)
	Insert(record *PublishedRecord) error
	AttachCrossPost(itemID, crossPostID string) error
	CountByKind(kind string) (int, error)
}

// PostStore is the low-level cross-post fallback: a direct insert into the
// secondary feed's post rows.
type PostStore interface {
	Insert(post *Post) error
}
