package feed

import (
	"time"
)

// RawItem is the parsed, source-native representation of one feed entry.
// Ephemeral: it exists only between fetch and normalization.
type RawItem struct {
	Title       string
	Link        string
	PublishedAt time.Time
	SummaryHTML string
	ContentHTML string

	// MediaURLs collects embedded media references in feed order: item
	// image, image enclosures, media:content and media:thumbnail extensions.
	MediaURLs []string
}
