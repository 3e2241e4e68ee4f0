package pipeline

import (
	"context"

	"github.com/dmelnik/newswire/app/database"
	"github.com/dmelnik/newswire/app/feed"
	"github.com/dmelnik/newswire/app/sources"
)

// SourceFetcher retrieves raw items from one source.
type SourceFetcher interface {
	Fetch(ctx context.Context, source sources.Source) ([]feed.RawItem, error)
}

// ImageResolver produces a non-empty image URL for one raw item.
type ImageResolver interface {
	Resolve(ctx context.Context, raw feed.RawItem, category string) string
}

// Summarizer extracts a readable summary from an article page.
type Summarizer interface {
	Extract(ctx context.Context, pageURL string) (string, error)
}

// ItemPublisher persists a record and best-effort cross-posts it.
type ItemPublisher interface {
	Publish(ctx context.Context, record *database.PublishedRecord, crossPost bool) error
}
