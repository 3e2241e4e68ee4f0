package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmelnik/newswire/app/database"
	"github.com/dmelnik/newswire/app/textutil"
)

const crossPostBodyLimit = 240

// Publisher persists normalized items as canonical records and best-effort
// cross-posts a derived summary to the secondary feed.
type Publisher struct {
	items      database.ItemStore
	posts      database.PostStore
	composer   Composer // may be nil when no compose endpoint is configured
	author     string
	visibility string
}

func NewPublisher(items database.ItemStore, posts database.PostStore, composer Composer, author, visibility string) *Publisher {
	return &Publisher{
		items:      items,
		posts:      posts,
		composer:   composer,
		author:     author,
		visibility: visibility,
	}
}

// Publish writes the record to the primary store and, when crossPost is set,
// attempts the secondary write. Cross-post failure never fails the publish;
// the record's CrossPostID simply stays unset.
func (p *Publisher) Publish(ctx context.Context, record *database.PublishedRecord, crossPost bool) error {
	if err := p.items.Insert(record); err != nil {
		return fmt.Errorf("failed to persist item: %w", err)
	}

	if !crossPost {
		return nil
	}

	postID, err := p.crossPost(ctx, record)
	if err != nil {
		slog.Warn("Cross-post failed", "item", record.ID, "title", textutil.Truncate(record.Title, 60), "error", err)
		return nil
	}

	if err := p.items.AttachCrossPost(record.ID, postID); err != nil {
		slog.Warn("Failed to attach cross-post id", "item", record.ID, "post", postID, "error", err)
		return nil
	}

	record.CrossPostID = &postID
	return nil
}

// crossPost tries the high-level compose call first and falls back to a
// direct post-row insert with equivalent fields.
func (p *Publisher) crossPost(ctx context.Context, record *database.PublishedRecord) (string, error) {
	body := p.deriveBody(record)

	if p.composer != nil {
		postID, err := p.composer.Compose(ctx, ComposeRequest{
			Author:     p.author,
			Body:       body,
			MediaURLs:  []string{record.ImageURL},
			Visibility: p.visibility,
			Metadata: map[string]string{
				"source":   record.SourceName,
				"category": record.Category,
				"link":     record.Link,
			},
		})
		if err == nil {
			return postID, nil
		}
		slog.Debug("Compose call failed, falling back to direct insert", "item", record.ID, "error", err)
	}

	post := &database.Post{
		Author:     p.author,
		Body:       body,
		Link:       record.Link,
		ImageURL:   record.ImageURL,
		Visibility: p.visibility,
		ItemID:     record.ID,
	}
	if err := p.posts.Insert(post); err != nil {
		return "", fmt.Errorf("fallback insert failed: %w", err)
	}

	return post.ID, nil
}

func (p *Publisher) deriveBody(record *database.PublishedRecord) string {
	body := record.Title
	if record.Summary != "" {
		body = fmt.Sprintf("%s: %s", record.Title, record.Summary)
	}
	body = textutil.Truncate(body, crossPostBodyLimit)
	return fmt.Sprintf("%s\n%s", body, record.Link)
}
