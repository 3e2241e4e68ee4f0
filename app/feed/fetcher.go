package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/dmelnik/newswire/app/sources"
)

// MaxItemsPerSource caps how many of the most recent entries are taken from
// one feed document per fetch.
const MaxItemsPerSource = 10

// maxFeedBytes bounds how much of a feed document is read, matching the cap
// on page fetches.
const maxFeedBytes = 2 << 20

// Fetcher retrieves and parses one external feed into raw items. Failing
// sources return an error and an empty slice; there are no retries, a source
// skipped this run is picked up on the next scheduled invocation.
type Fetcher struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	timeout    time.Duration
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		timeout:    timeout,
	}
}

// Fetch retrieves the source's feed document and returns up to
// MaxItemsPerSource raw items in feed order.
func (f *Fetcher) Fetch(ctx context.Context, source sources.Source) ([]RawItem, error) {
	data, err := f.fetchDocument(ctx, source.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	parsed, err := f.parser.Parse(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]RawItem, 0, min(len(parsed.Items), MaxItemsPerSource))
	for _, item := range parsed.Items {
		if len(items) >= MaxItemsPerSource {
			break
		}
		if item == nil || item.Title == "" || item.Link == "" {
			continue
		}
		items = append(items, f.normalizeItem(item))
	}

	slog.Debug("Feed fetched", "source", source.Name, "items", len(items))
	return items, nil
}

func (f *Fetcher) fetchDocument(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}

func (f *Fetcher) normalizeItem(item *gofeed.Item) RawItem {
	raw := RawItem{
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		SummaryHTML: item.Description,
		ContentHTML: item.Content,
		PublishedAt: publishedAt(item),
		MediaURLs:   mediaURLs(item),
	}
	return raw
}

// publishedAt prefers gofeed's parsed timestamp and falls back to lenient
// parsing of the raw date string, since plenty of real feeds carry
// non-RFC822 dates. Items with no usable date get the current time so they
// sort as fresh rather than being dropped.
func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	if item.Published != "" {
		if ts, err := dateparse.ParseAny(item.Published); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}

func mediaURLs(item *gofeed.Item) []string {
	var urls []string

	if item.Image != nil && item.Image.URL != "" {
		urls = append(urls, item.Image.URL)
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if enc.Type == "" || strings.HasPrefix(enc.Type, "image/") {
			urls = append(urls, enc.URL)
		}
	}

	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if url := ext.Attrs["url"]; url != "" {
					urls = append(urls, url)
				}
			}
		}
	}

	return urls
}
