package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/dmelnik/newswire/app/feed"
)

// categoryDefaults maps each category to its static fallback image. The
// generic default covers categories without an entry.
var categoryDefaults = map[string]string{
	"tournament": "https://static.newswire.poker/defaults/tournament.jpg",
	"strategy":   "https://static.newswire.poker/defaults/strategy.jpg",
	"industry":   "https://static.newswire.poker/defaults/industry.jpg",
	"video":      "https://static.newswire.poker/defaults/video.jpg",
	"news":       "https://static.newswire.poker/defaults/news.jpg",
}

const genericDefaultImage = "https://static.newswire.poker/defaults/news.jpg"

// Resolver produces a single best-effort image URL per item via an ordered
// fallback chain: embedded media, fetched page metadata, category default.
// Resolve never fails and never returns an empty URL.
type Resolver struct {
	httpClient  *http.Client
	unwrapper   *Unwrapper
	userAgent   string
	pageTimeout time.Duration
}

func NewResolver(httpClient *http.Client, unwrapper *Unwrapper, userAgent string, pageTimeout time.Duration) *Resolver {
	return &Resolver{
		httpClient:  httpClient,
		unwrapper:   unwrapper,
		userAgent:   userAgent,
		pageTimeout: pageTimeout,
	}
}

// Resolve walks the fallback chain for one raw item. Each step runs only if
// the prior step yielded nothing.
func (r *Resolver) Resolve(ctx context.Context, raw feed.RawItem, category string) string {
	if url := r.fromEmbeddedMedia(raw); url != "" {
		return url
	}

	if url := r.fromPageMetadata(ctx, raw.Link); url != "" {
		return url
	}

	return CategoryDefault(category)
}

// CategoryDefault returns the static per-category fallback image. Always
// non-empty.
func CategoryDefault(category string) string {
	if url, ok := categoryDefaults[strings.ToLower(category)]; ok {
		return url
	}
	return genericDefaultImage
}

func (r *Resolver) fromEmbeddedMedia(raw feed.RawItem) string {
	for _, url := range raw.MediaURLs {
		if AcceptableCandidate(url) {
			return url
		}
	}

	if url := FirstImgSrc(raw.ContentHTML); url != "" {
		return url
	}
	return FirstImgSrc(raw.SummaryHTML)
}

func (r *Resolver) fromPageMetadata(ctx context.Context, link string) string {
	if link == "" {
		return ""
	}

	target := link
	if IsAggregatorLink(link) {
		target = r.unwrapper.Unwrap(ctx, link)
		if target == "" {
			return ""
		}
	}

	doc, err := r.fetchPage(ctx, target)
	if err != nil {
		slog.Debug("Page fetch for image resolution failed", "url", target, "error", err)
		return ""
	}

	return MetaImage(doc)
}

func (r *Resolver) fetchPage(ctx context.Context, url string) (*goquery.Document, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, r.pageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	return doc, nil
}
