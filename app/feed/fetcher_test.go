package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmelnik/newswire/app/sources"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Test Poker Feed</title>
    <link>https://example.com</link>
    <item>
      <title>WSOP Main Event Final Table Set</title>
      <link>https://example.com/wsop-final-table</link>
      <pubDate>Mon, 14 Jul 2025 10:00:00 GMT</pubDate>
      <description>&lt;p&gt;Nine players remain.&lt;/p&gt;</description>
      <media:content url="https://example.com/images/final-table.jpg" type="image/jpeg"/>
    </item>
    <item>
      <title>High Stakes Recap</title>
      <link>https://example.com/high-stakes-recap</link>
      <pubDate>Sun, 13 Jul 2025 09:00:00 GMT</pubDate>
      <enclosure url="https://example.com/images/recap.png" type="image/png" length="1024"/>
    </item>
  </channel>
</rss>`

func testSource(url string) sources.Source {
	return sources.Source{Name: "test-feed", URL: url, Kind: sources.KindArticle}
}

func newTestFetcher() *Fetcher {
	return NewFetcher(&http.Client{}, "Newswire-Test/1.0", 5*time.Second)
}

func TestFetch_ParsesItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Newswire-Test/1.0" {
			t.Errorf("Expected custom User-Agent, got '%s'", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeed))
	}))
	defer server.Close()

	items, err := newTestFetcher().Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "WSOP Main Event Final Table Set" {
		t.Errorf("Unexpected title: '%s'", first.Title)
	}
	if first.Link != "https://example.com/wsop-final-table" {
		t.Errorf("Unexpected link: '%s'", first.Link)
	}
	if first.PublishedAt.IsZero() {
		t.Error("PublishedAt should be set")
	}
	if len(first.MediaURLs) == 0 || first.MediaURLs[0] != "https://example.com/images/final-table.jpg" {
		t.Errorf("Expected media:content URL, got %v", first.MediaURLs)
	}

	second := items[1]
	if len(second.MediaURLs) == 0 || second.MediaURLs[0] != "https://example.com/images/recap.png" {
		t.Errorf("Expected enclosure URL, got %v", second.MediaURLs)
	}
}

func TestFetch_CapsItemCount(t *testing.T) {
	var body string
	body = `<?xml version="1.0"?><rss version="2.0"><channel><title>Big Feed</title>`
	for i := 0; i < 25; i++ {
		body += `<item><title>Item ` + string(rune('A'+i%26)) + `</title><link>https://example.com/item-` + string(rune('a'+i%26)) + `</link></item>`
	}
	body += `</channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	items, err := newTestFetcher().Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != MaxItemsPerSource {
		t.Errorf("Expected cap of %d items, got %d", MaxItemsPerSource, len(items))
	}
}

func TestFetch_OversizedFeedTruncated(t *testing.T) {
	// Padding past the read cap leaves the document truncated mid-comment,
	// so parsing must fail instead of buffering the whole body.
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>Huge Feed</title>` +
		`<!-- ` + strings.Repeat("x", maxFeedBytes) + ` -->` +
		`<item><title>Unreachable</title><link>https://example.com/late</link></item></channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	if _, err := newTestFetcher().Fetch(context.Background(), testSource(server.URL)); err == nil {
		t.Error("Expected parse error for a feed exceeding the read cap")
	}
}

func TestFetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	items, err := newTestFetcher().Fetch(context.Background(), testSource(server.URL))
	if err == nil {
		t.Error("Expected error for HTTP 503")
	}
	if len(items) != 0 {
		t.Errorf("Expected no items on error, got %d", len(items))
	}
}

func TestFetch_MalformedDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed"))
	}))
	defer server.Close()

	if _, err := newTestFetcher().Fetch(context.Background(), testSource(server.URL)); err == nil {
		t.Error("Expected error for malformed feed document")
	}
}

func TestFetch_UnreachableHost(t *testing.T) {
	source := testSource("http://127.0.0.1:1/feed.xml")
	if _, err := newTestFetcher().Fetch(context.Background(), source); err == nil {
		t.Error("Expected error for unreachable host")
	}
}

func TestFetch_SkipsItemsWithoutTitleOrLink(t *testing.T) {
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>Feed</title>
<item><title>Has Everything</title><link>https://example.com/ok</link></item>
<item><title>No Link</title></item>
<item><link>https://example.com/no-title</link></item>
</channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer server.Close()

	items, err := newTestFetcher().Fetch(context.Background(), testSource(server.URL))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected items missing title or link to be skipped, got %d items", len(items))
	}
}
