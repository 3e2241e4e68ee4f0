package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmelnik/newswire/app/categorize"
	"github.com/dmelnik/newswire/app/database"
	"github.com/dmelnik/newswire/app/dedup"
	"github.com/dmelnik/newswire/app/feed"
	"github.com/dmelnik/newswire/app/sources"
)

// fakeFetcher serves canned items per source name and records failures.
type fakeFetcher struct {
	items map[string][]feed.RawItem
	errs  map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, source sources.Source) ([]feed.RawItem, error) {
	if err, ok := f.errs[source.Name]; ok {
		return nil, err
	}
	return f.items[source.Name], nil
}

// fakeResolver avoids network: it returns the first embedded media URL or a
// fixed default.
type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, raw feed.RawItem, category string) string {
	if len(raw.MediaURLs) > 0 {
		return raw.MediaURLs[0]
	}
	return "https://static.example.com/default.jpg"
}

type fakeStore struct {
	mu       sync.Mutex
	recent   map[string][]database.RecentItem
	inserted []*database.PublishedRecord
	queryErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{recent: make(map[string][]database.RecentItem)}
}

func (f *fakeStore) QueryRecent(kind string, since time.Time) ([]database.RecentItem, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.recent[kind], nil
}

func (f *fakeStore) Insert(record *database.PublishedRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record.ID = fmt.Sprintf("item-%d", len(f.inserted)+1)
	f.inserted = append(f.inserted, record)
	return nil
}

func (f *fakeStore) AttachCrossPost(itemID, crossPostID string) error { return nil }

func (f *fakeStore) CountByKind(kind string) (int, error) {
	return len(f.inserted), nil
}

// fakePublisher persists through the store and optionally fails on selected
// titles or marks records cross-posted.
type fakePublisher struct {
	store      *fakeStore
	failTitles map[string]bool
	crossPost  bool
	published  []string
	crossPosts []string
}

func (p *fakePublisher) Publish(ctx context.Context, record *database.PublishedRecord, crossPost bool) error {
	if p.failTitles[record.Title] {
		return fmt.Errorf("constraint violation")
	}
	if err := p.store.Insert(record); err != nil {
		return err
	}
	p.published = append(p.published, record.Title)
	if crossPost && p.crossPost {
		id := "post-" + record.ID
		record.CrossPostID = &id
		p.crossPosts = append(p.crossPosts, record.Title)
	}
	return nil
}

func articleSource(name string, priority int) sources.Source {
	return sources.Source{
		Name:     name,
		URL:      "https://example.com/" + name + "/rss",
		Kind:     sources.KindArticle,
		Priority: priority,
	}
}

func videoSource(name string, priority int) sources.Source {
	return sources.Source{
		Name:     name,
		URL:      "https://example.com/" + name + "/rss",
		Kind:     sources.KindVideo,
		Priority: priority,
		Category: "video",
	}
}

func rawItem(title, link string, age time.Duration) feed.RawItem {
	return feed.RawItem{
		Title:       title,
		Link:        link,
		PublishedAt: time.Now().UTC().Add(-age),
		SummaryHTML: "<p>Summary for " + title + "</p>",
	}
}

// testRegistry builds a registry from YAML files on disk, the same way
// production loads it.
func testRegistry(t *testing.T, srcs []sources.Source) *sources.Registry {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("sources:\n")
	for _, s := range srcs {
		sb.WriteString(fmt.Sprintf("  - name: %s\n    url: %s\n    kind: %s\n    priority: %d\n", s.Name, s.URL, s.Kind, s.Priority))
		if s.Category != "" {
			sb.WriteString(fmt.Sprintf("    category: %s\n", s.Category))
		}
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "registry.yml"), []byte(sb.String()), 0644); err != nil {
		t.Fatalf("Failed to write registry: %v", err)
	}

	registry, err := sources.NewRegistry(dir)
	if err != nil {
		t.Fatalf("Failed to load registry: %v", err)
	}
	return registry
}

func newTestOrchestrator(t *testing.T, srcs []sources.Source, fetcher *fakeFetcher, store *fakeStore, publisher *fakePublisher, opts Options) *Orchestrator {
	t.Helper()
	return NewOrchestrator(
		testRegistry(t, srcs),
		fetcher,
		categorize.New(),
		fakeResolver{},
		nil,
		dedup.NewEngine(0.7),
		publisher,
		store,
		opts,
	)
}

func TestRun_QuotaEnforcement(t *testing.T) {
	// Titles chosen to stay well below the similarity threshold.
	titles := []string{
		"WSOP Main Event Day 5 Chip Counts",
		"Michigan Regulator Approves Shared Liquidity",
		"GGPoker Announces Spring Festival Schedule",
		"Phil Ivey Returns to High Stakes Cash Games",
		"Study: GTO Solvers Reshape Tournament Play",
		"EPT Barcelona Breaks Attendance Record",
		"New Jersey Online Revenue Hits Monthly High",
		"Triton Series Adds Short Deck Invitational",
		"PokerStars Rolls Out Redesigned Mobile Client",
		"Interview With the Latest Super High Roller Champion",
	}
	var items []feed.RawItem
	for i, title := range titles {
		items = append(items, rawItem(title,
			fmt.Sprintf("https://example.com/item-%d", i),
			time.Duration(i)*time.Minute,
		))
	}

	store := newFakeStore()
	publisher := &fakePublisher{store: store}
	o := newTestOrchestrator(t,
		[]sources.Source{articleSource("feed-a", 1)},
		&fakeFetcher{items: map[string][]feed.RawItem{"feed-a": items}},
		store, publisher,
		Options{MaxArticlesPerRun: 5},
	)

	result := o.Run(context.Background())

	if result.Fetched != 10 {
		t.Errorf("Expected fetched 10, got %d", result.Fetched)
	}
	if result.Accepted != 5 {
		t.Errorf("Expected accepted 5, got %d", result.Accepted)
	}
	if len(store.inserted) != 5 {
		t.Errorf("Expected 5 persisted records, got %d", len(store.inserted))
	}
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	fetcher := &fakeFetcher{
		items: map[string][]feed.RawItem{
			"feed-a": {rawItem("Tournament Circuit Expands to Brazil", "https://example.com/a1", time.Minute)},
			"feed-c": {rawItem("Nevada Gaming Board Fines Operator", "https://example.com/c1", 2*time.Minute)},
		},
		errs: map[string]error{
			"feed-b": fmt.Errorf("connection refused"),
		},
	}

	store := newFakeStore()
	publisher := &fakePublisher{store: store}
	o := newTestOrchestrator(t,
		[]sources.Source{articleSource("feed-a", 1), articleSource("feed-b", 2), articleSource("feed-c", 3)},
		fetcher, store, publisher,
		Options{},
	)

	result := o.Run(context.Background())

	if result.Accepted != 2 {
		t.Errorf("Sources A and C should still publish, accepted: %d", result.Accepted)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Expected exactly 1 source-level error, got %d: %v", len(result.Errors), result.Errors)
	}
	if !strings.Contains(result.Errors[0], "feed-b") {
		t.Errorf("Error should name the failing source, got '%s'", result.Errors[0])
	}
}

func TestRun_HistoryDedupAcrossRuns(t *testing.T) {
	items := map[string][]feed.RawItem{
		"feed-a": {
			rawItem("WSOP Main Event Final Table Set", "https://example.com/wsop", time.Minute),
			rawItem("Michigan Online Poker Revenue Report", "https://example.com/michigan", 2*time.Minute),
		},
	}

	store := newFakeStore()
	publisher := &fakePublisher{store: store}
	srcs := []sources.Source{articleSource("feed-a", 1)}
	fetcher := &fakeFetcher{items: items}

	first := newTestOrchestrator(t, srcs, fetcher, store, publisher, Options{}).Run(context.Background())
	if first.Accepted != 2 {
		t.Fatalf("First run should accept both items, got %d", first.Accepted)
	}

	// Second run: history now contains the first run's output.
	for _, rec := range store.inserted {
		store.recent["article"] = append(store.recent["article"], database.RecentItem{
			Title:       rec.Title,
			Link:        rec.Link,
			PublishedAt: rec.PublishedAt,
		})
	}

	second := newTestOrchestrator(t, srcs, fetcher, store, publisher, Options{}).Run(context.Background())
	if second.Accepted != 0 {
		t.Errorf("Second run with identical feed content should accept 0, got %d", second.Accepted)
	}
	if second.SkippedDuplicate != 2 {
		t.Errorf("Expected 2 duplicate skips, got %d", second.SkippedDuplicate)
	}
}

func TestRun_SameRunCrossSourceDedup(t *testing.T) {
	// Two sources carry near-identical coverage of the same story.
	fetcher := &fakeFetcher{
		items: map[string][]feed.RawItem{
			"feed-a": {rawItem("WSOP Main Event Final Table Set", "https://site-a.example.com/wsop", time.Minute)},
			"feed-b": {rawItem("WSOP Main Event Final Table is Set", "https://site-b.example.com/wsop", 2*time.Minute)},
		},
	}

	store := newFakeStore()
	publisher := &fakePublisher{store: store}
	o := newTestOrchestrator(t,
		[]sources.Source{articleSource("feed-a", 1), articleSource("feed-b", 2)},
		fetcher, store, publisher,
		Options{},
	)

	result := o.Run(context.Background())

	if result.Accepted != 1 {
		t.Errorf("Expected 1 accepted from near-duplicate pair, got %d", result.Accepted)
	}
	if result.SkippedDuplicate != 1 {
		t.Errorf("Expected 1 duplicate skip, got %d", result.SkippedDuplicate)
	}
}

func TestRun_HistoryLoadFailureDegrades(t *testing.T) {
	store := newFakeStore()
	store.queryErr = fmt.Errorf("database locked")
	publisher := &fakePublisher{store: store}

	fetcher := &fakeFetcher{
		items: map[string][]feed.RawItem{
			"feed-a": {rawItem("A Fresh Headline", "https://example.com/fresh", time.Minute)},
		},
	}

	o := newTestOrchestrator(t, []sources.Source{articleSource("feed-a", 1)}, fetcher, store, publisher, Options{})

	result := o.Run(context.Background())
	if result.Accepted != 1 {
		t.Errorf("History load failure should degrade to empty window, accepted: %d", result.Accepted)
	}
}

func TestRun_PerItemFailureDoesNotAbort(t *testing.T) {
	fetcher := &fakeFetcher{
		items: map[string][]feed.RawItem{
			"feed-a": {
				rawItem("Poisoned Item Headline", "https://example.com/bad", time.Minute),
				rawItem("Healthy Item About Something Else", "https://example.com/good", 2*time.Minute),
			},
		},
	}

	store := newFakeStore()
	publisher := &fakePublisher{store: store, failTitles: map[string]bool{"Poisoned Item Headline": true}}
	o := newTestOrchestrator(t, []sources.Source{articleSource("feed-a", 1)}, fetcher, store, publisher, Options{})

	result := o.Run(context.Background())

	if result.Failed != 1 {
		t.Errorf("Expected 1 failure, got %d", result.Failed)
	}
	if result.Accepted != 1 {
		t.Errorf("The healthy item should still be accepted, got %d", result.Accepted)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "Poisoned") {
		t.Errorf("Failure message should carry the truncated title, got %v", result.Errors)
	}
}

func TestRun_VideoCrossPostSampling(t *testing.T) {
	titles := []string{
		"Inside the Biggest Pot of the Year",
		"How to Defend Your Big Blind Correctly",
		"Final Table Highlights From Las Vegas",
		"Bankroll Management Mistakes Beginners Make",
		"One Hour of Brutal River Cards",
		"Reading Physical Tells at the Casino",
	}
	var items []feed.RawItem
	for i, title := range titles {
		items = append(items, rawItem(title,
			fmt.Sprintf("https://example.com/video-%d", i),
			time.Duration(i)*time.Minute,
		))
	}

	store := newFakeStore()
	publisher := &fakePublisher{store: store, crossPost: true}
	o := newTestOrchestrator(t,
		[]sources.Source{videoSource("clips", 1)},
		&fakeFetcher{items: map[string][]feed.RawItem{"clips": items}},
		store, publisher,
		Options{MaxVideosPerRun: 6, CrossPostEveryNthVideo: 3},
	)

	result := o.Run(context.Background())

	if result.Accepted != 6 {
		t.Fatalf("Expected 6 accepted videos, got %d", result.Accepted)
	}
	if result.CrossPosted != 2 {
		t.Errorf("Every third video should cross-post (2 of 6), got %d", result.CrossPosted)
	}
}

func TestRun_ArticlesAlwaysCrossPost(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{store: store, crossPost: true}
	fetcher := &fakeFetcher{
		items: map[string][]feed.RawItem{
			"feed-a": {rawItem("An Article Headline", "https://example.com/a", time.Minute)},
		},
	}

	o := newTestOrchestrator(t, []sources.Source{articleSource("feed-a", 1)}, fetcher, store, publisher,
		Options{CrossPostEveryNthVideo: 3})

	result := o.Run(context.Background())
	if result.CrossPosted != 1 {
		t.Errorf("Articles should always cross-post, got %d", result.CrossPosted)
	}
}

func TestRun_OrderingByPublishTimeAndPriority(t *testing.T) {
	ts := time.Now().UTC().Add(-time.Hour)

	fetcher := &fakeFetcher{
		items: map[string][]feed.RawItem{
			"low-pri": {{
				Title: "Shared Timestamp Story From Low Priority", Link: "https://example.com/lp", PublishedAt: ts,
			}},
			"high-pri": {{
				Title: "Shared Timestamp Story From High Priority", Link: "https://example.com/hp", PublishedAt: ts,
			}},
			"fresh": {{
				Title: "Newest Story Wins Outright", Link: "https://example.com/fresh", PublishedAt: ts.Add(30 * time.Minute),
			}},
		},
	}

	store := newFakeStore()
	publisher := &fakePublisher{store: store}
	o := newTestOrchestrator(t,
		[]sources.Source{articleSource("low-pri", 9), articleSource("high-pri", 1), articleSource("fresh", 5)},
		fetcher, store, publisher,
		Options{MaxArticlesPerRun: 2},
	)

	result := o.Run(context.Background())
	if result.Accepted != 2 {
		t.Fatalf("Expected 2 accepted, got %d", result.Accepted)
	}

	if publisher.published[0] != "Newest Story Wins Outright" {
		t.Errorf("Newest item should be processed first, got '%s'", publisher.published[0])
	}
	if publisher.published[1] != "Shared Timestamp Story From High Priority" {
		t.Errorf("Priority should break publish-time ties, got '%s'", publisher.published[1])
	}
}

func TestRun_NormalizedFieldsPopulated(t *testing.T) {
	fetcher := &fakeFetcher{
		items: map[string][]feed.RawItem{
			"feed-a": {{
				Title:       "WSOP <b>Main Event</b> Update",
				Link:        "https://example.com/wsop-update",
				PublishedAt: time.Now().UTC(),
				SummaryHTML: "<p>Day 5 chip counts &amp; pairings.</p>",
				MediaURLs:   []string{"https://example.com/photo.jpg"},
			}},
		},
	}

	store := newFakeStore()
	publisher := &fakePublisher{store: store}
	o := newTestOrchestrator(t, []sources.Source{articleSource("feed-a", 1)}, fetcher, store, publisher, Options{})

	o.Run(context.Background())

	if len(store.inserted) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(store.inserted))
	}
	rec := store.inserted[0]

	if rec.Title != "WSOP Main Event Update" {
		t.Errorf("Title should be cleaned, got '%s'", rec.Title)
	}
	if !strings.Contains(rec.Summary, "chip counts & pairings") {
		t.Errorf("Summary should be cleaned plain text, got '%s'", rec.Summary)
	}
	if rec.Category != "tournament" {
		t.Errorf("Expected keyword category 'tournament', got '%s'", rec.Category)
	}
	if rec.ImageURL == "" {
		t.Error("ImageURL must never be empty")
	}
	if !strings.HasPrefix(rec.Slug, "wsop-main-event-update-") {
		t.Errorf("Slug should derive from title with a suffix, got '%s'", rec.Slug)
	}
	if rec.SourceName != "feed-a" {
		t.Errorf("SourceName should be set, got '%s'", rec.SourceName)
	}
}

func TestRun_SlugUniquenessForIdenticalTitles(t *testing.T) {
	// Identical titles would dedup against each other within one run, so
	// run twice against an empty window to persist both.
	fetcher := &fakeFetcher{
		items: map[string][]feed.RawItem{
			"feed-a": {rawItem("Same Exact Title", "https://site-a.example.com/x", time.Minute)},
		},
	}

	store := newFakeStore()
	publisher := &fakePublisher{store: store}
	srcs := []sources.Source{articleSource("feed-a", 1)}

	newTestOrchestrator(t, srcs, fetcher, store, publisher, Options{}).Run(context.Background())

	fetcher.items["feed-a"] = []feed.RawItem{rawItem("Same Exact Title", "https://site-b.example.com/y", time.Minute)}
	newTestOrchestrator(t, srcs, fetcher, store, publisher, Options{}).Run(context.Background())

	if len(store.inserted) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(store.inserted))
	}
	if store.inserted[0].Slug == store.inserted[1].Slug {
		t.Errorf("Identical titles must produce distinct slugs, both were '%s'", store.inserted[0].Slug)
	}
}

func TestScheduler_SingleFlight(t *testing.T) {
	store := newFakeStore()
	publisher := &fakePublisher{store: store}
	o := newTestOrchestrator(t, []sources.Source{articleSource("feed-a", 1)},
		&fakeFetcher{items: map[string][]feed.RawItem{}}, store, publisher, Options{})

	s := NewScheduler(o, 0)

	result, ok := s.TriggerRun()
	if !ok || result == nil {
		t.Fatal("First trigger should run")
	}
	if s.LastResult() == nil {
		t.Error("LastResult should be recorded after a run")
	}
}
