package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dmelnik/newswire/app/categorize"
	"github.com/dmelnik/newswire/app/database"
	"github.com/dmelnik/newswire/app/dedup"
	"github.com/dmelnik/newswire/app/sources"
	"github.com/dmelnik/newswire/app/textutil"
)

// Orchestrator sequences one pipeline run: load history, fetch, normalize,
// dedup, publish, per kind. Per-source and per-item failures are folded into
// the RunResult; nothing short of a missing dependency aborts a run.
type Orchestrator struct {
	registry    *sources.Registry
	fetcher     SourceFetcher
	categorizer *categorize.Categorizer
	resolver    ImageResolver
	summarizer  Summarizer // may be nil
	engine      *dedup.Engine
	publisher   ItemPublisher
	items       database.ItemStore
	opts        Options
}

func NewOrchestrator(registry *sources.Registry, fetcher SourceFetcher,
	categorizer *categorize.Categorizer, resolver ImageResolver,
	summarizer Summarizer, engine *dedup.Engine, publisher ItemPublisher,
	items database.ItemStore, opts Options) *Orchestrator {
	return &Orchestrator{
		registry:    registry,
		fetcher:     fetcher,
		categorizer: categorizer,
		resolver:    resolver,
		summarizer:  summarizer,
		engine:      engine,
		publisher:   publisher,
		items:       items,
		opts:        opts.withDefaults(),
	}
}

// Run executes one full invocation: articles first, then videos.
func (o *Orchestrator) Run(ctx context.Context) *RunResult {
	result := &RunResult{StartedAt: time.Now().UTC()}

	o.runPhase(ctx, result, sources.KindArticle, o.opts.MaxArticlesPerRun)
	o.runPhase(ctx, result, sources.KindVideo, o.opts.MaxVideosPerRun)

	result.Duration = time.Since(result.StartedAt).String()

	slog.Info("Run completed",
		"fetched", result.Fetched,
		"accepted", result.Accepted,
		"skipped_duplicate", result.SkippedDuplicate,
		"cross_posted", result.CrossPosted,
		"failed", result.Failed,
		"duration", result.Duration)

	return result
}

func (o *Orchestrator) runPhase(ctx context.Context, result *RunResult, kind sources.Kind, quota int) {
	srcs := o.registry.ByKind(kind)
	if len(srcs) == 0 {
		return
	}

	window := o.loadHistory(kind)
	candidates := o.fetchAll(ctx, result, srcs)
	if len(candidates) == 0 {
		return
	}

	// Publish time descending, source priority ascending on ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].raw.PublishedAt.Equal(candidates[j].raw.PublishedAt) {
			return candidates[i].raw.PublishedAt.After(candidates[j].raw.PublishedAt)
		}
		return candidates[i].source.Priority < candidates[j].source.Priority
	})

	normalized := o.normalizeAll(ctx, candidates)

	// Dedup check, persist and window append stay serialized: a later
	// candidate's check depends on what was accepted before it.
	accepted := 0
	for _, item := range normalized {
		if accepted >= quota {
			slog.Debug("Quota reached, leaving remaining candidates for the next run",
				"kind", kind, "quota", quota, "remaining", len(normalized)-accepted)
			break
		}

		match := o.engine.Check(item.Title, item.Link, window)
		if match.Duplicate {
			result.SkippedDuplicate++
			slog.Debug("Duplicate skipped", "title", textutil.Truncate(item.Title, 60), "reason", match.Reason)
			continue
		}

		record := &database.PublishedRecord{
			Kind:        string(kind),
			Title:       item.Title,
			Link:        item.Link,
			PublishedAt: item.PublishedAt,
			SourceName:  item.SourceName,
			Category:    item.Category,
			Summary:     item.Summary,
			ImageURL:    item.ImageURL,
			Slug:        item.Slug,
		}

		crossPost := o.shouldCrossPost(kind, accepted+1)
		if err := o.publisher.Publish(ctx, record, crossPost); err != nil {
			result.recordError(fmt.Sprintf("persist %q: %v", textutil.Truncate(item.Title, 40), err))
			continue
		}

		window.Add(dedup.Entry{Title: item.Title, Link: item.Link, PublishedAt: item.PublishedAt})
		accepted++
		result.Accepted++
		if record.CrossPostID != nil {
			result.CrossPosted++
		}
	}
}

// loadHistory builds the recency window for one kind. Storage failure is
// non-fatal: an empty window makes the run conservative, not broken.
func (o *Orchestrator) loadHistory(kind sources.Kind) *dedup.Window {
	since := time.Now().UTC().Add(-o.opts.Lookback)

	recent, err := o.items.QueryRecent(string(kind), since)
	if err != nil {
		slog.Warn("Failed to load history, continuing with empty window", "kind", kind, "error", err)
		return dedup.NewWindow(nil)
	}

	entries := make([]dedup.Entry, 0, len(recent))
	for _, item := range recent {
		entries = append(entries, dedup.Entry{
			Title:       item.Title,
			Link:        item.Link,
			PublishedAt: item.PublishedAt,
		})
	}

	slog.Debug("History loaded", "kind", kind, "entries", len(entries))
	return dedup.NewWindow(entries)
}

// fetchAll retrieves every source of the phase concurrently. Sources share
// no mutable state, so a bounded worker pool is safe; failures are recorded
// per source and never stop the others.
func (o *Orchestrator) fetchAll(ctx context.Context, result *RunResult, srcs []sources.Source) []candidate {
	type fetchResult struct {
		source sources.Source
		items  []candidate
		err    error
	}

	jobs := make(chan sources.Source)
	results := make(chan fetchResult, len(srcs))

	var wg sync.WaitGroup
	for i := 0; i < o.opts.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				raws, err := o.fetcher.Fetch(ctx, src)
				items := make([]candidate, 0, len(raws))
				for _, raw := range raws {
					items = append(items, candidate{raw: raw, source: src})
				}
				results <- fetchResult{source: src, items: items, err: err}
			}
		}()
	}

	for _, src := range srcs {
		jobs <- src
	}
	close(jobs)
	wg.Wait()
	close(results)

	// Collect in source registry order so equal-time candidates sort
	// deterministically.
	byName := make(map[string]fetchResult, len(srcs))
	for res := range results {
		byName[res.source.Name] = res
	}

	var candidates []candidate
	for _, src := range srcs {
		res, ok := byName[src.Name]
		if !ok {
			continue
		}
		if res.err != nil {
			result.recordError(fmt.Sprintf("source %s: %v", src.Name, res.err))
			slog.Warn("Source fetch failed", "source", src.Name, "error", res.err)
			continue
		}
		result.Fetched += len(res.items)
		candidates = append(candidates, res.items...)
	}

	return candidates
}

// normalizeAll cleans, categorizes and image-resolves candidates with a
// bounded worker pool. Image resolution is the expensive network step, so it
// runs in parallel; order is preserved by index.
func (o *Orchestrator) normalizeAll(ctx context.Context, candidates []candidate) []NormalizedItem {
	normalized := make([]NormalizedItem, len(candidates))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < o.opts.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				normalized[idx] = o.normalize(ctx, candidates[idx])
			}
		}()
	}

	for idx := range candidates {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	return normalized
}

func (o *Orchestrator) normalize(ctx context.Context, c candidate) NormalizedItem {
	title := textutil.CleanHTML(c.raw.Title)

	summary := textutil.CleanHTML(c.raw.SummaryHTML)
	if summary == "" {
		summary = textutil.CleanHTML(c.raw.ContentHTML)
	}
	if summary == "" && c.source.ExtractSummary && o.summarizer != nil {
		if extracted, err := o.summarizer.Extract(ctx, c.raw.Link); err == nil {
			summary = textutil.CleanHTML(extracted)
		} else {
			slog.Debug("Summary extraction failed", "link", c.raw.Link, "error", err)
		}
	}
	summary = textutil.Truncate(summary, o.opts.SummaryLimit)

	category := o.categorizer.Categorize(title, summary, c.source.Category)
	imageURL := o.resolver.Resolve(ctx, c.raw, category)

	return NormalizedItem{
		Title:       title,
		Link:        c.raw.Link,
		PublishedAt: c.raw.PublishedAt,
		SourceName:  c.source.Name,
		Category:    category,
		Summary:     summary,
		ImageURL:    imageURL,
		Slug:        textutil.SlugWithSuffix(title, time.Now()),
	}
}

// shouldCrossPost applies the sampling policy: every accepted article is
// cross-posted; videos only every Nth (ordinal within the phase). N <= 0
// disables video cross-posting.
func (o *Orchestrator) shouldCrossPost(kind sources.Kind, ordinal int) bool {
	if kind == sources.KindArticle {
		return true
	}
	n := o.opts.CrossPostEveryNthVideo
	if n <= 0 {
		return false
	}
	return ordinal%n == 0
}
