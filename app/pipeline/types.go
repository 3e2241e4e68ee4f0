package pipeline

import (
	"time"

	"github.com/dmelnik/newswire/app/feed"
	"github.com/dmelnik/newswire/app/sources"
)

// maxRecordedErrors bounds the error list in a RunResult; it feeds a
// dashboard line, not a log archive.
const maxRecordedErrors = 25

// RunResult aggregates one invocation's counters and error messages. Purely
// observational, never persisted.
type RunResult struct {
	Fetched          int       `json:"fetched"`
	Accepted         int       `json:"accepted"`
	SkippedDuplicate int       `json:"skipped_duplicate"`
	CrossPosted      int       `json:"cross_posted"`
	Failed           int       `json:"failed"`
	Errors           []string  `json:"errors"`
	StartedAt        time.Time `json:"started_at"`
	Duration         string    `json:"duration"`
}

func (r *RunResult) recordError(msg string) {
	r.Failed++
	if len(r.Errors) < maxRecordedErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// candidate pairs a raw feed item with the source it came from, so
// normalization can apply source-level defaults.
type candidate struct {
	raw    feed.RawItem
	source sources.Source
}

// NormalizedItem is the canonical candidate produced after cleaning,
// categorization and image resolution, not yet confirmed non-duplicate.
type NormalizedItem struct {
	Title       string
	Link        string
	PublishedAt time.Time
	SourceName  string
	Category    string
	Summary     string
	ImageURL    string
	Slug        string
}

// Options is the injected pipeline configuration, kept off package globals
// so tests can vary quotas and thresholds per case.
type Options struct {
	MaxArticlesPerRun      int
	MaxVideosPerRun        int
	Lookback               time.Duration
	WorkerCount            int
	CrossPostEveryNthVideo int
	SummaryLimit           int
}

func (o Options) withDefaults() Options {
	if o.MaxArticlesPerRun <= 0 {
		o.MaxArticlesPerRun = 5
	}
	if o.MaxVideosPerRun <= 0 {
		o.MaxVideosPerRun = 3
	}
	if o.Lookback <= 0 {
		o.Lookback = 48 * time.Hour
	}
	if o.WorkerCount <= 0 {
		o.WorkerCount = 4
	}
	if o.SummaryLimit <= 0 {
		o.SummaryLimit = 300
	}
	return o
}
