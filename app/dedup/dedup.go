package dedup

import (
	"fmt"
	"time"

	"github.com/dmelnik/newswire/app/textutil"
)

// Entry is one previously published item inside the recency window. Only the
// fields needed for duplicate comparison are kept.
type Entry struct {
	Title       string
	Link        string
	PublishedAt time.Time
}

// Window is the run-scoped recency window: loaded from storage at run start
// and appended to as items are accepted, so near-duplicates from different
// sources within the same run are still caught. Not safe for concurrent use;
// the orchestrator serializes check + append.
type Window struct {
	entries []Entry
}

func NewWindow(entries []Entry) *Window {
	return &Window{entries: entries}
}

func (w *Window) Add(entry Entry) {
	w.entries = append(w.entries, entry)
}

func (w *Window) Len() int {
	return len(w.entries)
}

// Match is the outcome of a duplicate check.
type Match struct {
	Duplicate bool
	Reason    string
}

// Engine decides whether a candidate duplicates something already published.
// Two independent checks, either sufficient: exact canonical-link equality,
// and bigram title similarity at or above the threshold.
type Engine struct {
	threshold float64
}

func NewEngine(threshold float64) *Engine {
	return &Engine{threshold: threshold}
}

// Check scans the window linearly. History volumes are small (typically
// under a hundred entries), so no index is needed.
func (e *Engine) Check(title, link string, window *Window) Match {
	for _, entry := range window.entries {
		if link != "" && entry.Link == link {
			return Match{
				Duplicate: true,
				Reason:    fmt.Sprintf("exact link match: %s", entry.Link),
			}
		}

		if score := textutil.BigramSimilarity(title, entry.Title); score >= e.threshold {
			return Match{
				Duplicate: true,
				Reason:    fmt.Sprintf("title similarity %.2f with %q", score, entry.Title),
			}
		}
	}

	return Match{}
}
