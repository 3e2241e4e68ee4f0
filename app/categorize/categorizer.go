package categorize

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FallbackCategory is assigned when neither the source default nor any
// keyword group matches.
const FallbackCategory = "news"

// Rule is one keyword group. Rules are evaluated in order and the first
// match wins.
type Rule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type rulesFile struct {
	Categories []Rule `yaml:"categories"`
}

// defaultRules is the embedded taxonomy, in fixed priority order: tournament
// terms, then strategy terms, then industry/regulatory terms.
var defaultRules = []Rule{
	{
		Name: "tournament",
		Keywords: []string{
			"wsop", "wpt", "ept", "main event", "final table", "bracelet",
			"tournament", "satellite", "freeroll", "circuit",
		},
	},
	{
		Name: "strategy",
		Keywords: []string{
			"strategy", "gto", "range", "bluff", "odds", "equity",
			"hand analysis", "solver", "exploit",
		},
	},
	{
		Name: "industry",
		Keywords: []string{
			"legislation", "regulator", "regulation", "license", "lawsuit",
			"acquisition", "merger", "revenue", "market", "bill", "ban",
		},
	},
}

// Categorizer assigns a topical category using source-level defaults or
// case-insensitive keyword matching over title and summary. Pure after
// construction, no I/O.
type Categorizer struct {
	rules []Rule
}

// New builds a categorizer with the embedded default taxonomy.
func New() *Categorizer {
	return &Categorizer{rules: defaultRules}
}

// NewFromDir builds a categorizer from categories.yml in the given directory
// when present, falling back to the embedded taxonomy. Keeping the taxonomy
// next to the source registry lets operators adjust it without a redeploy.
func NewFromDir(dir string) (*Categorizer, error) {
	for _, name := range []string{"categories.yml", "categories.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		var file rulesFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if len(file.Categories) == 0 {
			return nil, fmt.Errorf("%s defines no categories", path)
		}

		slog.Debug("Category rules loaded", "file", path, "rules", len(file.Categories))
		return &Categorizer{rules: file.Categories}, nil
	}

	return New(), nil
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9]+`)

// Categorize returns the source default when one is declared, otherwise the
// first keyword group matching title+summary, otherwise the fallback.
// Keywords match on word boundaries, so "ban" does not fire inside
// "bankroll".
func (c *Categorizer) Categorize(title, summary, sourceDefault string) string {
	if sourceDefault != "" {
		return sourceDefault
	}

	haystack := normalizeWords(title + " " + summary)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if kw = normalizeWords(kw); kw != "" && strings.Contains(haystack, kw) {
				return rule.Name
			}
		}
	}

	return FallbackCategory
}

// normalizeWords lowercases, collapses punctuation to single spaces and pads
// the ends, so substring search only hits whole words.
func normalizeWords(s string) string {
	s = strings.TrimSpace(nonWordRe.ReplaceAllString(strings.ToLower(s), " "))
	if s == "" {
		return ""
	}
	return " " + s + " "
}
