package sources

// Kind distinguishes article feeds from video feeds. Each kind has its own
// per-run quota and its own recency window.
type Kind string

const (
	KindArticle Kind = "article"
	KindVideo   Kind = "video"
)

// Source is one external feed the pipeline polls. Defined in the registry
// files at deploy time, never mutated at runtime.
type Source struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	Kind           Kind   `yaml:"kind"`
	Priority       int    `yaml:"priority"` // lower = preferred on publish-time ties
	Category       string `yaml:"category"` // default category, may be empty
	ExtractSummary bool   `yaml:"extract_summary"`
}

type registryFile struct {
	Sources []Source `yaml:"sources"`
}
