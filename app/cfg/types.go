package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Pipeline configuration
	SourcesDir          string
	MaxArticlesPerRun   int
	MaxVideosPerRun     int
	LookbackHours       int
	SimilarityThreshold float64
	WorkerCount         int
	RunIntervalMinutes  int

	// Network configuration
	FeedTimeout     int // seconds
	PageTimeout     int // seconds
	RedirectTimeout int // seconds

	// Cross-post configuration
	ComposeURL             string
	CrossPostAuthor        string
	CrossPostVisibility    string
	CrossPostEveryNthVideo int

	// HTTP server configuration
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
