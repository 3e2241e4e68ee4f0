package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" description:"Path to the SQLite database file (required)"`

	// Pipeline configuration
	SourcesDir          string  `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source registry files"`
	MaxArticlesPerRun   int     `long:"max-articles-per-run" env:"MAX_ARTICLES_PER_RUN" default:"5" description:"Maximum articles accepted per run"`
	MaxVideosPerRun     int     `long:"max-videos-per-run" env:"MAX_VIDEOS_PER_RUN" default:"3" description:"Maximum videos accepted per run"`
	LookbackHours       int     `long:"lookback-hours" env:"DEDUP_LOOKBACK_HOURS" default:"48" description:"Recency window for duplicate detection in hours"`
	SimilarityThreshold float64 `long:"similarity-threshold" env:"SIMILARITY_THRESHOLD" default:"0.7" description:"Bigram title similarity threshold for duplicate detection"`
	WorkerCount         int     `long:"worker-count" env:"WORKER_COUNT" default:"4" description:"Number of concurrent workers for source fetch and image resolution"`
	RunIntervalMinutes  int     `long:"run-interval" env:"RUN_INTERVAL_MINUTES" default:"120" description:"Interval between scheduled runs in minutes (0 disables the internal scheduler)"`

	// Network configuration
	FeedTimeout     int `long:"feed-timeout" env:"FEED_TIMEOUT" default:"15" description:"Feed fetch timeout in seconds"`
	PageTimeout     int `long:"page-timeout" env:"PAGE_TIMEOUT" default:"8" description:"Article page fetch timeout in seconds"`
	RedirectTimeout int `long:"redirect-timeout" env:"REDIRECT_TIMEOUT" default:"5" description:"Redirect probe timeout in seconds"`

	// Cross-post configuration
	ComposeURL             string `long:"compose-url" env:"COMPOSE_URL" description:"Social feed compose endpoint for cross-posting (optional)"`
	CrossPostAuthor        string `long:"cross-post-author" env:"CROSS_POST_AUTHOR" default:"newswire" description:"Author identity for cross-posted items"`
	CrossPostVisibility    string `long:"cross-post-visibility" env:"CROSS_POST_VISIBILITY" default:"public" description:"Visibility for cross-posted items"`
	CrossPostEveryNthVideo int    `long:"cross-post-every-nth-video" env:"CROSS_POST_EVERY_NTH_VIDEO" default:"3" description:"Cross-post every Nth accepted video (1 = every video)"`

	// HTTP server configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the run trigger endpoint (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Newswire/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:                 raw.DBPath,
		SourcesDir:             raw.SourcesDir,
		MaxArticlesPerRun:      raw.MaxArticlesPerRun,
		MaxVideosPerRun:        raw.MaxVideosPerRun,
		LookbackHours:          raw.LookbackHours,
		SimilarityThreshold:    raw.SimilarityThreshold,
		WorkerCount:            raw.WorkerCount,
		RunIntervalMinutes:     raw.RunIntervalMinutes,
		FeedTimeout:            raw.FeedTimeout,
		PageTimeout:            raw.PageTimeout,
		RedirectTimeout:        raw.RedirectTimeout,
		ComposeURL:             raw.ComposeURL,
		CrossPostAuthor:        raw.CrossPostAuthor,
		CrossPostVisibility:    raw.CrossPostVisibility,
		CrossPostEveryNthVideo: raw.CrossPostEveryNthVideo,
		Port:                   raw.Port,
		APIAccessKey:           raw.APIAccessKey,
		UserAgent:              raw.UserAgent,
		Timezone:               raw.Timezone,
		Debug:                  raw.Debug,
		Version:                GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Used by tests to vary quotas and
// thresholds per case.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
