package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmelnik/newswire/app/api"
	"github.com/dmelnik/newswire/app/categorize"
	"github.com/dmelnik/newswire/app/cfg"
	"github.com/dmelnik/newswire/app/database"
	"github.com/dmelnik/newswire/app/dedup"
	"github.com/dmelnik/newswire/app/feed"
	"github.com/dmelnik/newswire/app/images"
	"github.com/dmelnik/newswire/app/pipeline"
	"github.com/dmelnik/newswire/app/publish"
	"github.com/dmelnik/newswire/app/sources"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting Newswire", "version", appCfg.Version)

	if appCfg.DBPath == "" {
		slog.Error("DB_PATH is required")
		os.Exit(1)
	}

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	registry, err := sources.NewRegistry(appCfg.SourcesDir)
	if err != nil {
		slog.Error("Failed to load source registry", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Source registry loaded", "sources", registry.Count())

	categorizer, err := categorize.NewFromDir(appCfg.SourcesDir)
	if err != nil {
		slog.Error("Failed to load category rules", "dir", appCfg.SourcesDir, "error", err)
		os.Exit(1)
	}

	itemRepo := database.NewItemRepository(db)
	postRepo := database.NewPostRepository(db)

	httpClient := &http.Client{}
	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent, time.Duration(appCfg.FeedTimeout)*time.Second)
	summarizer := feed.NewSummaryExtractor(httpClient, appCfg.UserAgent, time.Duration(appCfg.PageTimeout)*time.Second)

	unwrapper := images.NewUnwrapper(appCfg.UserAgent, time.Duration(appCfg.RedirectTimeout)*time.Second)
	resolver := images.NewResolver(httpClient, unwrapper, appCfg.UserAgent, time.Duration(appCfg.PageTimeout)*time.Second)

	var composer publish.Composer
	if appCfg.ComposeURL != "" {
		composer = publish.NewHTTPComposer(httpClient, appCfg.ComposeURL, appCfg.UserAgent, time.Duration(appCfg.PageTimeout)*time.Second)
		slog.Info("Cross-posting via compose endpoint", "url", appCfg.ComposeURL)
	} else {
		slog.Info("No compose endpoint configured, cross-posts go directly to the posts table")
	}
	publisher := publish.NewPublisher(itemRepo, postRepo, composer, appCfg.CrossPostAuthor, appCfg.CrossPostVisibility)

	orchestrator := pipeline.NewOrchestrator(registry, fetcher, categorizer, resolver,
		summarizer, dedup.NewEngine(appCfg.SimilarityThreshold), publisher, itemRepo,
		pipeline.Options{
			MaxArticlesPerRun:      appCfg.MaxArticlesPerRun,
			MaxVideosPerRun:        appCfg.MaxVideosPerRun,
			Lookback:               time.Duration(appCfg.LookbackHours) * time.Hour,
			WorkerCount:            appCfg.WorkerCount,
			CrossPostEveryNthVideo: appCfg.CrossPostEveryNthVideo,
		})

	scheduler := pipeline.NewScheduler(orchestrator, time.Duration(appCfg.RunIntervalMinutes)*time.Minute)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(itemRepo, registry, scheduler, db)
	router := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
}
