package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/claude/treningslogg/internal/localstore"
	"github.com/claude/treningslogg/internal/logging"
	"github.com/claude/treningslogg/internal/syncer"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "treningslogg server URL (e.g. https://treningslogg.tail1234.ts.net)")
	dbPath := flag.String("db", "", "path to the local sqlite logbook")
	apiKey := flag.String("api-key", os.Getenv("TRENINGSLOGG_AUTH_API_KEY"), "server API key (default $TRENINGSLOGG_AUTH_API_KEY)")
	userID := flag.Int("user", 1, "local user id to push")
	concurrency := flag.Int("concurrency", 4, "parallel pushes")
	dryRun := flag.Bool("dry-run", false, "report what would be pushed without sending")
	logLevel := flag.String("log-level", os.Getenv("TRENINGSLOGG_LOG_LEVEL"), "debug, info, warn or error (default $TRENINGSLOGG_LOG_LEVEL or info)")
	logFile := flag.String("log-file", os.Getenv("TRENINGSLOGG_LOG_FILE"), "also write logs to this rotated file")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("treningslogg-sync", Version)
		return
	}

	log, logCloser, err := logging.New(logging.Options{Level: *logLevel, File: *logFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if *dbPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: treningslogg-sync -server <URL> -db <logbook.db> [-api-key KEY] [-dry-run]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if (*serverURL == "" || *apiKey == "") && !*dryRun {
		fmt.Fprintf(os.Stderr, "Error: -server and -api-key are required (or use -dry-run)\n")
		os.Exit(1)
	}

	// Strip trailing slash from server URL
	*serverURL = strings.TrimRight(*serverURL, "/")

	store, err := localstore.Open(*dbPath)
	if err != nil {
		log.Error("failed to open logbook", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Open state database
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Error("failed to get home directory", "error", err)
		os.Exit(1)
	}
	state, err := syncer.OpenStateDB(filepath.Join(homeDir, ".treningslogg-sync"))
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	if *dryRun {
		log.Info("DRY RUN mode: documents will be hashed but not sent")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := syncer.New(store, syncer.NewClient(*serverURL, *apiKey), state, syncer.Options{
		UserID:      *userID,
		DryRun:      *dryRun,
		Concurrency: *concurrency,
	}, log)
	stats, err := s.Run(ctx)
	printStats(stats)
	if err != nil {
		log.Error("sync failed", "error", err)
		os.Exit(1)
	}
	log.Info("sync complete")
}

func printStats(stats *syncer.Stats) {
	if stats == nil {
		return
	}
	fmt.Println()
	fmt.Println("=== Sync Summary ===")
	fmt.Printf("  Templates pushed:    %d\n", stats.TemplatesPushed)
	fmt.Printf("  Templates unchanged: %d\n", stats.TemplatesUnchanged)
	fmt.Printf("  Templates deleted:   %d\n", stats.TemplatesDeleted)
	fmt.Printf("  Sessions pushed:     %d\n", stats.SessionsPushed)
	fmt.Printf("  Sessions unchanged:  %d\n", stats.SessionsUnchanged)
	fmt.Printf("  Sessions duplicate:  %d (external id already on server)\n", stats.SessionsDuplicate)
	fmt.Printf("  Failed:              %d\n", stats.Failed)
	fmt.Println()
}
