package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/claude/treningslogg/internal/config"
	"github.com/claude/treningslogg/internal/importer"
	"github.com/claude/treningslogg/internal/ingest"
	"github.com/claude/treningslogg/internal/ingest/alpha"
	"github.com/claude/treningslogg/internal/ingest/hae"
	"github.com/claude/treningslogg/internal/localstore"
	"github.com/claude/treningslogg/internal/logbook"
	"github.com/claude/treningslogg/internal/logging"
	"github.com/claude/treningslogg/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	alphaPath := flag.String("alpha", "", "Alpha Progression CSV export to import")
	autoSyncPath := flag.String("path", "", "path to AutoSync directory")
	haeHost := flag.String("hae-host", "", "Health Auto Export TCP server host")
	haePort := flag.Int("hae-port", hae.DefaultPort, "Health Auto Export TCP server port")
	startStr := flag.String("start", "", "HAE TCP import start date (YYYY-MM-DD, default 1 year ago)")
	endStr := flag.String("end", "", "HAE TCP import end date (YYYY-MM-DD, default today)")
	dryRun := flag.Bool("dry-run", false, "report counts without writing AutoSync workouts")
	userID := flag.Int("user", 1, "user id to import for")
	flag.Parse()

	if *alphaPath == "" && *autoSyncPath == "" && *haeHost == "" {
		fmt.Fprintf(os.Stderr, "Usage: treningslogg-import -config config.yaml (-alpha export.csv | -path /path/to/AutoSync [-dry-run] | -hae-host iphone.local [-start 2025-01-01] [-end 2025-12-31])\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, logCloser, err := logging.New(logging.Options{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer closeStore()
	log.Info("database connected", "driver", cfg.Database.Driver)

	svc := logbook.New(store, log)

	switch {
	case *alphaPath != "":
		f, err := os.Open(*alphaPath)
		if err != nil {
			log.Error("failed to open CSV", "path", *alphaPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()

		result, err := alpha.NewProvider(svc, log).Ingest(ctx, f, *userID)
		if err != nil {
			log.Error("alpha import failed", "error", err)
			os.Exit(1)
		}
		printResult(log, result)

	case *autoSyncPath != "":
		info, err := os.Stat(*autoSyncPath)
		if err != nil || !info.IsDir() {
			log.Error("AutoSync path does not exist or is not a directory", "path", *autoSyncPath)
			os.Exit(1)
		}
		if *dryRun {
			log.Info("DRY RUN mode: no sessions will be written")
		}

		imp := importer.New(hae.NewProvider(svc, log), log, *dryRun)
		stats, err := imp.Import(ctx, *autoSyncPath, *userID)
		if err != nil {
			log.Error("import failed", "error", err)
			printStats(log, stats)
			os.Exit(1)
		}
		printStats(log, stats)

	default:
		end := time.Now()
		if *endStr != "" {
			if end, err = time.Parse("2006-01-02", *endStr); err != nil {
				log.Error("invalid -end", "error", err)
				os.Exit(1)
			}
		}
		start := end.AddDate(-1, 0, 0)
		if *startStr != "" {
			if start, err = time.Parse("2006-01-02", *startStr); err != nil {
				log.Error("invalid -start", "error", err)
				os.Exit(1)
			}
		}

		client := hae.NewClient(*haeHost, *haePort)
		raw, err := client.QueryWorkoutsWithRetry(ctx, start, end, log)
		if err != nil {
			log.Error("HAE query failed", "addr", client.Addr(), "error", err)
			os.Exit(1)
		}
		result, err := hae.NewProvider(svc, log).IngestRaw(ctx, raw, *userID)
		if err != nil {
			log.Error("HAE import failed", "error", err)
			os.Exit(1)
		}
		printResult(log, result)
	}

	log.Info("import complete")
}

// openStore opens the configured backend, running migrations for postgres.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (logbook.Store, func(), error) {
	if cfg.Driver == config.DriverSQLite {
		local, err := localstore.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return local, func() { local.Close() }, nil
	}

	dsn := cfg.DSN()
	if err := storage.RunMigrations(dsn, "migrations"); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	db, err := storage.New(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}

func printResult(log *slog.Logger, r *ingest.Result) {
	log.Info("import result",
		"sessions_received", r.SessionsReceived,
		"sessions_inserted", r.SessionsInserted,
		"sessions_skipped", r.SessionsSkipped,
		"sessions_invalid", r.SessionsInvalid,
		"sets_inserted", r.SetsInserted,
		"warmups_skipped", r.WarmupsSkipped,
	)
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_skipped", stats.FilesSkipped,
		"files_errored", stats.FilesErrored,
		"sessions_inserted", stats.SessionsInserted,
		"sessions_duplicated", stats.SessionsDuplicated,
		"sessions_invalid", stats.SessionsInvalid,
		"sets_inserted", stats.SetsInserted,
	)
}
