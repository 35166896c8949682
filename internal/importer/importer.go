// Package importer reads workouts from a Health Auto Export AutoSync
// directory (iCloud Drive) and stores them as sessions.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/claude/treningslogg/internal/ingest"
	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
)

// WorkoutIngester stores decoded HAE workouts. *hae.Provider implements it.
type WorkoutIngester interface {
	IngestWorkouts(ctx context.Context, workouts []models.HAEWorkout, userID int) (*ingest.Result, error)
}

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesSkipped   int
	FilesErrored   int

	SessionsInserted   int
	SessionsDuplicated int
	SessionsInvalid    int
	SetsInserted       int
}

// Importer reads workout .hae files and hands them to a WorkoutIngester.
type Importer struct {
	workouts WorkoutIngester
	log      *slog.Logger
	dryRun   bool
	decode   func(path string) ([]byte, error)
}

// New creates a new Importer.
func New(workouts WorkoutIngester, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{workouts: workouts, log: log, dryRun: dryRun, decode: readHAEFile}
}

// Import processes every .hae file in the Workouts folder of autoSyncDir.
// Unreadable files are counted and skipped.
func (imp *Importer) Import(ctx context.Context, autoSyncDir string, userID int) (*Stats, error) {
	stats := &Stats{}
	workoutDir := filepath.Join(autoSyncDir, "Workouts")
	if _, err := os.Stat(workoutDir); err != nil {
		return stats, fmt.Errorf("no Workouts folder in %s: %w", autoSyncDir, err)
	}

	files, err := filepath.Glob(filepath.Join(workoutDir, "*.hae"))
	if err != nil {
		return stats, err
	}

	var workouts []models.HAEWorkout
	for _, f := range files {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		w, ok := imp.readWorkout(f, stats)
		if !ok {
			continue
		}
		stats.FilesProcessed++
		workouts = append(workouts, w)
	}

	if imp.dryRun || len(workouts) == 0 {
		imp.log.Info("workouts read", "files", stats.FilesProcessed, "dry_run", imp.dryRun)
		return stats, nil
	}

	res, err := imp.workouts.IngestWorkouts(ctx, workouts, userID)
	if res != nil {
		stats.SessionsInserted = res.SessionsInserted
		stats.SessionsDuplicated = res.SessionsSkipped
		stats.SessionsInvalid = res.SessionsInvalid
		stats.SetsInserted = res.SetsInserted
	}
	if err != nil {
		return stats, fmt.Errorf("importing workouts: %w", err)
	}
	return stats, nil
}

func (imp *Importer) readWorkout(path string, stats *Stats) (models.HAEWorkout, bool) {
	data, err := imp.decode(path)
	if err != nil {
		imp.log.Warn("decompress failed", "file", path, "error", err)
		stats.FilesErrored++
		return models.HAEWorkout{}, false
	}

	var file models.HAEFileWorkout
	if err := json.Unmarshal(data, &file); err != nil {
		imp.log.Warn("parse failed", "file", path, "error", err)
		stats.FilesErrored++
		return models.HAEWorkout{}, false
	}
	if file.ID == "" {
		id, err := ParseWorkoutUUID(filepath.Base(path))
		if err != nil {
			imp.log.Warn("workout without id", "file", path, "error", err)
			stats.FilesSkipped++
			return models.HAEWorkout{}, false
		}
		file.ID = id
	}
	return file.HAEWorkout(), true
}

// readHAEFile returns the JSON inside a .hae file. AutoSync writes LZFSE
// compressed files; files that already hold plain JSON are read as is.
func readHAEFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return trimmed, nil
	}
	return DecompressLZFSE(path)
}

// ParseWorkoutUUID extracts the UUID from a workout filename like
// "cycling_20251219_585BDA5C-5A64-4D5A-A432-6BCA6C7BCDBE.hae". The type
// prefix may itself contain underscores.
func ParseWorkoutUUID(filename string) (string, error) {
	base := strings.TrimSuffix(filename, ".hae")
	if strings.Count(base, "_") < 2 {
		return "", fmt.Errorf("unexpected workout filename format: %s", filename)
	}
	if len(base) < 36 {
		return "", fmt.Errorf("filename too short to contain UUID: %s", filename)
	}
	id := base[len(base)-36:]
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid UUID in filename %s: %w", filename, err)
	}
	return id, nil
}
