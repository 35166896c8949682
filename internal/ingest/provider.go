// Package ingest converts exports from other apps into workout sessions.
// The alpha and hae subpackages parse their formats; both hand the
// resulting sessions to a Sink.
package ingest

import (
	"context"

	"github.com/claude/treningslogg/internal/logbook"
	"github.com/claude/treningslogg/internal/models"
)

// Sink stores converted sessions, skipping ones already imported.
// *logbook.Service implements it.
type Sink interface {
	ImportSessions(ctx context.Context, userID int, sessions []models.WorkoutSession) (logbook.ImportResult, error)
}

// Result holds the outcome of an ingest operation.
type Result struct {
	SessionsReceived int `json:"sessions_received"`
	SessionsInserted int `json:"sessions_inserted"`
	SessionsSkipped  int `json:"sessions_skipped"`
	SessionsInvalid  int `json:"sessions_invalid,omitempty"`

	SetsInserted   int `json:"sets_inserted"`
	WarmupsSkipped int `json:"warmups_skipped,omitempty"`

	// MetricsIgnored counts HAE metric data points, which carry no sessions.
	MetricsIgnored int `json:"metrics_ignored,omitempty"`

	Message string `json:"message,omitempty"`
}

// Add folds a sink outcome into r.
func (r *Result) Add(res logbook.ImportResult) {
	r.SessionsReceived += res.Received
	r.SessionsInserted += res.Inserted
	r.SessionsSkipped += res.Duplicates
	r.SessionsInvalid += res.Invalid
	r.SetsInserted += res.SetsInserted
}

// Merge adds the counters of other to r.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.SessionsReceived += other.SessionsReceived
	r.SessionsInserted += other.SessionsInserted
	r.SessionsSkipped += other.SessionsSkipped
	r.SessionsInvalid += other.SessionsInvalid
	r.SetsInserted += other.SetsInserted
	r.WarmupsSkipped += other.WarmupsSkipped
	r.MetricsIgnored += other.MetricsIgnored
}
