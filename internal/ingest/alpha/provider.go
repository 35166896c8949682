package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/claude/treningslogg/internal/ingest"
)

// Provider processes Alpha Progression CSV exports.
type Provider struct {
	sink ingest.Sink
	log  *slog.Logger
}

// NewProvider creates a new Alpha Progression ingest provider.
func NewProvider(sink ingest.Sink, log *slog.Logger) *Provider {
	return &Provider{sink: sink, log: log}
}

// Ingest parses a CSV export and stores one session per Alpha session.
// Sessions imported before are skipped.
func (p *Provider) Ingest(ctx context.Context, r io.Reader, userID int) (*ingest.Result, error) {
	parsed, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	sessions, warmups := Sessions(parsed)
	result := &ingest.Result{WarmupsSkipped: warmups}
	res, err := p.sink.ImportSessions(ctx, userID, sessions)
	result.Add(res)
	if err != nil {
		return result, fmt.Errorf("storing sessions: %w", err)
	}

	p.log.Info("alpha import",
		"user_id", userID,
		"sessions", result.SessionsReceived,
		"inserted", result.SessionsInserted,
		"skipped", result.SessionsSkipped,
		"warmups_skipped", warmups,
	)
	return result, nil
}
