package hae

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/claude/treningslogg/internal/ingest"
	"github.com/claude/treningslogg/internal/models"
)

// Provider processes Health Auto Export payloads. Workouts become sessions;
// metric series are counted and dropped.
type Provider struct {
	sink ingest.Sink
	log  *slog.Logger
}

// NewProvider creates a new HAE ingest provider.
func NewProvider(sink ingest.Sink, log *slog.Logger) *Provider {
	return &Provider{sink: sink, log: log}
}

// Ingest converts the payload's workouts and stores them. Workouts that
// cannot be converted count as invalid.
func (p *Provider) Ingest(ctx context.Context, payload *models.HAEPayload, userID int) (*ingest.Result, error) {
	result := &ingest.Result{}
	for _, m := range payload.Data.Metrics {
		result.MetricsIgnored += len(m.Data)
	}
	err := p.ingestWorkouts(ctx, payload.Data.Workouts, userID, result)
	if result.MetricsIgnored > 0 {
		result.Message = fmt.Sprintf("%d metric data points ignored; only workouts are imported", result.MetricsIgnored)
	}
	return result, err
}

// IngestRaw decodes a raw HAE export, as returned by the TCP server, and
// ingests it.
func (p *Provider) IngestRaw(ctx context.Context, raw json.RawMessage, userID int) (*ingest.Result, error) {
	var payload models.HAEPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshaling HAE result: %w", err)
	}
	return p.Ingest(ctx, &payload, userID)
}

// IngestWorkouts stores already decoded workouts.
func (p *Provider) IngestWorkouts(ctx context.Context, workouts []models.HAEWorkout, userID int) (*ingest.Result, error) {
	result := &ingest.Result{}
	return result, p.ingestWorkouts(ctx, workouts, userID, result)
}

func (p *Provider) ingestWorkouts(ctx context.Context, workouts []models.HAEWorkout, userID int, result *ingest.Result) error {
	if len(workouts) == 0 {
		return nil
	}

	sessions := make([]models.WorkoutSession, 0, len(workouts))
	for _, w := range workouts {
		s, err := Session(w)
		if err != nil {
			p.log.Warn("skipping workout", "id", w.ID, "name", w.Name, "error", err)
			result.SessionsReceived++
			result.SessionsInvalid++
			continue
		}
		sessions = append(sessions, s)
	}

	res, err := p.sink.ImportSessions(ctx, userID, sessions)
	result.Add(res)
	if err != nil {
		return fmt.Errorf("storing workouts: %w", err)
	}
	return nil
}
