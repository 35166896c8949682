package alpha

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/claude/treningslogg/internal/logbook"
	"github.com/claude/treningslogg/internal/models"
)

// fakeSink records imported sessions and treats known external ids as duplicates.
type fakeSink struct {
	seen     map[string]bool
	sessions []models.WorkoutSession
	err      error
}

func (f *fakeSink) ImportSessions(_ context.Context, _ int, sessions []models.WorkoutSession) (logbook.ImportResult, error) {
	if f.err != nil {
		return logbook.ImportResult{}, f.err
	}
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	res := logbook.ImportResult{Received: len(sessions)}
	for _, s := range sessions {
		if f.seen[s.ExternalID] {
			res.Duplicates++
			continue
		}
		f.seen[s.ExternalID] = true
		f.sessions = append(f.sessions, s)
		res.Inserted++
		for _, e := range s.Exercises {
			res.SetsInserted += len(e.Sets)
		}
	}
	return res, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestSessionsWorkingSetsOnly verifies warm-ups are dropped and counted and
// the remaining sets keep their values in order.
func TestSessionsWorkingSetsOnly(t *testing.T) {
	parsed, err := Parse(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	sessions, warmups := Sessions(parsed)
	if warmups != 8 {
		t.Errorf("warmups = %d, want 8", warmups)
	}
	if len(sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(sessions))
	}

	s1 := sessions[0]
	if s1.Type.Category != models.CategoryStrength {
		t.Errorf("category = %q, want strength", s1.Type.Category)
	}
	if s1.Type.TemplateName != "Legs · Day 2 · Week 4 · Push-Pull-Legs" {
		t.Errorf("template name = %q", s1.Type.TemplateName)
	}
	if want := "alpha:2026-02-19T04:54:Legs · Day 2 · Week 4 · Push-Pull-Legs"; s1.ExternalID != want {
		t.Errorf("external id = %q, want %q", s1.ExternalID, want)
	}

	hack := s1.Exercises[0]
	if len(hack.Sets) != 3 {
		t.Fatalf("hack squat sets = %d, want 3", len(hack.Sets))
	}
	for i, set := range hack.Sets {
		if set.Order != i {
			t.Errorf("set %d order = %d", i, set.Order)
		}
	}
	if got := hack.Sets[1]; *got.Weight != 115 || *got.Reps != 10 || got.Notes != "RIR 1" {
		t.Errorf("second set = weight %v reps %v notes %q, want 115/10/RIR 1", *got.Weight, *got.Reps, got.Notes)
	}

	hyper := s1.Exercises[2]
	if got := hyper.Sets[0].Notes; got != "bodyweight +, RIR 0" {
		t.Errorf("bodyweight notes = %q", got)
	}
	if err := models.ValidateSession(s1); err != nil {
		t.Errorf("converted session invalid: %v", err)
	}
}

// TestProviderIngestDedupe verifies a re-import of the same export inserts nothing.
func TestProviderIngestDedupe(t *testing.T) {
	sink := &fakeSink{}
	p := NewProvider(sink, discardLogger())

	first, err := p.Ingest(context.Background(), strings.NewReader(sampleCSV), 1)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if first.SessionsInserted != 2 || first.SetsInserted != 20 {
		t.Errorf("first = %+v, want 2 sessions and 20 sets", first)
	}

	second, err := p.Ingest(context.Background(), strings.NewReader(sampleCSV), 1)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if second.SessionsInserted != 0 || second.SessionsSkipped != 2 {
		t.Errorf("second = %+v, want 0 inserted and 2 skipped", second)
	}
}

// TestProviderIngestSinkError verifies store failures are returned.
func TestProviderIngestSinkError(t *testing.T) {
	p := NewProvider(&fakeSink{err: errors.New("disk full")}, discardLogger())
	if _, err := p.Ingest(context.Background(), strings.NewReader(sampleCSV), 1); err == nil {
		t.Fatal("expected error from sink")
	}
}
