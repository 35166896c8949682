package localstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "logbook.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testSession(date time.Time, c models.Category, externalID string) models.WorkoutSession {
	w := 60.0
	return models.WorkoutSession{
		ID:         uuid.New(),
		Date:       date,
		Type:       models.SessionType{Category: c, TemplateName: "Overkropp"},
		ExternalID: externalID,
		Exercises: []models.Exercise{{
			ID:     uuid.New(),
			Name:   "Benkpress",
			Layout: models.LayoutStrength,
			Sets:   []models.SetEntry{{ID: uuid.New(), Order: 0, Weight: &w}},
		}},
	}
}

// TestSessionRoundTrip verifies a saved session reads back unchanged.
func TestSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	session := testSession(time.Date(2025, 5, 2, 18, 0, 0, 0, time.UTC), models.CategoryStrength, "")

	inserted, err := s.SaveSession(ctx, LocalUserID, session)
	if err != nil || !inserted {
		t.Fatalf("SaveSession = %v, %v", inserted, err)
	}
	got, err := s.GetSession(ctx, LocalUserID, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if diff := cmp.Diff(session, got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.GetSession(ctx, LocalUserID, uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing session error = %v, want ErrNotFound", err)
	}
}

// TestSaveSessionExternalIDDedupe verifies a second session with a known
// external id is not stored, while replacing the owner is allowed.
func TestSaveSessionExternalIDDedupe(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	date := time.Date(2025, 5, 2, 18, 0, 0, 0, time.UTC)

	first := testSession(date, models.CategoryStrength, "hae:ABC")
	if ok, err := s.SaveSession(ctx, LocalUserID, first); err != nil || !ok {
		t.Fatalf("first save = %v, %v", ok, err)
	}
	if ok, err := s.SaveSession(ctx, LocalUserID, testSession(date, models.CategoryStrength, "hae:ABC")); err != nil || ok {
		t.Errorf("duplicate save = %v, %v; want false, nil", ok, err)
	}

	first.Notes = "edited"
	if ok, err := s.SaveSession(ctx, LocalUserID, first); err != nil || !ok {
		t.Errorf("replace = %v, %v", ok, err)
	}
	all, _ := s.ListSessions(ctx, LocalUserID, models.SessionFilter{})
	if len(all) != 1 || all[0].Notes != "edited" {
		t.Errorf("sessions = %+v", all)
	}
}

// TestListSessionsFilter verifies category and half-open date filtering.
func TestListSessionsFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	may := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	for _, session := range []models.WorkoutSession{
		testSession(may.AddDate(0, 0, 3), models.CategoryStrength, ""),
		testSession(may.AddDate(0, 0, 1), models.CategoryEndurance, ""),
		testSession(may.AddDate(0, 1, 0), models.CategoryStrength, ""),
		testSession(may.AddDate(0, 0, -1), models.CategoryStrength, ""),
	} {
		if _, err := s.SaveSession(ctx, LocalUserID, session); err != nil {
			t.Fatal(err)
		}
	}

	strength := models.CategoryStrength
	got, err := s.ListSessions(ctx, LocalUserID, models.SessionFilter{
		Category: &strength,
		Start:    may,
		End:      may.AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 1 || !got[0].Date.Equal(may.AddDate(0, 0, 3)) {
		t.Errorf("got %d sessions, want the one on May 4", len(got))
	}
}

// TestTemplatesAndTombstones covers save, replace, delete and tombstones.
func TestTemplatesAndTombstones(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tmpl := models.WorkoutTemplate{
		ID:        uuid.New(),
		Name:      "Yoga",
		Category:  models.CategoryOther,
		Layout:    models.LayoutBasic,
		Exercises: []models.ExerciseTemplate{{ID: uuid.New(), Name: "Yoga", DefaultSets: 1}},
	}

	if err := s.SaveTemplate(ctx, LocalUserID, tmpl); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	tmpl.Name = "Yin Yoga"
	if err := s.SaveTemplate(ctx, LocalUserID, tmpl); err != nil {
		t.Fatalf("SaveTemplate replace: %v", err)
	}

	other := models.CategoryOther
	got, err := s.ListTemplates(ctx, LocalUserID, &other)
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if diff := cmp.Diff([]models.WorkoutTemplate{tmpl}, got); diff != "" {
		t.Errorf("templates mismatch (-want +got):\n%s", diff)
	}
	strength := models.CategoryStrength
	if got, _ := s.ListTemplates(ctx, LocalUserID, &strength); len(got) != 0 {
		t.Errorf("strength templates = %d, want 0", len(got))
	}

	if err := s.DeleteTemplate(ctx, LocalUserID, tmpl.ID); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if err := s.DeleteTemplate(ctx, LocalUserID, tmpl.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
	tombs, err := s.TemplateTombstones(ctx)
	if err != nil || len(tombs) != 1 || tombs[0] != tmpl.ID {
		t.Errorf("tombstones = %v, %v", tombs, err)
	}

	if err := s.ClearTombstone(ctx, tmpl.ID); err != nil {
		t.Fatalf("ClearTombstone: %v", err)
	}
	if tombs, _ := s.TemplateTombstones(ctx); len(tombs) != 0 {
		t.Errorf("tombstones after clear = %v", tombs)
	}
}

// TestSeedTemplatesOnce verifies seeding happens exactly once.
func TestSeedTemplatesOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed := []models.WorkoutTemplate{{
		ID:        uuid.New(),
		Name:      "Overkropp",
		Category:  models.CategoryStrength,
		Exercises: []models.ExerciseTemplate{{ID: uuid.New(), Name: "Benkpress", DefaultSets: 4}},
	}}

	if ok, err := s.SeedTemplates(ctx, LocalUserID, seed); err != nil || !ok {
		t.Fatalf("first seed = %v, %v", ok, err)
	}
	if err := s.DeleteTemplate(ctx, LocalUserID, seed[0].ID); err != nil {
		t.Fatal(err)
	}
	if ok, err := s.SeedTemplates(ctx, LocalUserID, seed); err != nil || ok {
		t.Errorf("second seed = %v, %v; want false, nil", ok, err)
	}
	if got, _ := s.ListTemplates(ctx, LocalUserID, nil); len(got) != 0 {
		t.Errorf("deleted seed template came back: %+v", got)
	}
}
