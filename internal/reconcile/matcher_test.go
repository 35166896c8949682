package reconcile

import (
	"testing"
	"time"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

var day = time.Date(2025, 5, 2, 18, 0, 0, 0, time.UTC)

// ignoreIDs drops generated ids from comparisons.
var ignoreIDs = cmp.Options{
	cmpopts.IgnoreFields(models.Exercise{}, "ID"),
	cmpopts.IgnoreFields(models.SetEntry{}, "ID"),
	cmpopts.IgnoreFields(models.ExerciseTemplate{}, "ID"),
}

func f64(v float64) *float64 { return &v }

func weightSets(weights ...float64) []models.SetEntry {
	sets := make([]models.SetEntry, len(weights))
	for i, w := range weights {
		sets[i] = models.SetEntry{ID: uuid.New(), Order: i, Weight: f64(w), Reps: f64(8)}
	}
	return sets
}

func strengthSession(date time.Time, exercises ...models.Exercise) models.WorkoutSession {
	return models.WorkoutSession{
		ID:        uuid.New(),
		Date:      date,
		Type:      models.SessionType{Category: models.CategoryStrength},
		Exercises: exercises,
	}
}

// TestFindCandidateTemplates verifies category filtering and name ordering.
func TestFindCandidateTemplates(t *testing.T) {
	catalog := Catalog{
		{ID: uuid.New(), Name: "underkropp", Category: models.CategoryStrength},
		{ID: uuid.New(), Name: "Sykling", Category: models.CategoryEndurance},
		{ID: uuid.New(), Name: "Overkropp", Category: models.CategoryStrength},
	}

	got := FindCandidateTemplates(models.CategoryStrength, catalog)
	var names []string
	for _, tmpl := range got {
		names = append(names, tmpl.Name)
	}
	if diff := cmp.Diff([]string{"Overkropp", "underkropp"}, names); diff != "" {
		t.Errorf("candidates mismatch (-want +got):\n%s", diff)
	}

	if got := FindCandidateTemplates(models.CategoryOther, catalog); got == nil || len(got) != 0 {
		t.Errorf("Other candidates = %#v, want empty non-nil slice", got)
	}
	if got := FindCandidateTemplates(models.CategoryStrength, nil); got == nil {
		t.Error("candidates of an empty catalog = nil, want empty slice")
	}
}

// TestFindLastMatchingExerciseMostRecent verifies the newest session wins
// regardless of input order and that names match case-insensitively.
func TestFindLastMatchingExerciseMostRecent(t *testing.T) {
	history := []models.WorkoutSession{
		strengthSession(day.AddDate(0, 0, -7), models.Exercise{Name: "Benkpress", Sets: weightSets(40)}),
		strengthSession(day.AddDate(0, 0, -1), models.Exercise{Name: "BENKPRESS", Sets: weightSets(45, 45)}),
		strengthSession(day.AddDate(0, 0, -3), models.Exercise{Name: "benkpress", Sets: weightSets(42)}),
	}

	got := FindLastMatchingExercise("benkpress ", history)
	if got == nil {
		t.Fatal("expected a match")
	}
	if len(got.Sets) != 2 {
		t.Errorf("matched sets = %d, want 2 (most recent session)", len(got.Sets))
	}
}

// TestFindLastMatchingExerciseNoHistory verifies nil signals "no history".
func TestFindLastMatchingExerciseNoHistory(t *testing.T) {
	if got := FindLastMatchingExercise("Markløft", nil); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
	history := []models.WorkoutSession{strengthSession(day, models.Exercise{Name: "Knebøy"})}
	if got := FindLastMatchingExercise("Markløft", history); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
	if got := FindLastMatchingExercise("", history); got != nil {
		t.Errorf("empty name matched %+v", got)
	}
}

// TestFindLastMatchingExerciseInCategory verifies sessions of other
// categories are ignored.
func TestFindLastMatchingExerciseInCategory(t *testing.T) {
	older := strengthSession(day.AddDate(0, 0, -5), models.Exercise{Name: "Intervaller", Sets: weightSets(1, 1, 1)})
	newer := models.WorkoutSession{
		Date:      day,
		Type:      models.SessionType{Category: models.CategoryEndurance, TemplateName: "Løping"},
		Exercises: []models.Exercise{{Name: "Intervaller", Sets: weightSets(1)}},
	}
	history := []models.WorkoutSession{newer, older}

	got := FindLastMatchingExerciseIn(models.CategoryStrength, "intervaller", history)
	if got == nil || len(got.Sets) != 3 {
		t.Fatalf("got %+v, want the strength session's exercise", got)
	}
}

// TestFindLastMatchingExerciseDoesNotAlias verifies callers may modify the
// result without touching history.
func TestFindLastMatchingExerciseDoesNotAlias(t *testing.T) {
	history := []models.WorkoutSession{strengthSession(day, models.Exercise{Name: "Benkpress"})}
	got := FindLastMatchingExercise("Benkpress", history)
	got.Name = "changed"
	if history[0].Exercises[0].Name != "Benkpress" {
		t.Error("history was modified through the returned exercise")
	}
}
