package reconcile

import (
	"slices"
	"strings"

	"github.com/claude/treningslogg/internal/models"
)

// FindCandidateTemplates returns the templates of the given category, sorted
// by name. An empty result is normal and means "no templates yet".
func FindCandidateTemplates(category models.Category, catalog Catalog) []models.WorkoutTemplate {
	out := Catalog{}
	for _, t := range catalog {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return SortCatalog(out)
}

// FindLastMatchingExercise scans history from the most recent session
// backwards and returns the first exercise whose name matches
// case-insensitively. It returns nil when nothing matches.
func FindLastMatchingExercise(name string, history []models.WorkoutSession) *models.Exercise {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for _, s := range newestFirst(history) {
		for _, e := range s.Exercises {
			if strings.EqualFold(strings.TrimSpace(e.Name), name) {
				match := e
				return &match
			}
		}
	}
	return nil
}

// FindLastMatchingExerciseIn is FindLastMatchingExercise restricted to
// sessions of one category.
func FindLastMatchingExerciseIn(category models.Category, name string, history []models.WorkoutSession) *models.Exercise {
	return FindLastMatchingExercise(name, sessionsOf(category, history))
}

func sessionsOf(category models.Category, history []models.WorkoutSession) []models.WorkoutSession {
	var out []models.WorkoutSession
	for _, s := range history {
		if s.Type.Category == category {
			out = append(out, s)
		}
	}
	return out
}

// newestFirst returns history sorted by date, most recent first. Sessions
// with the same date keep their input order.
func newestFirst(history []models.WorkoutSession) []models.WorkoutSession {
	out := slices.Clone(history)
	slices.SortStableFunc(out, func(a, b models.WorkoutSession) int {
		return b.Date.Compare(a.Date)
	})
	return out
}
