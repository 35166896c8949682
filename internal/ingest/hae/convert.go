package hae

import (
	"fmt"
	"math"
	"strings"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
)

// enduranceWords mark workouts logged as Endurance.
var enduranceWords = []string{
	"run", "walk", "hike", "cycl", "bik", "swim", "row", "elliptical",
	"stair", "ski", "skat", "paddl", "løp", "sykl", "gå", "svøm",
}

// strengthWords mark workouts logged as Strength.
var strengthWords = []string{"strength", "weight", "styrke", "functional"}

// CategoryFor maps an HAE workout name to a session category. Names that
// are neither endurance nor strength training land in Other.
func CategoryFor(name string) models.Category {
	n := strings.ToLower(name)
	for _, w := range strengthWords {
		if strings.Contains(n, w) {
			return models.CategoryStrength
		}
	}
	for _, w := range enduranceWords {
		if strings.Contains(n, w) {
			return models.CategoryEndurance
		}
	}
	return models.CategoryOther
}

// ExternalID identifies an HAE workout across re-imports.
func ExternalID(workoutID string) string {
	return "hae:" + workoutID
}

const kcalPerKJ = 1 / 4.184

// Session converts a workout into an ad hoc session with one exercise named
// after the workout and a single set holding its duration and distance.
func Session(w models.HAEWorkout) (models.WorkoutSession, error) {
	if strings.TrimSpace(w.ID) == "" {
		return models.WorkoutSession{}, fmt.Errorf("%w: workout %q has no id", models.ErrInvalidInput, w.Name)
	}
	if strings.TrimSpace(w.Name) == "" {
		return models.WorkoutSession{}, fmt.Errorf("%w: workout %s has no name", models.ErrInvalidInput, w.ID)
	}
	if w.Start.IsZero() {
		return models.WorkoutSession{}, fmt.Errorf("%w: workout %s has no start time", models.ErrInvalidInput, w.ID)
	}

	category := CategoryFor(w.Name)
	set := models.SetEntry{ID: uuid.New()}
	if minutes := workoutMinutes(w); minutes > 0 {
		set.Duration = &minutes
	}
	if km, ok := distanceKm(w.Distance); ok {
		set.Distance = &km
	}

	s := models.WorkoutSession{
		ID:         uuid.New(),
		Date:       w.Start.Time,
		Type:       models.SessionType{Category: category},
		Notes:      w.Location,
		Calories:   kilocalories(w.ActiveEnergyBurned),
		ExternalID: ExternalID(w.ID),
		Exercises: []models.Exercise{{
			ID:     uuid.New(),
			Name:   w.Name,
			Layout: category.DefaultLayout(),
			Sets:   []models.SetEntry{set},
		}},
	}
	return s, nil
}

func workoutMinutes(w models.HAEWorkout) float64 {
	seconds := w.Duration
	if seconds <= 0 && !w.End.IsZero() {
		seconds = w.End.Sub(w.Start.Time).Seconds()
	}
	return math.Round(seconds/60*10) / 10
}

func distanceKm(q *models.HAEQuantity) (float64, bool) {
	if q == nil || q.Qty <= 0 {
		return 0, false
	}
	switch strings.ToLower(q.Units) {
	case "m":
		return q.Qty / 1000, true
	case "mi":
		return q.Qty * 1.609344, true
	default:
		return q.Qty, true
	}
}

// kilocalories converts active energy to whole kcal; HAE reports kJ or kcal.
func kilocalories(q *models.HAEQuantity) *int {
	if q == nil || q.Qty <= 0 {
		return nil
	}
	kcal := q.Qty
	if strings.EqualFold(q.Units, "kJ") {
		kcal *= kcalPerKJ
	}
	n := int(math.Round(kcal))
	return &n
}
