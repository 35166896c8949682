package alpha

import (
	"strconv"
	"strings"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
)

// ExternalID identifies an Alpha Progression session across re-imports.
func ExternalID(s models.AlphaSession) string {
	return "alpha:" + s.Date.Format("2006-01-02T15:04") + ":" + s.Name
}

// Sessions converts parsed sessions into Strength sessions named after the
// Alpha session. Only working sets are kept; the number of dropped warm-up
// sets is returned alongside.
func Sessions(parsed []models.AlphaSession) ([]models.WorkoutSession, int) {
	sessions := make([]models.WorkoutSession, 0, len(parsed))
	warmups := 0
	for _, a := range parsed {
		s := models.WorkoutSession{
			ID:         uuid.New(),
			Date:       a.Date,
			Type:       models.SessionType{Category: models.CategoryStrength, TemplateName: a.Name},
			ExternalID: ExternalID(a),
		}
		if a.Duration != "" {
			s.Notes = "Duration " + a.Duration
		}
		for _, ae := range a.Exercises {
			e := models.Exercise{
				ID:     uuid.New(),
				Name:   ae.Name,
				Layout: models.LayoutStrength,
			}
			for _, as := range ae.Sets {
				if as.IsWarmup {
					warmups++
					continue
				}
				weight, reps := as.WeightKg, float64(as.Reps)
				e.Sets = append(e.Sets, models.SetEntry{
					ID:     uuid.New(),
					Order:  len(e.Sets),
					Weight: &weight,
					Reps:   &reps,
					Notes:  setNotes(as),
				})
			}
			s.Exercises = append(s.Exercises, e)
		}
		sessions = append(sessions, s)
	}
	return sessions, warmups
}

// setNotes keeps what the set model has no field for.
func setNotes(s models.AlphaSet) string {
	var parts []string
	if s.IsBodyweightPlus {
		parts = append(parts, "bodyweight +")
	}
	parts = append(parts, "RIR "+strconv.FormatFloat(s.RIR, 'f', -1, 64))
	return strings.Join(parts, ", ")
}
