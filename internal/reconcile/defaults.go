package reconcile

import (
	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
)

type seedExercise struct {
	name string
	sets int
}

type seedTemplate struct {
	name      string
	category  models.Category
	layout    models.Layout
	exercises []seedExercise
}

var defaultSeeds = []seedTemplate{
	{"Overkropp", models.CategoryStrength, "", []seedExercise{
		{"Benkpress", 4}, {"Skulderpress", 3}, {"Triceps Extensions", 3}, {"Biceps Curl", 3},
	}},
	{"Underkropp", models.CategoryStrength, "", []seedExercise{
		{"Knebøy", 4}, {"Markløft", 4}, {"Leg Press", 3}, {"Calf Raises", 3},
	}},
	{"Løping Intervall", models.CategoryEndurance, "", []seedExercise{
		{"Oppvarming (10 min)", 1}, {"4x4 Intervaller", 4}, {"Nedkjøling (5 min)", 1},
	}},
	{"Sykling", models.CategoryEndurance, "", []seedExercise{
		{"Distanse/Tid", 1},
	}},
	{"Klatring", models.CategoryOther, models.LayoutBasic, []seedExercise{
		{"Klatring", 1},
	}},
	{"Yoga", models.CategoryOther, models.LayoutBasic, []seedExercise{
		{"Yoga", 1},
	}},
}

// DefaultCatalog returns the templates a new user starts with, with fresh ids.
func DefaultCatalog() Catalog {
	out := make(Catalog, 0, len(defaultSeeds))
	for _, s := range defaultSeeds {
		t := models.WorkoutTemplate{
			ID:       uuid.New(),
			Name:     s.name,
			Category: s.category,
			Layout:   s.layout,
		}
		for _, e := range s.exercises {
			t.Exercises = append(t.Exercises, models.ExerciseTemplate{
				ID:          uuid.New(),
				Name:        e.name,
				Layout:      models.ResolveLayout(s.category, s.layout),
				DefaultSets: e.sets,
			})
		}
		out = append(out, t)
	}
	return SortCatalog(out)
}
