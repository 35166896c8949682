package reconcile

import (
	"fmt"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
)

// ExerciseDraft is an editable exercise prepared for a new session.
type ExerciseDraft struct {
	models.Exercise
	// FromHistory is set when sets were carried over from an earlier session.
	FromHistory bool `json:"from_history"`
}

// Draft is the initial state of a session being logged.
type Draft struct {
	Type       models.SessionType `json:"type"`
	Layout     models.Layout      `json:"layout"`
	TemplateID *uuid.UUID         `json:"template_id,omitempty"`
	Exercises  []ExerciseDraft    `json:"exercises"`
}

// ExercisesOf strips the draft metadata.
func ExercisesOf(drafts []ExerciseDraft) []models.Exercise {
	out := make([]models.Exercise, len(drafts))
	for i, d := range drafts {
		out[i] = d.Exercise
	}
	return out
}

// ExerciseLayout returns the layout an exercise of template t is logged with.
// Strength and endurance templates always use their category layout. Other
// templates use the template layout, then the exercise's own, then Basic.
func ExerciseLayout(t models.WorkoutTemplate, et models.ExerciseTemplate) models.Layout {
	if t.Category == models.CategoryOther && t.Layout == "" && et.Layout != "" {
		return et.Layout
	}
	return t.ResolvedLayout()
}

// expectedSets is the number of sets an unmodified draft of et contains when
// no history applies. Basic exercises collapse to a single duration set.
func expectedSets(et models.ExerciseTemplate, layout models.Layout) int {
	if layout == models.LayoutBasic {
		return 1
	}
	return et.DefaultSets
}

// BuildDraftExercises prefills one draft exercise per template exercise.
//
// History from sessions of the template's category overrides template
// defaults: the most recent matching exercise decides the set count, seeds
// each set's fields position by position and carries its increase-next-time
// flag forward. Without a match the exercise gets DefaultSets empty sets.
func BuildDraftExercises(t models.WorkoutTemplate, history []models.WorkoutSession) ([]ExerciseDraft, error) {
	if err := models.ValidateTemplate(t); err != nil {
		return nil, err
	}

	family := sessionsOf(t.Category, history)
	drafts := make([]ExerciseDraft, 0, len(t.Exercises))
	for _, et := range t.Exercises {
		layout := ExerciseLayout(t, et)
		last := FindLastMatchingExercise(et.Name, family)
		drafts = append(drafts, draftExercise(et, layout, last))
	}
	return drafts, nil
}

func draftExercise(et models.ExerciseTemplate, layout models.Layout, last *models.Exercise) ExerciseDraft {
	count := expectedSets(et, layout)
	var seeds []models.SetEntry
	increase := false

	if last != nil {
		seeds = last.SortedSets()
		increase = last.IncreaseNextTime
		// An exercise logged without sets says nothing about the count.
		if layout != models.LayoutBasic && len(seeds) > 0 {
			count = len(seeds)
		}
	}

	sets := make([]models.SetEntry, count)
	for i := range sets {
		sets[i] = models.SetEntry{ID: uuid.New(), Order: i}
		if i < len(seeds) {
			for _, f := range layout.Fields() {
				sets[i].SetValue(f, seeds[i].Value(f))
			}
		}
	}

	return ExerciseDraft{
		Exercise: models.Exercise{
			ID:               uuid.New(),
			Name:             et.Name,
			Layout:           layout,
			Sets:             sets,
			IncreaseNextTime: increase,
		},
		FromHistory: last != nil,
	}
}

// AdHocDraft returns the starting point of a session logged without a
// template: a single unnamed exercise with one empty set.
func AdHocDraft(category models.Category, layout models.Layout) []ExerciseDraft {
	resolved := models.ResolveLayout(category, layout)
	return []ExerciseDraft{{
		Exercise: models.Exercise{
			ID:     uuid.New(),
			Layout: resolved,
			Sets:   []models.SetEntry{{ID: uuid.New(), Order: 0}},
		},
	}}
}

// NewDraft prepares a session of category from template t, or an ad hoc
// session when t is nil. layout is only honored for ad hoc Other sessions.
func NewDraft(category models.Category, t *models.WorkoutTemplate, layout models.Layout, history []models.WorkoutSession) (Draft, error) {
	if !category.Valid() {
		return Draft{}, fmt.Errorf("%w: unknown category %q", models.ErrInvalidInput, category)
	}
	if layout != "" && !layout.Valid() {
		return Draft{}, fmt.Errorf("%w: unknown layout %q", models.ErrInvalidInput, layout)
	}

	if t == nil {
		return Draft{
			Type:      models.SessionType{Category: category},
			Layout:    models.ResolveLayout(category, layout),
			Exercises: AdHocDraft(category, layout),
		}, nil
	}

	if t.Category != category {
		return Draft{}, fmt.Errorf("%w: template %q belongs to %s, not %s",
			models.ErrInvalidInput, t.Name, t.Category, category)
	}
	exercises, err := BuildDraftExercises(*t, history)
	if err != nil {
		return Draft{}, err
	}
	id := t.ID
	return Draft{
		Type:       models.SessionType{Category: category, TemplateName: t.Name},
		Layout:     t.ResolvedLayout(),
		TemplateID: &id,
		Exercises:  exercises,
	}, nil
}
