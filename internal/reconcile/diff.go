package reconcile

import (
	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
)

// SavePrompt tells the caller whether to offer saving the session's
// exercises as a template, and how.
type SavePrompt struct {
	Changed       bool       `json:"changed"`
	SuggestedName string     `json:"suggested_name"`
	Mode          UpsertMode `json:"mode"`
	TemplateID    *uuid.UUID `json:"template_id,omitempty"`
}

// HasStructuralChanges reports whether exercises differ from the template
// they were drafted from in exercise count, names or set counts.
//
// Without a template, only non-empty Other sessions count as changed.
// Names are compared case-sensitively, unlike history matching, so renaming
// "benkpress" to "Benkpress" is a change worth saving.
func HasStructuralChanges(category models.Category, t *models.WorkoutTemplate, exercises []models.Exercise) bool {
	if t == nil {
		return category == models.CategoryOther && len(exercises) > 0
	}
	if len(exercises) != len(t.Exercises) {
		return true
	}
	for i, et := range t.Exercises {
		ex := exercises[i]
		if ex.Name != et.Name {
			return true
		}
		if len(ex.Sets) != expectedSets(et, ExerciseLayout(*t, et)) {
			return true
		}
	}
	return false
}

// Diff wraps HasStructuralChanges with the details a save prompt needs.
func Diff(category models.Category, t *models.WorkoutTemplate, exercises []models.Exercise) SavePrompt {
	p := SavePrompt{
		Changed: HasStructuralChanges(category, t, exercises),
		Mode:    CreateNew,
	}
	if t != nil {
		id := t.ID
		p.SuggestedName = t.Name
		p.Mode = UpdateExisting
		p.TemplateID = &id
	}
	return p
}
