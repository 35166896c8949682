package reconcile

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrDuplicateName is wrapped by *DuplicateNameError.
	ErrDuplicateName = errors.New("template name already exists")
	// ErrTemplateNotFound is returned when an update or rename targets a
	// template that is not in the catalog.
	ErrTemplateNotFound = errors.New("template not found")
)

// DuplicateNameError carries the template whose name collided so the caller
// can offer to update it instead.
type DuplicateNameError struct {
	Existing models.WorkoutTemplate
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s template %q already exists", e.Existing.Category.DisplayName(), e.Existing.Name)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// UpsertMode selects between creating a template and replacing one.
type UpsertMode string

const (
	CreateNew      UpsertMode = "create"
	UpdateExisting UpsertMode = "update"
)

// UpsertRequest describes a template save decision.
type UpsertRequest struct {
	// TemplateID targets a specific template in UpdateExisting mode. When nil
	// the template is looked up by name and category.
	TemplateID *uuid.UUID
	Name       string
	Category   models.Category
	Layout     models.Layout
	Exercises  []models.Exercise
	Mode       UpsertMode
}

// UpsertTemplate applies req to catalog and returns the new, sorted catalog
// together with the created or updated template. catalog is not modified.
func UpsertTemplate(catalog Catalog, req UpsertRequest) (Catalog, models.WorkoutTemplate, error) {
	exercises := exerciseTemplatesFrom(req.Exercises)
	candidate := models.WorkoutTemplate{
		Name:      strings.TrimSpace(req.Name),
		Category:  req.Category,
		Layout:    req.Layout,
		Exercises: exercises,
	}
	if err := models.ValidateTemplate(candidate); err != nil {
		return nil, models.WorkoutTemplate{}, err
	}
	if candidate.Category != models.CategoryOther {
		candidate.Layout = ""
	}

	switch req.Mode {
	case CreateNew, "":
		if existing, ok := catalog.FindByName(candidate.Category, candidate.Name); ok {
			return nil, models.WorkoutTemplate{}, &DuplicateNameError{Existing: existing}
		}
		candidate.ID = uuid.New()
		out := append(slices.Clone(catalog), candidate)
		return SortCatalog(out), candidate, nil

	case UpdateExisting:
		i := -1
		if req.TemplateID != nil {
			i = catalog.index(*req.TemplateID)
		} else if existing, ok := catalog.FindByName(candidate.Category, candidate.Name); ok {
			i = catalog.index(existing.ID)
		}
		if i < 0 {
			return nil, models.WorkoutTemplate{}, fmt.Errorf("%w: %q", ErrTemplateNotFound, candidate.Name)
		}
		if catalog[i].Category != candidate.Category {
			return nil, models.WorkoutTemplate{}, fmt.Errorf("%w: template %q belongs to %s, not %s",
				models.ErrInvalidInput, catalog[i].Name, catalog[i].Category, candidate.Category)
		}
		out := slices.Clone(catalog)
		updated := out[i]
		updated.Exercises = exercises
		out[i] = updated
		return SortCatalog(out), updated, nil

	default:
		return nil, models.WorkoutTemplate{}, fmt.Errorf("%w: unknown upsert mode %q", models.ErrInvalidInput, req.Mode)
	}
}

// exerciseTemplatesFrom builds fresh template entries from logged exercises.
// The set count becomes the new default.
func exerciseTemplatesFrom(exercises []models.Exercise) []models.ExerciseTemplate {
	out := make([]models.ExerciseTemplate, len(exercises))
	for i, e := range exercises {
		out[i] = models.ExerciseTemplate{
			ID:               uuid.New(),
			Name:             strings.TrimSpace(e.Name),
			Layout:           e.Layout,
			DefaultSets:      len(e.Sets),
			IncreaseNextTime: e.IncreaseNextTime,
		}
	}
	return out
}

// RenameTemplate gives the template id a new, trimmed name. Changing only
// the case of a name is allowed.
func RenameTemplate(catalog Catalog, id uuid.UUID, name string) (Catalog, models.WorkoutTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.WorkoutTemplate{}, fmt.Errorf("%w: template name is required", models.ErrInvalidInput)
	}
	i := catalog.index(id)
	if i < 0 {
		return nil, models.WorkoutTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if existing, ok := catalog.FindByName(catalog[i].Category, name); ok && existing.ID != id {
		return nil, models.WorkoutTemplate{}, &DuplicateNameError{Existing: existing}
	}

	out := slices.Clone(catalog)
	out[i].Name = name
	renamed := out[i]
	return SortCatalog(out), renamed, nil
}

// DeleteTemplate removes the template id from the catalog.
func DeleteTemplate(catalog Catalog, id uuid.UUID) (Catalog, error) {
	i := catalog.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return slices.Delete(slices.Clone(catalog), i, i+1), nil
}
