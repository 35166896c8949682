package reconcile

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a Flow action is not allowed in the
// current state.
var ErrInvalidTransition = errors.New("invalid transition")

// State is a step of the session creation flow.
type State int

const (
	StateIdle State = iota
	StateTemplateSelection
	StateDrafting
	StateDiff
	StatePromptTemplateSave
	StateUpsert
	StateResolveNameConflict
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTemplateSelection:
		return "template_selection"
	case StateDrafting:
		return "drafting"
	case StateDiff:
		return "diff"
	case StatePromptTemplateSave:
		return "prompt_template_save"
	case StateUpsert:
		return "upsert"
	case StateResolveNameConflict:
		return "resolve_name_conflict"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Flow walks one session from category selection to an optional template
// save. It works on the catalog and history snapshot it was created with;
// Catalog returns the result for the caller to persist.
type Flow struct {
	state    State
	catalog  Catalog
	history  []models.WorkoutSession
	category models.Category
	layout   models.Layout
	template *models.WorkoutTemplate

	exercises []models.Exercise
	prompt    SavePrompt
	pending   UpsertRequest
	conflict  *DuplicateNameError
	saved     *models.WorkoutTemplate
}

// NewFlow starts an idle flow over a snapshot.
func NewFlow(catalog Catalog, history []models.WorkoutSession) *Flow {
	return &Flow{
		state:   StateIdle,
		catalog: slices.Clone(catalog),
		history: history,
	}
}

func (f *Flow) State() State { return f.state }
func (f *Flow) Catalog() Catalog { return f.catalog }
func (f *Flow) Category() models.Category { return f.category }
func (f *Flow) Template() *models.WorkoutTemplate { return f.template }
func (f *Flow) Exercises() []models.Exercise { return f.exercises }
func (f *Flow) Prompt() SavePrompt { return f.prompt }
func (f *Flow) Conflict() *DuplicateNameError { return f.conflict }
func (f *Flow) SavedTemplate() *models.WorkoutTemplate { return f.saved }

// SessionType is the tagged type the finished session is stored with.
func (f *Flow) SessionType() models.SessionType {
	t := models.SessionType{Category: f.category}
	if f.template != nil {
		t.TemplateName = f.template.Name
	}
	return t
}

func (f *Flow) expect(action string, states ...State) error {
	if slices.Contains(states, f.state) {
		return nil
	}
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, action, f.state)
}

// SelectCategory moves to template selection and returns the candidates.
func (f *Flow) SelectCategory(c models.Category) ([]models.WorkoutTemplate, error) {
	if err := f.expect("select category", StateIdle); err != nil {
		return nil, err
	}
	if !c.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrInvalidInput, c)
	}
	f.category = c
	f.state = StateTemplateSelection
	return FindCandidateTemplates(c, f.catalog), nil
}

// PickTemplate drafts the session from the template id.
func (f *Flow) PickTemplate(id uuid.UUID) (Draft, error) {
	if err := f.expect("pick template", StateTemplateSelection); err != nil {
		return Draft{}, err
	}
	t, ok := f.catalog.Find(id)
	if !ok || t.Category != f.category {
		return Draft{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return f.startDraft(&t, "")
}

// Skip drafts an ad hoc session. layout only matters for Other.
func (f *Flow) Skip(layout models.Layout) (Draft, error) {
	if err := f.expect("skip", StateTemplateSelection); err != nil {
		return Draft{}, err
	}
	return f.startDraft(nil, layout)
}

// Restore puts an idle flow straight into drafting for a session whose draft
// was produced earlier, e.g. by another request. No prefill runs.
func (f *Flow) Restore(c models.Category, t *models.WorkoutTemplate, layout models.Layout) error {
	if err := f.expect("restore", StateIdle); err != nil {
		return err
	}
	if !c.Valid() {
		return fmt.Errorf("%w: unknown category %q", models.ErrInvalidInput, c)
	}
	if t != nil && t.Category != c {
		return fmt.Errorf("%w: template %q belongs to %s", models.ErrInvalidInput, t.Name, t.Category)
	}
	f.category = c
	f.template = t
	f.layout = models.ResolveLayout(c, layout)
	if t != nil {
		f.layout = t.ResolvedLayout()
	}
	f.state = StateDrafting
	return nil
}

func (f *Flow) startDraft(t *models.WorkoutTemplate, layout models.Layout) (Draft, error) {
	d, err := NewDraft(f.category, t, layout, f.history)
	if err != nil {
		return Draft{}, err
	}
	f.template = t
	f.layout = d.Layout
	f.exercises = ExercisesOf(d.Exercises)
	f.state = StateDrafting
	return d, nil
}

// Edit replaces the working exercise list.
func (f *Flow) Edit(exercises []models.Exercise) error {
	if err := f.expect("edit", StateDrafting); err != nil {
		return err
	}
	f.exercises = slices.Clone(exercises)
	return nil
}

// Save runs the structural diff. The flow ends in Done when nothing changed
// and in PromptTemplateSave otherwise.
func (f *Flow) Save() (SavePrompt, error) {
	if err := f.expect("save", StateDrafting); err != nil {
		return SavePrompt{}, err
	}
	f.state = StateDiff
	f.prompt = Diff(f.category, f.template, f.exercises)
	if f.prompt.Changed {
		f.state = StatePromptTemplateSave
	} else {
		f.state = StateDone
	}
	return f.prompt, nil
}

// Decline skips the template save.
func (f *Flow) Decline() error {
	if err := f.expect("decline", StatePromptTemplateSave, StateResolveNameConflict); err != nil {
		return err
	}
	f.state = StateDone
	return nil
}

// Confirm saves the session's exercises as a template called name. Keeping
// the originating template's name updates it; any other name creates a new
// template. A collision moves the flow to ResolveNameConflict.
func (f *Flow) Confirm(name string) (models.WorkoutTemplate, error) {
	if err := f.expect("confirm", StatePromptTemplateSave); err != nil {
		return models.WorkoutTemplate{}, err
	}
	req := UpsertRequest{
		Name:      name,
		Category:  f.category,
		Layout:    f.layout,
		Exercises: f.exercises,
		Mode:      CreateNew,
	}
	if f.template != nil && strings.EqualFold(strings.TrimSpace(name), f.template.Name) {
		id := f.template.ID
		req.Mode = UpdateExisting
		req.TemplateID = &id
	}
	return f.upsert(req)
}

// Resolution answers a name conflict: either update the existing template or
// retry under a new name.
type Resolution struct {
	UpdateExisting bool
	NewName        string
}

// ResolveConflict retries the pending upsert.
func (f *Flow) ResolveConflict(r Resolution) (models.WorkoutTemplate, error) {
	if err := f.expect("resolve conflict", StateResolveNameConflict); err != nil {
		return models.WorkoutTemplate{}, err
	}
	req := f.pending
	if r.UpdateExisting {
		id := f.conflict.Existing.ID
		req.Mode = UpdateExisting
		req.TemplateID = &id
	} else {
		req.Name = r.NewName
		req.Mode = CreateNew
		req.TemplateID = nil
	}
	return f.upsert(req)
}

func (f *Flow) upsert(req UpsertRequest) (models.WorkoutTemplate, error) {
	prev := f.state
	f.state = StateUpsert
	f.pending = req

	catalog, saved, err := UpsertTemplate(f.catalog, req)
	var dup *DuplicateNameError
	switch {
	case errors.As(err, &dup):
		f.conflict = dup
		f.state = StateResolveNameConflict
		return models.WorkoutTemplate{}, err
	case err != nil:
		f.state = prev
		return models.WorkoutTemplate{}, err
	}

	f.catalog = catalog
	f.saved = &saved
	f.conflict = nil
	f.state = StateDone
	return saved, nil
}
