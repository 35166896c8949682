// Package logbook ties the reconciliation engine to a Store. Every user
// action reads a consistent snapshot of the user's catalog and history,
// runs the pure decision logic and persists the result while holding that
// user's lock, so concurrent template edits and session saves for the same
// user cannot interleave.
package logbook

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/claude/treningslogg/internal/models"
	"github.com/claude/treningslogg/internal/reconcile"
	"github.com/claude/treningslogg/internal/report"
	"github.com/google/uuid"
)

// Service is safe for concurrent use.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	users map[int]*sync.Mutex
}

// New creates a Service over store.
func New(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
		users:  make(map[int]*sync.Mutex),
	}
}

// lock serializes actions of one user and returns the unlock func.
func (s *Service) lock(userID int) func() {
	s.mu.Lock()
	m, ok := s.users[userID]
	if !ok {
		m = &sync.Mutex{}
		s.users[userID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// EnsureSeeded gives a user the default templates on first use.
func (s *Service) EnsureSeeded(ctx context.Context, userID int) error {
	defer s.lock(userID)()
	return s.ensureSeeded(ctx, userID)
}

func (s *Service) ensureSeeded(ctx context.Context, userID int) error {
	seeded, err := s.store.SeedTemplates(ctx, userID, reconcile.DefaultCatalog())
	if err != nil {
		return fmt.Errorf("seeding default templates: %w", err)
	}
	if seeded {
		s.logger.Info("seeded default templates", "user_id", userID)
	}
	return nil
}

func (s *Service) catalog(ctx context.Context, userID int) (reconcile.Catalog, error) {
	if err := s.ensureSeeded(ctx, userID); err != nil {
		return nil, err
	}
	templates, err := s.store.ListTemplates(ctx, userID, nil)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	return reconcile.SortCatalog(templates), nil
}

// Catalog returns the user's templates in name order.
func (s *Service) Catalog(ctx context.Context, userID int) (reconcile.Catalog, error) {
	defer s.lock(userID)()
	return s.catalog(ctx, userID)
}

// Candidates returns the templates offered when starting a session of category.
func (s *Service) Candidates(ctx context.Context, userID int, category models.Category) ([]models.WorkoutTemplate, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", models.ErrInvalidInput, category)
	}
	defer s.lock(userID)()
	catalog, err := s.catalog(ctx, userID)
	if err != nil {
		return nil, err
	}
	return reconcile.FindCandidateTemplates(category, catalog), nil
}

// DraftRequest starts a session. A nil TemplateID drafts an ad hoc session;
// Layout is only honored for ad hoc Other sessions.
type DraftRequest struct {
	Category   models.Category `json:"category"`
	TemplateID *uuid.UUID      `json:"template_id,omitempty"`
	Layout     models.Layout   `json:"layout,omitempty"`
}

// StartDraft prefills a new session from the chosen template and history.
func (s *Service) StartDraft(ctx context.Context, userID int, req DraftRequest) (reconcile.Draft, error) {
	defer s.lock(userID)()

	catalog, err := s.catalog(ctx, userID)
	if err != nil {
		return reconcile.Draft{}, err
	}
	var history []models.WorkoutSession
	if req.TemplateID != nil && req.Category.Valid() {
		history, err = s.store.ListSessions(ctx, userID, models.SessionFilter{Category: &req.Category})
		if err != nil {
			return reconcile.Draft{}, fmt.Errorf("loading history: %w", err)
		}
	}

	flow := reconcile.NewFlow(catalog, history)
	if _, err := flow.SelectCategory(req.Category); err != nil {
		return reconcile.Draft{}, err
	}
	if req.TemplateID == nil {
		return flow.Skip(req.Layout)
	}
	return flow.PickTemplate(*req.TemplateID)
}

// SessionInput is a finished or edited session as submitted by a client.
// On save, Type.TemplateName is taken from TemplateID; on update it is kept
// as given.
type SessionInput struct {
	Date       time.Time          `json:"date"`
	Type       models.SessionType `json:"type"`
	TemplateID *uuid.UUID         `json:"template_id,omitempty"`
	Layout     models.Layout      `json:"layout,omitempty"`
	Notes      string             `json:"notes,omitempty"`
	BodyWeight *float64           `json:"body_weight,omitempty"`
	Calories   *int               `json:"calories,omitempty"`
	Exercises  []models.Exercise  `json:"exercises"`
}

// SaveResult is a persisted session and the template save prompt for it.
type SaveResult struct {
	Session models.WorkoutSession `json:"session"`
	Prompt  reconcile.SavePrompt  `json:"prompt"`
}

// SaveSession persists a new session and diffs it against the template it
// was drafted from. Saving the template is a separate, explicit step.
func (s *Service) SaveSession(ctx context.Context, userID int, in SessionInput) (SaveResult, error) {
	defer s.lock(userID)()

	catalog, err := s.catalog(ctx, userID)
	if err != nil {
		return SaveResult{}, err
	}

	var tmpl *models.WorkoutTemplate
	if in.TemplateID != nil {
		t, ok := catalog.Find(*in.TemplateID)
		if !ok {
			return SaveResult{}, fmt.Errorf("%w: %s", reconcile.ErrTemplateNotFound, in.TemplateID)
		}
		tmpl = &t
	}

	flow := reconcile.NewFlow(catalog, nil)
	if err := flow.Restore(in.Type.Category, tmpl, in.Layout); err != nil {
		return SaveResult{}, err
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	session := models.WorkoutSession{
		ID:         uuid.New(),
		Date:       date,
		Type:       flow.SessionType(),
		Notes:      in.Notes,
		BodyWeight: in.BodyWeight,
		Calories:   in.Calories,
		Exercises:  prepareExercises(in.Exercises),
	}
	if err := models.ValidateSession(session); err != nil {
		return SaveResult{}, err
	}

	if err := flow.Edit(session.Exercises); err != nil {
		return SaveResult{}, err
	}
	prompt, err := flow.Save()
	if err != nil {
		return SaveResult{}, err
	}

	if _, err := s.store.SaveSession(ctx, userID, session); err != nil {
		return SaveResult{}, fmt.Errorf("saving session: %w", err)
	}
	s.logger.Info("session saved",
		"user_id", userID,
		"session_id", session.ID,
		"type", session.Type.Label(),
		"exercises", len(session.Exercises),
		"template_changed", prompt.Changed,
	)
	return SaveResult{Session: session, Prompt: prompt}, nil
}

// UpdateSession replaces the contents of an existing session. The date may
// change; a zero date keeps the stored one. No template prompt is produced.
func (s *Service) UpdateSession(ctx context.Context, userID int, id uuid.UUID, in SessionInput) (models.WorkoutSession, error) {
	defer s.lock(userID)()

	existing, err := s.store.GetSession(ctx, userID, id)
	if err != nil {
		return models.WorkoutSession{}, err
	}

	updated := existing
	if !in.Date.IsZero() {
		updated.Date = in.Date
	}
	updated.Type = in.Type
	updated.Notes = in.Notes
	updated.BodyWeight = in.BodyWeight
	updated.Calories = in.Calories
	updated.Exercises = prepareExercises(in.Exercises)
	if err := models.ValidateSession(updated); err != nil {
		return models.WorkoutSession{}, err
	}

	if _, err := s.store.SaveSession(ctx, userID, updated); err != nil {
		return models.WorkoutSession{}, fmt.Errorf("updating session %s: %w", id, err)
	}
	return updated, nil
}

// DeleteSession removes a session.
func (s *Service) DeleteSession(ctx context.Context, userID int, id uuid.UUID) error {
	defer s.lock(userID)()
	return s.store.DeleteSession(ctx, userID, id)
}

// Session returns one session.
func (s *Service) Session(ctx context.Context, userID int, id uuid.UUID) (models.WorkoutSession, error) {
	return s.store.GetSession(ctx, userID, id)
}

// Sessions returns the user's sessions, newest first.
func (s *Service) Sessions(ctx context.Context, userID int, filter models.SessionFilter) ([]models.WorkoutSession, error) {
	sessions, err := s.store.ListSessions(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	slices.SortStableFunc(sessions, func(a, b models.WorkoutSession) int {
		return b.Date.Compare(a.Date)
	})
	return sessions, nil
}

// LastExercise returns the most recent logged exercise called name, or nil.
// A non-nil category restricts the search to sessions of that category.
func (s *Service) LastExercise(ctx context.Context, userID int, category *models.Category, name string) (*models.Exercise, error) {
	history, err := s.store.ListSessions(ctx, userID, models.SessionFilter{Category: category})
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if category != nil {
		return reconcile.FindLastMatchingExerciseIn(*category, name, history), nil
	}
	return reconcile.FindLastMatchingExercise(name, history), nil
}

// Statistics renders the plain-text statistics report.
func (s *Service) Statistics(ctx context.Context, userID int) (string, error) {
	sessions, err := s.store.ListSessions(ctx, userID, models.SessionFilter{})
	if err != nil {
		return "", fmt.Errorf("listing sessions: %w", err)
	}
	return report.Statistics(sessions, s.now()), nil
}

// SaveTemplate creates or updates a template from a session's exercises.
// A name collision returns *reconcile.DuplicateNameError.
func (s *Service) SaveTemplate(ctx context.Context, userID int, req reconcile.UpsertRequest) (models.WorkoutTemplate, error) {
	defer s.lock(userID)()

	catalog, err := s.catalog(ctx, userID)
	if err != nil {
		return models.WorkoutTemplate{}, err
	}
	_, saved, err := reconcile.UpsertTemplate(catalog, req)
	if err != nil {
		return models.WorkoutTemplate{}, err
	}
	if err := s.store.SaveTemplate(ctx, userID, saved); err != nil {
		return models.WorkoutTemplate{}, fmt.Errorf("saving template: %w", err)
	}
	s.logger.Info("template saved",
		"user_id", userID,
		"template", saved.Name,
		"category", saved.Category,
		"mode", req.Mode,
		"exercises", len(saved.Exercises),
	)
	return saved, nil
}

// RenameTemplate renames a template.
func (s *Service) RenameTemplate(ctx context.Context, userID int, id uuid.UUID, name string) (models.WorkoutTemplate, error) {
	defer s.lock(userID)()

	catalog, err := s.catalog(ctx, userID)
	if err != nil {
		return models.WorkoutTemplate{}, err
	}
	_, renamed, err := reconcile.RenameTemplate(catalog, id, name)
	if err != nil {
		return models.WorkoutTemplate{}, err
	}
	if err := s.store.SaveTemplate(ctx, userID, renamed); err != nil {
		return models.WorkoutTemplate{}, fmt.Errorf("renaming template: %w", err)
	}
	return renamed, nil
}

// DeleteTemplate removes a template. Sessions drafted from it keep their
// type label.
func (s *Service) DeleteTemplate(ctx context.Context, userID int, id uuid.UUID) error {
	defer s.lock(userID)()

	catalog, err := s.catalog(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := reconcile.DeleteTemplate(catalog, id); err != nil {
		return err
	}
	if err := s.store.DeleteTemplate(ctx, userID, id); err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	return nil
}

// ImportResult counts the outcome of an import batch.
type ImportResult struct {
	Received     int `json:"received"`
	Inserted     int `json:"inserted"`
	Duplicates   int `json:"duplicates"`
	Invalid      int `json:"invalid"`
	SetsInserted int `json:"sets_inserted"`
}

// ImportSessions stores sessions produced by an importer. Sessions whose
// external id is already known are skipped, so re-imports are harmless.
// Invalid sessions are logged and skipped.
func (s *Service) ImportSessions(ctx context.Context, userID int, sessions []models.WorkoutSession) (ImportResult, error) {
	defer s.lock(userID)()

	res := ImportResult{Received: len(sessions)}
	for _, session := range sessions {
		if session.ID == uuid.Nil {
			session.ID = uuid.New()
		}
		session.Exercises = prepareExercises(session.Exercises)
		if err := models.ValidateSession(session); err != nil {
			s.logger.Warn("skipping invalid import", "external_id", session.ExternalID, "error", err)
			res.Invalid++
			continue
		}

		inserted, err := s.store.SaveSession(ctx, userID, session)
		if err != nil {
			return res, fmt.Errorf("importing session %s: %w", session.ExternalID, err)
		}
		if !inserted {
			res.Duplicates++
			continue
		}
		res.Inserted++
		for _, e := range session.Exercises {
			res.SetsInserted += len(e.Sets)
		}
	}
	return res, nil
}

// SyncSession stores a session pushed from another logbook under its own id.
// It reports false when the session's external id belongs to a different
// session.
func (s *Service) SyncSession(ctx context.Context, userID int, session models.WorkoutSession) (bool, error) {
	if session.ID == uuid.Nil {
		return false, fmt.Errorf("%w: session id is required", models.ErrInvalidInput)
	}
	session.Exercises = prepareExercises(session.Exercises)
	if err := models.ValidateSession(session); err != nil {
		return false, err
	}

	defer s.lock(userID)()
	stored, err := s.store.SaveSession(ctx, userID, session)
	if err != nil {
		return false, fmt.Errorf("syncing session %s: %w", session.ID, err)
	}
	return stored, nil
}

// SyncTemplate stores a template pushed from another logbook under its own
// id, enforcing name uniqueness against the rest of the catalog.
func (s *Service) SyncTemplate(ctx context.Context, userID int, t models.WorkoutTemplate) error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("%w: template id is required", models.ErrInvalidInput)
	}
	if err := models.ValidateTemplate(t); err != nil {
		return err
	}
	if t.Category != models.CategoryOther {
		t.Layout = ""
	}

	defer s.lock(userID)()
	catalog, err := s.catalog(ctx, userID)
	if err != nil {
		return err
	}
	if existing, ok := catalog.FindByName(t.Category, t.Name); ok && existing.ID != t.ID {
		return &reconcile.DuplicateNameError{Existing: existing}
	}
	for i := range t.Exercises {
		if t.Exercises[i].ID == uuid.Nil {
			t.Exercises[i].ID = uuid.New()
		}
	}
	if err := s.store.SaveTemplate(ctx, userID, t); err != nil {
		return fmt.Errorf("syncing template %s: %w", t.ID, err)
	}
	return nil
}

// prepareExercises assigns missing ids and restores contiguous set order.
func prepareExercises(in []models.Exercise) []models.Exercise {
	out := make([]models.Exercise, len(in))
	for i, e := range in {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.Sets = slices.Clone(e.Sets)
		e.NormalizeSetOrder()
		for j := range e.Sets {
			if e.Sets[j].ID == uuid.Nil {
				e.Sets[j].ID = uuid.New()
			}
		}
		out[i] = e
	}
	return out
}
