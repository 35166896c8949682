package logbook

import (
	"context"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
)

// Store is the persistence the service needs: the history provider, the
// template catalog provider and the sink for new sessions and templates.
// Both storage (postgres) and localstore (sqlite) implement it.
type Store interface {
	// ListSessions returns the user's sessions matching the filter, in any order.
	ListSessions(ctx context.Context, userID int, filter models.SessionFilter) ([]models.WorkoutSession, error)
	// GetSession returns models.ErrNotFound when the session does not exist.
	GetSession(ctx context.Context, userID int, id uuid.UUID) (models.WorkoutSession, error)
	// SaveSession inserts s or replaces the session with the same id. It
	// returns false without writing when another session already carries
	// s.ExternalID.
	SaveSession(ctx context.Context, userID int, s models.WorkoutSession) (bool, error)
	DeleteSession(ctx context.Context, userID int, id uuid.UUID) error

	// ListTemplates returns all templates, or only those of category.
	ListTemplates(ctx context.Context, userID int, category *models.Category) ([]models.WorkoutTemplate, error)
	// SaveTemplate inserts t or replaces the template with the same id,
	// recreating its exercise entries.
	SaveTemplate(ctx context.Context, userID int, t models.WorkoutTemplate) error
	DeleteTemplate(ctx context.Context, userID int, id uuid.UUID) error
	// SeedTemplates stores templates the first time it is called for a user
	// and reports whether it did.
	SeedTemplates(ctx context.Context, userID int, templates []models.WorkoutTemplate) (bool, error)
}
