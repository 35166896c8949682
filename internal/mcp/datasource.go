package mcp

import (
	"context"

	"github.com/claude/treningslogg/internal/logbook"
	"github.com/claude/treningslogg/internal/models"
	"github.com/claude/treningslogg/internal/reconcile"
)

// DataSource abstracts the logbook for MCP tools. The in-process service
// (via FromService) and HTTPClient (remote via REST API) satisfy it.
type DataSource interface {
	// ListTemplates returns the catalog, or the candidates of category.
	ListTemplates(ctx context.Context, userID int, category *models.Category) ([]models.WorkoutTemplate, error)
	LastExercise(ctx context.Context, userID int, category *models.Category, name string) (*models.Exercise, error)
	StartDraft(ctx context.Context, userID int, req logbook.DraftRequest) (reconcile.Draft, error)
	Sessions(ctx context.Context, userID int, filter models.SessionFilter) ([]models.WorkoutSession, error)
	Statistics(ctx context.Context, userID int) (string, error)
}

// serviceSource serves MCP from the logbook service in the same process.
type serviceSource struct {
	*logbook.Service
}

// FromService wraps the logbook service as a DataSource.
func FromService(svc *logbook.Service) DataSource {
	return serviceSource{svc}
}

func (s serviceSource) ListTemplates(ctx context.Context, userID int, category *models.Category) ([]models.WorkoutTemplate, error) {
	if category != nil {
		return s.Candidates(ctx, userID, *category)
	}
	return s.Catalog(ctx, userID)
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)
