package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/claude/treningslogg/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) templates(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	templates, err := h.ds.ListTemplates(ctx, UserIDFromContext(ctx), nil)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, templates)
}

func (h *handlers) recentSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -14)

	sessions, err := h.ds.Sessions(ctx, UserIDFromContext(ctx), models.SessionFilter{Start: start, End: end})
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []models.WorkoutSession{}
	}
	return jsonContents(req.Params.URI, sessions)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
