package mcp

import (
	"context"
	"time"

	"github.com/claude/treningslogg/internal/logbook"
	"github.com/claude/treningslogg/internal/models"
	"github.com/claude/treningslogg/internal/reconcile"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -7)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// optionalCategory parses the "category" argument; empty means all.
func optionalCategory(req mcp.CallToolRequest) (*models.Category, error) {
	s := req.GetString("category", "")
	if s == "" {
		return nil, nil
	}
	c, err := models.ParseCategory(s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// --- Tool definitions ---

var categoryEnum = mcp.Enum("strength", "endurance", "other")

var toolListTemplates = mcp.NewTool("list_templates",
	mcp.WithDescription("List workout templates in name order. Each template has a category, exercises and the default number of sets per exercise."),
	mcp.WithString("category", mcp.Description("Only templates of this category."), categoryEnum),
)

var toolGetLastExercise = mcp.NewTool("get_last_exercise",
	mcp.WithDescription("Find the most recent logged exercise with the given name (case-insensitive), including all its sets. Use it to answer 'what did I lift last time'."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Exercise name, e.g. 'Benkpress'")),
	mcp.WithString("category", mcp.Description("Only search sessions of this category."), categoryEnum),
)

var toolBuildDraft = mcp.NewTool("build_draft",
	mcp.WithDescription("Prefill a new session the way the app does when a template is picked: one exercise per template exercise, with set counts and values carried over from the last time each exercise was logged. Without a template, returns the ad hoc starting point for the category. Nothing is saved."),
	mcp.WithString("category", mcp.Required(), mcp.Description("Session category."), categoryEnum),
	mcp.WithString("template", mcp.Description("Template name within the category. Omit for an ad hoc session.")),
	mcp.WithString("layout", mcp.Description("Set layout for ad hoc 'other' sessions."), mcp.Enum("strength", "endurance", "basic")),
)

var toolGetSessions = mcp.NewTool("get_sessions",
	mcp.WithDescription("Query logged sessions with their exercises and sets, newest first."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("category", mcp.Description("Only sessions of this category."), categoryEnum),
)

var toolGetStatistics = mcp.NewTool("get_statistics",
	mcp.WithDescription("Training statistics as text: total sessions, this month and this year by session type, monthly distribution and body weight extremes."),
)

// --- Tool handlers ---

func (h *handlers) listTemplates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := optionalCategory(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	templates, err := h.ds.ListTemplates(ctx, UserIDFromContext(ctx), category)
	if err != nil {
		h.log.Error("mcp list_templates", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(templates)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getLastExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name parameter is required"), nil
	}
	category, err := optionalCategory(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	last, err := h.ds.LastExercise(ctx, UserIDFromContext(ctx), category, name)
	if err != nil {
		h.log.Error("mcp get_last_exercise", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if last == nil {
		return mcp.NewToolResultText("No logged exercise named " + name + "."), nil
	}

	result, err := mcp.NewToolResultJSON(last)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) buildDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	c, err := req.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError("category parameter is required"), nil
	}
	category, err := models.ParseCategory(c)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	uid := UserIDFromContext(ctx)

	draftReq := logbook.DraftRequest{Category: category}
	if name := req.GetString("template", ""); name != "" {
		templates, err := h.ds.ListTemplates(ctx, uid, &category)
		if err != nil {
			h.log.Error("mcp build_draft", "error", err)
			return mcp.NewToolResultError("query failed: " + err.Error()), nil
		}
		t, ok := reconcile.Catalog(templates).FindByName(category, name)
		if !ok {
			return mcp.NewToolResultError("no " + category.DisplayName() + " template named " + name), nil
		}
		draftReq.TemplateID = &t.ID
	} else if l := req.GetString("layout", ""); l != "" {
		layout, err := models.ParseLayout(l)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		draftReq.Layout = layout
	}

	draft, err := h.ds.StartDraft(ctx, uid, draftReq)
	if err != nil {
		h.log.Error("mcp build_draft", "error", err)
		return mcp.NewToolResultError("draft failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(draft)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}
	category, err := optionalCategory(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sessions, err := h.ds.Sessions(ctx, UserIDFromContext(ctx), models.SessionFilter{
		Category: category,
		Start:    start,
		End:      end,
	})
	if err != nil {
		h.log.Error("mcp get_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if sessions == nil {
		sessions = []models.WorkoutSession{}
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getStatistics(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := h.ds.Statistics(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp get_statistics", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}
