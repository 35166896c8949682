package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claude/treningslogg/internal/localstore"
	"github.com/claude/treningslogg/internal/logbook"
	"github.com/claude/treningslogg/internal/models"
	"github.com/claude/treningslogg/internal/reconcile"
	"github.com/mark3labs/mcp-go/mcp"
)

// TestUserIDFromContextDefault verifies the default user ID (1) when no value
// is set in the context.
func TestUserIDFromContextDefault(t *testing.T) {
	ctx := context.Background()
	if id := UserIDFromContext(ctx); id != 1 {
		t.Errorf("UserIDFromContext(empty) = %d, want 1", id)
	}
}

// TestUserIDFromContextSet verifies the user ID is extracted from context
// after being set by WithUserID.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	if id := UserIDFromContext(ctx); id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

// TestDefaultTimeRange verifies time range defaults (last 7 days) and parsing.
func TestDefaultTimeRange(t *testing.T) {
	// Both empty → defaults to last 7 days
	start, end, err := defaultTimeRange("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diff := end.Sub(start)
	if diff.Hours() < 167 || diff.Hours() > 169 { // ~168 hours = 7 days
		t.Errorf("default range = %.0f hours, want ~168", diff.Hours())
	}

	// Explicit dates
	start, end, err = defaultTimeRange("2024-01-01", "2024-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Year() != 2024 || start.Month() != 1 || start.Day() != 1 {
		t.Errorf("start = %v, want 2024-01-01", start)
	}
	if end.Year() != 2024 || end.Month() != 1 || end.Day() != 31 {
		t.Errorf("end = %v, want 2024-01-31", end)
	}

	// RFC3339
	start, _, err = defaultTimeRange("2024-06-15T10:30:00Z", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Hour() != 10 || start.Minute() != 30 {
		t.Errorf("start = %v, want 10:30", start)
	}

	// Invalid
	_, _, err = defaultTimeRange("not-a-date", "")
	if err == nil {
		t.Error("expected error for invalid date")
	}
}

func newTestHandlers(t *testing.T) *handlers {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "logbook.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &handlers{ds: FromService(logbook.New(store, log)), log: log}
}

func callTool(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want mcp.TextContent", res.Content[0])
	}
	return text.Text
}

// TestListTemplatesTool verifies the category argument narrows the catalog.
func TestListTemplatesTool(t *testing.T) {
	h := newTestHandlers(t)

	res, err := h.listTemplates(context.Background(), callTool("list_templates", map[string]any{"category": "endurance"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var templates []models.WorkoutTemplate
	if err := json.Unmarshal([]byte(resultText(t, res)), &templates); err != nil {
		t.Fatal(err)
	}
	if len(templates) != 2 {
		t.Errorf("got %d endurance templates, want 2", len(templates))
	}

	res, _ = h.listTemplates(context.Background(), callTool("list_templates", map[string]any{"category": "cardio"}))
	if !res.IsError {
		t.Error("expected tool error for unknown category")
	}
}

// TestBuildDraftTool verifies a template name is resolved case-insensitively
// and the draft has one exercise per template exercise.
func TestBuildDraftTool(t *testing.T) {
	h := newTestHandlers(t)

	res, err := h.buildDraft(context.Background(), callTool("build_draft", map[string]any{
		"category": "strength",
		"template": "overkropp",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var d reconcile.Draft
	if err := json.Unmarshal([]byte(resultText(t, res)), &d); err != nil {
		t.Fatal(err)
	}
	if d.Type.TemplateName != "Overkropp" {
		t.Errorf("template name = %q, want Overkropp", d.Type.TemplateName)
	}
	if len(d.Exercises) != 4 {
		t.Errorf("got %d exercises, want 4", len(d.Exercises))
	}

	res, _ = h.buildDraft(context.Background(), callTool("build_draft", map[string]any{
		"category": "strength",
		"template": "Yoga",
	}))
	if !res.IsError {
		t.Error("expected tool error for template in another category")
	}

	res, _ = h.buildDraft(context.Background(), callTool("build_draft", map[string]any{}))
	if !res.IsError {
		t.Error("expected tool error without category")
	}
}

// TestBuildDraftToolAdHoc verifies an ad hoc draft honors the layout argument.
func TestBuildDraftToolAdHoc(t *testing.T) {
	h := newTestHandlers(t)

	res, err := h.buildDraft(context.Background(), callTool("build_draft", map[string]any{
		"category": "other",
		"layout":   "endurance",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var d reconcile.Draft
	if err := json.Unmarshal([]byte(resultText(t, res)), &d); err != nil {
		t.Fatal(err)
	}
	if d.TemplateID != nil {
		t.Errorf("template id = %v, want nil", d.TemplateID)
	}
	if d.Layout != models.LayoutEndurance {
		t.Errorf("layout = %q, want %q", d.Layout, models.LayoutEndurance)
	}
}

// TestGetLastExerciseToolMissing verifies an unknown exercise is a plain text
// answer rather than a tool error.
func TestGetLastExerciseToolMissing(t *testing.T) {
	h := newTestHandlers(t)

	res, err := h.getLastExercise(context.Background(), callTool("get_last_exercise", map[string]any{"name": "Markløft"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if got := resultText(t, res); !strings.Contains(got, "Markløft") {
		t.Errorf("text = %q, want mention of Markløft", got)
	}
}

// TestGetSessionsToolEmpty verifies an empty log serializes as an array.
func TestGetSessionsToolEmpty(t *testing.T) {
	h := newTestHandlers(t)

	res, err := h.getSessions(context.Background(), callTool("get_sessions", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(resultText(t, res)); got != "[]" {
		t.Errorf("text = %q, want []", got)
	}

	res, _ = h.getSessions(context.Background(), callTool("get_sessions", map[string]any{"start": "yesterday"}))
	if !res.IsError {
		t.Error("expected tool error for invalid start")
	}
}

// TestGetStatisticsTool verifies the statistics report is returned as text.
func TestGetStatisticsTool(t *testing.T) {
	h := newTestHandlers(t)

	res, err := h.getStatistics(context.Background(), callTool("get_statistics", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); !strings.HasPrefix(got, "TRAINING STATISTICS") {
		t.Errorf("text = %q, want statistics report", got)
	}
}

// TestTemplatesResource verifies the resource echoes the URI with JSON text.
func TestTemplatesResource(t *testing.T) {
	h := newTestHandlers(t)

	var req mcp.ReadResourceRequest
	req.Params.URI = "treningslogg://templates"
	contents, err := h.templates(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents = %T, want mcp.TextResourceContents", contents[0])
	}
	if text.URI != req.Params.URI || text.MIMEType != "application/json" {
		t.Errorf("uri = %q, mime = %q", text.URI, text.MIMEType)
	}
	var templates []models.WorkoutTemplate
	if err := json.Unmarshal([]byte(text.Text), &templates); err != nil {
		t.Fatal(err)
	}
	if len(templates) != 6 {
		t.Errorf("got %d templates, want 6", len(templates))
	}
}
