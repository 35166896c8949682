package storage

import (
	"testing"
	"time"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/go-cmp/cmp"
)

// TestSessionWhere verifies placeholders are numbered in argument order.
func TestSessionWhere(t *testing.T) {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	other := models.CategoryOther

	tests := []struct {
		name      string
		filter    models.SessionFilter
		wantWhere string
		wantArgs  []any
	}{
		{"user only", models.SessionFilter{}, "s.user_id = $1", []any{7}},
		{"category", models.SessionFilter{Category: &other},
			"s.user_id = $1 AND s.category = $2", []any{7, "other"}},
		{"range", models.SessionFilter{Start: start, End: end},
			"s.user_id = $1 AND s.date >= $2 AND s.date < $3", []any{7, start, end}},
		{"all", models.SessionFilter{Category: &other, End: end},
			"s.user_id = $1 AND s.category = $2 AND s.date < $3", []any{7, "other", end}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := sessionWhere(7, tt.filter)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if diff := cmp.Diff(tt.wantArgs, args); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestNullString verifies empty external ids are stored as NULL.
func TestNullString(t *testing.T) {
	if nullString("") != nil {
		t.Error("nullString(\"\") != nil")
	}
	if got := nullString("hae:1"); got == nil || *got != "hae:1" {
		t.Errorf("nullString(\"hae:1\") = %v", got)
	}
}
