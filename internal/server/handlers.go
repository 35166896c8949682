package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/claude/treningslogg/internal/logbook"
	"github.com/claude/treningslogg/internal/models"
	"github.com/claude/treningslogg/internal/reconcile"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	if c := r.URL.Query().Get("category"); c != "" {
		category, err := models.ParseCategory(c)
		if err != nil {
			s.writeError(w, err)
			return
		}
		candidates, err := s.logbook.Candidates(r.Context(), uid, category)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if candidates == nil {
			candidates = []models.WorkoutTemplate{}
		}
		writeJSON(w, http.StatusOK, candidates)
		return
	}

	catalog, err := s.logbook.Catalog(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

// templateRequest is the body of a template save.
type templateRequest struct {
	TemplateID *uuid.UUID           `json:"template_id,omitempty"`
	Name       string               `json:"name"`
	Category   string               `json:"category"`
	Layout     models.Layout        `json:"layout,omitempty"`
	Exercises  []models.Exercise    `json:"exercises"`
	Mode       reconcile.UpsertMode `json:"mode,omitempty"`
}

func (s *Server) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	var req templateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Mode == "" {
		req.Mode = reconcile.CreateNew
	}

	saved, err := s.logbook.SaveTemplate(r.Context(), uid, reconcile.UpsertRequest{
		TemplateID: req.TemplateID,
		Name:       req.Name,
		Category:   category,
		Layout:     req.Layout,
		Exercises:  req.Exercises,
		Mode:       req.Mode,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusOK
	if req.Mode == reconcile.CreateNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, saved)
}

func (s *Server) handleRenameTemplate(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	renamed, err := s.logbook.RenameTemplate(r.Context(), uid, id, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renamed)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.logbook.DeleteTemplate(r.Context(), uid, id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStartDraft(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	var req logbook.DraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	category, err := models.ParseCategory(string(req.Category))
	if err != nil {
		s.writeError(w, err)
		return
	}
	req.Category = category

	draft, err := s.logbook.StartDraft(r.Context(), uid, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	filter := models.SessionFilter{Start: start, End: end}
	if c := r.URL.Query().Get("category"); c != "" {
		category, err := models.ParseCategory(c)
		if err != nil {
			s.writeError(w, err)
			return
		}
		filter.Category = &category
	}

	sessions, err := s.logbook.Sessions(r.Context(), uid, filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []models.WorkoutSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	session, err := s.logbook.Session(r.Context(), uid, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleSaveSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	var in logbook.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	res, err := s.logbook.SaveSession(r.Context(), uid, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var in logbook.SessionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	updated, err := s.logbook.UpdateSession(r.Context(), uid, id, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.logbook.DeleteSession(r.Context(), uid, id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLastExercise(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name parameter required"})
		return
	}
	var category *models.Category
	if c := r.URL.Query().Get("category"); c != "" {
		parsed, err := models.ParseCategory(c)
		if err != nil {
			s.writeError(w, err)
			return
		}
		category = &parsed
	}

	last, err := s.logbook.LastExercise(r.Context(), uid, category, name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no logged exercise named %q", name)})
		return
	}
	writeJSON(w, http.StatusOK, last)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	text, err := s.logbook.Statistics(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(text)) //nolint:errcheck
}

// writeError maps logbook and engine errors to HTTP statuses. A duplicate
// template name returns the existing template so the client can offer to
// update it instead.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var dup *reconcile.DuplicateNameError
	switch {
	case errors.As(err, &dup):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error(), "existing": dup.Existing})
	case errors.Is(err, models.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrNotFound), errors.Is(err, reconcile.ErrTemplateNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, reconcile.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.log.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseTimeRange reads the optional start and end query parameters. Missing
// bounds are zero (unbounded); a date-only end includes that whole day.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	if v := r.URL.Query().Get("start"); v != "" {
		start, err = time.Parse(time.RFC3339, v)
		if err != nil {
			start, err = time.Parse("2006-01-02", v)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
			}
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err = time.Parse(time.RFC3339, v)
		if err != nil {
			end, err = time.Parse("2006-01-02", v)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
			}
			end = end.Add(24 * time.Hour)
		}
	}
	return start, end, nil
}
