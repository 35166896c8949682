package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/claude/treningslogg/internal/ingest"
	"github.com/claude/treningslogg/internal/ingest/hae"
	"github.com/claude/treningslogg/internal/storage"
)

var errImportCanceled = errors.New("import canceled by user")

// haeImportState tracks a running HAE TCP import.
type haeImportState struct {
	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	doneCh    chan struct{} // closed when goroutine exits
	step      int
	total     int
	chunk     string
	done      bool
	err       error
	logID     int64
	startedAt time.Time

	result       ingest.Result
	bytesFetched int64
	haeHost      string
	haePort      int

	subs   map[chan sseEvent]struct{}
	subsMu sync.Mutex
}

// sseEvent is an SSE message to send to subscribers.
type sseEvent struct {
	Event string
	Data  string
}

func (st *haeImportState) broadcast(event sseEvent) {
	st.subsMu.Lock()
	defer st.subsMu.Unlock()
	for ch := range st.subs {
		select {
		case ch <- event:
		default:
			// slow subscriber, skip
		}
	}
}

func (st *haeImportState) subscribe() chan sseEvent {
	ch := make(chan sseEvent, 32)
	st.subsMu.Lock()
	st.subs[ch] = struct{}{}
	st.subsMu.Unlock()
	return ch
}

func (st *haeImportState) unsubscribe(ch chan sseEvent) {
	st.subsMu.Lock()
	delete(st.subs, ch)
	st.subsMu.Unlock()
}

// snapshot returns the progress fields shared by status responses and events.
// The caller holds st.mu.
func (st *haeImportState) snapshot() map[string]any {
	return map[string]any{
		"step":              st.step,
		"total":             st.total,
		"chunk":             st.chunk,
		"sessions_received": st.result.SessionsReceived,
		"sessions_inserted": st.result.SessionsInserted,
		"sessions_skipped":  st.result.SessionsSkipped,
		"sessions_invalid":  st.result.SessionsInvalid,
		"bytes_fetched":     st.bytesFetched,
	}
}

// haeImportRequest is the JSON body for starting an HAE TCP import.
type haeImportRequest struct {
	HAEHost   string `json:"hae_host"`
	HAEPort   int    `json:"hae_port"`
	Start     string `json:"start"` // YYYY-MM-DD
	End       string `json:"end"`   // YYYY-MM-DD
	ChunkDays int    `json:"chunk_days"`
	DryRun    bool   `json:"dry_run"`
}

// chunks splits [start, end) into windows of chunkDays.
func chunks(start, end time.Time, chunkDays int) [][2]time.Time {
	step := time.Duration(chunkDays) * 24 * time.Hour
	var out [][2]time.Time
	for cs := start; cs.Before(end); cs = cs.Add(step) {
		ce := cs.Add(step)
		if ce.After(end) {
			ce = end
		}
		out = append(out, [2]time.Time{cs, ce})
	}
	return out
}

func (s *Server) handleCheckHAE(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HAEHost string `json:"hae_host"`
		HAEPort int    `json:"hae_port"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if req.HAEHost == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hae_host is required"})
		return
	}
	if req.HAEPort == 0 {
		req.HAEPort = hae.DefaultPort
	}

	client := hae.NewClient(req.HAEHost, req.HAEPort)
	if err := client.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"reachable": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reachable": true})
}

func (s *Server) handleStartHAEImport(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}

	var req haeImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	if req.HAEHost == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hae_host is required"})
		return
	}
	if req.HAEPort == 0 {
		req.HAEPort = hae.DefaultPort
	}
	if req.ChunkDays <= 0 {
		req.ChunkDays = 30
	}

	startDate, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start date (YYYY-MM-DD): " + err.Error()})
		return
	}
	endDate, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end date (YYYY-MM-DD): " + err.Error()})
		return
	}
	// The end date is inclusive.
	endDate = endDate.AddDate(0, 0, 1)
	if !startDate.Before(endDate) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start date is after end date"})
		return
	}

	s.importMu.Lock()
	if s.activeImport != nil && s.activeImport.isRunning() {
		prev := s.activeImport
		s.importMu.Unlock()
		select {
		case <-prev.doneCh:
		case <-time.After(5 * time.Second):
			writeJSON(w, http.StatusConflict, map[string]string{"error": "an import is already running"})
			return
		}
		s.importMu.Lock()
	}

	windows := chunks(startDate, endDate, req.ChunkDays)
	ctx, cancel := context.WithCancel(context.Background())
	state := &haeImportState{
		running:   true,
		cancel:    cancel,
		doneCh:    make(chan struct{}),
		total:     len(windows),
		startedAt: time.Now(),
		subs:      make(map[chan sseEvent]struct{}),
		haeHost:   req.HAEHost,
		haePort:   req.HAEPort,
	}

	if s.importLogs != nil {
		metaJSON, _ := json.Marshal(map[string]any{
			"hae_host":   req.HAEHost,
			"hae_port":   req.HAEPort,
			"start":      req.Start,
			"end":        req.End,
			"chunk_days": req.ChunkDays,
			"dry_run":    req.DryRun,
		})
		rawMeta := json.RawMessage(metaJSON)
		logID, err := s.importLogs.InsertImportLog(r.Context(), storage.ImportLog{
			UserID:   uid,
			Source:   "hae_tcp",
			Status:   "running",
			Metadata: &rawMeta,
		})
		if err != nil {
			s.log.Error("failed to create import log", "error", err)
		}
		state.logID = logID
	}

	s.activeImport = state
	s.importMu.Unlock()

	go s.runHAEImport(ctx, state, uid, req, windows)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":      "started",
		"total_steps": state.total,
		"log_id":      state.logID,
	})
}

func (s *Server) runHAEImport(ctx context.Context, state *haeImportState, userID int, req haeImportRequest, windows [][2]time.Time) {
	defer func() {
		state.mu.Lock()
		state.running = false
		state.done = true
		state.mu.Unlock()
		close(state.doneCh)
	}()

	client := hae.NewClient(req.HAEHost, req.HAEPort)
	for i, win := range windows {
		if ctx.Err() != nil {
			state.mu.Lock()
			state.err = errImportCanceled
			state.mu.Unlock()
			state.broadcast(sseEvent{Event: "error", Data: mustJSON(map[string]string{"error": errImportCanceled.Error()})})
			s.finalizeImport(state)
			return
		}

		chunkRange := fmt.Sprintf("%s to %s", win[0].Format("2006-01-02"), win[1].Format("2006-01-02"))
		state.mu.Lock()
		state.step = i + 1
		state.chunk = chunkRange
		progress := state.snapshot()
		state.mu.Unlock()
		state.broadcast(sseEvent{Event: "progress", Data: mustJSON(progress)})

		raw, err := client.QueryWorkoutsWithRetry(ctx, win[0], win[1], s.log)
		if err != nil {
			s.log.Warn("HAE TCP workout query failed", "chunk", chunkRange, "error", err)
			continue
		}
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}

		state.mu.Lock()
		state.bytesFetched += int64(len(raw))
		state.mu.Unlock()
		if req.DryRun {
			continue
		}

		res, err := s.hae.IngestRaw(ctx, raw, userID)
		if err != nil {
			s.log.Warn("workout ingest failed", "chunk", chunkRange, "error", err)
			continue
		}
		state.mu.Lock()
		state.result.Merge(res)
		state.mu.Unlock()
	}

	state.mu.Lock()
	complete := state.snapshot()
	state.mu.Unlock()
	state.broadcast(sseEvent{Event: "complete", Data: mustJSON(complete)})

	s.finalizeImport(state)
}

// finalizeImport updates the import_logs row with final results.
func (s *Server) finalizeImport(state *haeImportState) {
	if s.importLogs == nil || state.logID == 0 {
		return
	}

	state.mu.Lock()
	result := state.result
	importErr := state.err
	bytesFetched := state.bytesFetched
	state.mu.Unlock()

	durationMs := int(time.Since(state.startedAt).Milliseconds())
	status := "success"
	var errMsg *string
	if importErr != nil {
		msg := importErr.Error()
		errMsg = &msg
		status = "error"
		if errors.Is(importErr, errImportCanceled) {
			status = "cancelled"
		}
	}

	ctx, cancel := contextWithTimeout()
	defer cancel()

	metaJSON, _ := json.Marshal(map[string]any{
		"bytes_fetched": bytesFetched,
		"hae_host":      state.haeHost,
		"hae_port":      state.haePort,
	})
	rawMeta := json.RawMessage(metaJSON)

	if err := s.importLogs.UpdateImportLog(ctx, state.logID, storage.ImportLog{
		Status:           status,
		SessionsReceived: result.SessionsReceived,
		SessionsInserted: result.SessionsInserted,
		SessionsSkipped:  result.SessionsSkipped,
		SetsInserted:     int64(result.SetsInserted),
		DurationMs:       &durationMs,
		ErrorMessage:     errMsg,
		Metadata:         &rawMeta,
	}); err != nil {
		s.log.Error("failed to finalize import log", "log_id", state.logID, "error", err)
	}
}

func (s *Server) handleCancelHAEImport(w http.ResponseWriter, r *http.Request) {
	s.importMu.Lock()
	if s.activeImport == nil || !s.activeImport.isRunning() {
		s.importMu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no import running"})
		return
	}

	state := s.activeImport
	state.cancel()
	s.importMu.Unlock()

	select {
	case <-state.doneCh:
	case <-time.After(3 * time.Second):
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (st *haeImportState) isRunning() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.running
}

func (s *Server) handleHAEImportStatus(w http.ResponseWriter, r *http.Request) {
	s.importMu.Lock()
	state := s.activeImport
	s.importMu.Unlock()

	if state == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"running": false,
		})
		return
	}

	state.mu.Lock()
	resp := state.snapshot()
	resp["running"] = state.running
	resp["done"] = state.done
	resp["log_id"] = state.logID
	if state.err != nil {
		resp["error"] = state.err.Error()
	}
	state.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHAEImportEvents(w http.ResponseWriter, r *http.Request) {
	s.importMu.Lock()
	state := s.activeImport
	s.importMu.Unlock()

	if state == nil || !state.isRunning() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no import running"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := state.subscribe()
	defer state.unsubscribe(ch)

	state.mu.Lock()
	fmt.Fprintf(w, "event: status\ndata: %s\n\n", mustJSON(state.snapshot()))
	state.mu.Unlock()
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Event, evt.Data)
			flusher.Flush()

			if evt.Event == "complete" || evt.Event == "error" {
				return
			}
		}
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{}`
	}
	return string(b)
}
