package syncer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/treningslogg/internal/localstore"
	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
)

// remoteServer records sync requests. Template pushes get templateStatus
// when set; otherwise template names are unique case-insensitively, as on
// a real server.
type remoteServer struct {
	mu             sync.Mutex
	requests       []string
	templateStatus int
	templateNames  map[string]string // lowercased name -> id
}

func (rs *remoteServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.requests = append(rs.requests, r.Method+" "+r.URL.Path)

	if r.Header.Get("X-API-Key") != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	id, isTemplate := strings.CutPrefix(r.URL.Path, "/api/v1/sync/templates/")
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/v1/sync/sessions/"):
		w.Write([]byte(`{"stored":true}`)) //nolint:errcheck
	case isTemplate && rs.templateStatus != 0:
		w.WriteHeader(rs.templateStatus)
		w.Write([]byte(`{"error":"template name taken"}`)) //nolint:errcheck
	case isTemplate && r.Method == http.MethodDelete:
		for name, owner := range rs.templateNames {
			if owner == id {
				delete(rs.templateNames, name)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	case isTemplate:
		var t models.WorkoutTemplate
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if rs.templateNames == nil {
			rs.templateNames = make(map[string]string)
		}
		key := strings.ToLower(t.Name)
		if owner, ok := rs.templateNames[key]; ok && owner != id {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":"duplicate template name"}`)) //nolint:errcheck
			return
		}
		rs.templateNames[key] = id
		w.Write([]byte(`{"status":"stored"}`)) //nolint:errcheck
	default:
		w.Write([]byte(`{}`)) //nolint:errcheck
	}
}

func (rs *remoteServer) count(prefix string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	n := 0
	for _, r := range rs.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

type fixture struct {
	store  *localstore.Store
	state  *StateDB
	remote *remoteServer
	client *Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := localstore.Open(filepath.Join(dir, "logbook.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	state, err := OpenStateDB(dir)
	if err != nil {
		t.Fatalf("opening state: %v", err)
	}
	t.Cleanup(func() { state.Close() })

	remote := &remoteServer{}
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "secret")
	client.backoff = time.Millisecond

	return &fixture{store: store, state: state, remote: remote, client: client}
}

func (f *fixture) syncer() *Syncer {
	return New(f.store, f.client, f.state, Options{UserID: localstore.LocalUserID, Concurrency: 2},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (f *fixture) seed(t *testing.T) (models.WorkoutTemplate, []models.WorkoutSession) {
	t.Helper()
	ctx := context.Background()
	tmpl := models.WorkoutTemplate{
		ID:        uuid.New(),
		Name:      "Overkropp",
		Category:  models.CategoryStrength,
		Exercises: []models.ExerciseTemplate{{ID: uuid.New(), Name: "Benkpress", DefaultSets: 3}},
	}
	if err := f.store.SaveTemplate(ctx, localstore.LocalUserID, tmpl); err != nil {
		t.Fatal(err)
	}
	var sessions []models.WorkoutSession
	for i := range 2 {
		s := models.WorkoutSession{
			ID:   uuid.New(),
			Date: time.Date(2025, 5, 1+i, 18, 0, 0, 0, time.UTC),
			Type: models.SessionType{Category: models.CategoryStrength, TemplateName: "Overkropp"},
			Exercises: []models.Exercise{{
				ID: uuid.New(), Name: "Benkpress", Layout: models.LayoutStrength,
			}},
		}
		if _, err := f.store.SaveSession(ctx, localstore.LocalUserID, s); err != nil {
			t.Fatal(err)
		}
		sessions = append(sessions, s)
	}
	return tmpl, sessions
}

// TestRunSkipsUnchanged verifies a second run pushes only what changed.
func TestRunSkipsUnchanged(t *testing.T) {
	f := newFixture(t)
	_, sessions := f.seed(t)
	ctx := context.Background()

	stats, err := f.syncer().Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if stats.TemplatesPushed != 1 || stats.SessionsPushed != 2 {
		t.Errorf("first run = %+v, want 1 template and 2 sessions pushed", stats)
	}

	stats, err = f.syncer().Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.TemplatesUnchanged != 1 || stats.SessionsUnchanged != 2 || stats.SessionsPushed != 0 {
		t.Errorf("second run = %+v, want everything unchanged", stats)
	}

	edited := sessions[0]
	edited.Notes = "tung dag"
	if _, err := f.store.SaveSession(ctx, localstore.LocalUserID, edited); err != nil {
		t.Fatal(err)
	}
	stats, err = f.syncer().Run(ctx)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if stats.SessionsPushed != 1 || stats.SessionsUnchanged != 1 {
		t.Errorf("third run = %+v, want 1 pushed and 1 unchanged", stats)
	}
	if got := f.remote.count("PUT /api/v1/sync/sessions/" + edited.ID.String()); got != 2 {
		t.Errorf("edited session pushed %d times, want 2", got)
	}
}

// TestRunPropagatesTemplateDeletes verifies local tombstones become remote
// deletes and are cleared afterwards.
func TestRunPropagatesTemplateDeletes(t *testing.T) {
	f := newFixture(t)
	tmpl, _ := f.seed(t)
	ctx := context.Background()

	if _, err := f.syncer().Run(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.store.DeleteTemplate(ctx, localstore.LocalUserID, tmpl.ID); err != nil {
		t.Fatal(err)
	}

	stats, err := f.syncer().Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.TemplatesDeleted != 1 {
		t.Errorf("deleted = %d, want 1", stats.TemplatesDeleted)
	}
	if got := f.remote.count("DELETE /api/v1/sync/templates/" + tmpl.ID.String()); got != 1 {
		t.Errorf("remote deletes = %d, want 1", got)
	}
	if tombs, _ := f.store.TemplateTombstones(ctx); len(tombs) != 0 {
		t.Errorf("tombstones left = %v", tombs)
	}
}

// TestRunDeleteThenRecreateSameName verifies a template deleted and
// recreated under the same name syncs in one run.
func TestRunDeleteThenRecreateSameName(t *testing.T) {
	f := newFixture(t)
	tmpl, _ := f.seed(t)
	ctx := context.Background()

	if _, err := f.syncer().Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}

	if err := f.store.DeleteTemplate(ctx, localstore.LocalUserID, tmpl.ID); err != nil {
		t.Fatal(err)
	}
	recreated := tmpl
	recreated.ID = uuid.New()
	recreated.Exercises = []models.ExerciseTemplate{{ID: uuid.New(), Name: "Skulderpress", DefaultSets: 4}}
	if err := f.store.SaveTemplate(ctx, localstore.LocalUserID, recreated); err != nil {
		t.Fatal(err)
	}

	stats, err := f.syncer().Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.TemplatesDeleted != 1 || stats.TemplatesPushed != 1 || stats.Failed != 0 {
		t.Errorf("second run = %+v, want 1 deleted and 1 pushed", stats)
	}
	if got := f.remote.count("PUT /api/v1/sync/templates/" + recreated.ID.String()); got != 1 {
		t.Errorf("recreated template pushed %d times, want 1", got)
	}
}

// TestRunCollectsFailures verifies a rejected template is reported without
// stopping the session pushes, and is not retried on a 4xx.
func TestRunCollectsFailures(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	f.remote.templateStatus = http.StatusConflict

	stats, err := f.syncer().Run(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected template")
	}
	if stats.Failed != 1 || stats.SessionsPushed != 2 {
		t.Errorf("stats = %+v, want 1 failure and 2 sessions pushed", stats)
	}
	if got := f.remote.count("PUT /api/v1/sync/templates/"); got != 1 {
		t.Errorf("template attempts = %d, want 1", got)
	}
}

// TestRunDryRun verifies nothing is sent in dry-run mode.
func TestRunDryRun(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	s := New(f.store, f.client, f.state, Options{UserID: localstore.LocalUserID, DryRun: true},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	stats, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.SessionsPushed != 2 || f.remote.count("") != 0 {
		t.Errorf("stats = %+v, requests = %d", stats, f.remote.count(""))
	}
}

// TestClientRetries verifies 5xx responses are retried with backoff.
func TestClientRetries(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]bool{"stored": false}) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	c.backoff = time.Millisecond
	stored, err := c.PutSession(context.Background(), models.WorkoutSession{ID: uuid.New()})
	if err != nil {
		t.Fatalf("PutSession: %v", err)
	}
	if stored {
		t.Error("stored = true, want false")
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

// TestClientDeleteUnknownTemplate verifies a 404 on delete is not an error.
func TestClientDeleteUnknownTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "secret").DeleteTemplate(context.Background(), uuid.New()); err != nil {
		t.Errorf("DeleteTemplate = %v, want nil", err)
	}
}

// TestStateDB verifies push records match on hash.
func TestStateDB(t *testing.T) {
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()
	ctx := context.Background()
	id := uuid.New()

	if ok, err := state.IsPushed(ctx, KindSession, id, "a"); err != nil || ok {
		t.Fatalf("IsPushed before mark = %v, %v", ok, err)
	}
	if err := state.MarkPushed(ctx, KindSession, id, "a"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := state.IsPushed(ctx, KindSession, id, "a"); !ok {
		t.Error("IsPushed with same hash = false")
	}
	if ok, _ := state.IsPushed(ctx, KindSession, id, "b"); ok {
		t.Error("IsPushed with new hash = true")
	}
	if ok, _ := state.IsPushed(ctx, KindTemplate, id, "a"); ok {
		t.Error("IsPushed for other kind = true")
	}
	if err := state.Forget(ctx, KindSession, id); err != nil {
		t.Fatal(err)
	}
	if ok, _ := state.IsPushed(ctx, KindSession, id, "a"); ok {
		t.Error("IsPushed after forget = true")
	}
}
