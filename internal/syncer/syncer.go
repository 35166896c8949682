// Package syncer pushes a local sqlite logbook to a remote treningslogg
// server. Documents are pushed whole and keyed by id, so a sync can be
// repeated safely; a state database skips documents that have not changed
// since the last successful push.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Source is the local logbook. *localstore.Store implements it.
type Source interface {
	ListSessions(ctx context.Context, userID int, filter models.SessionFilter) ([]models.WorkoutSession, error)
	ListTemplates(ctx context.Context, userID int, category *models.Category) ([]models.WorkoutTemplate, error)
	TemplateTombstones(ctx context.Context) ([]uuid.UUID, error)
	ClearTombstone(ctx context.Context, id uuid.UUID) error
}

// Remote receives pushed documents. *Client implements it.
type Remote interface {
	PutSession(ctx context.Context, s models.WorkoutSession) (bool, error)
	PutTemplate(ctx context.Context, t models.WorkoutTemplate) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
}

// Stats tracks sync progress.
type Stats struct {
	TemplatesPushed    int
	TemplatesUnchanged int
	TemplatesDeleted   int
	SessionsPushed     int
	SessionsUnchanged  int
	SessionsDuplicate  int
	Failed             int
}

// Options configures a Syncer.
type Options struct {
	UserID      int
	DryRun      bool
	Concurrency int
}

// Syncer pushes templates, sessions and template deletions.
type Syncer struct {
	src    Source
	remote Remote
	state  *StateDB
	opts   Options
	log    *slog.Logger

	mu    sync.Mutex
	stats Stats
	errs  error
}

// New creates a Syncer. Concurrency below 1 means 4 parallel pushes.
func New(src Source, remote Remote, state *StateDB, opts Options, log *slog.Logger) *Syncer {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	return &Syncer{src: src, remote: remote, state: state, opts: opts, log: log}
}

// Run pushes everything that changed. A failed document does not stop the
// others; all failures are returned together.
func (s *Syncer) Run(ctx context.Context) (*Stats, error) {
	templates, err := s.src.ListTemplates(ctx, s.opts.UserID, nil)
	if err != nil {
		return &s.stats, fmt.Errorf("listing local templates: %w", err)
	}
	sessions, err := s.src.ListSessions(ctx, s.opts.UserID, models.SessionFilter{})
	if err != nil {
		return &s.stats, fmt.Errorf("listing local sessions: %w", err)
	}
	tombstones, err := s.src.TemplateTombstones(ctx)
	if err != nil {
		return &s.stats, fmt.Errorf("listing deleted templates: %w", err)
	}
	s.log.Info("sync starting",
		"templates", len(templates),
		"sessions", len(sessions),
		"deleted_templates", len(tombstones),
		"dry_run", s.opts.DryRun,
	)

	// Deletes go first so a template recreated under a deleted one's name
	// does not collide on the remote. Templates precede sessions so the
	// remote catalog is complete before sessions drafted from it arrive.
	if err := s.each(ctx, len(tombstones), func(ctx context.Context, i int) error {
		return s.deleteTemplate(ctx, tombstones[i])
	}); err != nil {
		return &s.stats, err
	}
	if err := s.each(ctx, len(templates), func(ctx context.Context, i int) error {
		return s.pushTemplate(ctx, templates[i])
	}); err != nil {
		return &s.stats, err
	}
	if err := s.each(ctx, len(sessions), func(ctx context.Context, i int) error {
		return s.pushSession(ctx, sessions[i])
	}); err != nil {
		return &s.stats, err
	}

	s.log.Info("sync finished",
		"templates_pushed", s.stats.TemplatesPushed,
		"templates_deleted", s.stats.TemplatesDeleted,
		"sessions_pushed", s.stats.SessionsPushed,
		"unchanged", s.stats.TemplatesUnchanged+s.stats.SessionsUnchanged,
		"failed", s.stats.Failed,
	)
	return &s.stats, s.errs
}

// each runs fn for 0..n-1 with bounded concurrency. Per-item failures are
// collected; only context cancellation aborts the batch.
func (s *Syncer) each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i := range n {
		g.Go(func() error {
			if err := fn(gctx, i); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.mu.Lock()
				s.stats.Failed++
				s.errs = multierr.Append(s.errs, err)
				s.mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Syncer) count(f func(*Stats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

func (s *Syncer) pushTemplate(ctx context.Context, t models.WorkoutTemplate) error {
	hash, err := HashDocument(t)
	if err != nil {
		return fmt.Errorf("hashing template %q: %w", t.Name, err)
	}
	done, err := s.state.IsPushed(ctx, KindTemplate, t.ID, hash)
	if err != nil {
		return fmt.Errorf("checking state of template %q: %w", t.Name, err)
	}
	if done {
		s.count(func(st *Stats) { st.TemplatesUnchanged++ })
		return nil
	}
	if s.opts.DryRun {
		s.log.Info("would push template", "name", t.Name, "category", t.Category)
		s.count(func(st *Stats) { st.TemplatesPushed++ })
		return nil
	}

	if err := s.remote.PutTemplate(ctx, t); err != nil {
		return fmt.Errorf("pushing template %q: %w", t.Name, err)
	}
	if err := s.state.MarkPushed(ctx, KindTemplate, t.ID, hash); err != nil {
		return fmt.Errorf("recording template %q: %w", t.Name, err)
	}
	s.count(func(st *Stats) { st.TemplatesPushed++ })
	return nil
}

func (s *Syncer) deleteTemplate(ctx context.Context, id uuid.UUID) error {
	if s.opts.DryRun {
		s.log.Info("would delete template", "id", id)
		s.count(func(st *Stats) { st.TemplatesDeleted++ })
		return nil
	}
	if err := s.remote.DeleteTemplate(ctx, id); err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	if err := s.state.Forget(ctx, KindTemplate, id); err != nil {
		return fmt.Errorf("forgetting template %s: %w", id, err)
	}
	if err := s.src.ClearTombstone(ctx, id); err != nil {
		return fmt.Errorf("clearing tombstone %s: %w", id, err)
	}
	s.count(func(st *Stats) { st.TemplatesDeleted++ })
	return nil
}

func (s *Syncer) pushSession(ctx context.Context, session models.WorkoutSession) error {
	hash, err := HashDocument(session)
	if err != nil {
		return fmt.Errorf("hashing session %s: %w", session.ID, err)
	}
	done, err := s.state.IsPushed(ctx, KindSession, session.ID, hash)
	if err != nil {
		return fmt.Errorf("checking state of session %s: %w", session.ID, err)
	}
	if done {
		s.count(func(st *Stats) { st.SessionsUnchanged++ })
		return nil
	}
	if s.opts.DryRun {
		s.log.Info("would push session", "id", session.ID, "type", session.Type.Label(), "date", session.Date)
		s.count(func(st *Stats) { st.SessionsPushed++ })
		return nil
	}

	stored, err := s.remote.PutSession(ctx, session)
	if err != nil {
		return fmt.Errorf("pushing session %s: %w", session.ID, err)
	}
	if err := s.state.MarkPushed(ctx, KindSession, session.ID, hash); err != nil {
		return fmt.Errorf("recording session %s: %w", session.ID, err)
	}
	if !stored {
		s.log.Warn("server already has this import", "id", session.ID, "external_id", session.ExternalID)
		s.count(func(st *Stats) { st.SessionsDuplicate++ })
		return nil
	}
	s.count(func(st *Stats) { st.SessionsPushed++ })
	return nil
}
