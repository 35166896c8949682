package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// sessionWhere builds the WHERE clause shared by the three session queries.
// Columns are qualified with the alias s.
func sessionWhere(userID int, f models.SessionFilter) (string, []any) {
	where := "s.user_id = $1"
	args := []any{userID}
	if f.Category != nil {
		args = append(args, string(*f.Category))
		where += fmt.Sprintf(" AND s.category = $%d", len(args))
	}
	if !f.Start.IsZero() {
		args = append(args, f.Start)
		where += fmt.Sprintf(" AND s.date >= $%d", len(args))
	}
	if !f.End.IsZero() {
		args = append(args, f.End)
		where += fmt.Sprintf(" AND s.date < $%d", len(args))
	}
	return where, args
}

// ListSessions returns the user's sessions matching the filter, oldest first.
func (db *DB) ListSessions(ctx context.Context, userID int, filter models.SessionFilter) ([]models.WorkoutSession, error) {
	where, args := sessionWhere(userID, filter)
	return db.loadSessions(ctx, where, args)
}

// GetSession retrieves one session with its exercises and sets.
func (db *DB) GetSession(ctx context.Context, userID int, id uuid.UUID) (models.WorkoutSession, error) {
	sessions, err := db.loadSessions(ctx, "s.user_id = $1 AND s.id = $2", []any{userID, id})
	if err != nil {
		return models.WorkoutSession{}, err
	}
	if len(sessions) == 0 {
		return models.WorkoutSession{}, fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	return sessions[0], nil
}

// loadSessions assembles sessions in three queries: sessions, their
// exercises, then their sets.
func (db *DB) loadSessions(ctx context.Context, where string, args []any) ([]models.WorkoutSession, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT s.id, s.date, s.category, s.template_name, s.notes, s.body_weight, s.calories, s.external_id
		 FROM workout_sessions s
		 WHERE `+where+`
		 ORDER BY s.date ASC`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.WorkoutSession
	sessionIdx := map[uuid.UUID]int{}
	for rows.Next() {
		var s models.WorkoutSession
		var category string
		var externalID *string
		if err := rows.Scan(&s.ID, &s.Date, &category, &s.Type.TemplateName, &s.Notes,
			&s.BodyWeight, &s.Calories, &externalID); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s.Type.Category = models.Category(category)
		if externalID != nil {
			s.ExternalID = *externalID
		}
		sessionIdx[s.ID] = len(sessions)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}

	exRows, err := db.Pool.Query(ctx,
		`SELECT e.id, e.session_id, e.name, e.layout, e.increase_next_time
		 FROM exercises e
		 JOIN workout_sessions s ON s.id = e.session_id
		 WHERE `+where+`
		 ORDER BY e.session_id, e.position`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer exRows.Close()

	type position struct{ session, exercise int }
	exerciseIdx := map[uuid.UUID]position{}
	for exRows.Next() {
		var e models.Exercise
		var sessionID uuid.UUID
		var layout string
		if err := exRows.Scan(&e.ID, &sessionID, &e.Name, &layout, &e.IncreaseNextTime); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		e.Layout = models.Layout(layout)
		si, ok := sessionIdx[sessionID]
		if !ok {
			continue
		}
		exerciseIdx[e.ID] = position{si, len(sessions[si].Exercises)}
		sessions[si].Exercises = append(sessions[si].Exercises, e)
	}
	if err := exRows.Err(); err != nil {
		return nil, err
	}

	setRows, err := db.Pool.Query(ctx,
		`SELECT st.id, st.exercise_id, st.set_order, st.weight, st.reps, st.duration,
		 st.distance, st.incline, st.rest_period, st.notes
		 FROM set_entries st
		 JOIN exercises e ON e.id = st.exercise_id
		 JOIN workout_sessions s ON s.id = e.session_id
		 WHERE `+where+`
		 ORDER BY st.exercise_id, st.set_order`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer setRows.Close()

	for setRows.Next() {
		var st models.SetEntry
		var exerciseID uuid.UUID
		if err := setRows.Scan(&st.ID, &exerciseID, &st.Order, &st.Weight, &st.Reps, &st.Duration,
			&st.Distance, &st.Incline, &st.RestPeriod, &st.Notes); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		p, ok := exerciseIdx[exerciseID]
		if !ok {
			continue
		}
		ex := &sessions[p.session].Exercises[p.exercise]
		ex.Sets = append(ex.Sets, st)
	}
	return sessions, setRows.Err()
}

// SaveSession inserts a session or replaces the one with the same id.
// Returns false without writing if another session of the user already has
// the same external id.
func (db *DB) SaveSession(ctx context.Context, userID int, s models.WorkoutSession) (bool, error) {
	stored := true
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		if s.ExternalID != "" {
			var owner uuid.UUID
			err := tx.QueryRow(ctx,
				`SELECT id FROM workout_sessions WHERE user_id = $1 AND external_id = $2`,
				userID, s.ExternalID,
			).Scan(&owner)
			switch {
			case err == nil && owner != s.ID:
				stored = false
				return nil
			case err != nil && !errors.Is(err, pgx.ErrNoRows):
				return fmt.Errorf("checking external id: %w", err)
			}
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO workout_sessions (id, user_id, date, category, template_name, notes,
			 body_weight, calories, external_id)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			 ON CONFLICT (id) DO UPDATE SET
				date = EXCLUDED.date, category = EXCLUDED.category,
				template_name = EXCLUDED.template_name, notes = EXCLUDED.notes,
				body_weight = EXCLUDED.body_weight, calories = EXCLUDED.calories,
				external_id = EXCLUDED.external_id, updated_at = NOW()
			 WHERE workout_sessions.user_id = EXCLUDED.user_id`,
			s.ID, userID, s.Date, string(s.Type.Category), s.Type.TemplateName, s.Notes,
			s.BodyWeight, s.Calories, nullString(s.ExternalID))
		if err != nil {
			return fmt.Errorf("upserting session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("session %s: %w", s.ID, models.ErrNotFound)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM exercises WHERE session_id = $1`, s.ID); err != nil {
			return fmt.Errorf("clearing exercises: %w", err)
		}

		batch := &pgx.Batch{}
		for pos, e := range s.Exercises {
			batch.Queue(
				`INSERT INTO exercises (id, session_id, position, name, layout, increase_next_time)
				 VALUES ($1,$2,$3,$4,$5,$6)`,
				e.ID, s.ID, pos, e.Name, string(e.Layout), e.IncreaseNextTime)
			for _, st := range e.Sets {
				batch.Queue(
					`INSERT INTO set_entries (id, exercise_id, set_order, weight, reps, duration,
					 distance, incline, rest_period, notes)
					 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
					st.ID, e.ID, st.Order, st.Weight, st.Reps, st.Duration,
					st.Distance, st.Incline, st.RestPeriod, st.Notes)
			}
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("inserting exercises: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("saving session %s: %w", s.ID, err)
	}
	return stored, nil
}

// DeleteSession removes a session; exercises and sets cascade.
func (db *DB) DeleteSession(ctx context.Context, userID int, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM workout_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
