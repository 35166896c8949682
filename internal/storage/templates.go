package storage

import (
	"context"
	"fmt"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListTemplates returns the user's templates, optionally of one category.
func (db *DB) ListTemplates(ctx context.Context, userID int, category *models.Category) ([]models.WorkoutTemplate, error) {
	where := "t.user_id = $1"
	args := []any{userID}
	if category != nil {
		where += " AND t.category = $2"
		args = append(args, string(*category))
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT t.id, t.name, t.category, t.layout
		 FROM workout_templates t
		 WHERE `+where+`
		 ORDER BY lower(t.name)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying templates: %w", err)
	}
	defer rows.Close()

	var templates []models.WorkoutTemplate
	idx := map[uuid.UUID]int{}
	for rows.Next() {
		var t models.WorkoutTemplate
		var category, layout string
		if err := rows.Scan(&t.ID, &t.Name, &category, &layout); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		t.Category = models.Category(category)
		t.Layout = models.Layout(layout)
		idx[t.ID] = len(templates)
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(templates) == 0 {
		return nil, nil
	}

	exRows, err := db.Pool.Query(ctx,
		`SELECT e.id, e.template_id, e.name, e.layout, e.default_sets, e.increase_next_time
		 FROM exercise_templates e
		 JOIN workout_templates t ON t.id = e.template_id
		 WHERE `+where+`
		 ORDER BY e.template_id, e.position`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("querying exercise templates: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		var e models.ExerciseTemplate
		var templateID uuid.UUID
		var layout string
		if err := exRows.Scan(&e.ID, &templateID, &e.Name, &layout, &e.DefaultSets, &e.IncreaseNextTime); err != nil {
			return nil, fmt.Errorf("scanning exercise template: %w", err)
		}
		e.Layout = models.Layout(layout)
		if i, ok := idx[templateID]; ok {
			templates[i].Exercises = append(templates[i].Exercises, e)
		}
	}
	return templates, exRows.Err()
}

// SaveTemplate upserts a template and recreates its exercise entries.
func (db *DB) SaveTemplate(ctx context.Context, userID int, t models.WorkoutTemplate) error {
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		return saveTemplate(ctx, tx, userID, t)
	})
	if err != nil {
		return fmt.Errorf("saving template %q: %w", t.Name, err)
	}
	return nil
}

func saveTemplate(ctx context.Context, tx pgx.Tx, userID int, t models.WorkoutTemplate) error {
	tag, err := tx.Exec(ctx,
		`INSERT INTO workout_templates (id, user_id, name, category, layout)
		 VALUES ($1,$2,$3,$4,$5)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category,
			layout = EXCLUDED.layout, updated_at = NOW()
		 WHERE workout_templates.user_id = EXCLUDED.user_id`,
		t.ID, userID, t.Name, string(t.Category), string(t.Layout))
	if err != nil {
		return fmt.Errorf("upserting template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %s: %w", t.ID, models.ErrNotFound)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM exercise_templates WHERE template_id = $1`, t.ID); err != nil {
		return fmt.Errorf("clearing exercise templates: %w", err)
	}
	if len(t.Exercises) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for pos, e := range t.Exercises {
		batch.Queue(
			`INSERT INTO exercise_templates (id, template_id, position, name, layout, default_sets, increase_next_time)
			 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			e.ID, t.ID, pos, e.Name, string(e.Layout), e.DefaultSets, e.IncreaseNextTime)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting exercise templates: %w", err)
	}
	return nil
}

// DeleteTemplate removes a template; exercise entries cascade.
func (db *DB) DeleteTemplate(ctx context.Context, userID int, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM workout_templates WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("template %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// SeedTemplates stores templates the first time it is called for a user.
// The users.templates_seeded flag makes this safe across restarts and
// concurrent requests.
func (db *DB) SeedTemplates(ctx context.Context, userID int, templates []models.WorkoutTemplate) (bool, error) {
	seeded := false
	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE users SET templates_seeded = TRUE WHERE id = $1 AND NOT templates_seeded`, userID)
		if err != nil {
			return fmt.Errorf("marking templates seeded: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		for _, t := range templates {
			if err := saveTemplate(ctx, tx, userID, t); err != nil {
				return fmt.Errorf("seeding %q: %w", t.Name, err)
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return seeded, nil
}
