package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidInput is wrapped by every validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)

// SetEntry is a single set within an exercise. Nil fields are empty.
type SetEntry struct {
	ID         uuid.UUID `json:"id"`
	Order      int       `json:"order"`
	Weight     *float64  `json:"weight,omitempty"`      // kg
	Reps       *float64  `json:"reps,omitempty"`        // count, or km/h for endurance
	Duration   *float64  `json:"duration,omitempty"`    // minutes
	Distance   *float64  `json:"distance,omitempty"`    // km
	Incline    *float64  `json:"incline,omitempty"`     // percent
	RestPeriod *float64  `json:"rest_period,omitempty"` // seconds
	Notes      string    `json:"notes,omitempty"`
}

// Value returns the value stored for field f.
func (s SetEntry) Value(f Field) *float64 {
	switch f {
	case FieldWeight:
		return s.Weight
	case FieldReps:
		return s.Reps
	case FieldDuration:
		return s.Duration
	case FieldDistance:
		return s.Distance
	case FieldIncline:
		return s.Incline
	case FieldRestPeriod:
		return s.RestPeriod
	}
	return nil
}

// SetValue stores v in field f. The value is copied.
func (s *SetEntry) SetValue(f Field, v *float64) {
	if v != nil {
		c := *v
		v = &c
	}
	switch f {
	case FieldWeight:
		s.Weight = v
	case FieldReps:
		s.Reps = v
	case FieldDuration:
		s.Duration = v
	case FieldDistance:
		s.Distance = v
	case FieldIncline:
		s.Incline = v
	case FieldRestPeriod:
		s.RestPeriod = v
	}
}

// Exercise is one exercise performed in a session.
type Exercise struct {
	ID               uuid.UUID  `json:"id"`
	Name             string     `json:"name"`
	Layout           Layout     `json:"layout"`
	Sets             []SetEntry `json:"sets"`
	IncreaseNextTime bool       `json:"increase_next_time"`
}

// SortedSets returns the sets in ascending order without modifying e.
func (e Exercise) SortedSets() []SetEntry {
	sets := slices.Clone(e.Sets)
	slices.SortStableFunc(sets, func(a, b SetEntry) int { return a.Order - b.Order })
	return sets
}

// NormalizeSetOrder sorts the sets and renumbers them 0..n-1.
func (e *Exercise) NormalizeSetOrder() {
	e.Sets = e.SortedSets()
	for i := range e.Sets {
		e.Sets[i].Order = i
	}
}

// WorkoutSession is a logged workout.
type WorkoutSession struct {
	ID         uuid.UUID   `json:"id"`
	Date       time.Time   `json:"date"`
	Type       SessionType `json:"type"`
	Notes      string      `json:"notes,omitempty"`
	BodyWeight *float64    `json:"body_weight,omitempty"`
	Calories   *int        `json:"calories,omitempty"`
	ExternalID string      `json:"external_id,omitempty"`
	Exercises  []Exercise  `json:"exercises"`
}

// ExerciseTemplate is one exercise definition inside a workout template.
type ExerciseTemplate struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Layout           Layout    `json:"layout,omitempty"`
	DefaultSets      int       `json:"default_sets"`
	IncreaseNextTime bool      `json:"increase_next_time"`
}

// WorkoutTemplate is a reusable, named blueprint of exercises.
// Layout is only meaningful for CategoryOther.
type WorkoutTemplate struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	Category  Category           `json:"category"`
	Layout    Layout             `json:"layout,omitempty"`
	Exercises []ExerciseTemplate `json:"exercises"`
}

// ResolvedLayout returns the layout sessions drafted from t use.
func (t WorkoutTemplate) ResolvedLayout() Layout {
	return ResolveLayout(t.Category, t.Layout)
}

// SessionFilter narrows a session listing. Zero times are unbounded.
type SessionFilter struct {
	Category *Category
	Start    time.Time
	End      time.Time
}

// Match reports whether s passes the filter.
func (f SessionFilter) Match(s WorkoutSession) bool {
	if f.Category != nil && s.Type.Category != *f.Category {
		return false
	}
	if !f.Start.IsZero() && s.Date.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !s.Date.Before(f.End) {
		return false
	}
	return true
}

// ValidateExercise checks the fields every stored exercise needs.
func ValidateExercise(e Exercise) error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: exercise name is required", ErrInvalidInput)
	}
	if e.Layout != "" && !e.Layout.Valid() {
		return fmt.Errorf("%w: exercise %q has unknown layout %q", ErrInvalidInput, e.Name, e.Layout)
	}
	return nil
}

// ValidateSession checks a session before it is persisted.
func ValidateSession(s WorkoutSession) error {
	if !s.Type.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s.Type.Category)
	}
	if s.Date.IsZero() {
		return fmt.Errorf("%w: session date is required", ErrInvalidInput)
	}
	for _, e := range s.Exercises {
		if err := ValidateExercise(e); err != nil {
			return err
		}
	}
	return nil
}

// ValidateTemplate checks a template definition.
func ValidateTemplate(t WorkoutTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: template name is required", ErrInvalidInput)
	}
	if !t.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, t.Category)
	}
	if t.Layout != "" {
		if !t.Layout.Valid() {
			return fmt.Errorf("%w: unknown layout %q", ErrInvalidInput, t.Layout)
		}
		if t.Category != CategoryOther && t.Layout != t.Category.DefaultLayout() {
			return fmt.Errorf("%w: layout %q does not fit category %q", ErrInvalidInput, t.Layout, t.Category)
		}
	}
	for _, e := range t.Exercises {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("%w: exercise name is required", ErrInvalidInput)
		}
		if e.DefaultSets < 1 {
			return fmt.Errorf("%w: exercise %q needs at least one default set", ErrInvalidInput, e.Name)
		}
		if e.Layout != "" && !e.Layout.Valid() {
			return fmt.Errorf("%w: exercise %q has unknown layout %q", ErrInvalidInput, e.Name, e.Layout)
		}
	}
	return nil
}
