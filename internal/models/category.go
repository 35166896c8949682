package models

import (
	"fmt"
	"strings"
)

// Category is the top-level classification of a workout.
type Category string

const (
	CategoryStrength  Category = "strength"
	CategoryEndurance Category = "endurance"
	CategoryOther     Category = "other"
)

// Categories lists all categories in display order.
var Categories = []Category{CategoryStrength, CategoryEndurance, CategoryOther}

// DisplayName returns the human-readable name used in session labels.
func (c Category) DisplayName() string {
	switch c {
	case CategoryStrength:
		return "Strength"
	case CategoryEndurance:
		return "Endurance"
	case CategoryOther:
		return "Other training"
	default:
		return string(c)
	}
}

// DefaultLayout returns the set layout used when no explicit layout is chosen.
func (c Category) DefaultLayout() Layout {
	switch c {
	case CategoryStrength:
		return LayoutStrength
	case CategoryEndurance:
		return LayoutEndurance
	default:
		return LayoutBasic
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryStrength, CategoryEndurance, CategoryOther:
		return true
	}
	return false
}

// ParseCategory accepts an identifier ("strength") or a display name
// ("Other training"), case-insensitively.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, c.DisplayName()) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown category %q", ErrInvalidInput, s)
}

// Layout determines which fields a set entry exposes.
type Layout string

const (
	LayoutStrength  Layout = "strength"
	LayoutEndurance Layout = "endurance"
	LayoutBasic     Layout = "basic"
)

// Field names a single editable value of a set entry.
type Field string

const (
	FieldWeight     Field = "weight"
	FieldReps       Field = "reps"
	FieldDuration   Field = "duration"
	FieldDistance   Field = "distance"
	FieldIncline    Field = "incline"
	FieldRestPeriod Field = "rest_period"
)

// Fields returns the set fields the layout uses, in display order.
// For endurance, reps holds speed.
func (l Layout) Fields() []Field {
	switch l {
	case LayoutStrength:
		return []Field{FieldWeight, FieldReps}
	case LayoutEndurance:
		return []Field{FieldReps, FieldIncline, FieldDuration, FieldDistance, FieldRestPeriod}
	case LayoutBasic:
		return []Field{FieldDuration}
	}
	return nil
}

// Valid reports whether l is a known layout.
func (l Layout) Valid() bool {
	switch l {
	case LayoutStrength, LayoutEndurance, LayoutBasic:
		return true
	}
	return false
}

// ParseLayout accepts a layout identifier case-insensitively. The empty
// string parses to the empty layout, meaning "use the category default".
func ParseLayout(s string) (Layout, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for _, l := range []Layout{LayoutStrength, LayoutEndurance, LayoutBasic} {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: unknown layout %q", ErrInvalidInput, s)
}

// ResolveLayout returns the layout a session of category c actually uses.
// An override only applies to Other; every other category is fixed to its
// default layout.
func ResolveLayout(c Category, override Layout) Layout {
	if c == CategoryOther && override != "" {
		return override
	}
	return c.DefaultLayout()
}
