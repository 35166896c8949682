// Package reconcile decides how new sessions are prefilled from templates and
// history, and how finished sessions feed back into the template catalog.
//
// Every function here is pure: callers pass a snapshot of the catalog and the
// session history, and receive new values back. Nothing is persisted or
// logged by this package.
package reconcile

import (
	"slices"
	"strings"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Catalog is the flat, name-sorted collection of a user's templates.
type Catalog []models.WorkoutTemplate

// collationTag orders names the way a Norwegian user expects (æ, ø, å last).
var collationTag = language.MustParse("nb")

// SortCatalog returns a copy of c ordered case-insensitively by name.
// Equal names keep their relative order, so sorting is idempotent.
func SortCatalog(c Catalog) Catalog {
	out := slices.Clone(c)
	// Collators are not safe for concurrent use; build one per call.
	col := collate.New(collationTag, collate.IgnoreCase)
	slices.SortStableFunc(out, func(a, b models.WorkoutTemplate) int {
		return col.CompareString(a.Name, b.Name)
	})
	return out
}

// Find returns the template with the given id.
func (c Catalog) Find(id uuid.UUID) (models.WorkoutTemplate, bool) {
	if i := c.index(id); i >= 0 {
		return c[i], true
	}
	return models.WorkoutTemplate{}, false
}

// FindByName returns the template in category whose name matches
// case-insensitively, ignoring surrounding whitespace.
func (c Catalog) FindByName(category models.Category, name string) (models.WorkoutTemplate, bool) {
	name = strings.TrimSpace(name)
	for _, t := range c {
		if t.Category == category && strings.EqualFold(strings.TrimSpace(t.Name), name) {
			return t, true
		}
	}
	return models.WorkoutTemplate{}, false
}

func (c Catalog) index(id uuid.UUID) int {
	return slices.IndexFunc(c, func(t models.WorkoutTemplate) bool { return t.ID == id })
}
