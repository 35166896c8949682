package reconcile

import (
	"errors"
	"testing"

	"github.com/claude/treningslogg/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func names(c Catalog) []string {
	out := make([]string, len(c))
	for i, t := range c {
		out[i] = t.Name
	}
	return out
}

// TestSortCatalogIdempotent verifies sorting is stable, case-insensitive and
// idempotent, including after an upsert.
func TestSortCatalogIdempotent(t *testing.T) {
	c := Catalog{
		{ID: uuid.New(), Name: "yoga", Category: models.CategoryOther},
		{ID: uuid.New(), Name: "Benkpress dag", Category: models.CategoryStrength},
		{ID: uuid.New(), Name: "armer", Category: models.CategoryStrength},
		{ID: uuid.New(), Name: "Armer", Category: models.CategoryOther},
	}

	once := SortCatalog(c)
	want := []string{"armer", "Armer", "Benkpress dag", "yoga"}
	if diff := cmp.Diff(want, names(once)); diff != "" {
		t.Errorf("sort mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(once, SortCatalog(once)); diff != "" {
		t.Errorf("second sort changed order (-once +twice):\n%s", diff)
	}

	upserted, _, err := UpsertTemplate(once, UpsertRequest{
		Name:      "Core",
		Category:  models.CategoryStrength,
		Exercises: []models.Exercise{{Name: "Planke", Sets: weightSets(1)}},
		Mode:      CreateNew,
	})
	if err != nil {
		t.Fatalf("UpsertTemplate: %v", err)
	}
	if diff := cmp.Diff(upserted, SortCatalog(upserted)); diff != "" {
		t.Errorf("upserted catalog not sorted (-got +resorted):\n%s", diff)
	}
}

// TestSortCatalogNorwegianLetters verifies æ, ø and å sort after z.
func TestSortCatalogNorwegianLetters(t *testing.T) {
	c := Catalog{{Name: "Åsløp"}, {Name: "Øvelse"}, {Name: "Zumba"}, {Name: "Ærlig"}}
	want := []string{"Zumba", "Ærlig", "Øvelse", "Åsløp"}
	if diff := cmp.Diff(want, names(SortCatalog(c))); diff != "" {
		t.Errorf("sort mismatch (-want +got):\n%s", diff)
	}
}

// TestUpsertTemplateDuplicateName verifies name collisions are detected
// case-insensitively within a category only.
func TestUpsertTemplateDuplicateName(t *testing.T) {
	existing := models.WorkoutTemplate{
		ID:        uuid.New(),
		Name:      "overkropp",
		Category:  models.CategoryStrength,
		Exercises: []models.ExerciseTemplate{{Name: "Benkpress", DefaultSets: 3}},
	}
	catalog := Catalog{existing}
	req := UpsertRequest{
		Name:      "Overkropp",
		Category:  models.CategoryStrength,
		Exercises: []models.Exercise{{Name: "Benkpress", Sets: weightSets(1)}},
		Mode:      CreateNew,
	}

	_, _, err := UpsertTemplate(catalog, req)
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("error = %v, want ErrDuplicateName", err)
	}
	var dup *DuplicateNameError
	if !errors.As(err, &dup) || dup.Existing.ID != existing.ID {
		t.Errorf("DuplicateNameError.Existing = %+v, want %s", dup, existing.ID)
	}

	req.Category = models.CategoryOther
	out, _, err := UpsertTemplate(catalog, req)
	if err != nil {
		t.Fatalf("same name in another category: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("catalog size = %d, want 2", len(out))
	}
}

// TestUpsertTemplateCreateFromAdHocSession covers saving an ad hoc Other
// session with two exercises as a new template.
func TestUpsertTemplateCreateFromAdHocSession(t *testing.T) {
	exercises := []models.Exercise{
		{Name: "Buldring", Layout: models.LayoutBasic, Sets: []models.SetEntry{{Duration: f64(40)}}},
		{Name: "Tau", Layout: models.LayoutBasic, Sets: []models.SetEntry{{Duration: f64(10)}, {Duration: f64(10)}}, IncreaseNextTime: true},
	}
	if !HasStructuralChanges(models.CategoryOther, nil, exercises) {
		t.Fatal("ad hoc Other session not reported as changed")
	}

	catalog := DefaultCatalog()
	out, saved, err := UpsertTemplate(catalog, UpsertRequest{
		Name:      "Climbing Day",
		Category:  models.CategoryOther,
		Layout:    models.LayoutBasic,
		Exercises: exercises,
		Mode:      CreateNew,
	})
	if err != nil {
		t.Fatalf("UpsertTemplate: %v", err)
	}
	if len(out) != len(catalog)+1 {
		t.Errorf("catalog size = %d, want %d", len(out), len(catalog)+1)
	}

	got, ok := out.FindByName(models.CategoryOther, "climbing day")
	if !ok {
		t.Fatal("new template not in catalog")
	}
	if got.ID != saved.ID || got.ID == uuid.Nil {
		t.Errorf("template id = %s, returned %s", got.ID, saved.ID)
	}
	want := models.WorkoutTemplate{
		ID:       got.ID,
		Name:     "Climbing Day",
		Category: models.CategoryOther,
		Layout:   models.LayoutBasic,
		Exercises: []models.ExerciseTemplate{
			{Name: "Buldring", Layout: models.LayoutBasic, DefaultSets: 1},
			{Name: "Tau", Layout: models.LayoutBasic, DefaultSets: 2, IncreaseNextTime: true},
		},
	}
	if diff := cmp.Diff(want, got, ignoreIDs); diff != "" {
		t.Errorf("template mismatch (-want +got):\n%s", diff)
	}
}

// TestUpsertTemplateUpdateExisting verifies updates replace the exercise list
// wholesale while keeping the template's identity and name.
func TestUpsertTemplateUpdateExisting(t *testing.T) {
	catalog := DefaultCatalog()
	overkropp, ok := catalog.FindByName(models.CategoryStrength, "Overkropp")
	if !ok {
		t.Fatal("default catalog lacks Overkropp")
	}
	oldExerciseID := overkropp.Exercises[0].ID

	id := overkropp.ID
	out, updated, err := UpsertTemplate(catalog, UpsertRequest{
		TemplateID: &id,
		Name:       "OVERKROPP",
		Category:   models.CategoryStrength,
		Exercises: []models.Exercise{
			{Name: "Benkpress", Sets: weightSets(1, 1, 1, 1, 1)},
			{Name: "Pullups", Sets: weightSets(1, 1, 1)},
		},
		Mode: UpdateExisting,
	})
	if err != nil {
		t.Fatalf("UpsertTemplate: %v", err)
	}
	if updated.ID != overkropp.ID || updated.Name != "Overkropp" {
		t.Errorf("updated = %s %q, want %s %q", updated.ID, updated.Name, overkropp.ID, "Overkropp")
	}
	if len(out) != len(catalog) {
		t.Errorf("catalog size = %d, want %d", len(out), len(catalog))
	}
	want := []models.ExerciseTemplate{
		{Name: "Benkpress", DefaultSets: 5},
		{Name: "Pullups", DefaultSets: 3},
	}
	if diff := cmp.Diff(want, updated.Exercises, ignoreIDs); diff != "" {
		t.Errorf("exercises mismatch (-want +got):\n%s", diff)
	}
	if updated.Exercises[0].ID == oldExerciseID {
		t.Error("exercise entries were patched, want fresh entries")
	}

	// The input catalog is left untouched.
	if orig, _ := catalog.Find(id); len(orig.Exercises) != 4 {
		t.Errorf("input catalog modified: %d exercises", len(orig.Exercises))
	}
}

// TestUpsertTemplateUpdateRejectsOtherCategory verifies an update cannot
// rewrite a template of another category through its id.
func TestUpsertTemplateUpdateRejectsOtherCategory(t *testing.T) {
	catalog := DefaultCatalog()
	overkropp, _ := catalog.FindByName(models.CategoryStrength, "Overkropp")
	id := overkropp.ID

	_, _, err := UpsertTemplate(catalog, UpsertRequest{
		TemplateID: &id,
		Name:       "Overkropp",
		Category:   models.CategoryOther,
		Layout:     models.LayoutBasic,
		Exercises:  []models.Exercise{{Name: "Klatring", Sets: weightSets(1)}},
		Mode:       UpdateExisting,
	})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if orig, _ := catalog.Find(id); len(orig.Exercises) != 4 || orig.Category != models.CategoryStrength {
		t.Errorf("template changed: %+v", orig)
	}
}

// TestUpsertTemplateUpdateByName verifies UpdateExisting falls back to a
// name lookup when no id is given.
func TestUpsertTemplateUpdateByName(t *testing.T) {
	catalog := DefaultCatalog()
	_, updated, err := UpsertTemplate(catalog, UpsertRequest{
		Name:      "yoga",
		Category:  models.CategoryOther,
		Layout:    models.LayoutBasic,
		Exercises: []models.Exercise{{Name: "Yin", Sets: []models.SetEntry{{}}}},
		Mode:      UpdateExisting,
	})
	if err != nil {
		t.Fatalf("UpsertTemplate: %v", err)
	}
	if updated.Name != "Yoga" || len(updated.Exercises) != 1 || updated.Exercises[0].Name != "Yin" {
		t.Errorf("updated = %+v", updated)
	}
}

// TestUpsertTemplateErrors covers rejected requests.
func TestUpsertTemplateErrors(t *testing.T) {
	catalog := DefaultCatalog()
	missing := uuid.New()
	ok := []models.Exercise{{Name: "Benkpress", Sets: weightSets(1)}}

	tests := []struct {
		name string
		req  UpsertRequest
		want error
	}{
		{"empty name", UpsertRequest{Name: "  ", Category: models.CategoryStrength, Exercises: ok}, models.ErrInvalidInput},
		{"empty exercise name", UpsertRequest{Name: "Ny", Category: models.CategoryStrength,
			Exercises: []models.Exercise{{Name: "", Sets: weightSets(1)}}}, models.ErrInvalidInput},
		{"exercise without sets", UpsertRequest{Name: "Ny", Category: models.CategoryStrength,
			Exercises: []models.Exercise{{Name: "Benkpress"}}}, models.ErrInvalidInput},
		{"bad category", UpsertRequest{Name: "Ny", Category: "cardio", Exercises: ok}, models.ErrInvalidInput},
		{"layout mismatch", UpsertRequest{Name: "Ny", Category: models.CategoryStrength,
			Layout: models.LayoutBasic, Exercises: ok}, models.ErrInvalidInput},
		{"unknown mode", UpsertRequest{Name: "Ny", Category: models.CategoryStrength, Exercises: ok, Mode: "merge"}, models.ErrInvalidInput},
		{"update missing id", UpsertRequest{TemplateID: &missing, Name: "Ny", Category: models.CategoryStrength,
			Exercises: ok, Mode: UpdateExisting}, ErrTemplateNotFound},
		{"update missing name", UpsertRequest{Name: "Ny", Category: models.CategoryStrength,
			Exercises: ok, Mode: UpdateExisting}, ErrTemplateNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := UpsertTemplate(catalog, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestUpsertTemplateClearsLayoutOutsideOther verifies only Other templates
// store a layout.
func TestUpsertTemplateClearsLayoutOutsideOther(t *testing.T) {
	_, saved, err := UpsertTemplate(nil, UpsertRequest{
		Name:      "Intervaller",
		Category:  models.CategoryEndurance,
		Layout:    models.LayoutEndurance,
		Exercises: []models.Exercise{{Name: "4x4", Sets: weightSets(1)}},
	})
	if err != nil {
		t.Fatalf("UpsertTemplate: %v", err)
	}
	if saved.Layout != "" {
		t.Errorf("layout = %q, want empty", saved.Layout)
	}
}

// TestRenameTemplate covers trimming, case-only renames and collisions.
func TestRenameTemplate(t *testing.T) {
	catalog := DefaultCatalog()
	over, _ := catalog.FindByName(models.CategoryStrength, "Overkropp")

	out, renamed, err := RenameTemplate(catalog, over.ID, "  Push  ")
	if err != nil {
		t.Fatalf("RenameTemplate: %v", err)
	}
	if renamed.Name != "Push" {
		t.Errorf("name = %q, want %q", renamed.Name, "Push")
	}
	if diff := cmp.Diff(out, SortCatalog(out)); diff != "" {
		t.Errorf("renamed catalog not sorted:\n%s", diff)
	}

	if _, renamed, err = RenameTemplate(catalog, over.ID, "OVERKROPP"); err != nil || renamed.Name != "OVERKROPP" {
		t.Errorf("case-only rename = %q, %v", renamed.Name, err)
	}

	if _, _, err := RenameTemplate(catalog, over.ID, "underkropp"); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("collision error = %v, want ErrDuplicateName", err)
	}
	if _, _, err := RenameTemplate(catalog, over.ID, " "); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("empty name error = %v, want ErrInvalidInput", err)
	}
	if _, _, err := RenameTemplate(catalog, uuid.New(), "X"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("missing id error = %v, want ErrTemplateNotFound", err)
	}
}

// TestDeleteTemplate verifies removal leaves the input untouched.
func TestDeleteTemplate(t *testing.T) {
	catalog := DefaultCatalog()
	yoga, _ := catalog.FindByName(models.CategoryOther, "Yoga")

	out, err := DeleteTemplate(catalog, yoga.ID)
	if err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, ok := out.Find(yoga.ID); ok {
		t.Error("template still present")
	}
	if len(out) != len(catalog)-1 {
		t.Errorf("catalog size = %d, want %d", len(out), len(catalog)-1)
	}
	if _, ok := catalog.Find(yoga.ID); !ok {
		t.Error("input catalog modified")
	}
	if _, err := DeleteTemplate(out, yoga.ID); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("second delete error = %v, want ErrTemplateNotFound", err)
	}
}

// TestDefaultCatalog verifies the seed templates are valid and sorted.
func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	want := []string{"Klatring", "Løping Intervall", "Overkropp", "Sykling", "Underkropp", "Yoga"}
	if diff := cmp.Diff(want, names(c)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	for _, tmpl := range c {
		if err := models.ValidateTemplate(tmpl); err != nil {
			t.Errorf("%s: %v", tmpl.Name, err)
		}
	}
	if DefaultCatalog()[0].ID == c[0].ID {
		t.Error("ids are reused across calls")
	}
}
