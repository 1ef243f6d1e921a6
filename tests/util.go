package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
	"github.com/trezcool/quickgrade/storage/database"
)

// OpenDB opens a migrated sqlite3 database living in a temporary directory removed at the end of the test.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conf := core.NewTestConfig()
	conf.Database.Engine = database.EngineSqlite
	conf.Database.Path = filepath.Join(t.TempDir(), "quickgrade_test.db")

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewDocument returns a document for assignment with one student per name.
func NewDocument(id, assignment string, savedAt time.Time, names ...string) grading.SavedDocument {
	doc := grading.SavedDocument{
		ID:             id,
		AssignmentName: assignment,
		Timestamp:      savedAt.UTC(),
		Students:       make([]grading.Student, 0, len(names)),
		FeedbackItems: []grading.FeedbackItem{
			{ID: 1, Comment: "Missing header", Grade: 3},
			{ID: 2, Comment: "Typo", Grade: 2},
		},
	}
	for _, name := range names {
		doc.Students = append(doc.Students, grading.Student{
			Name:     name,
			Grade:    "17",
			Comment:  "Good",
			Applied:  []grading.Applied{{ID: 1, Text: "Missing header"}},
			MaxGrade: 20,
		})
	}
	return doc
}

func CreateSave(t *testing.T, repo grading.Repository, doc grading.SavedDocument) grading.SavedDocument {
	t.Helper()
	doc, err := repo.CreateSave(context.Background(), doc)
	if err != nil {
		t.Fatalf("CreateSave() failed: %v", err)
	}
	return doc
}

// ImportPayload returns a valid import of the named students, all graded out of 20.
func ImportPayload(assignment string, names ...string) grading.ImportPayload {
	p := grading.ImportPayload{
		AssignmentName: assignment,
		Students:       make([]grading.ImportStudent, 0, len(names)),
		FeedbackItems: []grading.FeedbackItem{
			{ID: 1, Comment: "Missing header", Grade: 3},
			{ID: 2, Comment: "Typo", Grade: 2},
		},
	}
	for _, name := range names {
		maxGrade := 20.0
		p.Students = append(p.Students, grading.ImportStudent{Name: name, MaxGrade: &maxGrade})
	}
	return p
}
