package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
	"github.com/trezcool/quickgrade/storage/database/inmem"
	"github.com/trezcool/quickgrade/storage/database/sqlx"
	"github.com/trezcool/quickgrade/tests"
)

func repositories(t *testing.T) map[string]grading.Repository {
	return map[string]grading.Repository{
		"sqlite3": sqlxrepos.NewSaveRepository(testutil.OpenDB(t)),
		"memory":  inmemdb.NewSaveRepository(inmemdb.Open()),
	}
}

func summaryIDs(summaries []grading.SaveSummary) []string {
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestSaveRepository(t *testing.T) {
	ctx := context.Background()
	t1 := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	for name, repo := range repositories(t) {
		repo := repo
		t.Run(name, func(t *testing.T) {
			lab1 := testutil.CreateSave(t, repo, testutil.NewDocument("save-1", "Lab 1", t1, "Alice", "Bob"))
			testutil.CreateSave(t, repo, testutil.NewDocument("save-2", "Lab 2", t2, "Alice"))
			testutil.CreateSave(t, repo, testutil.NewDocument("save-3", "Final exam", t3, "Alice", "Bob", "Carol"))

			t.Run("get", func(t *testing.T) {
				doc, err := repo.GetSave(ctx, "save-1")
				require.NoError(t, err)
				assert.Equal(t, lab1.ID, doc.ID)
				assert.Equal(t, lab1.AssignmentName, doc.AssignmentName)
				assert.True(t, lab1.Timestamp.Equal(doc.Timestamp), "timestamp = %v; want %v", doc.Timestamp, lab1.Timestamp)
				assert.Equal(t, lab1.Students, doc.Students)
				assert.Equal(t, lab1.FeedbackItems, doc.FeedbackItems)
				assert.Equal(t, "Good\nMissing header", doc.Students[0].Feedback())

				_, err = repo.GetSave(ctx, "unknown")
				assert.Equal(t, grading.ErrSaveNotFound, err)
			})

			tests := []struct {
				name      string
				filter    grading.SaveFilter
				orderings []core.DBOrdering
				wantIDs   []string
				wantErr   bool
			}{
				{name: "newest first", wantIDs: []string{"save-3", "save-2", "save-1"}},
				{name: "search (unknown)", filter: grading.SaveFilter{Search: "lol"}, wantIDs: []string{}},
				{name: "search=LAB", filter: grading.SaveFilter{Search: "LAB"}, wantIDs: []string{"save-2", "save-1"}},
				{
					name:      "order by assignment_name",
					orderings: []core.DBOrdering{{Field: "assignment_name", Ascending: true}},
					wantIDs:   []string{"save-3", "save-1", "save-2"},
				},
				{
					name:      "order by -student_count",
					orderings: []core.DBOrdering{{Field: "student_count"}},
					wantIDs:   []string{"save-3", "save-1", "save-2"},
				},
				{
					name:      "order by saved_at",
					orderings: []core.DBOrdering{{Field: "saved_at", Ascending: true}},
					wantIDs:   []string{"save-1", "save-2", "save-3"},
				},
				{name: "unknown ordering", orderings: []core.DBOrdering{{Field: "document"}}, wantErr: true},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					summaries, err := repo.QuerySaves(ctx, tt.filter, tt.orderings...)
					if tt.wantErr {
						var verr *core.ValidationError
						assert.ErrorAs(t, err, &verr)
						return
					}
					require.NoError(t, err)
					assert.Equal(t, tt.wantIDs, summaryIDs(summaries))
				})
			}

			t.Run("summary", func(t *testing.T) {
				summaries, err := repo.QuerySaves(ctx, grading.SaveFilter{Search: "final"})
				require.NoError(t, err)
				require.Len(t, summaries, 1)
				assert.Equal(t, "Final exam", summaries[0].AssignmentName)
				assert.Equal(t, 3, summaries[0].StudentCount)
				assert.True(t, t3.Equal(summaries[0].Timestamp))
			})

			t.Run("delete", func(t *testing.T) {
				require.NoError(t, repo.DeleteSaves(ctx, "save-1", "save-2"))
				assert.Equal(t, grading.ErrSaveNotFound, repo.DeleteSaves(ctx, "save-1"))

				summaries, err := repo.QuerySaves(ctx, grading.SaveFilter{})
				require.NoError(t, err)
				assert.Equal(t, []string{"save-3"}, summaryIDs(summaries))
			})
		})
	}
}
