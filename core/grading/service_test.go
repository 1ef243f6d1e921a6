package grading_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
	"github.com/trezcool/quickgrade/storage/database/inmem"
	"github.com/trezcool/quickgrade/tests"
)

func newTestService(seed ...grading.FeedbackItem) *grading.Service {
	repo := inmemdb.NewSaveRepository(inmemdb.Open())
	svc := grading.NewService(repo, core.NewTestConfig(), seed...)

	// 2s between tracked changes: nothing is deduplicated
	now := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.SetNowFunc(func() time.Time {
		now = now.Add(2 * time.Second)
		return now
	})
	return svc
}

func TestService_sessions(t *testing.T) {
	svc := newTestService()

	state, err := svc.Open(testutil.ImportPayload("Lab 1", "Alice", "Bob"))
	require.NoError(t, err)
	assert.NotEmpty(t, state.ID)

	got, err := svc.Get(state.ID)
	require.NoError(t, err)
	assert.Equal(t, state.ID, got.ID)
	assert.Len(t, got.Students, 2)

	_, err = svc.Get("unknown")
	assert.Equal(t, grading.ErrSessionNotFound, err)
	_, err = svc.SetGrade("unknown", "Bob", "10")
	assert.Equal(t, grading.ErrSessionNotFound, err)

	require.NoError(t, svc.Close(state.ID))
	assert.Equal(t, grading.ErrSessionNotFound, svc.Close(state.ID))
}

func TestService_grading(t *testing.T) {
	svc := newTestService()
	state, err := svc.Open(testutil.ImportPayload("Lab 1", "Alice", "Bob", "Carol"))
	require.NoError(t, err)
	id := state.ID

	selected, err := svc.SetSelection(id, "Bob", "Carol")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bob", "Carol"}, selected)

	changed, err := svc.ApplyFeedback(id, 1, nil)
	require.NoError(t, err)
	require.Len(t, changed, 2)
	assert.Equal(t, "17", changed[0].Grade)

	item, err := svc.AddFeedbackItem(id, grading.NewFeedbackItem{Comment: "Late", Grade: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, item.ID)

	changed, err = svc.ApplyFeedback(id, item.ID, []string{"Bob"})
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, "12", changed[0].Grade)

	_, err = svc.EditFeedbackItem(id, item.ID, grading.UpdateFeedbackItem{Comment: "Late submission", Grade: 4})
	require.NoError(t, err)
	bob, err := svc.Student(id, "Bob")
	require.NoError(t, err)
	assert.Equal(t, "13", bob.Grade)
	assert.Equal(t, "Missing header\nLate submission", bob.Feedback())

	history, err := svc.History(id)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	latest := history[0]
	assert.Equal(t, "Bob", latest.StudentName)

	bob, err = svc.Revert(id, latest.Timestamp, latest.StudentName)
	require.NoError(t, err)
	assert.Equal(t, "12", bob.Grade)
	assert.Equal(t, "Missing header\nLate", bob.Feedback())

	_, err = svc.Student(id, "Zed")
	assert.Equal(t, grading.ErrStudentNotFound, err)
}

func TestService_saveLoad(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	state, err := svc.Open(testutil.ImportPayload("Lab 1", "Alice", "Bob"))
	require.NoError(t, err)

	_, err = svc.ApplyFeedback(state.ID, 2, []string{"Alice"})
	require.NoError(t, err)
	_, err = svc.SetComment(state.ID, "Alice", "Nice work")
	require.NoError(t, err)

	doc, err := svc.Save(ctx, state.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)

	summaries, err := svc.QuerySaves(ctx, grading.SaveFilter{Search: "lab"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, doc.ID, summaries[0].ID)
	assert.Equal(t, 2, summaries[0].StudentCount)

	loaded, err := svc.Load(ctx, doc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, state.ID, loaded.ID)

	alice, err := svc.Student(loaded.ID, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "18", alice.Grade)
	assert.Equal(t, "Nice work\nTypo", alice.Feedback())

	_, err = svc.Load(ctx, "unknown")
	assert.Equal(t, grading.ErrSaveNotFound, err)

	require.NoError(t, svc.DeleteSaves(ctx, doc.ID))
	_, err = svc.GetSave(ctx, doc.ID)
	assert.Equal(t, grading.ErrSaveNotFound, err)
}

func TestService_seedCatalog(t *testing.T) {
	svc := newTestService(grading.FeedbackItem{ID: 1, Comment: "Seeded", Grade: 1})

	p := testutil.ImportPayload("Lab 1", "Alice")
	p.FeedbackItems = nil
	state, err := svc.Open(p)
	require.NoError(t, err)
	require.Len(t, state.FeedbackItems, 1)
	assert.Equal(t, "Seeded", state.FeedbackItems[0].Comment)
}

func TestService_loadEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(grading.FeedbackItem{ID: 1, Comment: "Seeded", Grade: 1})
	state, err := svc.Open(testutil.ImportPayload("Lab 1", "Alice"))
	require.NoError(t, err)
	require.NotEmpty(t, state.FeedbackItems)

	for _, item := range state.FeedbackItems {
		require.NoError(t, svc.DeleteFeedbackItem(state.ID, item.ID))
	}
	doc, err := svc.Save(ctx, state.ID)
	require.NoError(t, err)
	require.Empty(t, doc.FeedbackItems)

	loaded, err := svc.Load(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.FeedbackItems, "the seed only applies to fresh imports")
}
