package echoapi_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quickgrade/core/grading"
	"github.com/trezcool/quickgrade/tests"
)

func Test_saveApi_query(t *testing.T) {
	app := setup(t)

	path := func(search, ordering string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		return "/v1/saves?" + v.Encode()
	}
	summaries := func(docs ...grading.SavedDocument) []byte {
		list := make([]grading.SaveSummary, 0, len(docs))
		for _, doc := range docs {
			list = append(list, grading.SaveSummary{
				ID:             doc.ID,
				AssignmentName: doc.AssignmentName,
				StudentCount:   len(doc.Students),
				Timestamp:      doc.Timestamp,
			})
		}
		return marchallObj(t, list)
	}

	t0 := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	lab1 := testutil.CreateSave(t, app.repo, testutil.NewDocument("s1", "Lab 1", t0, "Alice", "Bob"))
	lab2 := testutil.CreateSave(t, app.repo, testutil.NewDocument("s2", "Lab 2", t0.Add(time.Hour), "Alice"))
	exam := testutil.CreateSave(t, app.repo, testutil.NewDocument("s3", "Final exam", t0.Add(2*time.Hour), "Alice", "Bob", "Carol"))

	tests := []httpTest{
		{name: "Get all (newest first)", path: "/v1/saves", wantData: summaries(exam, lab2, lab1)},
		{name: "search (unknown)", path: path("lol", ""), wantData: []byte(`[]`)},
		{name: "search=LAB", path: path("LAB", ""), wantData: summaries(lab2, lab1)},
		{name: "order by assignment_name", path: path("", "assignment_name"), wantData: summaries(exam, lab1, lab2)},
		{name: "order by -student_count", path: path("", "-student_count"), wantData: summaries(exam, lab1, lab2)},
		{name: "order by saved_at", path: path("", "saved_at"), wantData: summaries(lab1, lab2, exam)},
		{name: "search & ordering", path: path("lab", "-assignment_name"), wantData: summaries(lab2, lab1)},
		{
			name: "unknown ordering", path: path("", "document"), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"ordering": "unknown field document"}`),
		},
	}
	runTests(t, app, tests)
}

func Test_saveApi_retrieveAndDestroy(t *testing.T) {
	app := setup(t)
	doc := testutil.CreateSave(t, app.repo, testutil.NewDocument("s1", "Lab 1", time.Now().UTC(), "Alice"))
	notFound := marchallObj(t, httpErr{Error: grading.ErrSaveNotFound.Error()})

	tests := []httpTest{
		{name: "unknown save", path: "/v1/saves/unknown", wantCode: http.StatusNotFound, wantData: notFound},
		{name: "retrieved", path: "/v1/saves/" + doc.ID, wantData: marchallObj(t, doc)},
		{name: "destroyed", method: http.MethodDelete, path: "/v1/saves/" + doc.ID, wantCode: http.StatusNoContent},
		{name: "gone", path: "/v1/saves/" + doc.ID, wantCode: http.StatusNotFound, wantData: notFound},
		{name: "destroy twice", method: http.MethodDelete, path: "/v1/saves/" + doc.ID, wantCode: http.StatusNotFound, wantData: notFound},
	}
	runTests(t, app, tests)
}

func Test_saveApi_load(t *testing.T) {
	app := setup(t)
	id := openSession(t, app, "Alice", "Bob")
	_, err := app.svc.ApplyFeedback(id, 2, []string{"Bob"})
	require.NoError(t, err)
	_, err = app.svc.SetComment(id, "Alice", "Well done")
	require.NoError(t, err)

	rec := app.do(http.MethodPost, "/v1/sessions/"+id+"/save")
	require.Equal(t, http.StatusCreated, rec.Code)
	var summary grading.SaveSummary
	unmarshallObj(t, rec, &summary)

	rec = app.do(http.MethodPost, "/v1/saves/"+summary.ID+"/load")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var state grading.SessionState
	unmarshallObj(t, rec, &state)
	assert.NotEqual(t, id, state.ID, "loading opens a new session")
	assert.Equal(t, "Lab 1: Loops", state.AssignmentName)
	require.Len(t, state.Students, 2)
	assert.Equal(t, "Well done", state.Students[0].Comment)
	assert.Equal(t, "18", state.Students[1].Grade)
	assert.Equal(t, []grading.Applied{{ID: 2, Text: "Typo"}}, state.Students[1].Applied)
	require.Len(t, state.History, 1)
	assert.Equal(t, grading.ChangeImport, state.History[0].Type)

	rec = app.do(http.MethodPost, "/v1/saves/unknown/load")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
