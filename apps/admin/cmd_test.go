package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
	"github.com/trezcool/quickgrade/services/catalogfile"
	"github.com/trezcool/quickgrade/storage/database/sqlx"
	"github.com/trezcool/quickgrade/tests"
)

var saveRepo grading.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	// set up DB & repos
	db := testutil.OpenDB(t)
	saveRepo = sqlxrepos.NewSaveRepository(db)

	// start CLI
	out := new(bytes.Buffer)
	return &commandLine{
		db:       db,
		svc:      grading.NewService(saveRepo, core.NewTestConfig()),
		validate: grading.NewValidator(core.NewTranslator()),
		in:       strings.NewReader(""),
		out:      out,
	}, out
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"saves", "-lol"}, wantErr: errHelp},
		{name: "export: no save", args: []string{"export"}, wantErr: errHelp},
		{name: "catalog: no save", args: []string{"catalog", "-out", "catalog.yaml"}, wantErr: errHelp},
		{name: "import: no csv", args: []string{"import", "-assignment", "Lab 1"}, wantErr: errHelp},
		{name: "import: no assignment", args: []string{"import", "-csv", "grades.csv"}, wantErr: errHelp},
		{name: "delete: no save", args: []string{"delete", "-yes"}, wantErr: errHelp},
		{name: "migrate (idempotent)", args: []string{"migrate"}},
	}
	runCLITests(t, cli, tests)
}

func Test_commandLine_saves(t *testing.T) {
	cli, out := setup(t)

	t0 := time.Date(2021, 3, 1, 9, 0, 0, 0, time.UTC)
	testutil.CreateSave(t, saveRepo, testutil.NewDocument("s1", "Lab 1", t0, "Alice", "Bob"))
	testutil.CreateSave(t, saveRepo, testutil.NewDocument("s2", "Final exam", t0.Add(time.Hour), "Alice"))

	require.NoError(t, cli.run([]string{"admin", "saves"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.True(t, strings.HasPrefix(lines[1], "s2"), "newest first")
	assert.Contains(t, lines[2], "Lab 1")
	assert.Contains(t, lines[2], "2021-03-01T09:00:00Z")

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "saves", "-search", "EXAM"}))
	lines = strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "s2"))

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "saves", "-ordering", "-student_count"}))
	lines = strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "s1"))

	err := cli.run([]string{"admin", "saves", "-ordering", "document"})
	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func Test_commandLine_export(t *testing.T) {
	cli, out := setup(t)
	testutil.CreateSave(t, saveRepo, testutil.NewDocument("s1", "Lab 1", time.Now(), "Alice", "Bob"))

	runCLITests(t, cli, []cliTest{
		{name: "unknown save", args: []string{"export", "-save", "lol"}, wantErr: grading.ErrSaveNotFound},
		{name: "unknown catalog save", args: []string{"catalog", "-save", "lol"}, wantErr: grading.ErrSaveNotFound},
	})

	path := filepath.Join(t.TempDir(), "grades.csv")
	require.NoError(t, cli.run([]string{"admin", "export", "-save", "s1", "-out", path}))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Alice", records[1][1])
	assert.Equal(t, "17", records[1][5])
	assert.Equal(t, "Good\nMissing header", records[1][11])

	out.Reset()
	require.NoError(t, cli.run([]string{"admin", "catalog", "-save", "s1"}))
	items, err := catalogfile.Read(out)
	require.NoError(t, err)
	assert.Equal(t, []grading.FeedbackItem{
		{ID: 1, Comment: "Missing header", Grade: 3},
		{ID: 2, Comment: "Typo", Grade: 2},
	}, items)
}

func Test_commandLine_import(t *testing.T) {
	cli, out := setup(t)
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "grades.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(
		"Identifier,Full name,Email address,Grade,Maximum Grade,Feedback comments\n"+
			"Participant 1,Alice Doe,alice@test.cd,15.00,20.00,Well done\n"+
			"Participant 2,Bob Roe,bob@test.cd,,20.00,\n",
	), 0o600))
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte("- comment: Missing header\n  grade: 3\n- comment: Typo\n  grade: 0.5\n"), 0o600))
	badCatalogPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badCatalogPath, []byte("- comment: ''\n  grade: 1\n"), 0o600))

	var verr *core.ValidationError
	err := cli.run([]string{"admin", "import", "-csv", csvPath, "-assignment", "Lab 1", "-catalog", badCatalogPath})
	assert.ErrorAs(t, err, &verr)

	err = cli.run([]string{"admin", "import", "-csv", filepath.Join(dir, "missing.csv"), "-assignment", "Lab 1"})
	assert.Error(t, err)

	require.NoError(t, cli.run([]string{"admin", "import", "-csv", csvPath, "-assignment", " Lab 1 ", "-catalog", catalogPath}))
	assert.Contains(t, out.String(), `2 students of "Lab 1" saved as `)

	saves, err := saveRepo.QuerySaves(context.Background(), grading.SaveFilter{})
	require.NoError(t, err)
	require.Len(t, saves, 1)
	assert.Equal(t, "Lab 1", saves[0].AssignmentName)
	assert.Equal(t, 2, saves[0].StudentCount)

	doc, err := saveRepo.GetSave(context.Background(), saves[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "15", doc.Students[0].Grade)
	assert.Equal(t, "Well done", doc.Students[0].Comment)
	assert.Equal(t, []grading.FeedbackItem{
		{ID: 1, Comment: "Missing header", Grade: 3},
		{ID: 2, Comment: "Typo", Grade: 0.5},
	}, doc.FeedbackItems)
}

func Test_commandLine_delete(t *testing.T) {
	cli, _ := setup(t)
	for _, id := range []string{"s1", "s2", "s3"} {
		testutil.CreateSave(t, saveRepo, testutil.NewDocument(id, "Lab 1", time.Now(), "Alice"))
	}

	tests := []struct {
		cliTest
		terminal bool
		input    string
		deleted  string
	}{
		{cliTest: cliTest{name: "not a terminal", args: []string{"delete", "-save", "s1"}, wantErr: errNotDelete}},
		{
			cliTest:  cliTest{name: "declined", args: []string{"delete", "-save", "s1"}, wantErr: errNotDelete},
			terminal: true, input: "n\n",
		},
		{
			cliTest:  cliTest{name: "confirmed", args: []string{"delete", "-save", "s1"}},
			terminal: true, input: "Y\n", deleted: "s1",
		},
		{cliTest: cliTest{name: "-yes", args: []string{"delete", "-save", "s2", "-yes"}}, deleted: "s2"},
		{cliTest: cliTest{name: "unknown save", args: []string{"delete", "-save", "s2", "-yes"}, wantErr: grading.ErrSaveNotFound}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		terminal := tt.terminal
		isTerminalFunc = func(fd int) bool { return terminal }
		cli.in = strings.NewReader(tt.input)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			_, err = saveRepo.GetSave(context.Background(), tt.deleted)
			assert.Equal(t, grading.ErrSaveNotFound, err)
		})
	}

	_, err := saveRepo.GetSave(context.Background(), "s3")
	assert.NoError(t, err, "other saves are kept")
}
