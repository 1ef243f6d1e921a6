package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
)

// orderable columns of the saved_documents table
var saveOrderings = map[string]bool{
	"assignment_name": true,
	"student_count":   true,
	"saved_at":        true,
}

type saveRow struct {
	ID             string    `db:"id"`
	AssignmentName string    `db:"assignment_name"`
	StudentCount   int       `db:"student_count"`
	Document       string    `db:"document"`
	SavedAt        time.Time `db:"saved_at"`
}

type saveRepository struct {
	db *sqlx.DB
}

var _ grading.Repository = (*saveRepository)(nil) // interface compliance check

func NewSaveRepository(db *sqlx.DB) *saveRepository {
	return &saveRepository{db: db}
}

// trapNoRowsErr maps sql "no rows" err to grading.ErrSaveNotFound
func (repo saveRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return grading.ErrSaveNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo saveRepository) CreateSave(ctx context.Context, doc grading.SavedDocument) (grading.SavedDocument, error) {
	if doc.ID == "" {
		return grading.SavedDocument{}, errors.New("save id is required")
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now()
	}
	doc.Timestamp = doc.Timestamp.UTC()

	data, err := json.Marshal(doc)
	if err != nil {
		return grading.SavedDocument{}, errors.Wrap(err, "encoding document")
	}

	q := repo.db.Rebind(`
		INSERT INTO saved_documents (id, assignment_name, student_count, document, saved_at)
		VALUES (?, ?, ?, ?, ?)`)
	if _, err = repo.db.ExecContext(ctx, q, doc.ID, doc.AssignmentName, len(doc.Students), string(data), doc.Timestamp); err != nil {
		return grading.SavedDocument{}, errors.Wrap(err, "inserting document")
	}
	return doc, nil
}

func (repo saveRepository) QuerySaves(ctx context.Context, filter grading.SaveFilter, orderings ...core.DBOrdering) ([]grading.SaveSummary, error) {
	var (
		q    strings.Builder
		args []interface{}
	)
	q.WriteString("SELECT id, assignment_name, student_count, saved_at FROM saved_documents")

	// saves with an assignment name matching the search keyword
	if filter.Search != "" {
		q.WriteString(" WHERE LOWER(assignment_name) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	orderList := make([]string, 0, len(orderings)+1)
	for _, ord := range orderings {
		if !saveOrderings[ord.Field] {
			return nil, core.NewValidationError(nil, core.FieldError{Field: "ordering", Error: "unknown field " + ord.Field})
		}
		orderList = append(orderList, ord.String())
	}
	orderList = append(orderList, "saved_at DESC", "id ASC")
	q.WriteString(" ORDER BY " + strings.Join(orderList, ", "))

	summaries := make([]grading.SaveSummary, 0)
	if err := repo.db.SelectContext(ctx, &summaries, repo.db.Rebind(q.String()), args...); err != nil {
		return nil, errors.Wrap(err, "querying saves")
	}
	for i := range summaries {
		summaries[i].Timestamp = summaries[i].Timestamp.UTC()
	}
	return summaries, nil
}

func (repo saveRepository) GetSave(ctx context.Context, id string) (grading.SavedDocument, error) {
	var row saveRow
	q := repo.db.Rebind("SELECT id, assignment_name, student_count, document, saved_at FROM saved_documents WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return grading.SavedDocument{}, repo.trapNoRowsErr(err, "finding save by ID")
	}

	var doc grading.SavedDocument
	if err := json.Unmarshal([]byte(row.Document), &doc); err != nil {
		return grading.SavedDocument{}, errors.Wrap(err, "decoding document")
	}
	doc.ID = row.ID
	doc.Timestamp = row.SavedAt.UTC()
	return doc, nil
}

func (repo saveRepository) DeleteSaves(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM saved_documents WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return errors.Wrap(err, "deleting saves")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return grading.ErrSaveNotFound
	}
	return nil
}
