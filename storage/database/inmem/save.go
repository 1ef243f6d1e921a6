package inmemdb

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
)

type saveRepository struct {
	db *saveTable
}

var _ grading.Repository = (*saveRepository)(nil) // interface compliance check

func NewSaveRepository(db *DB) *saveRepository {
	return &saveRepository{db: db.save}
}

func (repo *saveRepository) CreateSave(_ context.Context, doc grading.SavedDocument) (grading.SavedDocument, error) {
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

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.table[doc.ID]; ok {
		return grading.SavedDocument{}, errors.Errorf("save %s already exists", doc.ID)
	}
	repo.db.table[doc.ID] = saveEntry{
		summary: grading.SaveSummary{
			ID:             doc.ID,
			AssignmentName: doc.AssignmentName,
			StudentCount:   len(doc.Students),
			Timestamp:      doc.Timestamp,
		},
		document: data,
	}
	return doc, nil
}

func (repo *saveRepository) QuerySaves(_ context.Context, filter grading.SaveFilter, orderings ...core.DBOrdering) ([]grading.SaveSummary, error) {
	for _, ord := range orderings {
		switch ord.Field {
		case "assignment_name", "student_count", "saved_at":
		default:
			return nil, core.NewValidationError(nil, core.FieldError{Field: "ordering", Error: "unknown field " + ord.Field})
		}
	}

	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	search := strings.ToLower(filter.Search)
	summaries := make([]grading.SaveSummary, 0, len(repo.db.table))
	for _, entry := range repo.db.table {
		if search != "" && !strings.Contains(strings.ToLower(entry.summary.AssignmentName), search) {
			continue
		}
		summaries = append(summaries, entry.summary)
	}

	// same tie-breakers as the SQL repository: saved_at DESC, id ASC
	orders := make([]core.DBOrdering, 0, len(orderings)+1)
	orders = append(orders, orderings...)
	orders = append(orders, core.DBOrdering{Field: "saved_at"})
	sort.Slice(summaries, func(i, j int) bool {
		for _, ord := range orders {
			if c := compareSummaries(summaries[i], summaries[j], ord.Field); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return summaries[i].ID < summaries[j].ID
	})
	return summaries, nil
}

func compareSummaries(a, b grading.SaveSummary, field string) int {
	switch field {
	case "assignment_name":
		return strings.Compare(a.AssignmentName, b.AssignmentName)
	case "student_count":
		return a.StudentCount - b.StudentCount
	default:
		switch {
		case a.Timestamp.Before(b.Timestamp):
			return -1
		case a.Timestamp.After(b.Timestamp):
			return 1
		}
		return 0
	}
}

func (repo *saveRepository) GetSave(_ context.Context, id string) (grading.SavedDocument, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entry, ok := repo.db.table[id]
	if !ok {
		return grading.SavedDocument{}, grading.ErrSaveNotFound
	}
	var doc grading.SavedDocument
	if err := json.Unmarshal(entry.document, &doc); err != nil {
		return grading.SavedDocument{}, errors.Wrap(err, "decoding document")
	}
	return doc, nil
}

func (repo *saveRepository) DeleteSaves(_ context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.table[id]; ok {
			delete(repo.db.table, id)
			deleted++
		}
	}
	if deleted == 0 {
		return grading.ErrSaveNotFound
	}
	return nil
}
