package grading

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/quickgrade/core"
)

var (
	ErrSessionNotFound = errors.New("grading session not found")
	ErrSaveNotFound    = errors.New("saved document not found")
)

type (
	Repository interface {
		CreateSave(ctx context.Context, doc SavedDocument) (SavedDocument, error)
		// QuerySaves applies a case-insensitive match of SaveFilter.Search on the assignment name.
		QuerySaves(ctx context.Context, filter SaveFilter, orderings ...core.DBOrdering) ([]SaveSummary, error)
		GetSave(ctx context.Context, id string) (SavedDocument, error)
		DeleteSaves(ctx context.Context, ids ...string) error
	}

	// Service owns the live grading sessions. Every session operation runs under a single lock,
	// so a mutation is fully applied (roster, grades and history) before the next one starts.
	Service struct {
		repo     Repository
		opts     Options
		seed     []FeedbackItem
		mu       sync.Mutex
		sessions map[string]*Session
	}
)

func NewService(repo Repository, conf *core.Config, seed ...FeedbackItem) *Service {
	return &Service{
		repo: repo,
		opts: Options{
			HistoryLimit:    conf.Grading.HistoryLimit,
			DedupWindow:     conf.Grading.DedupWindow,
			DefaultMaxGrade: conf.Grading.DefaultMaxGrade,
		},
		seed:     seed,
		sessions: make(map[string]*Session),
	}
}

// SetNowFunc replaces the clock used by sessions opened afterwards.
func (svc *Service) SetNowFunc(now func() time.Time) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.opts.NowFunc = now
}

func (svc *Service) withSession(id string, fn func(s *Session) error) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s, ok := svc.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(s)
}

// Sessions

// Open starts a new session from a validated import payload.
func (svc *Service) Open(p ImportPayload) (SessionState, error) {
	return svc.open(p, svc.seed), nil
}

func (svc *Service) open(p ImportPayload, seed []FeedbackItem) SessionState {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	s := NewSession(uuid.New().String(), p, seed, svc.opts)
	svc.sessions[s.ID] = s
	return s.State()
}

func (svc *Service) Get(id string) (SessionState, error) {
	var state SessionState
	err := svc.withSession(id, func(s *Session) error {
		state = s.State()
		return nil
	})
	return state, err
}

func (svc *Service) Close(id string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if _, ok := svc.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(svc.sessions, id)
	return nil
}

func (svc *Service) Student(id, name string) (Student, error) {
	var st Student
	err := svc.withSession(id, func(s *Session) error {
		var ok bool
		if st, ok = s.Student(core.CleanString(name)); !ok {
			return ErrStudentNotFound
		}
		return nil
	})
	return st, err
}

// Feedback catalog

func (svc *Service) FeedbackItems(id string) ([]FeedbackItem, error) {
	var items []FeedbackItem
	err := svc.withSession(id, func(s *Session) error {
		items = s.FeedbackItems()
		return nil
	})
	return items, err
}

func (svc *Service) AddFeedbackItem(id string, nf NewFeedbackItem) (FeedbackItem, error) {
	var item FeedbackItem
	err := svc.withSession(id, func(s *Session) error {
		item = s.AddFeedbackItem(nf)
		return nil
	})
	return item, err
}

func (svc *Service) EditFeedbackItem(id string, itemID int, uf UpdateFeedbackItem) (FeedbackItem, error) {
	var item FeedbackItem
	err := svc.withSession(id, func(s *Session) (err error) {
		item, _, err = s.EditFeedbackItem(itemID, uf)
		return err
	})
	return item, err
}

func (svc *Service) DeleteFeedbackItem(id string, itemID int) error {
	return svc.withSession(id, func(s *Session) error {
		_, err := s.DeleteFeedbackItem(itemID)
		return err
	})
}

func (svc *Service) ReorderFeedbackItems(id string, ids []int) ([]FeedbackItem, error) {
	var items []FeedbackItem
	err := svc.withSession(id, func(s *Session) error {
		if _, err := s.ReorderFeedbackItems(ids); err != nil {
			return err
		}
		items = s.FeedbackItems()
		return nil
	})
	return items, err
}

// ApplyFeedback toggles a snippet on the targeted students (the selection when empty)
// and returns the students it changed.
func (svc *Service) ApplyFeedback(id string, itemID int, targets []string) ([]Student, error) {
	var students []Student
	err := svc.withSession(id, func(s *Session) error {
		records, err := s.ApplyFeedback(itemID, targets)
		if err != nil {
			return err
		}
		students = make([]Student, 0, len(records))
		for _, rec := range records {
			if st, ok := s.Student(rec.StudentName); ok {
				students = append(students, st)
			}
		}
		return nil
	})
	return students, err
}

// Manual edits

func (svc *Service) SetGrade(id, name, grade string) (Student, error) {
	var st Student
	err := svc.withSession(id, func(s *Session) error {
		rec, err := s.SetGrade(name, grade)
		if err != nil {
			return err
		}
		st, _ = s.Student(rec.StudentName)
		return nil
	})
	return st, err
}

func (svc *Service) SetComment(id, name, comment string) (Student, error) {
	var st Student
	err := svc.withSession(id, func(s *Session) error {
		rec, err := s.SetComment(name, comment)
		if err != nil {
			return err
		}
		st, _ = s.Student(rec.StudentName)
		return nil
	})
	return st, err
}

// Selection

func (svc *Service) Selection(id string) ([]string, error) {
	var names []string
	err := svc.withSession(id, func(s *Session) error {
		names = s.Selection()
		return nil
	})
	return names, err
}

func (svc *Service) SetSelection(id string, names ...string) ([]string, error) {
	var selected []string
	err := svc.withSession(id, func(s *Session) error {
		selected = s.SetSelection(names...)
		return nil
	})
	return selected, err
}

func (svc *Service) ToggleSelection(id, name string) ([]string, error) {
	var selected []string
	err := svc.withSession(id, func(s *Session) error {
		selected = s.ToggleSelection(name)
		return nil
	})
	return selected, err
}

func (svc *Service) ClearSelection(id string) error {
	return svc.withSession(id, func(s *Session) error {
		s.ClearSelection()
		return nil
	})
}

// History

func (svc *Service) History(id string) ([]ChangeRecord, error) {
	var records []ChangeRecord
	err := svc.withSession(id, func(s *Session) error {
		records = s.History()
		return nil
	})
	return records, err
}

func (svc *Service) Revert(id string, ts time.Time, studentName string) (Student, error) {
	var st Student
	err := svc.withSession(id, func(s *Session) error {
		if err := s.Revert(ts, studentName); err != nil {
			return err
		}
		st, _ = s.Student(studentName)
		return nil
	})
	return st, err
}

// Save/Load

// Document returns the save document of a live session without persisting it.
func (svc *Service) Document(id string) (SavedDocument, error) {
	var doc SavedDocument
	err := svc.withSession(id, func(s *Session) error {
		doc = s.Document()
		return nil
	})
	return doc, err
}

func (svc *Service) Save(ctx context.Context, id string) (SavedDocument, error) {
	doc, err := svc.Document(id)
	if err != nil {
		return SavedDocument{}, err
	}
	doc.ID = uuid.New().String()
	doc, err = svc.repo.CreateSave(ctx, doc)
	if err != nil {
		return SavedDocument{}, errors.Wrap(err, "creating save")
	}
	return doc, nil
}

// Load opens a new live session from a saved document. The saved catalog is restored as is, even when empty.
func (svc *Service) Load(ctx context.Context, saveID string) (SessionState, error) {
	doc, err := svc.repo.GetSave(ctx, saveID)
	if err != nil {
		return SessionState{}, err
	}
	return svc.open(DocumentPayload(doc), nil), nil
}

func (svc *Service) QuerySaves(ctx context.Context, filter SaveFilter, orderings ...core.DBOrdering) ([]SaveSummary, error) {
	return svc.repo.QuerySaves(ctx, filter, orderings...)
}

func (svc *Service) GetSave(ctx context.Context, saveID string) (SavedDocument, error) {
	return svc.repo.GetSave(ctx, saveID)
}

func (svc *Service) DeleteSaves(ctx context.Context, saveIDs ...string) error {
	return svc.repo.DeleteSaves(ctx, saveIDs...)
}
