package grading

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quickgrade/core"
)

var (
	ErrStudentNotFound      = errors.New("student not found")
	ErrFeedbackItemNotFound = errors.New("feedback item not found")
	ErrChangeNotFound       = errors.New("change record not found")
	ErrNotRevertible        = errors.New("change record cannot be reverted")
)

type Options struct {
	HistoryLimit    int
	DedupWindow     time.Duration
	DefaultMaxGrade float64
	NowFunc         func() time.Time
}

func (o Options) now() time.Time {
	if o.NowFunc != nil {
		return o.NowFunc().UTC()
	}
	return time.Now().UTC()
}

// Session is the grading state of one assignment: roster, feedback catalog, history and selection.
// It is not safe for concurrent use; Service serializes access.
type Session struct {
	ID             string
	AssignmentName string
	CreatedAt      time.Time

	students  []Student
	index     map[string]int
	catalog   *Catalog
	history   *Tracker
	selection *Selection
	opts      Options
}

// NewSession builds a session from an import. seed is used as the catalog when the payload has none;
// pass a nil seed when reopening a saved document, whose catalog may be empty.
// History starts with a single import record.
func NewSession(id string, p ImportPayload, seed []FeedbackItem, opts Options) *Session {
	items := p.FeedbackItems
	if len(items) == 0 {
		items = seed
	}
	s := &Session{
		ID:             id,
		AssignmentName: p.AssignmentName,
		CreatedAt:      opts.now(),
		catalog:        NewCatalog(items...),
		history:        NewTracker(opts.HistoryLimit, opts.DedupWindow),
		selection:      NewSelection(),
		opts:           opts,
	}

	lookup := s.catalog.Lookup()
	students := make([]Student, 0, len(p.Students))
	for _, in := range p.Students {
		students = append(students, hydrate(in, lookup, opts.DefaultMaxGrade))
	}
	s.setStudents(students)

	s.track(&ChangeRecord{
		Type:    ChangeImport,
		Message: fmt.Sprintf("Imported %d students for %q", len(students), p.AssignmentName),
	})
	return s
}

func (s *Session) setStudents(students []Student) {
	s.students = students
	s.index = make(map[string]int, len(students))
	for i, st := range students {
		s.index[st.Name] = i
	}
}

// replaceStudent swaps in a whole new Student value; students are never mutated in place.
func (s *Session) replaceStudent(st Student) {
	i, ok := s.index[st.Name]
	if !ok {
		return
	}
	students := make([]Student, len(s.students))
	copy(students, s.students)
	students[i] = st
	s.students = students
}

// track stamps rec with the current time and adds it to the history.
func (s *Session) track(rec *ChangeRecord) bool {
	rec.Timestamp = s.opts.now()
	return s.history.Track(*rec)
}

func (s *Session) names() []string {
	names := make([]string, 0, len(s.students))
	for _, st := range s.students {
		names = append(names, st.Name)
	}
	return names
}

// State returns a snapshot of the session.
func (s *Session) State() SessionState {
	return SessionState{
		ID:             s.ID,
		AssignmentName: s.AssignmentName,
		CreatedAt:      s.CreatedAt,
		Students:       s.Students(),
		FeedbackItems:  s.catalog.Items(),
		Selection:      s.Selection(),
		History:        s.history.Records(),
	}
}

func (s *Session) Students() []Student {
	students := make([]Student, len(s.students))
	for i, st := range s.students {
		st.Applied = copyApplied(st.Applied)
		students[i] = st
	}
	return students
}

func (s *Session) Student(name string) (Student, bool) {
	i, ok := s.index[name]
	if !ok {
		return Student{}, false
	}
	st := s.students[i]
	st.Applied = copyApplied(st.Applied)
	return st, true
}

func (s *Session) FeedbackItems() []FeedbackItem { return s.catalog.Items() }

func (s *Session) History() []ChangeRecord { return s.history.Records() }

// Feedback catalog

func (s *Session) AddFeedbackItem(nf NewFeedbackItem) FeedbackItem {
	return s.catalog.Add(nf.Comment, nf.Grade)
}

// EditFeedbackItem updates a snippet and propagates the new text and deduction
// to the students who applied it, and only to them.
func (s *Session) EditFeedbackItem(id int, uf UpdateFeedbackItem) (FeedbackItem, []ChangeRecord, error) {
	old, updated, ok := s.catalog.Update(id, uf.Comment, uf.Grade)
	if !ok {
		return FeedbackItem{}, nil, ErrFeedbackItemNotFound
	}

	lookup := s.catalog.Lookup()
	var records []ChangeRecord
	for _, st := range s.students {
		i := st.appliedIndex(id)
		if i < 0 {
			continue
		}
		oldVal := st.value()
		applied := copyApplied(st.Applied)
		applied[i].Text = updated.Comment
		st.Applied = applied
		st.Grade = ComputeGrade(st.MaxGrade, st.AppliedIDs(), lookup)
		s.replaceStudent(st)

		rec := ChangeRecord{
			Type:        ChangeFeedback,
			StudentName: st.Name,
			OldValue:    oldVal,
			NewValue:    st.value(),
			Message:     fmt.Sprintf("Updated feedback %q (-%s) to %q (-%s)", old.Comment, FormatPoints(old.Grade), updated.Comment, FormatPoints(updated.Grade)),
		}
		s.track(&rec)
		records = append(records, rec)
	}
	return updated, records, nil
}

// DeleteFeedbackItem removes a snippet from the catalog and from every student who applied it.
// Its id becomes available for the next AddFeedbackItem.
func (s *Session) DeleteFeedbackItem(id int) ([]ChangeRecord, error) {
	item, ok := s.catalog.Get(id)
	if !ok {
		return nil, ErrFeedbackItemNotFound
	}
	s.catalog.Delete(id)

	lookup := s.catalog.Lookup()
	var records []ChangeRecord
	for _, st := range s.students {
		i := st.appliedIndex(id)
		if i < 0 {
			continue
		}
		oldVal := st.value()
		st.Applied = removeApplied(st.Applied, i)
		st.Grade = ComputeGrade(st.MaxGrade, st.AppliedIDs(), lookup)
		s.replaceStudent(st)

		rec := ChangeRecord{
			Type:        ChangeFeedback,
			StudentName: st.Name,
			OldValue:    oldVal,
			NewValue:    st.value(),
			Message:     fmt.Sprintf("Deleted feedback %q (-%s)", item.Comment, FormatPoints(item.Grade)),
		}
		s.track(&rec)
		records = append(records, rec)
	}
	s.forgetApplied(id)
	return records, nil
}

// forgetApplied drops id from the values captured by the history, so that reverting
// an older record cannot bring back an application of a freed (and maybe reused) id.
func (s *Session) forgetApplied(id int) {
	lookup := s.catalog.Lookup()
	scrub := func(name string, v *Value) *Value {
		if v == nil {
			return nil
		}
		st := Student{Comment: v.Comment, Applied: v.Applied}
		i := st.appliedIndex(id)
		if i < 0 {
			return v
		}
		if idx, ok := s.index[name]; ok {
			st.MaxGrade = s.students[idx].MaxGrade
		}
		st.Applied = removeApplied(st.Applied, i)
		st.Grade = ComputeGrade(st.MaxGrade, st.AppliedIDs(), lookup)
		return st.value()
	}
	s.history.Rewrite(func(rec ChangeRecord) ChangeRecord {
		rec.OldValue = scrub(rec.StudentName, rec.OldValue)
		rec.NewValue = scrub(rec.StudentName, rec.NewValue)
		return rec
	})
}

// ReorderFeedbackItems sets the display order of the catalog.
// The change is logged as a feedback record without a student, so it cannot be reverted.
func (s *Session) ReorderFeedbackItems(ids []int) (ChangeRecord, error) {
	if err := s.catalog.Reorder(ids); err != nil {
		return ChangeRecord{}, err
	}
	rec := ChangeRecord{
		Type:    ChangeFeedback,
		Message: fmt.Sprintf("Reordered %d feedback items", len(ids)),
	}
	s.track(&rec)
	return rec, nil
}

// Feedback application

// ApplyFeedback toggles a snippet on each target student: it is removed where already applied
// and appended otherwise. An empty targets list means the current selection.
// Unknown student names are ignored.
func (s *Session) ApplyFeedback(id int, targets []string) ([]ChangeRecord, error) {
	item, ok := s.catalog.Get(id)
	if !ok {
		return nil, ErrFeedbackItemNotFound
	}
	if len(targets) == 0 {
		targets = s.Selection()
	}

	lookup := s.catalog.Lookup()
	done := make(map[string]bool, len(targets))
	var records []ChangeRecord
	for _, name := range targets {
		name = core.CleanString(name)
		idx, ok := s.index[name]
		if !ok || done[name] {
			continue
		}
		done[name] = true

		st := s.students[idx]
		oldVal := st.value()
		var msg string
		if i := st.appliedIndex(id); i >= 0 {
			st.Applied = removeApplied(st.Applied, i)
			msg = fmt.Sprintf("Removed %q (-%s) from %s", item.Comment, FormatPoints(item.Grade), name)
		} else {
			applied := make([]Applied, 0, len(st.Applied)+1)
			applied = append(applied, st.Applied...)
			st.Applied = append(applied, Applied{ID: id, Text: item.Comment})
			msg = fmt.Sprintf("Applied %q (-%s) to %s", item.Comment, FormatPoints(item.Grade), name)
		}
		st.Grade = ComputeGrade(st.MaxGrade, st.AppliedIDs(), lookup)
		s.replaceStudent(st)

		rec := ChangeRecord{
			Type:        ChangeFeedback,
			StudentName: name,
			OldValue:    oldVal,
			NewValue:    st.value(),
			Message:     msg,
		}
		s.track(&rec)
		records = append(records, rec)
	}
	return records, nil
}

// Manual edits

// SetGrade overrides a student's grade. The next recomputation replaces it.
func (s *Session) SetGrade(name, grade string) (ChangeRecord, error) {
	st, ok := s.Student(core.CleanString(name))
	if !ok {
		return ChangeRecord{}, ErrStudentNotFound
	}
	grade = core.CleanString(grade)
	rec := ChangeRecord{
		Type:        ChangeGrade,
		StudentName: st.Name,
		OldValue:    &Value{Grade: st.Grade},
		NewValue:    &Value{Grade: grade},
		Message:     fmt.Sprintf("Grade of %s changed from %q to %q", st.Name, st.Grade, grade),
	}
	st.Grade = grade
	s.replaceStudent(st)
	s.track(&rec)
	return rec, nil
}

// SetComment replaces the free-form part of a student's feedback.
func (s *Session) SetComment(name, comment string) (ChangeRecord, error) {
	st, ok := s.Student(core.CleanString(name))
	if !ok {
		return ChangeRecord{}, ErrStudentNotFound
	}
	oldVal := st.value()
	st.Comment = strings.TrimSpace(comment)
	s.replaceStudent(st)
	rec := ChangeRecord{
		Type:        ChangeFeedback,
		StudentName: st.Name,
		OldValue:    oldVal,
		NewValue:    st.value(),
		Message:     fmt.Sprintf("Feedback comment of %s edited", st.Name),
	}
	s.track(&rec)
	return rec, nil
}

// Undo

// Revert restores the state recorded in the old value of the record tracked at ts for studentName,
// then removes that record (and only that one) from the history. Reverting is not itself tracked.
func (s *Session) Revert(ts time.Time, studentName string) error {
	rec, ok := s.history.Find(ts, studentName)
	if !ok {
		return ErrChangeNotFound
	}
	if !rec.Revertible() {
		return ErrNotRevertible
	}
	st, ok := s.Student(rec.StudentName)
	if !ok {
		return ErrStudentNotFound
	}

	switch rec.Type {
	case ChangeGrade:
		st.Grade = rec.OldValue.Grade
	case ChangeFeedback:
		st.Grade = rec.OldValue.Grade
		st.Comment = rec.OldValue.Comment
		st.Applied = copyApplied(rec.OldValue.Applied)
	}
	s.replaceStudent(st)
	s.history.Remove(rec.Timestamp, rec.StudentName)
	return nil
}

// Selection

func (s *Session) Selection() []string {
	return s.selection.Ordered(s.names())
}

func (s *Session) Select(names ...string) []string {
	for _, name := range names {
		if name = core.CleanString(name); s.hasStudent(name) {
			s.selection.Add(name)
		}
	}
	return s.Selection()
}

func (s *Session) Deselect(names ...string) []string {
	for _, name := range names {
		s.selection.Remove(core.CleanString(name))
	}
	return s.Selection()
}

// SetSelection replaces the selection with names.
func (s *Session) SetSelection(names ...string) []string {
	s.selection.Clear()
	return s.Select(names...)
}

func (s *Session) ToggleSelection(name string) []string {
	if name = core.CleanString(name); s.hasStudent(name) {
		s.selection.Toggle(name)
	}
	return s.Selection()
}

func (s *Session) SelectAll() []string {
	return s.Select(s.names()...)
}

func (s *Session) ClearSelection() {
	s.selection.Clear()
}

func (s *Session) hasStudent(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Save/Load

// Document returns what an explicit save persists.
func (s *Session) Document() SavedDocument {
	return SavedDocument{
		Students:       s.Students(),
		AssignmentName: s.AssignmentName,
		Timestamp:      s.opts.now(),
		FeedbackItems:  s.catalog.Items(),
	}
}

// DocumentPayload converts a saved document back into an import payload.
func DocumentPayload(doc SavedDocument) ImportPayload {
	p := ImportPayload{
		AssignmentName: doc.AssignmentName,
		Students:       make([]ImportStudent, 0, len(doc.Students)),
		FeedbackItems:  doc.FeedbackItems,
	}
	for _, st := range doc.Students {
		comment := st.Comment
		maxGrade := st.MaxGrade
		in := ImportStudent{
			Name:                   st.Name,
			Email:                  st.Email,
			Grade:                  st.Grade,
			Comment:                &comment,
			Applied:                copyApplied(st.Applied),
			MaxGrade:               &maxGrade,
			KeepGrade:              true,
			Identifier:             st.Identifier,
			IDNumber:               st.IDNumber,
			Status:                 st.Status,
			GradeCanBeChanged:      st.GradeCanBeChanged,
			LastModifiedSubmission: st.LastModifiedSubmission,
			OnlineText:             st.OnlineText,
			LastModifiedGrade:      st.LastModifiedGrade,
		}
		p.Students = append(p.Students, in)
	}
	return p
}

func removeApplied(applied []Applied, i int) []Applied {
	out := make([]Applied, 0, len(applied)-1)
	out = append(out, applied[:i]...)
	return append(out, applied[i+1:]...)
}
