package grading

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quickgrade/core"
)

// FeedbackItem is a reusable feedback snippet; Grade is the number of points it deducts.
type FeedbackItem struct {
	ID      int     `json:"id"`
	Comment string  `json:"comment" validate:"notblank"`
	Grade   float64 `json:"grade" validate:"gte=0"`
}

// NewFeedbackItem contains information needed to create a new FeedbackItem.
type NewFeedbackItem struct {
	Comment string  `json:"comment" validate:"notblank"`
	Grade   float64 `json:"grade" validate:"gte=0"`
}

func (nf *NewFeedbackItem) Validate(validate *validator.Validate) error {
	nf.Comment = core.CleanString(nf.Comment)
	return validate.Struct(nf)
}

// UpdateFeedbackItem defines what information may be provided to modify an existing FeedbackItem.
type UpdateFeedbackItem struct {
	Comment string  `json:"comment" validate:"notblank"`
	Grade   float64 `json:"grade" validate:"gte=0"`
}

func (uf *UpdateFeedbackItem) Validate(validate *validator.Validate) error {
	uf.Comment = core.CleanString(uf.Comment)
	return validate.Struct(uf)
}

// Applied is one application of a FeedbackItem to a Student.
// Text is the snippet comment as it was when applied (or last propagated by an edit).
type Applied struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

type Student struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Grade    string    `json:"grade"`
	Comment  string    `json:"comment"` // free-form feedback, not contributed by any snippet
	Applied  []Applied `json:"applied"`
	MaxGrade float64   `json:"maxGrade"`

	// Moodle grading worksheet columns, carried through to the export untouched.
	Identifier             string `json:"identifier"`
	IDNumber               string `json:"idNumber"`
	Status                 string `json:"status"`
	GradeCanBeChanged      string `json:"gradeCanBeChanged"`
	LastModifiedSubmission string `json:"lastModifiedSubmission"`
	OnlineText             string `json:"onlineText"`
	LastModifiedGrade      string `json:"lastModifiedGrade"`
}

// AppliedIDs returns the ids of the applied snippets, in application order.
func (s Student) AppliedIDs() []int {
	ids := make([]int, 0, len(s.Applied))
	for _, a := range s.Applied {
		ids = append(ids, a.ID)
	}
	return ids
}

// Feedback renders the feedback text: the free-form comment followed by one line per applied snippet.
func (s Student) Feedback() string {
	return renderFeedback(s.Comment, s.Applied)
}

func (s Student) appliedIndex(id int) int {
	for i, a := range s.Applied {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (s Student) value() *Value {
	return &Value{
		Grade:      s.Grade,
		Feedback:   s.Feedback(),
		Comment:    s.Comment,
		AppliedIDs: s.AppliedIDs(),
		Applied:    copyApplied(s.Applied),
	}
}

type studentJSON Student

func (s Student) MarshalJSON() ([]byte, error) {
	applied := s.Applied
	if applied == nil {
		applied = []Applied{}
	}
	out := struct {
		studentJSON
		Applied    []Applied `json:"applied"`
		Feedback   string    `json:"feedback"`
		AppliedIDs []int     `json:"appliedIds"`
	}{
		studentJSON: studentJSON(s),
		Applied:     applied,
		Feedback:    s.Feedback(),
		AppliedIDs:  s.AppliedIDs(),
	}
	return json.Marshal(out)
}

func renderFeedback(comment string, applied []Applied) string {
	lines := make([]string, 0, len(applied)+1)
	if strings.TrimSpace(comment) != "" {
		lines = append(lines, comment)
	}
	for _, a := range applied {
		if a.Text != "" {
			lines = append(lines, a.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func copyApplied(applied []Applied) []Applied {
	if applied == nil {
		return nil
	}
	cp := make([]Applied, len(applied))
	copy(cp, applied)
	return cp
}

// Change types
type ChangeType string

const (
	ChangeGrade    ChangeType = "grade"
	ChangeFeedback ChangeType = "feedback"
	ChangeImport   ChangeType = "import"
)

// Value is a Student's grading state captured by a ChangeRecord.
// grade records only set Grade.
type Value struct {
	Grade      string    `json:"grade"`
	Feedback   string    `json:"feedback,omitempty"`
	Comment    string    `json:"comment,omitempty"`
	AppliedIDs []int     `json:"appliedIds,omitempty"`
	Applied    []Applied `json:"applied,omitempty"`
}

type ChangeRecord struct {
	Type        ChangeType `json:"type"`
	StudentName string     `json:"studentName"`
	OldValue    *Value     `json:"oldValue"`
	NewValue    *Value     `json:"newValue"`
	Timestamp   time.Time  `json:"timestamp"`
	Message     string     `json:"message"`
}

// Revertible reports whether Session.Revert can undo the record.
func (r ChangeRecord) Revertible() bool {
	return (r.Type == ChangeGrade || r.Type == ChangeFeedback) && r.StudentName != "" && r.OldValue != nil
}

// SessionState is a read-only view of a grading Session.
type SessionState struct {
	ID             string         `json:"id"`
	AssignmentName string         `json:"assignmentName"`
	CreatedAt      time.Time      `json:"createdAt"`
	Students       []Student      `json:"students"`
	FeedbackItems  []FeedbackItem `json:"feedbackItems"`
	Selection      []string       `json:"selection"`
	History        []ChangeRecord `json:"history"`
}

// SavedDocument is what an explicit save persists.
type SavedDocument struct {
	ID             string         `json:"id"`
	Students       []Student      `json:"students"`
	AssignmentName string         `json:"assignmentName"`
	Timestamp      time.Time      `json:"timestamp"`
	FeedbackItems  []FeedbackItem `json:"feedbackItems"`
}

// SaveSummary describes a SavedDocument without its content.
type SaveSummary struct {
	ID             string    `json:"id" db:"id"`
	AssignmentName string    `json:"assignmentName" db:"assignment_name"`
	StudentCount   int       `json:"studentCount" db:"student_count"`
	Timestamp      time.Time `json:"timestamp" db:"saved_at"`
}

type SaveFilter struct {
	Search string `query:"search"`
}

func (sf *SaveFilter) Clean() {
	sf.Search = core.CleanString(sf.Search)
}
