package grading

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/quickgrade/core"
)

var errMissingImportData = errors.New("missing import data")

// ImportStudent is a student as supplied by an import (scraped page, worksheet or saved document).
type ImportStudent struct {
	Name       string    `json:"name" validate:"notblank"`
	Email      string    `json:"email"`
	Grade      string    `json:"grade"`
	Feedback   string    `json:"feedback"`
	Comment    *string   `json:"comment"`
	AppliedIDs []int     `json:"appliedIds"`
	Applied    []Applied `json:"applied"`
	MaxGrade   *float64  `json:"maxGrade" validate:"omitempty,gte=0"`

	// KeepGrade keeps Grade even when snippets are applied (saved documents may hold a manual override).
	KeepGrade bool `json:"-"`

	Identifier             string `json:"identifier"`
	IDNumber               string `json:"idNumber"`
	Status                 string `json:"status"`
	GradeCanBeChanged      string `json:"gradeCanBeChanged"`
	LastModifiedSubmission string `json:"lastModifiedSubmission"`
	OnlineText             string `json:"onlineText"`
	LastModifiedGrade      string `json:"lastModifiedGrade"`
}

type ImportPayload struct {
	AssignmentName string          `json:"assignmentName" validate:"notblank"`
	Students       []ImportStudent `json:"students" validate:"required,min=1,dive"`
	FeedbackItems  []FeedbackItem  `json:"feedbackItems" validate:"omitempty,dive"`
}

func (p *ImportPayload) Validate(validate *validator.Validate) error {
	p.AssignmentName = core.CleanString(p.AssignmentName)
	for i := range p.Students {
		p.Students[i].Name = core.CleanString(p.Students[i].Name)
		p.Students[i].Email = core.CleanString(p.Students[i].Email, true /* lower */)
	}
	return validate.Struct(p)
}

// DecodeImport decodes and validates an import payload received as a JSON document.
func DecodeImport(raw []byte, validate *validator.Validate) (ImportPayload, error) {
	var p ImportPayload
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return p, core.NewValidationError(errMissingImportData)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return ImportPayload{}, core.NewValidationError(errors.Wrap(err, "malformed import payload"))
	}
	if err := p.Validate(validate); err != nil {
		return ImportPayload{}, err
	}
	return p, nil
}

// DecodeImportQuery decodes an import payload passed as a (percent-encoded) JSON URL query parameter.
func DecodeImportQuery(param string, validate *validator.Validate) (ImportPayload, error) {
	param = strings.TrimSpace(param)
	if param == "" {
		return ImportPayload{}, core.NewValidationError(errMissingImportData)
	}
	// the parameter may still be encoded once more when the extension encoded it before building the URL
	if !strings.HasPrefix(param, "{") {
		decoded, err := url.QueryUnescape(param)
		if err != nil {
			return ImportPayload{}, core.NewValidationError(errors.Wrap(err, "malformed import payload"))
		}
		param = decoded
	}
	return DecodeImport([]byte(param), validate)
}

// hydrate turns an imported student into a Student, resolving applied snippets against catalog.
func hydrate(in ImportStudent, catalog map[int]FeedbackItem, defaultMaxGrade float64) Student {
	st := Student{
		Name:                   in.Name,
		Email:                  in.Email,
		MaxGrade:               defaultMaxGrade,
		Identifier:             in.Identifier,
		IDNumber:               in.IDNumber,
		Status:                 in.Status,
		GradeCanBeChanged:      in.GradeCanBeChanged,
		LastModifiedSubmission: in.LastModifiedSubmission,
		OnlineText:             in.OnlineText,
		LastModifiedGrade:      in.LastModifiedGrade,
	}
	if in.MaxGrade != nil {
		st.MaxGrade = *in.MaxGrade
	}

	switch {
	case len(in.Applied) > 0:
		st.Applied = make([]Applied, 0, len(in.Applied))
		for _, a := range in.Applied {
			if st.appliedIndex(a.ID) < 0 {
				st.Applied = append(st.Applied, Applied{ID: a.ID, Text: core.CleanString(a.Text)})
			}
		}
	case len(in.AppliedIDs) > 0:
		st.Applied = make([]Applied, 0, len(in.AppliedIDs))
		for _, id := range in.AppliedIDs {
			if st.appliedIndex(id) >= 0 {
				continue
			}
			// stale ids are kept: they deduct nothing and render no line
			st.Applied = append(st.Applied, Applied{ID: id, Text: catalog[id].Comment})
		}
	}

	if in.Comment != nil {
		st.Comment = *in.Comment
	} else {
		st.Comment = stripApplied(in.Feedback, st.Applied)
	}

	if len(st.Applied) == 0 || in.KeepGrade {
		st.Grade = core.CleanString(in.Grade)
	} else {
		st.Grade = ComputeGrade(st.MaxGrade, st.AppliedIDs(), catalog)
	}
	return st
}

// stripApplied removes from feedback the first line matching each applied snippet text.
func stripApplied(feedback string, applied []Applied) string {
	lines := core.SplitLines(feedback)
	for _, a := range applied {
		if a.Text == "" {
			continue
		}
		for i, line := range lines {
			if strings.TrimSpace(line) == a.Text {
				lines = append(lines[:i], lines[i+1:]...)
				break
			}
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
