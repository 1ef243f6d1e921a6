// Package worksheet reads and writes Moodle offline grading worksheets (CSV).
package worksheet

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
)

const ContentType = "text/csv"

// Column names, in export order.
const (
	ColIdentifier             = "Identifier"
	ColFullName               = "Full name"
	ColIDNumber               = "ID number"
	ColEmail                  = "Email address"
	ColStatus                 = "Status"
	ColGrade                  = "Grade"
	ColMaxGrade               = "Maximum Grade"
	ColGradeCanBeChanged      = "Grade can be changed"
	ColLastModifiedSubmission = "Last modified (submission)"
	ColOnlineText             = "Online text"
	ColLastModifiedGrade      = "Last modified (grade)"
	ColFeedback               = "Feedback comments"
)

var Header = []string{
	ColIdentifier, ColFullName, ColIDNumber, ColEmail, ColStatus, ColGrade, ColMaxGrade,
	ColGradeCanBeChanged, ColLastModifiedSubmission, ColOnlineText, ColLastModifiedGrade, ColFeedback,
}

var (
	errEmptyWorksheet  = errors.New("empty worksheet")
	errMissingFullName = errors.Errorf("missing %q column", ColFullName)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Export writes students as a worksheet Moodle can upload back. The grade is written verbatim.
func Export(w io.Writer, students []grading.Student) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return errors.Wrap(err, "writing header")
	}
	for _, st := range students {
		record := []string{
			st.Identifier, st.Name, st.IDNumber, st.Email, st.Status, st.Grade, grading.FormatPoints(st.MaxGrade),
			st.GradeCanBeChanged, st.LastModifiedSubmission, st.OnlineText, st.LastModifiedGrade, st.Feedback(),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "writing %s", st.Name)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing worksheet")
}

// ExportBytes is Export into a buffer.
func ExportBytes(students []grading.Student) ([]byte, error) {
	var buf bytes.Buffer
	if err := Export(&buf, students); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Import parses a worksheet exported by Moodle. Columns are matched by name, in any order;
// only "Full name" is required. The payload still has to be validated.
func Import(r io.Reader, assignmentName string) (grading.ImportPayload, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return grading.ImportPayload{}, core.NewValidationError(errEmptyWorksheet)
	}
	if err != nil {
		return grading.ImportPayload{}, core.NewValidationError(errors.Wrap(err, "malformed worksheet"))
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		if i == 0 {
			name = string(bytes.TrimPrefix([]byte(name), utf8BOM))
		}
		cols[strings.ToLower(core.CleanString(name))] = i
	}
	if _, ok := cols[strings.ToLower(ColFullName)]; !ok {
		return grading.ImportPayload{}, core.NewValidationError(errMissingFullName)
	}

	p := grading.ImportPayload{AssignmentName: assignmentName}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return grading.ImportPayload{}, core.NewValidationError(errors.Wrapf(err, "malformed worksheet line %d", line))
		}

		get := func(col string) string {
			if i, ok := cols[strings.ToLower(col)]; ok && i < len(record) {
				return record[i]
			}
			return ""
		}
		if core.CleanString(get(ColFullName)) == "" {
			continue // blank line
		}

		p.Students = append(p.Students, grading.ImportStudent{
			Name:                   get(ColFullName),
			Email:                  get(ColEmail),
			Grade:                  normalizeGrade(get(ColGrade)),
			Feedback:               get(ColFeedback),
			MaxGrade:               parsePoints(get(ColMaxGrade)),
			Identifier:             get(ColIdentifier),
			IDNumber:               get(ColIDNumber),
			Status:                 get(ColStatus),
			GradeCanBeChanged:      get(ColGradeCanBeChanged),
			LastModifiedSubmission: get(ColLastModifiedSubmission),
			OnlineText:             get(ColOnlineText),
			LastModifiedGrade:      get(ColLastModifiedGrade),
		})
	}
	return p, nil
}

// parsePoints accepts both "20.00" and "20,00"; nil when s is not a number.
func parsePoints(s string) *float64 {
	s = strings.Replace(core.CleanString(s), ",", ".", 1)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return nil
	}
	return &f
}

// normalizeGrade turns Moodle's "17.00" into "17"; anything that is not a number is kept as is.
func normalizeGrade(s string) string {
	if f := parsePoints(s); f != nil {
		return grading.FormatPoints(*f)
	}
	return core.CleanString(s)
}
