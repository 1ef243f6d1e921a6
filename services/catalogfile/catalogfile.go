// Package catalogfile reads and writes feedback catalogs as YAML, used to seed new sessions.
//
//	- comment: Missing header
//	  grade: 3
//	- comment: Typo
//	  grade: 0.5
package catalogfile

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
)

type entry struct {
	ID      int     `yaml:"id,omitempty"`
	Comment string  `yaml:"comment"`
	Grade   float64 `yaml:"grade"`
}

// Read decodes a catalog. Entries with a blank comment or a negative grade are rejected.
func Read(r io.Reader) ([]grading.FeedbackItem, error) {
	var entries []entry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil && err != io.EOF {
		return nil, core.NewValidationError(errors.Wrap(err, "malformed catalog"))
	}

	items := make([]grading.FeedbackItem, 0, len(entries))
	for i, e := range entries {
		e.Comment = core.CleanString(e.Comment)
		if e.Comment == "" {
			return nil, core.NewValidationError(errors.Errorf("catalog entry %d: blank comment", i+1))
		}
		if e.Grade < 0 {
			return nil, core.NewValidationError(errors.Errorf("catalog entry %d: negative grade", i+1))
		}
		items = append(items, grading.FeedbackItem{ID: e.ID, Comment: e.Comment, Grade: e.Grade})
	}
	return items, nil
}

// Write encodes items, keeping their ids.
func Write(w io.Writer, items []grading.FeedbackItem) error {
	entries := make([]entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, entry{ID: item.ID, Comment: item.Comment, Grade: item.Grade})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return errors.Wrap(err, "encoding catalog")
	}
	return errors.Wrap(enc.Close(), "encoding catalog")
}

// Load reads the catalog file at path. An empty path means no seed.
func Load(path string) ([]grading.FeedbackItem, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening catalog")
	}
	defer func() { _ = f.Close() }()

	items, err := Read(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return items, nil
}
