package grading

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quickgrade/core"
)

var (
	uniqueNamesTag  = "uniquenames"
	uniqueNamesText = "student names must be unique"
)

// InitValidators registers the grading validations.
// core.InitValidators must have been called on validate first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(importStructValidation, ImportPayload{})
	core.RegisterCustomTranslation(validate, translator, uniqueNamesTag, uniqueNamesText)
}

// NewValidator returns a validator with core and grading validations registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

// importStructValidation checks that student names, which key the roster, are unique.
func importStructValidation(sl validator.StructLevel) {
	p, ok := sl.Current().Interface().(ImportPayload)
	if !ok {
		return
	}
	seen := make(map[string]bool, len(p.Students))
	for _, st := range p.Students {
		if st.Name == "" {
			continue
		}
		if seen[st.Name] {
			sl.ReportError(p.Students, "students", "Students", uniqueNamesTag, "")
			return
		}
		seen[st.Name] = true
	}
}
