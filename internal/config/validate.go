package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vk/cleangrid/internal/errs"
	"github.com/vk/cleangrid/internal/nodeid"
)

var definitionValidate *validator.Validate

func init() {
	definitionValidate = validator.New(validator.WithRequiredStructEnabled())
	_ = definitionValidate.RegisterValidation("componentname", func(fl validator.FieldLevel) bool {
		return nodeid.ValidateName(fl.Field().String()) == nil
	})
}

// Validate checks the structural well-formedness of a definition: required
// fields, kind keywords, component names and name uniqueness. It does not
// resolve descriptors or columns.
func (d *JobDefinition) Validate() error {
	if err := definitionValidate.Struct(d); err != nil {
		return errs.Configuration(d.Name, "validate definition", describe(err))
	}

	var problems []string
	columns := make(map[string]struct{}, len(d.SourceColumns))
	for _, c := range d.SourceColumns {
		if _, dup := columns[c.Name]; dup {
			problems = append(problems, fmt.Sprintf("source column %q is declared more than once", c.Name))
		}
		columns[c.Name] = struct{}{}
	}
	names := make(map[string]struct{}, len(d.Components))
	for _, c := range d.Components {
		if _, dup := names[c.Name]; dup {
			problems = append(problems, fmt.Sprintf("component %q is declared more than once", c.Name))
		}
		names[c.Name] = struct{}{}
	}
	if len(problems) > 0 {
		return errs.Configuration(d.Name, "validate definition", errors.New(strings.Join(problems, "; ")))
	}
	return nil
}

// describe flattens validator errors into one readable error.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (got %q)", fe.Namespace(), fe.Tag(), fmt.Sprint(fe.Value())))
	}
	return errors.New(strings.Join(msgs, "; "))
}
