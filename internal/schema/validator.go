// Package schema validates documents before they are written to a store.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks struct tags on outgoing documents.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator.
func New() *Validator {
	return &Validator{v: validator.New()}
}

// Validate returns a readable error listing every failed field, or nil.
func (v *Validator) Validate(doc any) error {
	err := v.v.Struct(doc)
	if err == nil {
		return nil
	}
	return Describe(err)
}

// Describe flattens validator.ValidationErrors into one error.
func Describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s(%s=%s)", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid document: %s", strings.Join(fields, ", "))
}
