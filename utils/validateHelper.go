package utils

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct runs the `validate` tags of an input struct and converts the
// first failure into a ValidationError so callers see the domain taxonomy
// instead of validator internals.
func ValidateStruct(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return &ValidationError{Field: f.Field(), Reason: "failed rule '" + f.Tag() + "'"}
	}
	return err
}
