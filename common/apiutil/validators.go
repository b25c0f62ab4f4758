package apiutil

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Aidin1998/pincex_points/common/errors"
)

func NewValidator() *Validator {
	validator := validator.New()
	validator.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator}
}

// Validator reports struct tag violations as an errors.ErrValidation with
// one field entry per violation, keyed by the json name.
type Validator struct {
	validator *validator.Validate
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validator.Struct(i); err != nil {
		validationErr := errors.ErrValidation.Explain("invalid request body")
		var fieldsError validator.ValidationErrors
		if errors.As(err, &fieldsError) {
			for _, fieldErr := range fieldsError {
				validationErr = validationErr.WithField(fieldErr.Tag(), fieldErr.Field(), fieldErr.Error())
			}
		}
		return validationErr
	}
	return nil
}
