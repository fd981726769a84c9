package session

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"smartnotes/internal/apperr"
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return strings.ToLower(field.Name)
		}
		return name
	})
	return v
}

func validateStruct(v *validator.Validate, op string, s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Validation(op, "", err.Error())
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, formatFieldError(fe))
	}
	return apperr.Validation(op, fieldErrs[0].Field(), strings.Join(messages, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := e.Field()
	if field == "username" {
		field = "email"
	}
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "eqfield":
		return "passwords do not match"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
