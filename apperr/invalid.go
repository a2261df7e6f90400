package apperr

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Invalid turns a binding or struct validation failure into a validation
// error whose message names the first offending field.
func Invalid(err error) *Error {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return Wrap(KindValidation, "Invalid request body", err)
	}
	return Wrap(KindValidation, fieldMessage(fields[0]), err)
}

// JSONFieldName reports fields by their json name so validation messages
// match the request body. Register it with RegisterTagNameFunc.
func JSONFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	unit := "items"
	if fe.Kind() == reflect.String {
		unit = "characters"
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return name + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s %s", name, fe.Param(), unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s %s", name, fe.Param(), unit)
	}
	return name + " is invalid"
}
