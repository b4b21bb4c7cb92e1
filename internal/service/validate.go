package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/target/prospector/internal/errors"
)

// requestValidator checks request structs against their validate tags and
// reports failures by JSON field name.
var requestValidator = newRequestValidator()

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest returns a validation AppError naming the first offending field.
func validateRequest(req any) error {
	err := requestValidator.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid request")
	}
	fe := verrs[0]
	field := fieldPath(fe)
	return apperrors.ValidationField(field, describe(field, fe))
}

// fieldPath strips the struct name from the namespace, e.g.
// "AddContactsRequest.contacts[0].type" becomes "contacts[0].type".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	if fe.Field() != "" {
		return fe.Field()
	}
	return fe.StructField()
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be an absolute URL", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", field, fe.Tag())
	}
}
