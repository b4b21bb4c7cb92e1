// Package errors maps errors to low-cardinality labels for metrics and logs.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/target/prospector/internal/errors"
)

// Classify returns a normalized error class suitable for metric labels.
// Application errors are labeled by code; anything else by the innermost
// concrete type, in snake_case.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}
	if code := apperrors.GetCode(err); code != "" {
		return "app_" + string(code)
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
