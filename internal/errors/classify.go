package errors

import (
	goerrors "errors"
	"reflect"
	"strings"
)

// Classify returns a stable class name for an error, used as a metric tag and
// dead-letter alert field. AppErrors classify as their code; anything else is
// unwrapped to the innermost error and named by its concrete type.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if goerrors.As(err, &appErr) {
		return string(appErr.Code)
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

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
