// Package apperror defines the operational error type returned to API callers.
package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Error is an anticipated, caller-facing failure. Its Message is safe to return.
type Error struct {
	Status      int
	Message     string
	Operational bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message, Operational: true}
}

func Newf(status int, format string, args ...any) *Error {
	return New(status, fmt.Sprintf(format, args...))
}

func BadRequest(format string, args ...any) *Error {
	return Newf(http.StatusBadRequest, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return Newf(http.StatusNotFound, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return Newf(http.StatusUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return Newf(http.StatusForbidden, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return Newf(http.StatusConflict, format, args...)
}

func TooManyRequests(message string) *Error {
	return New(http.StatusTooManyRequests, message)
}

// Internal wraps an unexpected failure; its message is never shown in production.
func Internal(err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: "Something went wrong!", Err: err}
}

// As extracts an *Error from err, classifying anything else as internal.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// FromValidation turns a request binding failure into a single 400 whose message
// lists every violation. A body cut off by http.MaxBytesReader becomes a 413.
func FromValidation(err error) *Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return &Error{Status: http.StatusBadRequest, Message: strings.Join(msgs, ", "), Operational: true, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return &Error{Status: http.StatusRequestEntityTooLarge, Message: "Request body too large", Operational: true, Err: err}
	case errors.As(err, &syntaxErr):
		return &Error{Status: http.StatusBadRequest, Message: "Malformed JSON body", Operational: true, Err: err}
	case errors.As(err, &typeErr):
		return &Error{
			Status:      http.StatusBadRequest,
			Message:     fmt.Sprintf("%q must be a %s", typeErr.Field, typeErr.Type.String()),
			Operational: true,
			Err:         err,
		}
	}
	return &Error{Status: http.StatusBadRequest, Message: err.Error(), Operational: true, Err: err}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", field)
	case "email":
		return fmt.Sprintf("%q must be a valid email", field)
	case "min":
		if unit := lengthUnit(fe.Kind()); unit != "" {
			return fmt.Sprintf("%q must contain at least %s %s", field, fe.Param(), unit)
		}
		return fmt.Sprintf("%q must be greater than or equal to %s", field, fe.Param())
	case "max":
		if unit := lengthUnit(fe.Kind()); unit != "" {
			return fmt.Sprintf("%q must contain at most %s %s", field, fe.Param(), unit)
		}
		return fmt.Sprintf("%q must be less than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s]", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "url", "uri":
		return fmt.Sprintf("%q must be a valid uri", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("%q must be a valid id", field)
	case "hexcolor", "hex_color":
		return fmt.Sprintf("%q must be a valid hex color code", field)
	case "slug":
		return fmt.Sprintf("%q can only contain lowercase letters, numbers, and hyphens", field)
	case "gtfield":
		return fmt.Sprintf("%q must be greater than %s", field, fe.Param())
	}
	return fmt.Sprintf("%q failed on the %q rule", field, fe.Tag())
}

// lengthUnit names what min and max count for kinds measured by length.
func lengthUnit(k reflect.Kind) string {
	switch k {
	case reflect.Slice, reflect.Array, reflect.Map:
		return "items"
	case reflect.String:
		return "characters"
	}
	return ""
}
