package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultMessage renders a human-readable message for a failed binding tag.
func DefaultMessage(field, tag, param string) string {
	field = strings.ToLower(field)

	switch tag {
	case "required":
		return fmt.Sprintf("%s must not be empty", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	case "alphanum":
		return fmt.Sprintf("%s may only contain letters and digits", field)
	case "eqfield":
		return fmt.Sprintf("%s must match %s", field, strings.ToLower(param))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// FormatBindingError turns gin binding failures into field-level messages for
// the error envelope. Non-validator errors come back as a single message.
func FormatBindingError(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, DefaultMessage(fe.Field(), fe.Tag(), fe.Param()))
	}
	return messages
}
