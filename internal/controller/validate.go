package controller

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"taskvault/internal/apierr"
)

// bindError converts a gin binding failure into the validation error
// shape: 400 with a per-field detail map.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fieldMessage(fe)
		}
		return apierr.Validation("Validation failed", fields)
	}
	return apierr.Validation("Invalid request body", nil)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "is invalid"
	}
}
