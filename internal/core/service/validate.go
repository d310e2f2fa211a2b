package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/progressly/featuregate/internal/core/domain"
)

// inputValidator wraps go-playground/validator so write-path inputs are
// checked before anything touches the store.
type inputValidator struct {
	v *validator.Validate
}

func newInputValidator() *inputValidator {
	return &inputValidator{v: validator.New()}
}

// Struct validates the tagged fields of in, folding all failures into a
// single domain.ErrValidation with human-readable field messages.
func (iv *inputValidator) Struct(in any) error {
	err := iv.v.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fieldError(fe))
		}
		return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
	}
	return err
}

// fieldError converts a single ValidationError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
