package httputil

import (
	"github.com/go-playground/validator/v10"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

var validate = validator.New()

// tagMessages maps validator tags to human-readable messages. Tags that
// carry a parameter get it appended.
var tagMessages = map[string]struct {
	text      string
	withParam bool
}{
	"required": {"this field is required", false},
	"min":      {"must be at least ", true},
	"max":      {"must be at most ", true},
	"gt":       {"must be greater than ", true},
	"gte":      {"must be greater than or equal to ", true},
	"uuid":     {"must be a valid UUID", false},
	"oneof":    {"must be one of: ", true},
}

// Validate runs struct-tag validation and converts failures into a
// field-keyed validation error.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	details := make(map[string]string)
	for _, fieldErr := range err.(validator.ValidationErrors) {
		details[fieldErr.Field()] = messageFor(fieldErr)
	}
	return errors.Validation(details)
}

func messageFor(e validator.FieldError) string {
	msg, ok := tagMessages[e.Tag()]
	if !ok {
		return "invalid value"
	}
	if msg.withParam {
		return msg.text + e.Param()
	}
	return msg.text
}

// RegisterCustomValidation registers a custom validation function.
func RegisterCustomValidation(tag string, fn validator.Func) error {
	return validate.RegisterValidation(tag, fn)
}
