package validator

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Title    string `validate:"required,max=5"`
	Email    string `validate:"omitempty,email"`
	Password string `validate:"min=8"`
}

func TestFormatValidationError(t *testing.T) {
	v := validator.New()
	err := v.Struct(sample{Email: "nope", Password: "short"})

	msg := FormatValidationError(err)
	assert.Contains(t, msg, "Title is required")
	assert.Contains(t, msg, "Email must be a valid email")
	assert.Contains(t, msg, "Password must be at least 8 characters")

	err = v.Struct(sample{Title: "too long title", Password: "longenough"})
	assert.Equal(t, "Title must be at most 5 characters", FormatValidationError(err))
}

func TestFormatPlainError(t *testing.T) {
	assert.Equal(t, "EOF", FormatValidationError(errors.New("EOF")))
}
