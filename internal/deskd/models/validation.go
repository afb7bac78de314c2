package models

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MaxGlyphRunes bounds an icon. Emoji with skin tones or ZWJ sequences span
// several runes, so a single visible glyph may need more than one.
const MaxGlyphRunes = 8

// ValidationError represents a validation error with field context
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Value != "" {
		return fmt.Sprintf("%s: %s (value: %q)", ve.Field, ve.Message, ve.Value)
	}
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ves ValidationErrors) Error() string {
	if len(ves) == 0 {
		return ""
	}
	if len(ves) == 1 {
		return ves[0].Error()
	}

	var messages []string
	for _, ve := range ves {
		messages = append(messages, ve.Error())
	}
	return fmt.Sprintf("multiple validation errors: %s", strings.Join(messages, "; "))
}

// RegisterValidations installs the custom rules used by request structs.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("glyph", validateGlyph)
}

// NewValidator creates a new validator with custom validation rules
func NewValidator() *validator.Validate {
	v := validator.New()
	if err := RegisterValidations(v); err != nil {
		panic(err)
	}
	return v
}

// ConvertValidatorErrors converts go-playground validator errors to our custom format
func ConvertValidatorErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var out ValidationErrors
		for _, ve := range validationErrors {
			out = append(out, ValidationError{
				Field:   ve.Field(),
				Message: validationMessage(ve),
				Value:   fmt.Sprintf("%v", ve.Value()),
			})
		}
		return out
	}

	return err
}

func validationMessage(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "glyph":
		return "must be a single emoji or character"
	default:
		return ve.Error()
	}
}

func validateGlyph(fl validator.FieldLevel) bool {
	return IsGlyph(fl.Field().String())
}

// IsGlyph reports whether s looks like one visible glyph: non-empty, no
// whitespace, at most MaxGlyphRunes runes.
func IsGlyph(s string) bool {
	n := utf8.RuneCountInString(s)
	if n == 0 || n > MaxGlyphRunes {
		return false
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// ValidatePrompt enforces the prompt bounds shared by generate and regenerate.
func ValidatePrompt(prompt string, maxLength int) error {
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}
	if maxLength > 0 && utf8.RuneCountInString(prompt) > maxLength {
		return fmt.Errorf("%w: prompt exceeds %d characters", ErrInvalidRequest, maxLength)
	}
	return nil
}
