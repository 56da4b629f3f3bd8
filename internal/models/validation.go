package models

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (v ValidationError) Error() string {
	if v.Field == "" {
		return v.Message
	}
	return v.Field + ": " + v.Message
}

// ValidationErrors collects every invalid field of a config or a batch of
// posts so callers can report them together.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Add records err for field. A nested *ValidationErrors is flattened with its
// fields prefixed by field.
func (v *ValidationErrors) Add(field string, err error) {
	if err == nil {
		return
	}
	var nested *ValidationErrors
	if errors.As(err, &nested) {
		for _, sub := range nested.Errors {
			sub.Field = joinField(field, sub.Field)
			v.Errors = append(v.Errors, sub)
		}
		return
	}
	v.Errors = append(v.Errors, ValidationError{Field: field, Message: err.Error(), Cause: err})
}

// AddMessage records a failure without an underlying error.
func (v *ValidationErrors) AddMessage(field, message string) {
	if message != "" {
		v.Errors = append(v.Errors, ValidationError{Field: field, Message: message})
	}
}

// Err returns v as an error, or nil when nothing was recorded.
func (v *ValidationErrors) Err() error {
	if v == nil || len(v.Errors) == 0 {
		return nil
	}
	return v
}

func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		parts[i] = err.Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes the recorded causes to errors.Is and errors.As.
func (v *ValidationErrors) Unwrap() []error {
	if v == nil {
		return nil
	}
	var causes []error
	for _, err := range v.Errors {
		if err.Cause != nil {
			causes = append(causes, err.Cause)
		}
	}
	return causes
}

// ValidatePosts validates a batch, naming failures by index and post ID,
// e.g. posts[2](123).author_id.
func ValidatePosts(posts []Post) error {
	validation := &ValidationErrors{}
	for i := range posts {
		field := fmt.Sprintf("posts[%d]", i)
		if id := strings.TrimSpace(posts[i].ID); id != "" {
			field += "(" + id + ")"
		}
		validation.Add(field, posts[i].Validate())
	}
	return validation.Err()
}

func joinField(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	default:
		return prefix + "." + field
	}
}
