package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/julianstephens/habitsync/internal/validation"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "simple error",
			err:      errors.New("something went wrong"),
			expected: "Error: something went wrong",
		},
		{
			name:     "single validation problem",
			err:      &validation.Error{Problems: []validation.FieldError{{Field: "title", Message: "must not be empty"}}},
			expected: "Error: invalid title: must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.err)
			if result != tt.expected {
				t.Errorf("Format(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormat_ListsValidationProblems(t *testing.T) {
	err := fmt.Errorf("create habit: %w", &validation.Error{Problems: []validation.FieldError{
		{Field: "title", Message: "must not be empty"},
		{Field: "frequency", Message: "must be between 0 and 127, got 300"},
	}})

	got := Format(err)
	if !strings.HasPrefix(got, "Error: invalid habit\n") {
		t.Errorf("Format() = %q, want multi-line validation report", got)
	}
	if strings.Count(got, "\n  - ") != 2 {
		t.Errorf("Format() = %q, want one line per problem", got)
	}
}

func TestFormatf(t *testing.T) {
	got := Formatf("habit %q not found", "Read")
	if got != `Error: habit "Read" not found` {
		t.Errorf("Formatf() = %q", got)
	}
}
