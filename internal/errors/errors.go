package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/validation"
)

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	var verr *validation.Error
	if stderrors.As(err, &verr) && len(verr.Problems) > 1 {
		msg := "Error: invalid habit"
		for _, p := range verr.Problems {
			msg += fmt.Sprintf("\n  - %s: %s", p.Field, p.Message)
		}
		return msg
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
