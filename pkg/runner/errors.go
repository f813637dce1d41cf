package runner

import (
	"errors"
	"fmt"
)

// Error codes reported with failed jobs.
const (
	CodeInvalidJob            = "invalid_job"
	CodeUnknownTransformation = "unknown_transformation"
	CodeInvalidRuleset        = "invalid_ruleset"
	CodeDocumentFetch         = "document_fetch"
	CodeParse                 = "parse"
	CodeTransform             = "transform"
	CodeStore                 = "store"
	CodeInternal              = "internal"
)

// Error is a classified job-processing failure. Code is stable across
// releases and safe to match on; Err carries the underlying cause.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the classification code from an error chain, falling
// back to CodeInternal for unclassified failures.
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
