package executor

import (
	"errors"
	"fmt"

	language "github.com/hanpama/memberql/internal/language"
)

// Error codes reported in extensions.code.
const (
	CodeParseFailed      = "GRAPHQL_PARSE_FAILED"
	CodeValidationFailed = "GRAPHQL_VALIDATION_FAILED"
	CodeBadUserInput     = "BAD_USER_INPUT"
	CodeNotFound         = "NOT_FOUND"
	CodeStoreFailed      = "STORE_OPERATION_FAILED"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
)

// CodedError is an error carrying a code for extensions.code.
type CodedError struct {
	code string
	msg  string
	err  error
}

// NewError returns an error with the given code and message.
func NewError(code, format string, args ...any) *CodedError {
	return &CodedError{code: code, msg: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code to err. The message is err's message.
func WrapError(code string, err error) *CodedError {
	return &CodedError{code: code, msg: err.Error(), err: err}
}

func (e *CodedError) Error() string { return e.msg }
func (e *CodedError) Code() string  { return e.code }
func (e *CodedError) Unwrap() error { return e.err }

// CodeOf returns the code declared by err or anything it wraps.
func CodeOf(err error) string {
	var c interface{ Code() string }
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

func extensionsFor(err error) map[string]any {
	if code := CodeOf(err); code != "" {
		return map[string]any{"code": code}
	}
	return nil
}

func documentError(code, message string, pos *language.Position) GraphQLError {
	e := GraphQLError{Message: message, Extensions: map[string]any{"code": code}}
	if pos != nil && pos.Line > 0 {
		e.Locations = []Location{{Line: pos.Line, Column: pos.Column}}
	}
	return e
}

func syntaxError(err error) GraphQLError {
	var gqlErr *language.Error
	if errors.As(err, &gqlErr) {
		e := GraphQLError{
			Message:    "Syntax Error: " + gqlErr.Message,
			Extensions: map[string]any{"code": CodeParseFailed},
		}
		for _, loc := range gqlErr.Locations {
			e.Locations = append(e.Locations, Location{Line: loc.Line, Column: loc.Column})
		}
		return e
	}
	return GraphQLError{Message: "Syntax Error: " + err.Error(), Extensions: map[string]any{"code": CodeParseFailed}}
}
