package fuzzy

import (
	"errors"
	"fmt"
)

// SyntaxError reports malformed rule text. It always carries the line the
// statement started on and the token the parser stopped at.
type SyntaxError struct {
	Line      int
	Token     string
	Statement string
	Msg       string
}

func (e *SyntaxError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("fuzzy: line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("fuzzy: line %d: %s at %q", e.Line, e.Msg, e.Token)
}

// ValidationError reports a well-formed definition that cannot be used:
// bad curve parameters, undefined names, alias cycles.
type ValidationError struct {
	Line    int
	Subject string
	Msg     string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("fuzzy: line %d: %s: %s", e.Line, e.Subject, e.Msg)
	}
	return fmt.Sprintf("fuzzy: %s: %s", e.Subject, e.Msg)
}

// EvaluationError reports a failure while evaluating bound arrays. It only
// affects the block being evaluated.
type EvaluationError struct {
	Msg string
}

func (e *EvaluationError) Error() string {
	return "fuzzy: evaluate: " + e.Msg
}

func syntaxErr(line int, tok, stmt, format string, args ...any) *SyntaxError {
	return &SyntaxError{Line: line, Token: tok, Statement: stmt, Msg: fmt.Sprintf(format, args...)}
}

func validationErr(line int, subject, format string, args ...any) *ValidationError {
	return &ValidationError{Line: line, Subject: subject, Msg: fmt.Sprintf(format, args...)}
}

func evalErr(format string, args ...any) *EvaluationError {
	return &EvaluationError{Msg: fmt.Sprintf(format, args...)}
}

// IsSyntax reports whether err contains a SyntaxError.
func IsSyntax(err error) bool {
	var se *SyntaxError
	return errors.As(err, &se)
}

// IsValidation reports whether err contains a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsEvaluation reports whether err contains an EvaluationError.
func IsEvaluation(err error) bool {
	var ee *EvaluationError
	return errors.As(err, &ee)
}
