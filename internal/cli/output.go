package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/roach88/keyringdb/internal/provider"
	"github.com/roach88/keyringdb/internal/route"
	"github.com/roach88/keyringdb/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation ran and was rejected (unknown address, bad payload, read-only store, etc.)
	ExitCommandError = 2 // Command error (bad flags, unreadable config, database cannot be opened, etc.)
)

// Error codes reported in CLIError.Code.
const (
	CodeInternal      = "E000"
	CodeRouteNotFound = "E001"
	CodeInvalid       = "E002"
	CodeUnsupported   = "E003"
	CodeReadOnly      = "E004"
	CodeSchema        = "E005"
	CodeNotFound      = "E006"
	CodeConstraint    = "E007"
	CodeCommand       = "E100"
)

// ExitError carries the process exit code for a failed command. Errors
// returned without one exit with ExitFailure.
type ExitError struct {
	Code    int
	Message string
	Err     error // may be nil
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches code and context to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code for err: ExitSuccess for nil, the
// code of the first ExitError in the chain, otherwise ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode classifies err for CLIError.Code.
func ErrorCode(err error) string {
	var exitErr *ExitError
	switch {
	case errors.Is(err, route.ErrRouteNotFound):
		return CodeRouteNotFound
	case errors.Is(err, provider.ErrInvalidPayload), errors.Is(err, provider.ErrInvalidKeyRing):
		return CodeInvalid
	case errors.Is(err, provider.ErrUnsupported):
		return CodeUnsupported
	case errors.Is(err, store.ErrReadOnly):
		return CodeReadOnly
	case store.IsSchemaError(err):
		return CodeSchema
	case errors.Is(err, provider.ErrNotFound):
		return CodeNotFound
	case provider.IsConstraintViolation(err):
		return CodeConstraint
	case errors.As(err, &exitErr) && exitErr.Code == ExitCommandError:
		return CodeCommand
	default:
		return CodeInternal
	}
}

// OutputFormatter writes command results as text or as a CLIResponse
// JSON document.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // warnings and verbose output; Writer when nil
	Verbose   bool
}

// CLIResponse is the envelope of every JSON-mode result.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error half of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // one of the Code constants
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success writes data. In text mode a result with a tabular form renders
// itself; anything else is printed with fmt.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}

	if t, ok := data.(textRenderer); ok {
		return t.renderText(f.Writer)
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// textRenderer is implemented by results with a tabular text form.
type textRenderer interface {
	renderText(w io.Writer) error
}

// Error writes a failure report. Text mode prints the code in red unless
// color.NoColor is set.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(f.Writer, "Error [%s]:", code)
	fmt.Fprintf(f.Writer, " %s\n", message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Warn reports a condition that did not fail the command. It is written
// to the diagnostic writer so JSON output stays a single document.
func (f *OutputFormatter) Warn(format string, args ...any) {
	yellow := color.New(color.FgYellow)
	yellow.Fprintf(f.GetErrWriter(), "Warning: "+format+"\n", args...)
}

// VerboseLog writes to the diagnostic writer when Verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when it is unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
