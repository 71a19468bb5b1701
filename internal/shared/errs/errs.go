// Package errs defines the structured error taxonomy shared across the
// service. Every error that crosses a component boundary carries a Kind, a
// human-readable message, optional structured details, and an optional
// actionable suggestion so that callers (human or agent) can react
// programmatically.
package errs

import "fmt"

// Kind classifies an error for programmatic handling.
type Kind string

const (
	// KindConnectivity means the remote instance is unreachable.
	KindConnectivity Kind = "connectivity_error"

	// KindCapabilityUnavailable means the remote lacks an optional feature,
	// typically the automation add-on not being installed.
	KindCapabilityUnavailable Kind = "capability_unavailable"

	// KindCommand means the remote rejected the call, optionally with a
	// machine-readable code in Details["code"].
	KindCommand Kind = "command_error"

	// KindPolicyViolation means file access was denied by the security policy.
	KindPolicyViolation Kind = "policy_violation"

	// KindCompile means the submitted script failed to parse.
	KindCompile Kind = "compile_error"

	// KindRuntime means the script raised an error while executing.
	KindRuntime Kind = "runtime_failure"

	// KindTimeout means the script exceeded its configured timeout.
	KindTimeout Kind = "timeout_exceeded"
)

// scriptNames maps kinds to the error names surfaced inside scripts and in
// rendered error text.
var scriptNames = map[Kind]string{
	KindConnectivity:          "ConnectivityError",
	KindCapabilityUnavailable: "CapabilityUnavailableError",
	KindCommand:               "CommandError",
	KindPolicyViolation:       "PermissionError",
	KindCompile:               "SyntaxError",
	KindRuntime:               "RuntimeError",
	KindTimeout:               "TimeoutError",
}

// Error is the uniform structured error type.
type Error struct {
	Kind       Kind           `json:"kind"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
}

// New creates a structured error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a structured error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Message
}

// Name returns the script-facing error name for this error's kind.
func (e *Error) Name() string {
	if n, ok := scriptNames[e.Kind]; ok {
		return n
	}
	return "Error"
}

// WithDetail attaches a structured context entry.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion attaches an actionable remedy.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// ToMap serializes the error for transport responses.
func (e *Error) ToMap() map[string]any {
	m := map[string]any{
		"kind":    string(e.Kind),
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		m["details"] = e.Details
	}
	if e.Suggestion != "" {
		m["suggestion"] = e.Suggestion
	}
	return m
}
