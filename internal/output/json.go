// Package output renders CLI results as JSON envelopes on stdout. The
// envelope is stable across commands so wrapping agents can parse every
// sparkq invocation the same way.
package output

import (
	"encoding/json"
	"io"
	"os"

	"github.com/dotcommander/sparkq/internal/models"
)

// Response is the envelope every command prints.
type Response struct {
	SchemaVersion string         `json:"schema_version"`
	Success       bool           `json:"success"`
	Data          any            `json:"data,omitempty"`
	Error         *ErrorEnvelope `json:"error,omitempty"`
}

// ErrorEnvelope carries the classified error kind alongside the message
// so callers can branch without string matching.
type ErrorEnvelope struct {
	Message string            `json:"message"`
	Kind    string            `json:"kind,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

// Stdout is swappable for tests.
var Stdout io.Writer = os.Stdout //nolint:gochecknoglobals // test seam

// Success wraps data in a success envelope.
func Success(data any) Response {
	return Response{SchemaVersion: "v1", Success: true, Data: data}
}

// Error wraps err in a failure envelope, surfacing the kind and context
// when the error is classified.
func Error(err error) Response {
	env := &ErrorEnvelope{Message: err.Error()}
	if ce := models.AsClassified(err); ce != nil {
		env.Message = ce.Message
		env.Kind = string(ce.Kind)
		env.Context = ce.Context()
	}
	return Response{SchemaVersion: "v1", Success: false, Error: env}
}

// Print encodes v to stdout. Output is compact by default to keep agent
// transcripts small; set SPARKQ_PRETTY_JSON=1 for humans.
func Print(v any) error {
	enc := json.NewEncoder(Stdout)
	if pretty := os.Getenv("SPARKQ_PRETTY_JSON"); pretty == "1" || pretty == "true" {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// PrintSuccess prints data in a success envelope.
func PrintSuccess(data any) error {
	return Print(Success(data))
}

// PrintError prints err in a failure envelope.
func PrintError(err error) error {
	return Print(Error(err))
}
