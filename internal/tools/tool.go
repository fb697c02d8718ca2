// Package tools defines the tool capability interface, the name-keyed
// registry handed to the orchestrator, and the built-in clinical search
// tools. Adding a tool means implementing Tool and registering it; the
// orchestrator's dispatch loop never changes.
package tools

import (
	"context"
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"

	"health-companion/internal/fhir"
)

// ErrorKind classifies tool failures. Every kind is recoverable at the
// orchestrator level: the failure is surfaced to the model as context and
// the turn continues.
type ErrorKind string

const (
	KindTimeout         ErrorKind = "timeout"
	KindUpstreamFailure ErrorKind = "upstream_failure"
	KindInvalidArgs     ErrorKind = "invalid_args"
	KindNotFound        ErrorKind = "not_found"
)

// Result is a successful tool outcome: a JSON-serializable payload plus a
// short human-readable summary used if the model omits its own.
type Result struct {
	Payload any
	Summary string
}

// Error is a failed tool outcome. Message must be safe to show the model;
// raw upstream error bodies stay in server-side logs.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// ModelContent serializes a result for the tool turn fed back to the model.
func (r *Result) ModelContent() string {
	body := map[string]any{
		"success": true,
		"summary": r.Summary,
		"data":    r.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		// Payload was supposed to be JSON-serializable; fall back to the
		// summary so the turn still completes.
		data, _ = json.Marshal(map[string]any{"success": true, "summary": r.Summary})
	}
	return string(data)
}

// ModelContent serializes an error for the tool turn fed back to the model.
func (e *Error) ModelContent() string {
	data, _ := json.Marshal(map[string]any{
		"success": false,
		"error":   map[string]string{"kind": string(e.Kind), "message": e.Message},
	})
	return string(data)
}

// Tool is the single capability every registered tool implements.
//
// Invoke receives the session's reduced clinical context as the implicit
// lookup source for omitted arguments (e.g. the patient's ZIP code). Tools
// must be idempotent-safe to retry at least once and must never perform an
// irreversible external effect.
type Tool interface {
	Name() string
	Definition() openai.Tool
	Invoke(ctx context.Context, args json.RawMessage, reduced *fhir.ReducedContext) (*Result, *Error)
}
