package pkg

import (
	"encoding/json"
	"time"
)

// TurnRole describes who authored a turn. Tool turns carry the structured
// outcome of a tool invocation back into the conversation record.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
	RoleTool      TurnRole = "tool"
)

// Turn is one entry in a session's conversation history. Turns are immutable
// once appended; eviction removes whole turns from the front of the window.
type Turn struct {
	Role      TurnRole  `json:"role"`
	Content   string    `json:"content"`
	ToolName  string    `json:"tool_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Chars returns the character weight of a turn for the history budget.
func (t Turn) Chars() int { return len(t.Content) }

// ToolTrace summarises one tool invocation performed during a turn. It is
// returned to the caller alongside the reply so the UI can surface what the
// assistant looked up.
type ToolTrace struct {
	Tool    string `json:"tool"`
	Summary string `json:"summary"`
	Failed  bool   `json:"failed"`
}

// ChatRequest is the body of POST /api/sessions/{id}/messages.
type ChatRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// ChatResponse contains the assistant's reply and the tool invocations made
// while producing it.
type ChatResponse struct {
	Reply      string      `json:"reply"`
	ToolTraces []ToolTrace `json:"tool_traces"`
}

// CreateSessionRequest is the body of POST /api/sessions. Exactly one of
// PatientRef (resolved through the patient directory and bundle fetcher) or
// Bundle (an inline raw FHIR bundle) must be provided.
type CreateSessionRequest struct {
	PatientRef string          `json:"patient_ref,omitempty" validate:"omitempty,max=64"`
	Bundle     json.RawMessage `json:"bundle,omitempty"`
}

// CreateSessionResponse returns the new session handle and a short health
// summary extracted from the reduced clinical context.
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	Summary   string `json:"summary"`
}

// ErrorResponse is the generic error body. It never carries upstream error
// detail; that stays in server-side logs.
type ErrorResponse struct {
	Error string `json:"error"`
}
