package tools

import (
	"context"
	"encoding/json"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"health-companion/internal/fhir"
)

type fakeTool struct {
	name string
}

func (f *fakeTool) Name() string { return f.name }

func (f *fakeTool) Definition() openai.Tool {
	return openai.Tool{
		Type:     openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{Name: f.name},
	}
}

func (f *fakeTool) Invoke(context.Context, json.RawMessage, *fhir.ReducedContext) (*Result, *Error) {
	return &Result{Summary: "ok"}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "alpha"}))

	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "alpha"}))
	assert.Error(t, r.Register(&fakeTool{name: "alpha"}))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDefinitionsAreSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&fakeTool{name: "zeta"}))
	require.NoError(t, r.Register(&fakeTool{name: "alpha"}))
	require.NoError(t, r.Register(&fakeTool{name: "mid"}))

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Function.Name)
	assert.Equal(t, "mid", defs[1].Function.Name)
	assert.Equal(t, "zeta", defs[2].Function.Name)
}

func TestResultModelContent(t *testing.T) {
	res := &Result{Payload: map[string]any{"count": 2}, Summary: "Found 2"}
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.ModelContent()), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Found 2", body["summary"])
}

func TestErrorModelContent(t *testing.T) {
	e := &Error{Kind: KindUpstreamFailure, Message: "service unavailable"}
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.ModelContent()), &body))
	assert.Equal(t, false, body["success"])
	inner, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "upstream_failure", inner["kind"])
}
