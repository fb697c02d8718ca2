package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"health-companion/internal/fhir"
)

func reducedWithConditions(names ...string) *fhir.ReducedContext {
	rc := &fhir.ReducedContext{}
	for _, n := range names {
		rc.Conditions = append(rc.Conditions, fhir.Record{
			ResourceType:   "Condition",
			ClinicalStatus: &fhir.CodeableConcept{Coding: []fhir.Coding{{Code: "active"}}},
			Code:           &fhir.CodeableConcept{Coding: []fhir.Coding{{Display: n}}},
		})
	}
	return rc
}

func TestTrialSearchPostsQuery(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "svc", user)
		assert.Equal(t, "secret", pass)
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"trials":[{"id":"NCT001","title":"Hypertension study"}]}`))
	}))
	defer srv.Close()

	tool := NewTrialSearch(srv.URL, "svc", "secret", zap.NewNop())
	res, terr := tool.Invoke(context.Background(), json.RawMessage(`{"query_text":"hypertension treatment","max_rows":3}`), nil)
	require.Nil(t, terr)

	var req map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &req))
	assert.Equal(t, "hypertension treatment", req["queryText"])
	assert.Equal(t, float64(3), req["maxRows"])

	assert.Equal(t, "Clinical trial search completed for: hypertension treatment", res.Summary)
	payload, ok := res.Payload.(json.RawMessage)
	require.True(t, ok)
	assert.Contains(t, string(payload), "NCT001")
}

func TestTrialSearchDerivesQueryFromActiveConditions(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"trials":[]}`))
	}))
	defer srv.Close()

	tool := NewTrialSearch(srv.URL, "svc", "secret", zap.NewNop())
	res, terr := tool.Invoke(context.Background(), nil, reducedWithConditions("Hypertension", "Type 2 diabetes"))
	require.Nil(t, terr)

	var req map[string]any
	require.NoError(t, json.Unmarshal(gotBody, &req))
	assert.Equal(t, "Hypertension, Type 2 diabetes", req["queryText"])
	assert.Contains(t, res.Summary, "Hypertension, Type 2 diabetes")
}

func TestTrialSearchNoQueryAvailable(t *testing.T) {
	tool := NewTrialSearch("http://unused.invalid", "svc", "secret", zap.NewNop())
	_, terr := tool.Invoke(context.Background(), nil, &fhir.ReducedContext{})
	require.NotNil(t, terr)
	assert.Equal(t, KindInvalidArgs, terr.Kind)
}

func TestTrialSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal detail", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tool := NewTrialSearch(srv.URL, "svc", "secret", zap.NewNop())
	_, terr := tool.Invoke(context.Background(), json.RawMessage(`{"query_text":"asthma"}`), nil)
	require.NotNil(t, terr)
	assert.Equal(t, KindUpstreamFailure, terr.Kind)
	assert.NotContains(t, terr.Message, "internal detail")
}

func TestTrialSearchUnreachableHost(t *testing.T) {
	tool := NewTrialSearch("http://127.0.0.1:1", "svc", "secret", zap.NewNop())
	_, terr := tool.Invoke(context.Background(), json.RawMessage(`{"query_text":"asthma"}`), nil)
	require.NotNil(t, terr)
	assert.Equal(t, KindUpstreamFailure, terr.Kind)
}
