package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"health-companion/internal/fhir"
)

// TrialSearchName is the function name the model calls to find clinical
// trials.
const TrialSearchName = "search_clinical_trials"

// TrialSearch queries the trial registry's semantic search endpoint. When
// the model omits a query, the tool derives one from the active conditions
// in the patient's reduced context.
type TrialSearch struct {
	endpoint string
	username string
	password string
	client   *http.Client
	logger   *zap.Logger
}

// NewTrialSearch constructs the clinical-trial search tool.
func NewTrialSearch(endpoint, username, password string, logger *zap.Logger) *TrialSearch {
	return &TrialSearch{
		endpoint: endpoint,
		username: username,
		password: password,
		client:   &http.Client{},
		logger:   logger,
	}
}

func (t *TrialSearch) Name() string { return TrialSearchName }

// Definition describes the tool to the model.
func (t *TrialSearch) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name: TrialSearchName,
			Description: "Search for clinical trials matching a natural-language description of conditions " +
				"or treatment goals. Use this when the user asks about clinical trials or research studies. " +
				"If no query is provided, the patient's active conditions from their health records are used.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query_text": map[string]any{
						"type": "string",
						"description": "Natural language description of what to search for: conditions, " +
							"goals, or other context.",
					},
					"max_rows": map[string]any{
						"type":        "integer",
						"description": "Maximum number of trials to return.",
						"minimum":     1,
						"maximum":     maxMaxResults,
					},
				},
				"required": []string{},
			},
		},
	}
}

type trialSearchArgs struct {
	QueryText string `json:"query_text"`
	MaxRows   int    `json:"max_rows"`
}

type trialSearchRequest struct {
	QueryText string `json:"queryText"`
	MaxRows   int    `json:"maxRows,omitempty"`
}

// Invoke performs the trial registry lookup.
func (t *TrialSearch) Invoke(ctx context.Context, args json.RawMessage, reduced *fhir.ReducedContext) (*Result, *Error) {
	var in trialSearchArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, &Error{Kind: KindInvalidArgs, Message: "malformed arguments for clinical trial search"}
		}
	}

	query := strings.TrimSpace(in.QueryText)
	if query == "" && reduced != nil {
		query = strings.Join(reduced.ActiveConditions(), ", ")
	}
	if query == "" {
		return nil, &Error{
			Kind:    KindInvalidArgs,
			Message: "a search query is required: describe the condition or treatment goal to search trials for",
		}
	}

	maxRows := in.MaxRows
	if maxRows < 0 {
		maxRows = 0
	}
	if maxRows > maxMaxResults {
		maxRows = maxMaxResults
	}

	body, err := json.Marshal(trialSearchRequest{QueryText: query, MaxRows: maxRows})
	if err != nil {
		return nil, &Error{Kind: KindInvalidArgs, Message: "could not encode trial search query"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindUpstreamFailure, Message: "could not build trial search request"}
	}
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Error("trial search request failed", zap.Error(err))
		return nil, transportError(err, "clinical trial search")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Error("trial search returned error status", zap.Int("status", resp.StatusCode))
		if resp.StatusCode == http.StatusBadRequest {
			return nil, &Error{Kind: KindInvalidArgs, Message: "invalid request to clinical trial search API"}
		}
		return nil, &Error{Kind: KindUpstreamFailure, Message: "clinical trial search is currently unavailable"}
	}

	var payload json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.logger.Error("trial search response unparseable", zap.Error(err))
		return nil, &Error{Kind: KindUpstreamFailure, Message: "clinical trial search returned an unreadable response"}
	}

	return &Result{
		Payload: payload,
		Summary: "Clinical trial search completed for: " + query,
	}, nil
}
