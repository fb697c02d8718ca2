package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"health-companion/internal/fhir"
)

// ProviderSearchName is the function name the model calls to find
// healthcare providers.
const ProviderSearchName = "search_providers_by_zip"

const (
	defaultMaxResults = 10
	maxMaxResults     = 50
)

// ProviderSearch looks up healthcare providers near a ZIP code through the
// external provider directory. When the model omits the ZIP code, the tool
// takes it from the patient's reduced clinical context.
type ProviderSearch struct {
	endpoint string
	username string
	password string
	client   *http.Client
	logger   *zap.Logger
}

// NewProviderSearch constructs the provider search tool. The HTTP client
// carries no timeout of its own; each invocation runs under the
// orchestrator's per-tool context deadline.
func NewProviderSearch(endpoint, username, password string, logger *zap.Logger) *ProviderSearch {
	return &ProviderSearch{
		endpoint: endpoint,
		username: username,
		password: password,
		client:   &http.Client{},
		logger:   logger,
	}
}

func (p *ProviderSearch) Name() string { return ProviderSearchName }

// Definition describes the tool to the model. The description tells the
// model the ZIP code is derived from the patient's records when omitted, so
// it does not re-ask the user.
func (p *ProviderSearch) Definition() openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name: ProviderSearchName,
			Description: "Search for healthcare providers by ZIP code. Use this when the user asks about " +
				"finding doctors, providers, or healthcare services. The ZIP code will be automatically " +
				"extracted from the patient's health records if available, or you can use a ZIP code " +
				"provided by the user.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"zip_code": map[string]any{
						"type": "string",
						"description": "ZIP code to search for. If not provided, the patient's ZIP code " +
							"from their health records is used. Example: '02142' or '90210'",
					},
					"maxresults": map[string]any{
						"type":        "integer",
						"description": "Maximum number of results to return. Default is 10.",
						"minimum":     1,
						"maximum":     maxMaxResults,
					},
				},
				"required": []string{},
			},
		},
	}
}

type providerSearchArgs struct {
	ZipCode    string `json:"zip_code"`
	MaxResults int    `json:"maxresults"`
}

// Provider is one formatted directory entry, trimmed to the fields worth
// showing in a chat reply.
type Provider struct {
	Name                string   `json:"name"`
	Specialty           string   `json:"specialty"`
	Address             string   `json:"address"`
	AdditionalAddresses []string `json:"additional_addresses,omitempty"`
	NPI                 string   `json:"npi"`
}

// Invoke performs the directory lookup.
func (p *ProviderSearch) Invoke(ctx context.Context, args json.RawMessage, reduced *fhir.ReducedContext) (*Result, *Error) {
	var in providerSearchArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, &Error{Kind: KindInvalidArgs, Message: "malformed arguments for provider search"}
		}
	}

	zip := normalizeZIP(in.ZipCode)
	if zip == "" && reduced != nil {
		zip = reduced.ZIPCode()
	}
	if zip == "" {
		return nil, &Error{
			Kind:    KindInvalidArgs,
			Message: "ZIP code is required for provider search. Please provide a ZIP code or ensure it's in your health records.",
		}
	}

	maxResults := in.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}

	q := url.Values{}
	q.Set("zip", zip)
	q.Set("maxresults", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &Error{Kind: KindUpstreamFailure, Message: "could not build provider search request"}
	}
	req.SetBasicAuth(p.username, p.password)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("provider search request failed", zap.Error(err))
		return nil, transportError(err, "provider search")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decoding
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &Error{Kind: KindInvalidArgs, Message: "invalid request to provider search API"}
	case resp.StatusCode == http.StatusUnauthorized:
		p.logger.Error("provider search authentication failed")
		return nil, &Error{Kind: KindUpstreamFailure, Message: "provider search is currently unavailable"}
	default:
		p.logger.Error("provider search returned error status", zap.Int("status", resp.StatusCode))
		return nil, &Error{Kind: KindUpstreamFailure, Message: "provider search is currently unavailable"}
	}

	var records []providerRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		p.logger.Error("provider search response unparseable", zap.Error(err))
		return nil, &Error{Kind: KindUpstreamFailure, Message: "provider search returned an unreadable response"}
	}

	providers := make([]Provider, 0, len(records))
	for _, rec := range records {
		providers = append(providers, rec.format())
	}

	return &Result{
		Payload: map[string]any{
			"count":     len(providers),
			"zip_code":  zip,
			"providers": providers,
		},
		Summary: fmt.Sprintf("Found %d provider(s) in ZIP code %s", len(providers), zip),
	}, nil
}

// providerRecord mirrors the upstream directory schema.
type providerRecord struct {
	NPI  json.Number `json:"NPI"`
	Name struct {
		Prefix string `json:"Prefix"`
		First  string `json:"First"`
		Middle string `json:"Middle"`
		Last   string `json:"Last"`
		Suffix string `json:"Suffix"`
	} `json:"Name"`
	PrimarySpecialtyCodedValue struct {
		Code        string `json:"Code"`
		Description string `json:"Description"`
	} `json:"PrimarySpecialtyCodedValue"`
	Addresses []struct {
		AddressLine1 string `json:"AddressLine1"`
		AddressLine2 string `json:"AddressLine2"`
		City         string `json:"City"`
		State        string `json:"State"`
		Zip          string `json:"Zip"`
	} `json:"Addresses"`
}

func (r providerRecord) format() Provider {
	p := Provider{
		Name:      joinNonEmpty(" ", r.Name.Prefix, r.Name.First, r.Name.Middle, r.Name.Last, r.Name.Suffix),
		Specialty: r.PrimarySpecialtyCodedValue.Description,
		NPI:       r.NPI.String(),
	}
	if p.Name == "" {
		p.Name = "Unknown"
	}
	if p.Specialty == "" {
		if r.PrimarySpecialtyCodedValue.Code != "" {
			p.Specialty = "Specialty code: " + r.PrimarySpecialtyCodedValue.Code
		} else {
			p.Specialty = "Unknown specialty"
		}
	}
	if p.NPI == "" {
		p.NPI = "N/A"
	}

	var addresses []string
	for _, a := range r.Addresses {
		location := joinNonEmpty(", ", a.City, a.State, a.Zip)
		formatted := joinNonEmpty(", ", a.AddressLine1, a.AddressLine2, location)
		if formatted != "" {
			addresses = append(addresses, formatted)
		}
	}
	if len(addresses) > 0 {
		p.Address = addresses[0]
		p.AdditionalAddresses = addresses[1:]
		if len(p.AdditionalAddresses) == 0 {
			p.AdditionalAddresses = nil
		}
	} else {
		p.Address = "Address not available"
	}
	return p
}

// normalizeZIP strips a ZIP+4 suffix and restores leading zeros on
// digit-only codes.
func normalizeZIP(zip string) string {
	zip = strings.TrimSpace(strings.SplitN(zip, "-", 2)[0])
	if zip == "" {
		return ""
	}
	if isDigits(zip) && len(zip) < 5 {
		zip = strings.Repeat("0", 5-len(zip)) + zip
	}
	return zip
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// transportError maps a client-side HTTP failure to the tool error taxonomy:
// deadline and network timeouts become KindTimeout, everything else is an
// upstream failure.
func transportError(err error, what string) *Error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &Error{Kind: KindTimeout, Message: what + " request timed out"}
	}
	return &Error{Kind: KindUpstreamFailure, Message: "could not reach the " + what + " service"}
}
