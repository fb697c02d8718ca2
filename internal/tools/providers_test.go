package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"health-companion/internal/fhir"
)

const providerFixture = `[
	{
		"NPI": 1234567890,
		"Name": {"Prefix": "Dr.", "First": "Alice", "Last": "Nguyen"},
		"PrimarySpecialtyCodedValue": {"Code": "207Q00000X", "Description": "Family Medicine"},
		"Addresses": [
			{"AddressLine1": "1 Main St", "City": "Cambridge", "State": "MA", "Zip": "02142"},
			{"AddressLine1": "2 Elm St", "City": "Boston", "State": "MA", "Zip": "02110"}
		]
	},
	{
		"NPI": 9876543210,
		"Name": {},
		"PrimarySpecialtyCodedValue": {"Code": "208D00000X"},
		"Addresses": []
	}
]`

func reducedWithZIP(zip string) *fhir.ReducedContext {
	return &fhir.ReducedContext{Patient: &fhir.Patient{PostalCode: zip}}
}

func TestProviderSearchFormatsResults(t *testing.T) {
	var gotZip, gotMax string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotZip = r.URL.Query().Get("zip")
		gotMax = r.URL.Query().Get("maxresults")
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "svc", user)
		assert.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(providerFixture))
	}))
	defer srv.Close()

	tool := NewProviderSearch(srv.URL, "svc", "secret", zap.NewNop())
	res, terr := tool.Invoke(context.Background(), json.RawMessage(`{"zip_code":"02142","maxresults":5}`), nil)
	require.Nil(t, terr)
	require.NotNil(t, res)

	assert.Equal(t, "02142", gotZip)
	assert.Equal(t, "5", gotMax)
	assert.Equal(t, "Found 2 provider(s) in ZIP code 02142", res.Summary)

	payload, ok := res.Payload.(map[string]any)
	require.True(t, ok)
	providers, ok := payload["providers"].([]Provider)
	require.True(t, ok)
	require.Len(t, providers, 2)

	assert.Equal(t, "Dr. Alice Nguyen", providers[0].Name)
	assert.Equal(t, "Family Medicine", providers[0].Specialty)
	assert.Equal(t, "1 Main St, Cambridge, MA, 02142", providers[0].Address)
	assert.Equal(t, []string{"2 Elm St, Boston, MA, 02110"}, providers[0].AdditionalAddresses)
	assert.Equal(t, "1234567890", providers[0].NPI)

	assert.Equal(t, "Unknown", providers[1].Name)
	assert.Equal(t, "Specialty code: 208D00000X", providers[1].Specialty)
	assert.Equal(t, "Address not available", providers[1].Address)
}

func TestProviderSearchUsesZIPFromContext(t *testing.T) {
	var gotZip string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotZip = r.URL.Query().Get("zip")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	tool := NewProviderSearch(srv.URL, "svc", "secret", zap.NewNop())
	res, terr := tool.Invoke(context.Background(), json.RawMessage(`{}`), reducedWithZIP("90210"))
	require.Nil(t, terr)

	assert.Equal(t, "90210", gotZip)
	assert.Equal(t, "Found 0 provider(s) in ZIP code 90210", res.Summary)
}

func TestProviderSearchMissingZIP(t *testing.T) {
	tool := NewProviderSearch("http://unused.invalid", "svc", "secret", zap.NewNop())
	_, terr := tool.Invoke(context.Background(), nil, &fhir.ReducedContext{})
	require.NotNil(t, terr)
	assert.Equal(t, KindInvalidArgs, terr.Kind)
}

func TestProviderSearchMalformedArgs(t *testing.T) {
	tool := NewProviderSearch("http://unused.invalid", "svc", "secret", zap.NewNop())
	_, terr := tool.Invoke(context.Background(), json.RawMessage(`{"zip_code":42}`), nil)
	require.NotNil(t, terr)
	assert.Equal(t, KindInvalidArgs, terr.Kind)
}

func TestProviderSearchUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "stack trace with internal hostnames", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tool := NewProviderSearch(srv.URL, "svc", "secret", zap.NewNop())
	_, terr := tool.Invoke(context.Background(), json.RawMessage(`{"zip_code":"02142"}`), nil)
	require.NotNil(t, terr)
	assert.Equal(t, KindUpstreamFailure, terr.Kind)
	assert.NotContains(t, terr.Message, "stack trace", "raw upstream detail must not leak")
}

func TestProviderSearchBadRequestMapsToInvalidArgs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	tool := NewProviderSearch(srv.URL, "svc", "secret", zap.NewNop())
	_, terr := tool.Invoke(context.Background(), json.RawMessage(`{"zip_code":"02142"}`), nil)
	require.NotNil(t, terr)
	assert.Equal(t, KindInvalidArgs, terr.Kind)
}

func TestProviderSearchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	tool := NewProviderSearch(srv.URL, "svc", "secret", zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, terr := tool.Invoke(ctx, json.RawMessage(`{"zip_code":"02142"}`), nil)
	require.NotNil(t, terr)
	assert.Equal(t, KindTimeout, terr.Kind)
}

func TestProviderSearchClampsMaxResults(t *testing.T) {
	var gotMax string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMax = r.URL.Query().Get("maxresults")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	tool := NewProviderSearch(srv.URL, "svc", "secret", zap.NewNop())
	_, terr := tool.Invoke(context.Background(), json.RawMessage(`{"zip_code":"02142","maxresults":500}`), nil)
	require.Nil(t, terr)
	assert.Equal(t, "50", gotMax)
}

func TestNormalizeZIP(t *testing.T) {
	assert.Equal(t, "02142", normalizeZIP("02142-1234"))
	assert.Equal(t, "02142", normalizeZIP("2142"))
	assert.Equal(t, "90210", normalizeZIP(" 90210 "))
	assert.Equal(t, "", normalizeZIP(""))
}
