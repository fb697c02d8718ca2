package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "svc", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "application/fhir+json", r.Header.Get("Accept"))
		w.Write([]byte(`{"resourceType":"Bundle"}`))
	}))
	defer srv.Close()

	c := New("svc", "secret", 5*time.Second)
	body, err := c.Bundle(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.JSONEq(t, `{"resourceType":"Bundle"}`, string(body))
}

func TestBundleNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New("svc", "secret", 5*time.Second)
	_, err := c.Bundle(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestBundleUnreachableEndpoint(t *testing.T) {
	c := New("svc", "secret", 100*time.Millisecond)
	_, err := c.Bundle(context.Background(), "http://127.0.0.1:1")
	assert.Error(t, err)
}
