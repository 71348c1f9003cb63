package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectCoverage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/github/acme/widgets/", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name": "widgets", "totals": {"coverage": 87.25, "files": 12, "lines": 3400}}`))
	}))
	defer srv.Close()

	pct, err := NewCoverageClient(srv.URL, "secret").ProjectCoverage(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	assert.InDelta(t, 87.25, pct, 1e-9)
}

func TestProjectCoverage_StringValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"totals": {"coverage": "64.5"}}`))
	}))
	defer srv.Close()

	pct, err := NewCoverageClient(srv.URL, "t").ProjectCoverage(context.Background(), "o", "r")
	require.NoError(t, err)
	assert.InDelta(t, 64.5, pct, 1e-9)
}

func TestProjectCoverage_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewCoverageClient(srv.URL, "bad").ProjectCoverage(context.Background(), "o", "r")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
