package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celulas/locator/internal/observability"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Search_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "Rudge Ramos")
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "br", r.URL.Query().Get("country"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		resp := response{
			Features: []feature{
				{
					Center:    []float64{-46.57, -23.65},
					PlaceName: "Rudge Ramos, São Bernardo do Campo, São Paulo, Brasil",
					Text:      "Rudge Ramos",
					PlaceType: []string{"neighborhood"},
				},
				{
					Center:    []float64{-46.58, -23.66},
					PlaceName: "Rua Rudge Ramos, São Paulo, Brasil",
					Text:      "Rua Rudge Ramos",
					PlaceType: []string{"address"},
					Context:   []featureScope{{ID: "neighborhood.123", Text: "Centro"}},
				},
				{PlaceName: "no center"},
			},
		}
		w.Header().Set(headerContentType, contentTypeJSON)
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got, err := c.Search(context.Background(), "Rudge Ramos", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Rudge Ramos", got[0].Neighborhood)
	assert.InDelta(t, -23.65, got[0].Lat, 1e-9)
	assert.InDelta(t, -46.57, got[0].Lon, 1e-9)
	assert.Equal(t, "Centro", got[1].Neighborhood)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("forward", "success")), 0)
}

func TestClient_Reverse_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "-46.559000,-23.689000")
		resp := response{Features: []feature{{Center: []float64{-46.559, -23.689}, PlaceName: "Av. Kennedy, 500"}}}
		w.Header().Set(headerContentType, contentTypeJSON)
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	got, err := testClient(srv.URL).Reverse(context.Background(), -23.689, -46.559)
	require.NoError(t, err)
	assert.Equal(t, "Av. Kennedy, 500", got.Label)
}

func TestClient_Search_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	got, err := c.Search(context.Background(), "nowhere", 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	rev, err := c.Reverse(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, rev.Label)
}

func TestClient_Search_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized - Invalid Token"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Search(context.Background(), "Centro", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.GeocodeRequests.WithLabelValues("forward", "error")), 0)
}

func TestClient_Search_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient.Timeout = 50 * time.Millisecond
	_, err := c.Search(context.Background(), "Centro", 5)
	require.Error(t, err)
}
