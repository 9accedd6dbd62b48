package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// Search converts free text into up to limit candidate places in Brazil.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.Suggestion, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(query))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {strconv.Itoa(limit)},
		"country":      {"br"},
		"language":     {"pt"},
	}

	features, err := c.doRequest(ctx, u+"?"+params.Encode(), "forward")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Suggestion, 0, len(features))
	for _, f := range features {
		if s, ok := f.suggestion(); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Reverse converts coordinates to the best matching place label.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (domain.Suggestion, error) {
	// Mapbox uses lon,lat order.
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"language":     {"pt"},
	}

	features, err := c.doRequest(ctx, u+"?"+params.Encode(), "reverse")
	if err != nil {
		return domain.Suggestion{}, err
	}
	if len(features) == 0 {
		return domain.Suggestion{}, nil
	}
	s, _ := features[0].suggestion()
	return s, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, method string) ([]feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(mapboxResp.Features) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues(method, "empty").Inc()
		c.logger.Debug("mapbox returned no features", "method", method)
		return nil, nil
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, "success").Inc()
	return mapboxResp.Features, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64      `json:"center"` // [lon, lat]
	PlaceName string         `json:"place_name"`
	Text      string         `json:"text"`
	PlaceType []string       `json:"place_type"`
	Context   []featureScope `json:"context"`
}

type featureScope struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (f feature) suggestion() (domain.Suggestion, bool) {
	if len(f.Center) != 2 {
		return domain.Suggestion{}, false
	}
	s := domain.Suggestion{Label: f.PlaceName, Lon: f.Center[0], Lat: f.Center[1]}
	for _, t := range f.PlaceType {
		if t == "neighborhood" {
			s.Neighborhood = f.Text
		}
	}
	for _, scope := range f.Context {
		if s.Neighborhood == "" && strings.HasPrefix(scope.ID, "neighborhood.") {
			s.Neighborhood = scope.Text
		}
	}
	return s, true
}
