// Package nominatim implements forward and reverse geocoding over the
// OpenStreetMap Nominatim API.
package nominatim

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

// Client implements domain.Geocoder using Nominatim.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim client. Nominatim's usage policy requires an
// identifying User-Agent.
func NewClient(baseURL, userAgent string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Search returns up to limit places matching query.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.Suggestion, error) {
	params := url.Values{
		"format":         {"jsonv2"},
		"q":              {query},
		"limit":          {strconv.Itoa(limit)},
		"addressdetails": {"1"},
	}

	var places []place
	if err := c.get(ctx, "/search", params, "forward", &places); err != nil {
		return nil, err
	}

	out := make([]domain.Suggestion, 0, len(places))
	for _, p := range places {
		s, err := p.suggestion()
		if err != nil {
			c.logger.Warn("skipping nominatim result", "error", err, "label", p.DisplayName)
			continue
		}
		out = append(out, s)
	}
	c.observe("forward", len(out) > 0)
	return out, nil
}

// Reverse returns the label of the place at lat/lon. Nominatim answers
// {"error": "Unable to geocode"} for open water and similar; that yields an
// empty Suggestion.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (domain.Suggestion, error) {
	params := url.Values{
		"format":         {"jsonv2"},
		"lat":            {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":            {strconv.FormatFloat(lon, 'f', -1, 64)},
		"addressdetails": {"1"},
	}

	var p place
	if err := c.get(ctx, "/reverse", params, "reverse", &p); err != nil {
		return domain.Suggestion{}, err
	}
	if p.Error != "" || p.DisplayName == "" {
		c.observe("reverse", false)
		return domain.Suggestion{}, nil
	}
	s, err := p.suggestion()
	if err != nil {
		return domain.Suggestion{}, err
	}
	c.observe("reverse", true)
	return s, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, method string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "pt-BR")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) observe(method string, found bool) {
	outcome := "success"
	if !found {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
}

// Nominatim API response types. Coordinates arrive as strings.

type place struct {
	Lat         string  `json:"lat"`
	Lon         string  `json:"lon"`
	DisplayName string  `json:"display_name"`
	Address     address `json:"address"`
	Error       string  `json:"error"`
}

type address struct {
	Neighbourhood string `json:"neighbourhood"`
	Suburb        string `json:"suburb"`
	CityDistrict  string `json:"city_district"`
}

func (p place) suggestion() (domain.Suggestion, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}
	return domain.Suggestion{
		Label:        p.DisplayName,
		Lat:          lat,
		Lon:          lon,
		Neighborhood: firstNonEmpty(p.Address.Suburb, p.Address.Neighbourhood, p.Address.CityDistrict),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
