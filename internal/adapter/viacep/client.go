// Package viacep resolves Brazilian postal codes (CEP) through the ViaCEP API.
package viacep

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
)

// ErrNotFound is returned when ViaCEP has no address for the postal code.
var ErrNotFound = domain.ErrPostalCodeNotFound

// Client implements domain.PostalLookup.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a ViaCEP client rooted at baseURL (e.g. https://viacep.com.br/ws).
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// Lookup returns the street and neighborhood of a postal code. Masked input
// is accepted; anything without exactly 8 digits fails with
// domain.ErrInvalidPostalCode before any request is made.
func (c *Client) Lookup(ctx context.Context, cep string) (domain.PostalAddress, error) {
	digits, err := domain.NormalizeCEP(cep)
	if err != nil {
		return domain.PostalAddress{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+digits+"/json/", nil)
	if err != nil {
		return domain.PostalAddress{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues("postal").Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("postal", "error").Inc()
		return domain.PostalAddress{}, fmt.Errorf("postal lookup request: %w", err)
	}
	defer resp.Body.Close()

	// ViaCEP answers 400 for malformed codes, which NormalizeCEP already rules out.
	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues("postal", "error").Inc()
		return domain.PostalAddress{}, fmt.Errorf("viacep API error: status %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("postal", "error").Inc()
		return domain.PostalAddress{}, fmt.Errorf("decode response: %w", err)
	}
	if bool(body.Erro) {
		c.metrics.GeocodeRequests.WithLabelValues("postal", "empty").Inc()
		c.logger.Debug("postal code not found", "cep", digits)
		return domain.PostalAddress{}, ErrNotFound
	}

	c.metrics.GeocodeRequests.WithLabelValues("postal", "success").Inc()
	return domain.PostalAddress{
		PostalCode:   digits,
		Street:       body.Logradouro,
		Neighborhood: body.Bairro,
		City:         body.Localidade,
		State:        body.UF,
	}, nil
}

type response struct {
	Logradouro string   `json:"logradouro"`
	Bairro     string   `json:"bairro"`
	Localidade string   `json:"localidade"`
	UF         string   `json:"uf"`
	Erro       flexBool `json:"erro"`
}

// flexBool accepts both true and "true"; ViaCEP has returned either.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	*b = flexBool(s == "true")
	return nil
}
