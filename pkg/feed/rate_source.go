package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/erain9/tradeshield/pkg/core"
)

// httpRateSource implements core.RateSource using a ticker-price HTTP API
type httpRateSource struct {
	client  *http.Client
	cfg     *Config
	logger  zerolog.Logger
	baseURL string
}

// tickerResponse represents the response from the ticker price endpoint
type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// NewRateSource creates a core.RateSource backed by the configured
// ticker-price HTTP API.
func NewRateSource(cfg *Config) (core.RateSource, error) {
	client := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Transport: &http.Transport{
			MaxIdleConns:       10,
			IdleConnTimeout:    30 * time.Second,
			DisableCompression: true,
		},
	}

	return &httpRateSource{
		client:  client,
		cfg:     cfg,
		logger:  log.With().Str("component", "httpRateSource").Logger(),
		baseURL: cfg.PriceSourceURL,
	}, nil
}

// MarkRate fetches the current rate for a trading pair
func (s *httpRateSource) MarkRate(ctx context.Context, baseDenom, quoteDenom string) (fpdecimal.Decimal, error) {
	symbol := strings.ToUpper(baseDenom + quoteDenom)
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", s.baseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fpdecimal.Zero, fmt.Errorf("failed to create request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		rate, err := s.fetch(req)
		if err == nil {
			return rate, nil
		}
		lastErr = err
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("symbol", symbol).
			Msg("mark rate fetch failed")
	}

	return fpdecimal.Zero, fmt.Errorf("mark rate for %s after %d attempts: %w", symbol, s.cfg.MaxRetries, lastErr)
}

func (s *httpRateSource) fetch(req *http.Request) (fpdecimal.Decimal, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return fpdecimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fpdecimal.Zero, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var ticker tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&ticker); err != nil {
		return fpdecimal.Zero, fmt.Errorf("failed to decode ticker response: %w", err)
	}

	rate, err := fpdecimal.FromString(ticker.Price)
	if err != nil {
		return fpdecimal.Zero, fmt.Errorf("failed to parse price %q: %w", ticker.Price, err)
	}

	return rate, nil
}

// Static is a fixed-rate core.RateSource keyed by "base/quote". Used by
// tests and the loadtest driver.
type Static map[string]fpdecimal.Decimal

// MarkRate implements core.RateSource
func (s Static) MarkRate(_ context.Context, baseDenom, quoteDenom string) (fpdecimal.Decimal, error) {
	rate, ok := s[baseDenom+"/"+quoteDenom]
	if !ok {
		return fpdecimal.Zero, fmt.Errorf("no rate for %s/%s", baseDenom, quoteDenom)
	}
	return rate, nil
}
