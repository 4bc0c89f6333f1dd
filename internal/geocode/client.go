// LexSegment - User Segmentation and Document Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lexsegment

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/lexsegment/internal/logging"
	"github.com/tomtom215/lexsegment/internal/metrics"
)

// breakerName labels the breaker in logs and metrics.
const breakerName = "amap-regeo"

// amapOK is the status of a successful AMap response.
const amapOK = "1"

// ClientConfig configures the AMap client.
type ClientConfig struct {
	Endpoint string
	APIKey   string
	// RequestsPerSecond <= 0 disables rate limiting.
	RequestsPerSecond float64
	Timeout           time.Duration

	// HTTPClient overrides the default client. Optional.
	HTTPClient *http.Client
}

// Client calls the AMap regeo API in batch mode.
//
// DETERMINISM NOTE: the circuit breaker and the rate limiter use real time.
type Client struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	http     *http.Client
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker[[]Address]
}

var _ Geocoder = (*Client)(nil)

// regeoResponse is the regeo batch response. Location fields are strings,
// or an empty JSON array when AMap has no value.
type regeoResponse struct {
	Status     string `json:"status"`
	Info       string `json:"info"`
	InfoCode   string `json:"infocode"`
	Regeocodes []struct {
		AddressComponent struct {
			Province json.RawMessage `json:"province"`
			City     json.RawMessage `json:"city"`
			District json.RawMessage `json:"district"`
		} `json:"addressComponent"`
	} `json:"regeocodes"`
}

// NewClient creates an AMap client.
// Circuit breaker configuration:
// - Opens after 5 consecutive failed batches
// - 1 minute measurement window
// - 30 second timeout before a single trial request
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[[]Address](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= 5
			if shouldTrip {
				logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).Msg("[CIRCUIT BREAKER] Opening AMap circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] AMap state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		timeout:  cfg.Timeout,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, 1),
		cb:       cb,
	}
}

// stateToFloat maps breaker states to the gauge encoding.
func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// ReverseBatch resolves coords in one request.
func (c *Client) ReverseBatch(ctx context.Context, coords []Coordinate) ([]Address, error) {
	if len(coords) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	addrs, err := c.cb.Execute(func() ([]Address, error) {
		return c.query(ctx, coords)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.GeocodeRequests.WithLabelValues("rejected").Inc()
		return nil, err
	case err != nil:
		metrics.GeocodeRequests.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.GeocodeRequests.WithLabelValues("success").Inc()
	return addrs, nil
}

func (c *Client) query(ctx context.Context, coords []Coordinate) ([]Address, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	locations := make([]string, len(coords))
	for i, co := range coords {
		locations[i] = co.String()
	}
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("location", strings.Join(locations, "|"))
	params.Set("batch", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query AMap: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAPI, resp.StatusCode)
	}

	var result regeoResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode AMap response: %w", err)
	}
	if result.Status != amapOK {
		return nil, fmt.Errorf("%w: %s (%s)", ErrAPI, result.Info, result.InfoCode)
	}
	if len(result.Regeocodes) != len(coords) {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrBatchMismatch, len(coords), len(result.Regeocodes))
	}

	addrs := make([]Address, len(result.Regeocodes))
	for i, r := range result.Regeocodes {
		ac := r.AddressComponent
		addrs[i] = normalize(text(ac.Province), text(ac.City), text(ac.District))
	}
	return addrs, nil
}

// text returns the string held by raw, or Unresolved for arrays, null and
// anything else AMap uses to mean "no value".
func text(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Unresolved
	}
	return s
}

// normalize shortens the province to its two-character short form and
// derives the city of municipalities, which AMap leaves empty.
func normalize(province, city, district string) Address {
	if r := []rune(province); len(r) > 2 {
		province = string(r[:2])
	} else if province == "" {
		province = Unresolved
	}
	switch {
	case province == Unresolved:
		city = Unresolved
	case city == "" || city == Unresolved:
		city = province + "市"
	}
	if district == "" {
		district = Unresolved
	}
	return Address{Province: province, City: city, District: district}
}
