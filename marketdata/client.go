// Package marketdata implements the external market data collaborator: an
// HTTP client for spot prices, historical series and prediction-market
// signals, an optional Redis-backed price cache, and an on-chain balance
// reader used to compose portfolio snapshots.
//
// Everything here sits outside the orchestration core; the core treats these
// clients as black boxes with sane timeout behavior and performs no retries
// of its own.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/logging"
	"github.com/quantmesh/quantmesh/metrics"
)

// Service is the market data surface the agents and orchestrator consume.
type Service interface {
	// SpotPrices returns current USD prices keyed by symbol.
	SpotPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
	// PriceSeries returns the last `days` daily closes for the symbol,
	// oldest first.
	PriceSeries(ctx context.Context, symbol string, days int) ([]float64, error)
	// Predictions returns prediction-market signals relevant to the address.
	Predictions(ctx context.Context, address string) ([]core.Prediction, error)
	// Portfolio returns a fresh holdings snapshot for the address.
	Portfolio(ctx context.Context, address string) (core.PortfolioData, error)
}

// Options configures the HTTP client.
type Options struct {
	// HTTPClient is used for all requests. Defaults to a client with the
	// given Timeout.
	HTTPClient *http.Client
	// Timeout applies when no HTTPClient override is supplied.
	Timeout time.Duration
	// APIKey, when set, is sent as a bearer token.
	APIKey string
	// Logger receives request diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Client talks to the market data API over HTTP/JSON.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	logger  *logging.OpsLogger
}

// NewClient constructs a Client for the given base URL.
func NewClient(baseURL string, optFns ...func(o *Options)) *Client {
	opts := Options{
		Timeout: 10 * time.Second,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  opts.APIKey,
		httpc:   opts.HTTPClient,
		logger:  logging.NewOpsLogger(opts.Logger).WithComponent("marketdata"),
	}
}

type pricesResponse struct {
	Prices map[string]decimal.Decimal `json:"prices"`
}

// SpotPrices implements Service.
func (c *Client) SpotPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	if len(symbols) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	q := url.Values{"symbols": {strings.Join(symbols, ",")}}
	var resp pricesResponse
	if err := c.getJSON(ctx, "/v1/prices?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch spot prices: %w", err)
	}
	return resp.Prices, nil
}

type seriesResponse struct {
	Symbol string    `json:"symbol"`
	Closes []float64 `json:"closes"`
}

// PriceSeries implements Service.
func (c *Client) PriceSeries(ctx context.Context, symbol string, days int) ([]float64, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if days <= 0 {
		days = 30
	}
	path := fmt.Sprintf("/v1/history/%s?days=%d", url.PathEscape(symbol), days)
	var resp seriesResponse
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetch price series for %s: %w", symbol, err)
	}
	return resp.Closes, nil
}

type signalsResponse struct {
	Predictions []core.Prediction `json:"predictions"`
}

// Predictions implements Service.
func (c *Client) Predictions(ctx context.Context, address string) ([]core.Prediction, error) {
	q := url.Values{"address": {address}}
	var resp signalsResponse
	if err := c.getJSON(ctx, "/v1/signals?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetch prediction signals: %w", err)
	}
	return resp.Predictions, nil
}

// Portfolio implements Service.
func (c *Client) Portfolio(ctx context.Context, address string) (core.PortfolioData, error) {
	if address == "" {
		return core.PortfolioData{}, fmt.Errorf("address is required")
	}
	var data core.PortfolioData
	if err := c.getJSON(ctx, "/v1/portfolio/"+url.PathEscape(address), &data); err != nil {
		return core.PortfolioData{}, fmt.Errorf("fetch portfolio for %s: %w", address, err)
	}
	if data.LastUpdated.IsZero() {
		data.LastUpdated = time.Now().UTC()
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	start := time.Now()
	err := c.doGetJSON(ctx, path, out)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("marketdata", status).Inc()
	metrics.UpstreamRequestDuration.WithLabelValues("marketdata").Observe(time.Since(start).Seconds())
	c.logger.With("path", path).LogUpstreamCall("marketdata", time.Since(start), err)
	return err
}

func (c *Client) doGetJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
