// Package facilitator implements the client for the external payment
// facilitator that executes settlements. The Settlement Agent forwards
// validated requests here; the facilitator owns retries, gas handling and
// final confirmation, so this client is a thin request/response wrapper.
package facilitator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/logging"
	"github.com/quantmesh/quantmesh/metrics"
)

// ErrRejected is returned when the facilitator refuses a settlement outright
// (invalid party, unsupported network, insufficient funds). Callers can
// distinguish rejection from transport failure.
var ErrRejected = errors.New("settlement rejected")

// Client submits settlement requests over HTTP/JSON.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	logger  *logging.OpsLogger
}

// Options configures the facilitator client.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	APIKey     string
	Logger     logging.Logger
}

// NewClient constructs a Client for the given facilitator base URL.
func NewClient(baseURL string, optFns ...func(o *Options)) *Client {
	opts := Options{
		Timeout: 15 * time.Second,
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
		logger:  logging.NewOpsLogger(opts.Logger).WithComponent("facilitator"),
	}
}

type settleRequest struct {
	ID       string `json:"id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
	From     string `json:"from"`
	To       string `json:"to"`
	Network  string `json:"network"`
	Gasless  bool   `json:"gasless"`
}

type settleResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	TxHash    string `json:"tx_hash,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Submit sends the settlement to the facilitator and returns its receipt.
// The request must already carry an ID; the Settlement Agent assigns one
// before forwarding.
func (c *Client) Submit(ctx context.Context, req core.SettlementRequest) (core.SettlementReceipt, error) {
	start := time.Now()
	receipt, err := c.submit(ctx, req)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("facilitator", status).Inc()
	metrics.UpstreamRequestDuration.WithLabelValues("facilitator").Observe(time.Since(start).Seconds())
	c.logger.With("request_id", req.ID).LogUpstreamCall("facilitator", time.Since(start), err)
	return receipt, err
}

func (c *Client) submit(ctx context.Context, req core.SettlementRequest) (core.SettlementReceipt, error) {
	body, err := json.Marshal(settleRequest{
		ID:       req.ID,
		Amount:   req.Amount.String(),
		Currency: req.Currency,
		From:     req.From,
		To:       req.To,
		Network:  req.Network,
		Gasless:  req.Gasless,
	})
	if err != nil {
		return core.SettlementReceipt{}, fmt.Errorf("encode settlement: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/settlements", bytes.NewReader(body))
	if err != nil {
		return core.SettlementReceipt{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return core.SettlementReceipt{}, fmt.Errorf("submit settlement: %w", err)
	}
	defer resp.Body.Close()

	var decoded settleResponse
	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest {
		// Rejections carry a JSON body with a reason where available.
		if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr == nil && decoded.Error != "" {
			return core.SettlementReceipt{}, fmt.Errorf("%w: %s", ErrRejected, decoded.Error)
		}
		return core.SettlementReceipt{}, ErrRejected
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return core.SettlementReceipt{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return core.SettlementReceipt{}, fmt.Errorf("decode settlement response: %w", err)
	}

	return core.SettlementReceipt{
		RequestID:   decoded.RequestID,
		Status:      core.SettlementStatus(decoded.Status),
		TxHash:      decoded.TxHash,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// Simulator is an in-process facilitator that accepts every settlement.
// Useful for tests and local development without a facilitator deployment.
type Simulator struct{}

// Submit implements the same contract as Client.Submit, always settling.
func (Simulator) Submit(_ context.Context, req core.SettlementRequest) (core.SettlementReceipt, error) {
	if req.Amount.Sign() <= 0 {
		return core.SettlementReceipt{}, fmt.Errorf("%w: non-positive amount", ErrRejected)
	}
	return core.SettlementReceipt{
		RequestID:   req.ID,
		Status:      core.SettlementSettled,
		SubmittedAt: time.Now().UTC(),
	}, nil
}
