package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmesh/quantmesh/agent"
	"github.com/quantmesh/quantmesh/bus"
	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/orchestrator"
)

type fixedMarket struct{}

func (fixedMarket) SpotPrices(_ context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	out := map[string]decimal.Decimal{}
	for _, s := range symbols {
		out[s] = decimal.NewFromInt(1)
	}
	return out, nil
}

func (fixedMarket) PriceSeries(_ context.Context, _ string, _ int) ([]float64, error) {
	return []float64{100, 102, 99, 103, 101, 104, 100}, nil
}

func (fixedMarket) Predictions(_ context.Context, _ string) ([]core.Prediction, error) {
	return []core.Prediction{
		{Market: "ETH below 2000", Impact: core.ImpactHigh, Probability: 80, Recommendation: core.RecommendationHedge},
	}, nil
}

func (fixedMarket) Portfolio(_ context.Context, _ string) (core.PortfolioData, error) {
	return core.PortfolioData{
		Address: "0xabc",
		Tokens: []core.TokenHolding{
			{Symbol: "ETH", Balance: decimal.RequireFromString("2.4"), Price: decimal.NewFromInt(2500), USDValue: decimal.NewFromInt(6000)},
			{Symbol: "USDC", Balance: decimal.NewFromInt(4000), Price: decimal.NewFromInt(1), USDValue: decimal.NewFromInt(4000)},
		},
		TotalValue:  decimal.NewFromInt(10000),
		LastUpdated: time.Now().UTC(),
	}, nil
}

type okFacilitator struct{}

func (okFacilitator) Submit(_ context.Context, req core.SettlementRequest) (core.SettlementReceipt, error) {
	return core.SettlementReceipt{RequestID: req.ID, Status: core.SettlementSettled, SubmittedAt: time.Now().UTC()}, nil
}

func newTestServer(t *testing.T) (*Server, *bus.Bus) {
	t.Helper()
	b := bus.New()
	market := fixedMarket{}

	r := agent.NewRegistry()
	r.Register(agent.NewRiskAgent(market, b, nil))
	r.Register(agent.NewHedgingAgent(b, nil))
	r.Register(agent.NewSettlementAgent(okFacilitator{}, b, nil))
	r.Register(agent.NewReportingAgent(b, nil))
	r.Register(agent.NewLeadAgent(nil, b, nil))

	orch := orchestrator.New(r, b, market)
	return New(orch, b), b
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestAssessRiskEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/portfolio/risk", `{"address":"0xabc"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res core.Result[core.RiskMetrics]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, core.AgentRisk, res.AgentID)
	assert.Greater(t, res.Data.RiskScore, 0.0)
}

func TestAssessRiskEndpoint_FailureStillEnveloped(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/portfolio/risk", `{}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res core.Result[core.RiskMetrics]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "address is required")
}

func TestAssessRiskEndpoint_MalformedBody(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/portfolio/risk", `{"address":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestHedgeEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"asset":"ETH","notional":"10000","risk":{"risk_score":70,"level":"high","volatility":0.8}}`
	w := doJSON(t, s, http.MethodPost, "/v1/portfolio/hedge", body)
	require.Equal(t, http.StatusOK, w.Code)

	var res core.Result[core.HedgeAnalysis]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, "ETH-PERP", res.Data.Recommendation.Market)
	assert.Equal(t, agent.HedgeActionOpen, res.Data.Recommendation.Action)
}

func TestDecisionEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/portfolio/action", `{"address":"0xabc"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res core.Result[core.PortfolioDecision]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, core.ActionWithdraw, res.Data.Action)
	assert.Equal(t, 0.85, res.Data.Confidence)
	assert.NotNil(t, res.Data.Hedge)
}

func TestReportEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/v1/portfolio/report", `{"address":"0xabc"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res core.Result[core.PortfolioReport]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, 2, res.Data.TokenCount)
	assert.NotEmpty(t, res.Data.Sections)
}

func TestSettlementEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"amount":"250","currency":"USDC","from":"0xabc","to":"0xdef","network":"base","gasless":true}`
	w := doJSON(t, s, http.MethodPost, "/v1/settlements", body)
	require.Equal(t, http.StatusOK, w.Code)

	var res core.Result[core.SettlementReceipt]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success, res.Error)
	assert.Equal(t, core.SettlementSettled, res.Data.Status)
}

func TestBusEndpoints(t *testing.T) {
	s, b := newTestServer(t)

	b.Send(core.NewMessage("risk", "lead", "risk.assessment.completed", map[string]any{"risk_score": 40}))
	b.Broadcast(core.NewBroadcastMessage("lead", "portfolio.decision", nil))

	w := doJSON(t, s, http.MethodGet, "/v1/bus/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Messages []core.AgentMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history.Messages, 2)

	w = doJSON(t, s, http.MethodGet, "/v1/bus/agents/lead/messages", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history.Messages, 2, "addressed plus broadcast")

	w = doJSON(t, s, http.MethodGet, "/v1/bus/stats", "")
	var stats bus.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)

	w = doJSON(t, s, http.MethodDelete, "/v1/bus/history", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, b.History(0))
}

func TestHistoryLimitQuery(t *testing.T) {
	s, b := newTestServer(t)
	for i := 0; i < 5; i++ {
		b.Send(core.NewMessage("system", "risk", "tick", i))
	}

	w := doJSON(t, s, http.MethodGet, "/v1/bus/history?limit=2", "")
	var history struct {
		Messages []core.AgentMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Len(t, history.Messages, 2)
}
