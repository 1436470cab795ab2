package agent

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmesh/quantmesh/core"
)

func TestHedgingAgent_Analyze_HighRiskOpensHedge(t *testing.T) {
	a := NewHedgingAgent(nil, nil)

	analysis, err := a.Analyze(context.Background(), HedgeInput{
		Asset:    "ETH",
		Notional: usd("10000"),
		Risk:     core.RiskMetrics{RiskScore: 65, Level: core.RiskLevelHigh, Volatility: 0.7},
	})
	require.NoError(t, err)

	rec := analysis.Recommendation
	assert.Equal(t, HedgeActionOpen, rec.Action)
	assert.Equal(t, "SHORT", rec.Side)
	assert.Equal(t, "ETH-PERP", rec.Market)
	assert.True(t, rec.Size.Equal(usd("3500")), "35%% band for 0.7 volatility, got %s", rec.Size)
	assert.Equal(t, 2.0, rec.Leverage)
	assert.NotEmpty(t, rec.Reasoning)
	assert.True(t, analysis.Exposure.Equal(usd("6500")))
}

func TestHedgingAgent_Analyze_LowRiskMaintains(t *testing.T) {
	a := NewHedgingAgent(nil, nil)

	analysis, err := a.Analyze(context.Background(), HedgeInput{
		Asset:    "ETH",
		Notional: usd("10000"),
		Risk:     core.RiskMetrics{RiskScore: 20, Level: core.RiskLevelLow, Volatility: 0.2},
	})
	require.NoError(t, err)
	assert.Equal(t, HedgeActionMaintain, analysis.Recommendation.Action)
}

func TestHedgingAgent_SizingBands(t *testing.T) {
	cases := []struct {
		vol      float64
		ratio    float64
		leverage float64
	}{
		{1.2, 0.5, 1},
		{0.7, 0.35, 2},
		{0.4, 0.2, 2},
		{0.1, 0.1, 3},
	}
	for _, tc := range cases {
		ratio, leverage := hedgeSizing(tc.vol)
		assert.Equal(t, tc.ratio, ratio, "vol %.2f", tc.vol)
		assert.Equal(t, tc.leverage, leverage, "vol %.2f", tc.vol)
	}
}

func TestHedgingAgent_Analyze_Validation(t *testing.T) {
	a := NewHedgingAgent(nil, nil)

	_, err := a.Analyze(context.Background(), HedgeInput{Notional: usd("100")})
	assert.Error(t, err, "missing asset")

	_, err = a.Analyze(context.Background(), HedgeInput{Asset: "ETH", Notional: decimal.Zero})
	assert.Error(t, err, "non-positive notional")
}
