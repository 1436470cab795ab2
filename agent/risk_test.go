package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmesh/quantmesh/bus"
	"github.com/quantmesh/quantmesh/core"
)

func TestRiskAgent_Assess_PrecomputedVolatilities(t *testing.T) {
	a := NewRiskAgent(&stubMarket{}, nil, nil)

	metrics, err := a.Assess(context.Background(), RiskInput{
		Address:      "0xabc",
		Portfolio:    twoAssetPortfolio(),
		Volatilities: map[string]float64{"ETH": 0.8, "USDC": 0.01},
	})
	require.NoError(t, err)

	// Weighted volatility: 0.6*0.8 + 0.4*0.01
	assert.InDelta(t, 0.484, metrics.Volatility, 1e-9)
	// Herfindahl: 0.36 + 0.16
	assert.InDelta(t, 0.52, metrics.Concentration, 1e-9)
	assert.Equal(t, core.RiskLevelMedium, metrics.Level)
	assert.Greater(t, metrics.RiskScore, 30.0)
	assert.Less(t, metrics.RiskScore, 55.0)

	// One-day 95% VaR stays a small fraction of total value.
	varUSD, _ := metrics.ValueAtRisk.Float64()
	assert.InDelta(t, 416.7, varUSD, 1.0)
	assert.False(t, metrics.ComputedAt.IsZero())
}

func TestRiskAgent_Assess_FetchesMissingSeries(t *testing.T) {
	market := &stubMarket{series: map[string][]float64{
		"ETH":  {100, 102, 99, 103, 101, 104, 100},
		"USDC": {1, 1, 1, 1, 1, 1, 1},
	}}
	a := NewRiskAgent(market, nil, nil)

	metrics, err := a.Assess(context.Background(), RiskInput{
		Address:   "0xabc",
		Portfolio: twoAssetPortfolio(),
	})
	require.NoError(t, err)
	assert.Greater(t, metrics.Volatility, 0.0)
}

func TestRiskAgent_Assess_SeriesFailure(t *testing.T) {
	a := NewRiskAgent(&stubMarket{err: errors.New("feed down")}, nil, nil)

	_, err := a.Assess(context.Background(), RiskInput{
		Address:   "0xabc",
		Portfolio: twoAssetPortfolio(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed down")
}

func TestRiskAgent_Assess_InputValidation(t *testing.T) {
	a := NewRiskAgent(&stubMarket{}, nil, nil)

	_, err := a.Assess(context.Background(), RiskInput{Portfolio: twoAssetPortfolio()})
	assert.Error(t, err, "missing address")

	_, err = a.Assess(context.Background(), RiskInput{Address: "0xabc"})
	assert.Error(t, err, "empty portfolio")
}

// panickyMarket simulates a market data client whose series fetch panics.
type panickyMarket struct{ stubMarket }

func (p *panickyMarket) PriceSeries(context.Context, string, int) ([]float64, error) {
	panic("price feed state corrupted")
}

func TestRiskAgent_Assess_PanickingSeriesFetch(t *testing.T) {
	a := NewRiskAgent(&panickyMarket{}, nil, nil)

	var err error
	assert.NotPanics(t, func() {
		_, err = a.Assess(context.Background(), RiskInput{
			Address:   "0xabc",
			Portfolio: twoAssetPortfolio(),
		})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal error")
	assert.Contains(t, err.Error(), "price feed state corrupted")
}

func TestRiskAgent_Assess_NilMarketRequiresPrecomputed(t *testing.T) {
	a := NewRiskAgent(nil, nil, nil)

	var err error
	assert.NotPanics(t, func() {
		_, err = a.Assess(context.Background(), RiskInput{
			Address:   "0xabc",
			Portfolio: twoAssetPortfolio(),
		})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no market data service configured")

	// With every volatility supplied there is nothing to fetch.
	_, err = a.Assess(context.Background(), RiskInput{
		Address:      "0xabc",
		Portfolio:    twoAssetPortfolio(),
		Volatilities: map[string]float64{"ETH": 0.8, "USDC": 0.01},
	})
	assert.NoError(t, err)
}

func TestRiskAgent_Assess_RejectsNonFinitePrecomputed(t *testing.T) {
	a := NewRiskAgent(&stubMarket{}, nil, nil)

	_, err := a.Assess(context.Background(), RiskInput{
		Address:      "0xabc",
		Portfolio:    twoAssetPortfolio(),
		Volatilities: map[string]float64{"ETH": -1, "USDC": 0.01},
	})
	assert.Error(t, err)
}

func TestRiskAgent_PublishesProgress(t *testing.T) {
	b := bus.New()
	a := NewRiskAgent(&stubMarket{}, b, nil)

	_, err := a.Assess(context.Background(), RiskInput{
		Address:      "0xabc",
		Portfolio:    twoAssetPortfolio(),
		Volatilities: map[string]float64{"ETH": 0.5, "USDC": 0.01},
	})
	require.NoError(t, err)

	stats := b.Stats()
	assert.Equal(t, 1, stats.ByType["risk.assessment.started"])
	assert.Equal(t, 1, stats.ByType["risk.assessment.completed"])
	assert.Equal(t, 2, stats.BySender[core.AgentRisk])
}

func TestAnnualizedVolatility(t *testing.T) {
	t.Run("flat series has zero volatility", func(t *testing.T) {
		vol, err := AnnualizedVolatility([]float64{100, 100, 100, 100})
		require.NoError(t, err)
		assert.Zero(t, vol)
	})

	t.Run("volatile series", func(t *testing.T) {
		vol, err := AnnualizedVolatility([]float64{100, 110, 95, 105, 90})
		require.NoError(t, err)
		assert.Greater(t, vol, 1.0, "double-digit daily swings annualize above 100%")
	})

	t.Run("too short", func(t *testing.T) {
		_, err := AnnualizedVolatility([]float64{100, 101})
		assert.Error(t, err)
	})

	t.Run("non-positive close", func(t *testing.T) {
		_, err := AnnualizedVolatility([]float64{100, 0, 100})
		assert.Error(t, err)
	})
}

func TestRiskLevels(t *testing.T) {
	assert.Equal(t, core.RiskLevelLow, riskLevel(10))
	assert.Equal(t, core.RiskLevelMedium, riskLevel(40))
	assert.Equal(t, core.RiskLevelHigh, riskLevel(60))
	assert.Equal(t, core.RiskLevelCritical, riskLevel(90))
}
