package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantmesh/quantmesh/bus"
	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/logging"
	"github.com/quantmesh/quantmesh/marketdata"
)

// tradingDaysPerYear annualizes daily return statistics.
const tradingDaysPerYear = 365

// var95Z is the one-tailed z-score for a 95% confidence parametric VaR.
const var95Z = 1.645

// RiskInput is the Risk Agent's request record. Volatilities may carry
// precomputed per-symbol annualized volatilities; symbols without an entry
// are computed from fetched price series.
type RiskInput struct {
	Address      string
	Portfolio    core.PortfolioData
	Volatilities map[string]float64
	// SeriesDays controls how much history backs computed volatilities.
	// Zero means 30 days.
	SeriesDays int
}

// RiskAgent computes volatility, VaR and a composite risk score from price
// series and position weights.
type RiskAgent struct {
	BaseAgent
	market marketdata.Service
}

// NewRiskAgent constructs the Risk Agent.
func NewRiskAgent(market marketdata.Service, b *bus.Bus, logger logging.Logger) *RiskAgent {
	a := &RiskAgent{
		BaseAgent: NewBaseAgent(core.AgentRisk, "Risk Agent", b, logger),
		market:    market,
	}
	a.SetDescription("Computes portfolio volatility, value-at-risk and a composite risk score")
	return a
}

// Assess computes the portfolio's risk metrics. Volatilities for symbols
// without a precomputed value are derived from daily closes; independent
// series fetches run concurrently.
func (a *RiskAgent) Assess(ctx context.Context, input RiskInput) (core.RiskMetrics, error) {
	if input.Address == "" {
		return core.RiskMetrics{}, fmt.Errorf("address is required")
	}
	if len(input.Portfolio.Tokens) == 0 {
		return core.RiskMetrics{}, fmt.Errorf("portfolio has no positions")
	}
	total := input.Portfolio.TotalValue
	if total.Sign() <= 0 {
		return core.RiskMetrics{}, fmt.Errorf("portfolio total value must be positive")
	}

	a.Notify("risk.assessment.started", map[string]any{"address": input.Address})

	vols, err := a.resolveVolatilities(ctx, input)
	if err != nil {
		return core.RiskMetrics{}, err
	}

	var (
		portfolioVol  float64
		concentration float64
		factors       []string
	)
	for _, tok := range input.Portfolio.Tokens {
		weight, _ := tok.USDValue.Div(total).Float64()
		vol := vols[tok.Symbol]
		portfolioVol += weight * vol
		concentration += weight * weight
		if weight > 0.5 {
			factors = append(factors, fmt.Sprintf("%s is %.0f%% of the portfolio", tok.Symbol, weight*100))
		}
		if vol > 1.0 {
			factors = append(factors, fmt.Sprintf("%s volatility above 100%% annualized", tok.Symbol))
		}
	}

	if !isFinite(portfolioVol) || !isFinite(concentration) {
		return core.RiskMetrics{}, fmt.Errorf("risk computation produced a non-finite value")
	}

	// One-day 95% parametric VaR over the whole portfolio.
	dailyVol := portfolioVol / math.Sqrt(tradingDaysPerYear)
	valueAtRisk := total.Mul(decimal.NewFromFloat(dailyVol * var95Z))

	score := riskScore(portfolioVol, concentration)
	metrics := core.RiskMetrics{
		Address:       input.Address,
		Volatility:    portfolioVol,
		ValueAtRisk:   valueAtRisk,
		Concentration: concentration,
		RiskScore:     score,
		Level:         riskLevel(score),
		Factors:       factors,
		ComputedAt:    time.Now().UTC(),
	}

	a.Notify("risk.assessment.completed", map[string]any{
		"address":    input.Address,
		"risk_score": score,
		"level":      string(metrics.Level),
	})
	return metrics, nil
}

// resolveVolatilities merges precomputed volatilities with ones derived from
// fetched price series. Series for different symbols are independent, so the
// fetches fan out concurrently.
func (a *RiskAgent) resolveVolatilities(ctx context.Context, input RiskInput) (map[string]float64, error) {
	days := input.SeriesDays
	if days <= 0 {
		days = 30
	}

	vols := make(map[string]float64, len(input.Portfolio.Tokens))
	var missing []string
	for _, tok := range input.Portfolio.Tokens {
		if v, ok := input.Volatilities[tok.Symbol]; ok {
			if !isFinite(v) || v < 0 {
				return nil, fmt.Errorf("precomputed volatility for %s is not finite", tok.Symbol)
			}
			vols[tok.Symbol] = v
			continue
		}
		missing = append(missing, tok.Symbol)
	}
	if len(missing) > 0 && a.market == nil {
		return nil, fmt.Errorf("no market data service configured and no precomputed volatility for %s", strings.Join(missing, ", "))
	}

	type fetched struct {
		symbol string
		vol    float64
		err    error
	}
	results := make(chan fetched, len(missing))
	for _, symbol := range missing {
		go func(symbol string) {
			// A panic here would escape the caller's recovery, so convert
			// it to an error on the results channel.
			defer func() {
				if r := recover(); r != nil {
					results <- fetched{symbol: symbol, err: fmt.Errorf("internal error: %v", r)}
				}
			}()
			closes, err := a.market.PriceSeries(ctx, symbol, days)
			if err != nil {
				results <- fetched{symbol: symbol, err: err}
				return
			}
			vol, err := AnnualizedVolatility(closes)
			results <- fetched{symbol: symbol, vol: vol, err: err}
		}(symbol)
	}
	for range missing {
		r := <-results
		if r.err != nil {
			return nil, fmt.Errorf("volatility for %s: %w", r.symbol, r.err)
		}
		vols[r.symbol] = r.vol
	}
	return vols, nil
}

// AnnualizedVolatility computes the annualized standard deviation of daily
// log returns over the series (oldest first). It needs at least three
// closes to produce a sample standard deviation.
func AnnualizedVolatility(closes []float64) (float64, error) {
	if len(closes) < 3 {
		return 0, fmt.Errorf("need at least 3 closes, got %d", len(closes))
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return 0, fmt.Errorf("non-positive close in series")
		}
		returns = append(returns, math.Log(closes[i]/closes[i-1]))
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)

	vol := math.Sqrt(variance) * math.Sqrt(tradingDaysPerYear)
	if !isFinite(vol) {
		return 0, fmt.Errorf("volatility is not finite")
	}
	return vol, nil
}

// riskScore combines annualized volatility and concentration into a 0..100
// composite. Volatility saturates at 150% annualized.
func riskScore(vol, concentration float64) float64 {
	volComponent := math.Min(vol/1.5, 1) * 60
	concComponent := concentration * 40
	return math.Min(volComponent+concComponent, 100)
}

func riskLevel(score float64) core.RiskLevel {
	switch {
	case score < 30:
		return core.RiskLevelLow
	case score < 55:
		return core.RiskLevelMedium
	case score < 75:
		return core.RiskLevelHigh
	default:
		return core.RiskLevelCritical
	}
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
