package agent

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/quantmesh/quantmesh/bus"
	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/logging"
)

// Hedge actions produced by the Hedging Agent.
const (
	HedgeActionOpen     = "OPEN_HEDGE"
	HedgeActionMaintain = "MAINTAIN"
)

// HedgeInput is the Hedging Agent's request record: the asset to hedge, the
// notional exposure in USD, and the risk metrics the recommendation derives
// from.
type HedgeInput struct {
	Asset    string
	Notional decimal.Decimal
	Risk     core.RiskMetrics
}

// HedgingAgent derives a hedge recommendation from risk output. The sizing
// is a fixed volatility-banded ratio of the notional; leverage rises with
// the band so the hedge ties up less collateral when conviction is higher.
type HedgingAgent struct {
	BaseAgent
}

// NewHedgingAgent constructs the Hedging Agent.
func NewHedgingAgent(b *bus.Bus, logger logging.Logger) *HedgingAgent {
	a := &HedgingAgent{
		BaseAgent: NewBaseAgent(core.AgentHedging, "Hedging Agent", b, logger),
	}
	a.SetDescription("Derives perp-market hedge recommendations from risk metrics and notional exposure")
	return a
}

// Analyze produces the hedge analysis for the given exposure.
func (a *HedgingAgent) Analyze(_ context.Context, input HedgeInput) (core.HedgeAnalysis, error) {
	if input.Asset == "" {
		return core.HedgeAnalysis{}, fmt.Errorf("asset is required")
	}
	if input.Notional.Sign() <= 0 {
		return core.HedgeAnalysis{}, fmt.Errorf("notional value must be positive")
	}

	ratio, leverage := hedgeSizing(input.Risk.Volatility)
	size := input.Notional.Mul(decimal.NewFromFloat(ratio)).Round(2)

	action := HedgeActionMaintain
	reasoning := fmt.Sprintf(
		"Risk score %.0f (%s) does not warrant a new hedge; maintaining current exposure of %s %s.",
		input.Risk.RiskScore, input.Risk.Level, input.Notional, input.Asset)
	if input.Risk.RiskScore >= 50 {
		action = HedgeActionOpen
		reasoning = fmt.Sprintf(
			"Risk score %.0f (%s) with %.0f%% annualized volatility: short %s of %s exposure at %.0fx to cap downside.",
			input.Risk.RiskScore, input.Risk.Level, input.Risk.Volatility*100, size, input.Asset, leverage)
	}

	rec := core.HedgeRecommendation{
		Action:    action,
		Side:      "SHORT",
		Market:    input.Asset + "-PERP",
		Size:      size,
		Leverage:  leverage,
		Reasoning: reasoning,
	}

	analysis := core.HedgeAnalysis{
		Asset:          input.Asset,
		Notional:       input.Notional,
		Exposure:       input.Notional.Sub(size),
		Recommendation: rec,
		Risk:           input.Risk,
	}

	a.Notify("hedge.recommendation", map[string]any{
		"asset":  input.Asset,
		"action": rec.Action,
		"size":   rec.Size.String(),
	})
	return analysis, nil
}

// hedgeSizing maps annualized volatility to a hedge ratio and leverage.
// Bands are fixed: calmer books hedge a token fraction, stressed books hedge
// half the notional.
func hedgeSizing(vol float64) (ratio, leverage float64) {
	switch {
	case vol > 1.0:
		return 0.5, 1
	case vol > 0.6:
		return 0.35, 2
	case vol > 0.3:
		return 0.2, 2
	default:
		return 0.1, 3
	}
}
