package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmesh/quantmesh/core"
)

func TestDecideAction_CriticalHighProbability_Withdraws(t *testing.T) {
	preds := []core.Prediction{
		{Market: "ETH crash", Impact: core.ImpactHigh, Probability: 80, Recommendation: core.RecommendationHedge},
	}

	decision := decideAction(preds, 50)
	assert.Equal(t, core.ActionWithdraw, decision.Action)
	assert.Equal(t, 0.85, decision.Confidence)
	assert.NotEmpty(t, decision.Reasoning)
}

func TestDecideAction_CriticalModerateProbability_Hedges(t *testing.T) {
	preds := []core.Prediction{
		{Market: "ETH drawdown", Impact: core.ImpactHigh, Probability: 73, Recommendation: core.RecommendationHedge},
	}

	decision := decideAction(preds, 50)
	assert.Equal(t, core.ActionHedge, decision.Action)
	assert.Equal(t, 0.75, decision.Confidence)
}

func TestDecideAction_HedgeFlagged_Hedges(t *testing.T) {
	preds := []core.Prediction{
		{Market: "funding flip", Impact: core.ImpactMedium, Probability: 65, Recommendation: core.RecommendationHedge},
	}

	decision := decideAction(preds, 50)
	assert.Equal(t, core.ActionHedge, decision.Action)
	assert.Equal(t, 0.70, decision.Confidence)
}

func TestDecideAction_LowRiskNoSignals_AddsFunds(t *testing.T) {
	// Empty prediction list counts as vacuously all-IGNORE.
	decision := decideAction(nil, 20)
	assert.Equal(t, core.ActionAddFunds, decision.Action)
	assert.Equal(t, 0.80, decision.Confidence)
}

func TestDecideAction_DefaultHold(t *testing.T) {
	preds := []core.Prediction{
		{Market: "noise", Impact: core.ImpactLow, Probability: 10, Recommendation: core.RecommendationIgnore},
	}

	decision := decideAction(preds, 50)
	assert.Equal(t, core.ActionHold, decision.Action)
	assert.Equal(t, 0.75, decision.Confidence)
}

func TestDecideAction_LowRiskButNonIgnoredSignal_Holds(t *testing.T) {
	preds := []core.Prediction{
		{Market: "mild event", Impact: core.ImpactLow, Probability: 30, Recommendation: core.RecommendationHedge},
	}

	decision := decideAction(preds, 20)
	assert.Equal(t, core.ActionHold, decision.Action, "a non-IGNORE signal blocks ADD_FUNDS")
}

func TestDecideAction_BoundaryProbabilities(t *testing.T) {
	// Exactly 75 is not "above 75": stays a hedge.
	preds := []core.Prediction{{Impact: core.ImpactHigh, Probability: 75, Recommendation: core.RecommendationHedge}}
	assert.Equal(t, core.ActionHedge, decideAction(preds, 50).Action)

	// Exactly 70 is not critical; probability above 60 plus a HEDGE flag still hedges.
	preds = []core.Prediction{{Impact: core.ImpactHigh, Probability: 70, Recommendation: core.RecommendationHedge}}
	decision := decideAction(preds, 50)
	assert.Equal(t, core.ActionHedge, decision.Action)
	assert.Equal(t, 0.70, decision.Confidence)
}

func TestLeadAgent_Decide_AttachesRiskAndHedge(t *testing.T) {
	a := NewLeadAgent(nil, nil, nil)

	hedge := &core.HedgeRecommendation{Action: HedgeActionOpen, Market: "ETH-PERP"}
	decision := a.Decide(context.Background(), DecisionInput{
		Risk:  core.RiskMetrics{RiskScore: 45, Level: core.RiskLevelMedium},
		Hedge: hedge,
	})

	assert.Equal(t, core.ActionHold, decision.Action)
	assert.Equal(t, 45.0, decision.Risk.RiskScore)
	assert.Same(t, hedge, decision.Hedge)
	assert.Empty(t, decision.Narrative, "no model configured")
}

func TestLeadAgent_Decide_ModelNarrative(t *testing.T) {
	a := NewLeadAgent(&stubModel{text: "Calm seas; keep the current allocation."}, nil, nil)

	decision := a.Decide(context.Background(), DecisionInput{Risk: core.RiskMetrics{RiskScore: 45}})
	assert.Equal(t, "Calm seas; keep the current allocation.", decision.Narrative)
}

func TestLeadAgent_Decide_ModelFailureDegrades(t *testing.T) {
	a := NewLeadAgent(&stubModel{err: errors.New("provider down")}, nil, nil)

	decision := a.Decide(context.Background(), DecisionInput{Risk: core.RiskMetrics{RiskScore: 45}})
	assert.Equal(t, core.ActionHold, decision.Action)
	assert.Empty(t, decision.Narrative)
}

func TestLeadAgent_Analyze(t *testing.T) {
	a := NewLeadAgent(nil, nil, nil)

	analysis, err := a.Analyze(context.Background(), twoAssetPortfolio())
	require.NoError(t, err)

	// HHI 0.52 -> diversification 48.
	assert.InDelta(t, 48, analysis.DiversificationScore, 1e-9)
	assert.Contains(t, analysis.Strengths[0], "Stablecoin buffer")
	assert.Contains(t, analysis.Risks[0], "ETH dominates")
	assert.NotEmpty(t, analysis.Recommendations)
}

func TestLeadAgent_Analyze_Validation(t *testing.T) {
	a := NewLeadAgent(nil, nil, nil)

	_, err := a.Analyze(context.Background(), core.PortfolioData{})
	assert.Error(t, err, "missing address")

	_, err = a.Analyze(context.Background(), core.PortfolioData{Address: "0xabc"})
	assert.Error(t, err, "no positions")
}
