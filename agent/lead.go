package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quantmesh/quantmesh/bus"
	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/logging"
	"github.com/quantmesh/quantmesh/model"
)

// DecisionInput is the Lead Agent's request record for a portfolio action.
// Hedge is the Hedging Agent's recommendation when one was produced.
type DecisionInput struct {
	Risk        core.RiskMetrics
	Predictions []core.Prediction
	Hedge       *core.HedgeRecommendation
}

// LeadAgent runs the portfolio analysis routine and the portfolio-action
// decision table. When a model is configured it adds a short narrative to
// both outputs; a model failure degrades to the deterministic result.
type LeadAgent struct {
	BaseAgent
	model model.Model
}

// NewLeadAgent constructs the Lead Agent. Model may be nil.
func NewLeadAgent(m model.Model, b *bus.Bus, logger logging.Logger) *LeadAgent {
	a := &LeadAgent{
		BaseAgent: NewBaseAgent(core.AgentLead, "Lead Agent", b, logger),
		model:     m,
	}
	a.SetDescription("Coordinates portfolio analysis and the portfolio-action decision")
	return a
}

// Analyze runs the analysis routine over the full token list: strengths,
// risks, recommendations and a diversification-style score.
func (a *LeadAgent) Analyze(ctx context.Context, portfolio core.PortfolioData) (core.PortfolioAnalysis, error) {
	if portfolio.Address == "" {
		return core.PortfolioAnalysis{}, fmt.Errorf("portfolio address is required")
	}
	if len(portfolio.Tokens) == 0 {
		return core.PortfolioAnalysis{}, fmt.Errorf("portfolio has no positions")
	}
	total := portfolio.TotalValue
	if total.Sign() <= 0 {
		return core.PortfolioAnalysis{}, fmt.Errorf("portfolio total value must be positive")
	}

	analysis := core.PortfolioAnalysis{Address: portfolio.Address}

	var hhi float64
	var stableValue decimal.Decimal
	largest := portfolio.Tokens[0]
	for _, tok := range portfolio.Tokens {
		weight, _ := tok.USDValue.Div(total).Float64()
		hhi += weight * weight
		if isStablecoin(tok.Symbol) {
			stableValue = stableValue.Add(tok.USDValue)
		}
		if tok.USDValue.GreaterThan(largest.USDValue) {
			largest = tok
		}
	}
	analysis.DiversificationScore = (1 - hhi) * 100

	stableFraction, _ := stableValue.Div(total).Float64()
	largestWeight, _ := largest.USDValue.Div(total).Float64()

	if len(portfolio.Tokens) >= 4 {
		analysis.Strengths = append(analysis.Strengths,
			fmt.Sprintf("Spread across %d assets", len(portfolio.Tokens)))
	}
	if stableFraction >= 0.2 {
		analysis.Strengths = append(analysis.Strengths,
			fmt.Sprintf("Stablecoin buffer of %.0f%% dampens drawdowns", stableFraction*100))
	}
	if len(analysis.Strengths) == 0 {
		analysis.Strengths = append(analysis.Strengths, "Concentrated conviction position")
	}

	if largestWeight > 0.5 {
		analysis.Risks = append(analysis.Risks,
			fmt.Sprintf("%s dominates the portfolio at %.0f%%", largest.Symbol, largestWeight*100))
		analysis.Recommendations = append(analysis.Recommendations,
			fmt.Sprintf("Trim %s below 50%% of total value", largest.Symbol))
	}
	if stableFraction < 0.1 {
		analysis.Risks = append(analysis.Risks, "Less than 10% in stablecoins")
		analysis.Recommendations = append(analysis.Recommendations,
			"Add a stablecoin reserve of at least 10%")
	}
	if len(analysis.Risks) == 0 {
		analysis.Risks = append(analysis.Risks, "No structural risks identified")
	}
	if len(analysis.Recommendations) == 0 {
		analysis.Recommendations = append(analysis.Recommendations, "Maintain current allocation")
	}

	analysis.Narrative = a.narrate(ctx, analysisPrompt(portfolio, analysis))

	a.Notify("portfolio.analyzed", map[string]any{
		"address":               portfolio.Address,
		"diversification_score": analysis.DiversificationScore,
	})
	return analysis, nil
}

// Decide applies the fixed portfolio-action decision table over the
// prediction signals and risk score. An empty prediction list counts as
// vacuously all-IGNORE.
func (a *LeadAgent) Decide(ctx context.Context, input DecisionInput) core.PortfolioDecision {
	decision := decideAction(input.Predictions, input.Risk.RiskScore)
	decision.Risk = input.Risk
	decision.Hedge = input.Hedge
	decision.Narrative = a.narrate(ctx, decisionPrompt(decision, input))

	a.Notify("portfolio.decision", map[string]any{
		"action":     string(decision.Action),
		"confidence": decision.Confidence,
	})
	return decision
}

// decideAction is the decision table. Rules are evaluated top to bottom;
// the first match wins.
func decideAction(predictions []core.Prediction, riskScore float64) core.PortfolioDecision {
	var (
		critical    []core.Prediction
		hedgeFlag   []core.Prediction
		allIgnored  = true
		maxCritical float64
	)
	for _, p := range predictions {
		if p.IsCritical() {
			critical = append(critical, p)
			if p.Probability > maxCritical {
				maxCritical = p.Probability
			}
		}
		if p.Recommendation == core.RecommendationHedge && p.Probability > 60 {
			hedgeFlag = append(hedgeFlag, p)
		}
		if p.Recommendation != core.RecommendationIgnore {
			allIgnored = false
		}
	}

	switch {
	case len(critical) > 0 && maxCritical > 75:
		return core.PortfolioDecision{
			Action:     core.ActionWithdraw,
			Confidence: 0.85,
			Reasoning: []string{
				fmt.Sprintf("%d critical prediction(s) with probability up to %.0f%%", len(critical), maxCritical),
				"Probability above 75% warrants withdrawing exposed funds",
			},
		}
	case len(critical) > 0:
		return core.PortfolioDecision{
			Action:     core.ActionHedge,
			Confidence: 0.75,
			Reasoning: []string{
				fmt.Sprintf("%d critical prediction(s) with probability up to %.0f%%", len(critical), maxCritical),
				"Probability at or below 75%: hedging instead of exiting",
			},
		}
	case len(hedgeFlag) > 0:
		return core.PortfolioDecision{
			Action:     core.ActionHedge,
			Confidence: 0.70,
			Reasoning: []string{
				fmt.Sprintf("%d hedge-flagged prediction(s) above 60%% probability", len(hedgeFlag)),
			},
		}
	case riskScore < 30 && allIgnored:
		return core.PortfolioDecision{
			Action:     core.ActionAddFunds,
			Confidence: 0.80,
			Reasoning: []string{
				fmt.Sprintf("Risk score %.0f is low and no prediction signals oppose adding funds", riskScore),
			},
		}
	default:
		return core.PortfolioDecision{
			Action:     core.ActionHold,
			Confidence: 0.75,
			Reasoning:  []string{"No signal crosses an action threshold; holding"},
		}
	}
}

// narrate asks the configured model for a short commentary. Any failure
// degrades to an empty narrative; the deterministic outputs stand alone.
func (a *LeadAgent) narrate(ctx context.Context, prompt string) string {
	if a.model == nil {
		return ""
	}
	resp, err := a.model.Complete(ctx, model.Request{
		Instructions: "You are a DeFi portfolio analyst. Reply with two sentences of plain-language commentary. No financial advice disclaimers.",
		Prompt:       prompt,
	})
	if err != nil {
		a.Logger().Warn("model narrative unavailable", "error", err)
		return ""
	}
	return strings.TrimSpace(resp.Text)
}

func analysisPrompt(portfolio core.PortfolioData, analysis core.PortfolioAnalysis) string {
	symbols := make([]string, 0, len(portfolio.Tokens))
	for _, tok := range portfolio.Tokens {
		symbols = append(symbols, fmt.Sprintf("%s ($%s)", tok.Symbol, tok.USDValue.Round(0)))
	}
	return fmt.Sprintf(
		"Portfolio worth $%s holding %s. Diversification score %.0f/100. Identified risks: %s.",
		portfolio.TotalValue.Round(0), strings.Join(symbols, ", "),
		analysis.DiversificationScore, strings.Join(analysis.Risks, "; "))
}

func decisionPrompt(decision core.PortfolioDecision, input DecisionInput) string {
	return fmt.Sprintf(
		"Recommended action %s at confidence %.2f for a portfolio with risk score %.0f (%s). Reasons: %s.",
		decision.Action, decision.Confidence, input.Risk.RiskScore, input.Risk.Level,
		strings.Join(decision.Reasoning, "; "))
}

// stablecoins the analysis treats as a volatility buffer.
var stablecoins = map[string]struct{}{
	"USDC": {}, "USDT": {}, "DAI": {}, "FRAX": {}, "LUSD": {}, "GUSD": {}, "USDP": {},
}

func isStablecoin(symbol string) bool {
	_, ok := stablecoins[strings.ToUpper(symbol)]
	return ok
}
