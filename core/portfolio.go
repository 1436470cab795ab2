package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenHolding is a single position inside a portfolio. Monetary fields use
// decimal arithmetic; statistical fields elsewhere stay float64.
type TokenHolding struct {
	Symbol   string          `json:"symbol"`
	Balance  decimal.Decimal `json:"balance"`
	USDValue decimal.Decimal `json:"usd_value"`
	Price    decimal.Decimal `json:"price"`
}

// PortfolioData is a snapshot of an address's holdings, fetched fresh per
// request and never cached by the core (caching, if any, lives in the market
// data client).
type PortfolioData struct {
	Address     string          `json:"address"`
	Tokens      []TokenHolding  `json:"tokens"`
	TotalValue  decimal.Decimal `json:"total_value"`
	LastUpdated time.Time       `json:"last_updated"`
}

// RiskLevel buckets a composite risk score for human consumption.
type RiskLevel string

// Risk levels in ascending order of severity.
const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// RiskMetrics is the Risk Agent's aggregation record. All numeric fields are
// finite; the agent rejects series that would produce NaN or Inf.
type RiskMetrics struct {
	Address       string          `json:"address"`
	Volatility    float64         `json:"volatility"`     // annualized, fraction (0.45 == 45%)
	ValueAtRisk   decimal.Decimal `json:"value_at_risk"`  // one-day 95% parametric VaR in USD
	Concentration float64         `json:"concentration"`  // Herfindahl index over position weights
	RiskScore     float64         `json:"risk_score"`     // composite 0..100
	Level         RiskLevel       `json:"level"`
	Factors       []string        `json:"factors,omitempty"`
	ComputedAt    time.Time       `json:"computed_at"`
}

// Prediction impact and recommendation values as delivered by the prediction
// market signal feed.
const (
	ImpactHigh   = "HIGH"
	ImpactMedium = "MEDIUM"
	ImpactLow    = "LOW"

	RecommendationHedge  = "HEDGE"
	RecommendationIgnore = "IGNORE"
)

// Prediction is one prediction-market signal considered by the portfolio
// action decision.
type Prediction struct {
	Market         string  `json:"market"`
	Impact         string  `json:"impact"`         // HIGH, MEDIUM or LOW
	Probability    float64 `json:"probability"`    // percent, 0..100
	Recommendation string  `json:"recommendation"` // HEDGE or IGNORE
}

// IsCritical reports whether the signal is a critical prediction: high
// impact with probability above 70 percent.
func (p Prediction) IsCritical() bool {
	return p.Impact == ImpactHigh && p.Probability > 70
}

// HedgeRecommendation is the Hedging Agent's primary output.
type HedgeRecommendation struct {
	Action    string          `json:"action"` // e.g. "OPEN_HEDGE", "MAINTAIN"
	Side      string          `json:"side"`   // "LONG" or "SHORT"
	Market    string          `json:"market"` // perp market identifier, e.g. "ETH-PERP"
	Size      decimal.Decimal `json:"size"`   // notional to hedge, USD
	Leverage  float64         `json:"leverage"`
	Reasoning string          `json:"reasoning"`
}

// HedgeAnalysis bundles the recommendation with the exposure and risk
// metrics it was derived from.
type HedgeAnalysis struct {
	Asset          string              `json:"asset"`
	Notional       decimal.Decimal     `json:"notional"`
	Exposure       decimal.Decimal     `json:"exposure"` // net exposure after the recommended hedge
	Recommendation HedgeRecommendation `json:"recommendation"`
	Risk           RiskMetrics         `json:"risk"`
}

// PortfolioAnalysis is the analysis routine's output over a full token list.
type PortfolioAnalysis struct {
	Address              string   `json:"address"`
	Strengths            []string `json:"strengths"`
	Risks                []string `json:"risks"`
	Recommendations      []string `json:"recommendations"`
	DiversificationScore float64  `json:"diversification_score"` // 0..100, higher is better
	Narrative            string   `json:"narrative,omitempty"`   // optional model commentary
}

// ReportSection is one titled block of a portfolio report.
type ReportSection struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// PortfolioReport is the Reporting Agent's sectioned summary object.
type PortfolioReport struct {
	Address     string          `json:"address"`
	GeneratedAt time.Time       `json:"generated_at"`
	TotalValue  decimal.Decimal `json:"total_value"`
	TokenCount  int             `json:"token_count"`
	Sections    []ReportSection `json:"sections"`
	Risk        *RiskMetrics    `json:"risk,omitempty"`
}

// SettlementStatus tracks a settlement request through the facilitator.
type SettlementStatus string

// Settlement lifecycle states as reported by the facilitator.
const (
	SettlementPending    SettlementStatus = "pending"
	SettlementProcessing SettlementStatus = "processing"
	SettlementSettled    SettlementStatus = "settled"
	SettlementFailed     SettlementStatus = "failed"
)

// SettlementRequest is a payment forwarded to the external facilitator.
type SettlementRequest struct {
	ID       string          `json:"id,omitempty"` // assigned when empty
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	From     string          `json:"from"`
	To       string          `json:"to"`
	Network  string          `json:"network"`
	Gasless  bool            `json:"gasless"`
}

// SettlementReceipt identifies a submitted settlement and its status.
type SettlementReceipt struct {
	RequestID   string           `json:"request_id"`
	Status      SettlementStatus `json:"status"`
	TxHash      string           `json:"tx_hash,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// DecisionAction is the outcome of the portfolio action decision table.
type DecisionAction string

// Possible portfolio actions.
const (
	ActionHold     DecisionAction = "HOLD"
	ActionAddFunds DecisionAction = "ADD_FUNDS"
	ActionWithdraw DecisionAction = "WITHDRAW"
	ActionHedge    DecisionAction = "HEDGE"
)

// PortfolioDecision is the multi-agent portfolio-action outcome: the chosen
// action, a fixed confidence associated with the matched decision rule,
// human-readable reasoning, and the hedge recommendation when one was
// produced.
type PortfolioDecision struct {
	Action     DecisionAction       `json:"action"`
	Confidence float64              `json:"confidence"`
	Reasoning  []string             `json:"reasoning"`
	Risk       RiskMetrics          `json:"risk"`
	Hedge      *HedgeRecommendation `json:"hedge,omitempty"`
	Narrative  string               `json:"narrative,omitempty"` // optional model commentary
}
