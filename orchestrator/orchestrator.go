package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantmesh/quantmesh/agent"
	"github.com/quantmesh/quantmesh/bus"
	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/logging"
	"github.com/quantmesh/quantmesh/marketdata"
	"github.com/quantmesh/quantmesh/metrics"
)

// DefaultCallTimeout bounds a single composite operation end to end,
// external fetches included.
const DefaultCallTimeout = 30 * time.Second

// Options configures the Orchestrator.
type Options struct {
	// Logger receives operation-level diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger

	// CallTimeout caps each composite operation. Defaults to
	// DefaultCallTimeout.
	CallTimeout time.Duration
}

// Orchestrator exposes the composite portfolio operations. Each operation
// resolves the agents it needs from the registry, runs them under one
// deadline, and wraps the outcome in a Result envelope. Operations never
// panic and never return a bare error; callers branch on Result.Success.
// Failed operations are additionally broadcast on the bus so subscribers
// see degraded operations alongside the agents' own progress chatter.
type Orchestrator struct {
	registry    *agent.Registry
	bus         *bus.Bus
	market      marketdata.Service
	logger      *logging.OpsLogger
	callTimeout time.Duration
}

// New constructs an Orchestrator over the given registry, bus and market
// data service.
func New(registry *agent.Registry, b *bus.Bus, market marketdata.Service, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		CallTimeout: DefaultCallTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Orchestrator{
		registry:    registry,
		bus:         b,
		market:      market,
		logger:      logging.NewOpsLogger(opts.Logger).WithComponent("orchestrator"),
		callTimeout: opts.CallTimeout,
	}
}

// RiskRequest asks for a risk assessment. Portfolio may be nil, in which
// case the orchestrator fetches a fresh snapshot for the address.
type RiskRequest struct {
	Address      string
	Portfolio    *core.PortfolioData
	Volatilities map[string]float64
	SeriesDays   int
}

// AssessRisk runs the Risk Agent over the portfolio.
func (o *Orchestrator) AssessRisk(ctx context.Context, req RiskRequest) core.Result[core.RiskMetrics] {
	return run(ctx, o, "assess_risk", core.AgentRisk, func(ctx context.Context) (core.RiskMetrics, error) {
		if req.Address == "" {
			return core.RiskMetrics{}, fmt.Errorf("address is required")
		}
		ra, err := lookup[*agent.RiskAgent](o.registry, core.AgentRisk)
		if err != nil {
			return core.RiskMetrics{}, err
		}
		portfolio, err := o.resolvePortfolio(ctx, req.Address, req.Portfolio)
		if err != nil {
			return core.RiskMetrics{}, err
		}
		return ra.Assess(ctx, agent.RiskInput{
			Address:      req.Address,
			Portfolio:    portfolio,
			Volatilities: req.Volatilities,
			SeriesDays:   req.SeriesDays,
		})
	})
}

// HedgeRequest asks for a hedge recommendation over one exposure. Risk may
// carry a previously computed assessment; when nil the orchestrator runs the
// Risk Agent first, since hedge sizing consumes the risk output.
type HedgeRequest struct {
	Address  string
	Asset    string
	Notional decimal.Decimal
	Risk     *core.RiskMetrics
}

// GenerateHedgeRecommendations runs the Hedging Agent, assessing risk first
// when the request does not carry metrics.
func (o *Orchestrator) GenerateHedgeRecommendations(ctx context.Context, req HedgeRequest) core.Result[core.HedgeAnalysis] {
	return run(ctx, o, "generate_hedge", core.AgentHedging, func(ctx context.Context) (core.HedgeAnalysis, error) {
		if req.Asset == "" {
			return core.HedgeAnalysis{}, fmt.Errorf("asset is required")
		}
		if req.Notional.Sign() <= 0 {
			return core.HedgeAnalysis{}, fmt.Errorf("notional value must be positive")
		}
		ha, err := lookup[*agent.HedgingAgent](o.registry, core.AgentHedging)
		if err != nil {
			return core.HedgeAnalysis{}, err
		}

		risk := req.Risk
		if risk == nil {
			if req.Address == "" {
				return core.HedgeAnalysis{}, fmt.Errorf("address is required when no risk metrics are supplied")
			}
			ra, err := lookup[*agent.RiskAgent](o.registry, core.AgentRisk)
			if err != nil {
				return core.HedgeAnalysis{}, err
			}
			portfolio, err := o.resolvePortfolio(ctx, req.Address, nil)
			if err != nil {
				return core.HedgeAnalysis{}, err
			}
			assessed, err := ra.Assess(ctx, agent.RiskInput{Address: req.Address, Portfolio: portfolio})
			if err != nil {
				return core.HedgeAnalysis{}, fmt.Errorf("risk assessment for hedge sizing: %w", err)
			}
			risk = &assessed
		}

		return ha.Analyze(ctx, agent.HedgeInput{
			Asset:    req.Asset,
			Notional: req.Notional,
			Risk:     *risk,
		})
	})
}

// AnalysisRequest asks for the qualitative portfolio analysis.
type AnalysisRequest struct {
	Address   string
	Portfolio *core.PortfolioData
}

// AnalyzePortfolio runs the Lead Agent's analysis routine over the full
// token list.
func (o *Orchestrator) AnalyzePortfolio(ctx context.Context, req AnalysisRequest) core.Result[core.PortfolioAnalysis] {
	return run(ctx, o, "analyze_portfolio", core.AgentLead, func(ctx context.Context) (core.PortfolioAnalysis, error) {
		if req.Address == "" {
			return core.PortfolioAnalysis{}, fmt.Errorf("address is required")
		}
		la, err := lookup[*agent.LeadAgent](o.registry, core.AgentLead)
		if err != nil {
			return core.PortfolioAnalysis{}, err
		}
		portfolio, err := o.resolvePortfolio(ctx, req.Address, req.Portfolio)
		if err != nil {
			return core.PortfolioAnalysis{}, err
		}
		return la.Analyze(ctx, portfolio)
	})
}

// ProcessSettlement forwards a settlement request through the Settlement
// Agent to the external facilitator.
func (o *Orchestrator) ProcessSettlement(ctx context.Context, req core.SettlementRequest) core.Result[core.SettlementReceipt] {
	return run(ctx, o, "process_settlement", core.AgentSettlement, func(ctx context.Context) (core.SettlementReceipt, error) {
		sa, err := lookup[*agent.SettlementAgent](o.registry, core.AgentSettlement)
		if err != nil {
			return core.SettlementReceipt{}, err
		}
		return sa.Process(ctx, req)
	})
}

// ReportRequest asks for a sectioned portfolio report. Risk metrics and the
// qualitative analysis are computed as part of the operation; either failing
// drops its section rather than failing the report.
type ReportRequest struct {
	Address   string
	Portfolio *core.PortfolioData
}

// GenerateReport builds the sectioned report. Risk assessment and the
// analysis routine both read only the portfolio snapshot, so they run
// concurrently; the Reporting Agent then assembles whatever succeeded.
func (o *Orchestrator) GenerateReport(ctx context.Context, req ReportRequest) core.Result[core.PortfolioReport] {
	return run(ctx, o, "generate_report", core.AgentReporting, func(ctx context.Context) (core.PortfolioReport, error) {
		if req.Address == "" {
			return core.PortfolioReport{}, fmt.Errorf("address is required")
		}
		rep, err := lookup[*agent.ReportingAgent](o.registry, core.AgentReporting)
		if err != nil {
			return core.PortfolioReport{}, err
		}
		portfolio, err := o.resolvePortfolio(ctx, req.Address, req.Portfolio)
		if err != nil {
			return core.PortfolioReport{}, err
		}

		input := agent.ReportInput{Portfolio: portfolio}

		riskCh := make(chan *core.RiskMetrics, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Warn("report: risk section skipped", "panic", r)
					riskCh <- nil
				}
			}()
			ra, err := lookup[*agent.RiskAgent](o.registry, core.AgentRisk)
			if err != nil {
				o.logger.Warn("report: risk section skipped", "error", err)
				riskCh <- nil
				return
			}
			assessed, err := ra.Assess(ctx, agent.RiskInput{Address: req.Address, Portfolio: portfolio})
			if err != nil {
				o.logger.Warn("report: risk section skipped", "error", err)
				riskCh <- nil
				return
			}
			riskCh <- &assessed
		}()

		if la, err := lookup[*agent.LeadAgent](o.registry, core.AgentLead); err != nil {
			o.logger.Warn("report: recommendations section skipped", "error", err)
		} else if analysis, err := la.Analyze(ctx, portfolio); err != nil {
			o.logger.Warn("report: recommendations section skipped", "error", err)
		} else {
			input.Analysis = &analysis
		}

		input.Risk = <-riskCh
		return rep.Build(ctx, input)
	})
}

// DecisionRequest asks for a full portfolio-action decision. Predictions may
// carry signals the caller already holds; when nil they are fetched from the
// market data service. Portfolio may likewise be nil.
type DecisionRequest struct {
	Address     string
	Portfolio   *core.PortfolioData
	Predictions []core.Prediction
}

// DecidePortfolioAction runs the multi-agent decision: risk assessment and
// the prediction-signal fetch are independent, so they run concurrently;
// the Hedging Agent runs afterwards only when a signal crosses its
// thresholds, and the Lead Agent's decision table consumes all of it.
func (o *Orchestrator) DecidePortfolioAction(ctx context.Context, req DecisionRequest) core.Result[core.PortfolioDecision] {
	return run(ctx, o, "decide_action", core.AgentLead, func(ctx context.Context) (core.PortfolioDecision, error) {
		if req.Address == "" {
			return core.PortfolioDecision{}, fmt.Errorf("address is required")
		}
		la, err := lookup[*agent.LeadAgent](o.registry, core.AgentLead)
		if err != nil {
			return core.PortfolioDecision{}, err
		}
		ra, err := lookup[*agent.RiskAgent](o.registry, core.AgentRisk)
		if err != nil {
			return core.PortfolioDecision{}, err
		}

		portfolio, err := o.resolvePortfolio(ctx, req.Address, req.Portfolio)
		if err != nil {
			return core.PortfolioDecision{}, err
		}

		type riskOut struct {
			metrics core.RiskMetrics
			err     error
		}
		type predsOut struct {
			preds []core.Prediction
			err   error
		}
		riskCh := make(chan riskOut, 1)
		predsCh := make(chan predsOut, 1)

		go func() {
			defer func() {
				if r := recover(); r != nil {
					riskCh <- riskOut{err: fmt.Errorf("internal error: %v", r)}
				}
			}()
			metrics, err := ra.Assess(ctx, agent.RiskInput{Address: req.Address, Portfolio: portfolio})
			riskCh <- riskOut{metrics: metrics, err: err}
		}()
		go func() {
			defer func() {
				if r := recover(); r != nil {
					predsCh <- predsOut{err: fmt.Errorf("internal error: %v", r)}
				}
			}()
			if req.Predictions != nil {
				predsCh <- predsOut{preds: req.Predictions}
				return
			}
			if o.market == nil {
				predsCh <- predsOut{err: fmt.Errorf("no market data service configured and no predictions supplied")}
				return
			}
			preds, err := o.market.Predictions(ctx, req.Address)
			predsCh <- predsOut{preds: preds, err: err}
		}()

		risk := <-riskCh
		preds := <-predsCh
		if risk.err != nil {
			return core.PortfolioDecision{}, fmt.Errorf("risk assessment: %w", risk.err)
		}
		if preds.err != nil {
			return core.PortfolioDecision{}, fmt.Errorf("prediction signals: %w", preds.err)
		}

		var hedge *core.HedgeRecommendation
		if shouldHedge(preds.preds) {
			ha, err := lookup[*agent.HedgingAgent](o.registry, core.AgentHedging)
			if err != nil {
				return core.PortfolioDecision{}, err
			}
			asset, notional := largestPosition(portfolio)
			analysis, err := ha.Analyze(ctx, agent.HedgeInput{
				Asset:    asset,
				Notional: notional,
				Risk:     risk.metrics,
			})
			if err != nil {
				return core.PortfolioDecision{}, fmt.Errorf("hedge analysis: %w", err)
			}
			hedge = &analysis.Recommendation
		}

		return la.Decide(ctx, agent.DecisionInput{
			Risk:        risk.metrics,
			Predictions: preds.preds,
			Hedge:       hedge,
		}), nil
	})
}

// shouldHedge reports whether any prediction signal crosses the hedging
// thresholds: a HEDGE flag above 60% probability, or high impact above 70%.
func shouldHedge(predictions []core.Prediction) bool {
	for _, p := range predictions {
		if p.Recommendation == core.RecommendationHedge && p.Probability > 60 {
			return true
		}
		if p.Impact == core.ImpactHigh && p.Probability > 70 {
			return true
		}
	}
	return false
}

// largestPosition picks the hedge target: the biggest position by USD value.
func largestPosition(portfolio core.PortfolioData) (string, decimal.Decimal) {
	if len(portfolio.Tokens) == 0 {
		return "", decimal.Zero
	}
	largest := portfolio.Tokens[0]
	for _, tok := range portfolio.Tokens[1:] {
		if tok.USDValue.GreaterThan(largest.USDValue) {
			largest = tok
		}
	}
	return largest.Symbol, largest.USDValue
}

// resolvePortfolio returns the supplied snapshot or fetches a fresh one.
func (o *Orchestrator) resolvePortfolio(ctx context.Context, address string, supplied *core.PortfolioData) (core.PortfolioData, error) {
	if supplied != nil {
		return *supplied, nil
	}
	if o.market == nil {
		return core.PortfolioData{}, fmt.Errorf("no market data service configured and no portfolio supplied")
	}
	portfolio, err := o.market.Portfolio(ctx, address)
	if err != nil {
		return core.PortfolioData{}, fmt.Errorf("fetch portfolio: %w", err)
	}
	return portfolio, nil
}

// lookup resolves an agent by id and asserts its concrete type. A missing or
// mistyped agent is an operation failure, never a panic.
func lookup[T core.Agent](r *agent.Registry, id string) (T, error) {
	var zero T
	if r == nil {
		return zero, fmt.Errorf("no agent registry configured")
	}
	a, ok := r.Get(id)
	if !ok {
		return zero, fmt.Errorf("agent %q is not registered", id)
	}
	typed, ok := a.(T)
	if !ok {
		return zero, fmt.Errorf("agent %q has unexpected type %T", id, a)
	}
	return typed, nil
}

// run executes one composite operation under the call timeout, recovers
// panics into failed envelopes, and records metrics. ExecutionTime is
// wall-clock and populated on every path.
func run[T any](ctx context.Context, o *Orchestrator, op, agentID string, fn func(ctx context.Context) (T, error)) (res core.Result[T]) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			elapsed := time.Since(start)
			err := fmt.Errorf("internal error: %v", r)
			o.logger.Error("operation panicked", "operation", op, "panic", r)
			metrics.OperationsTotal.WithLabelValues(op, "panic").Inc()
			metrics.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
			o.notifyFailure(op, agentID, err)
			res = core.Fail[T](agentID, err, elapsed)
		}
	}()

	data, err := fn(ctx)
	elapsed := time.Since(start)
	metrics.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	o.logger.LogAgentCall(agentID, op, elapsed, err)
	if err != nil {
		metrics.OperationsTotal.WithLabelValues(op, "error").Inc()
		o.notifyFailure(op, agentID, err)
		return core.Fail[T](agentID, err, elapsed)
	}
	metrics.OperationsTotal.WithLabelValues(op, "ok").Inc()
	return core.Ok(agentID, data, elapsed)
}

// notifyFailure broadcasts a failed operation on the bus so subscribers can
// observe degraded operations alongside the agents' progress messages.
func (o *Orchestrator) notifyFailure(op, agentID string, err error) {
	if o.bus == nil {
		return
	}
	o.bus.Broadcast(core.NewBroadcastMessage(core.SystemSender, "orchestrator.operation.failed", map[string]any{
		"operation": op,
		"agent":     agentID,
		"error":     err.Error(),
	}))
}
