// Package quantmesh provides a high-level façade over the message bus, the
// five portfolio agents and the orchestrator, enabling rapid construction of
// multi-agent DeFi portfolio tooling. Most applications interact with this
// package by:
//  1. Creating a QuantMesh via New() (optionally overriding the market data
//     service, settlement facilitator, AI model and logger)
//  2. Calling the composite operations (AssessRisk, DecidePortfolioAction, ...)
//  3. Observing agent chatter through the Bus
//
// The façade wires the agents and delegates every operation to
// orchestrator.Orchestrator. All defaults are safe for local development and
// testing: without a facilitator settlements run against a simulator, and
// without a model the Lead Agent produces deterministic output with no
// narrative.
package quantmesh

import (
	"context"
	"time"

	"github.com/quantmesh/quantmesh/agent"
	"github.com/quantmesh/quantmesh/bus"
	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/facilitator"
	"github.com/quantmesh/quantmesh/logging"
	"github.com/quantmesh/quantmesh/marketdata"
	"github.com/quantmesh/quantmesh/model"
	"github.com/quantmesh/quantmesh/orchestrator"
)

// Options configures the QuantMesh instance.
type Options struct {
	// MarketData supplies prices, series, signals and portfolio snapshots.
	// Required for operations that fetch data; operations that receive all
	// their inputs work without it.
	MarketData marketdata.Service

	// Facilitator settles payments. Defaults to facilitator.Simulator.
	Facilitator agent.Facilitator

	// Model adds AI narrative to analysis and decisions. Nil disables the
	// narrative; all outputs stay deterministic.
	Model model.Model

	// BusMaxHistory bounds the retained message history. Zero keeps the bus
	// default.
	BusMaxHistory int

	// CallTimeout caps each composite operation. Zero keeps the
	// orchestrator default.
	CallTimeout time.Duration

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// QuantMesh is the high-level façade aggregating the bus, agents and
// orchestrator.
type QuantMesh struct {
	bus      *bus.Bus
	registry *agent.Registry
	orch     *orchestrator.Orchestrator
}

// New creates a QuantMesh instance with optional overrides, constructs the
// five agents and registers them. Each call builds an independent instance;
// there is no process-wide shared state.
func New(optFns ...func(o *Options)) *QuantMesh {
	opts := Options{
		Facilitator: facilitator.Simulator{},
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Facilitator == nil {
		opts.Facilitator = facilitator.Simulator{}
	}

	b := bus.New(func(o *bus.Options) {
		o.MaxHistory = opts.BusMaxHistory
		o.Logger = logging.NewOpsLogger(opts.Logger).WithComponent("bus")
	})

	// Each agent logs under its own identifier.
	base := logging.NewOpsLogger(opts.Logger)
	registry := agent.NewRegistry()
	registry.Register(agent.NewRiskAgent(opts.MarketData, b, base.WithAgent(core.AgentRisk)))
	registry.Register(agent.NewHedgingAgent(b, base.WithAgent(core.AgentHedging)))
	registry.Register(agent.NewSettlementAgent(opts.Facilitator, b, base.WithAgent(core.AgentSettlement)))
	registry.Register(agent.NewReportingAgent(b, base.WithAgent(core.AgentReporting)))
	registry.Register(agent.NewLeadAgent(opts.Model, b, base.WithAgent(core.AgentLead)))

	orch := orchestrator.New(registry, b, opts.MarketData, func(o *orchestrator.Options) {
		o.Logger = opts.Logger
		o.CallTimeout = opts.CallTimeout
	})

	return &QuantMesh{bus: b, registry: registry, orch: orch}
}

// Bus exposes the message bus for subscriptions and history inspection.
func (q *QuantMesh) Bus() *bus.Bus { return q.bus }

// Registry exposes the agent registry, mainly so callers can swap an agent
// for a custom implementation before serving traffic.
func (q *QuantMesh) Registry() *agent.Registry { return q.registry }

// Orchestrator exposes the underlying orchestrator.
func (q *QuantMesh) Orchestrator() *orchestrator.Orchestrator { return q.orch }

// AssessRisk runs the Risk Agent over the portfolio.
func (q *QuantMesh) AssessRisk(ctx context.Context, req orchestrator.RiskRequest) core.Result[core.RiskMetrics] {
	return q.orch.AssessRisk(ctx, req)
}

// GenerateHedgeRecommendations runs the Hedging Agent over one exposure.
func (q *QuantMesh) GenerateHedgeRecommendations(ctx context.Context, req orchestrator.HedgeRequest) core.Result[core.HedgeAnalysis] {
	return q.orch.GenerateHedgeRecommendations(ctx, req)
}

// AnalyzePortfolio runs the qualitative analysis over the full token list.
func (q *QuantMesh) AnalyzePortfolio(ctx context.Context, req orchestrator.AnalysisRequest) core.Result[core.PortfolioAnalysis] {
	return q.orch.AnalyzePortfolio(ctx, req)
}

// ProcessSettlement forwards a settlement request to the facilitator.
func (q *QuantMesh) ProcessSettlement(ctx context.Context, req core.SettlementRequest) core.Result[core.SettlementReceipt] {
	return q.orch.ProcessSettlement(ctx, req)
}

// GenerateReport builds the sectioned portfolio report.
func (q *QuantMesh) GenerateReport(ctx context.Context, req orchestrator.ReportRequest) core.Result[core.PortfolioReport] {
	return q.orch.GenerateReport(ctx, req)
}

// DecidePortfolioAction runs the multi-agent portfolio-action decision.
func (q *QuantMesh) DecidePortfolioAction(ctx context.Context, req orchestrator.DecisionRequest) core.Result[core.PortfolioDecision] {
	return q.orch.DecidePortfolioAction(ctx, req)
}
