package agent

import (
	"context"
	"fmt"

	"github.com/quantmesh/quantmesh/bus"
	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/logging"
)

// Facilitator is the settlement backend the agent forwards to. Implemented
// by facilitator.Client and facilitator.Simulator.
type Facilitator interface {
	Submit(ctx context.Context, req core.SettlementRequest) (core.SettlementReceipt, error)
}

// SettlementAgent validates payment requests and forwards them to the
// external facilitator. It performs no retries; the facilitator client owns
// its transport behavior.
type SettlementAgent struct {
	BaseAgent
	facilitator Facilitator
}

// NewSettlementAgent constructs the Settlement Agent.
func NewSettlementAgent(f Facilitator, b *bus.Bus, logger logging.Logger) *SettlementAgent {
	a := &SettlementAgent{
		BaseAgent:   NewBaseAgent(core.AgentSettlement, "Settlement Agent", b, logger),
		facilitator: f,
	}
	a.SetDescription("Validates and forwards settlement requests to the payment facilitator")
	return a
}

// Process submits the settlement and returns its receipt. A missing request
// ID is assigned here so the caller can correlate the receipt.
func (a *SettlementAgent) Process(ctx context.Context, req core.SettlementRequest) (core.SettlementReceipt, error) {
	if a.facilitator == nil {
		return core.SettlementReceipt{}, fmt.Errorf("no settlement facilitator configured")
	}
	if req.Amount.Sign() <= 0 {
		return core.SettlementReceipt{}, fmt.Errorf("settlement amount must be positive")
	}
	if req.From == "" || req.To == "" {
		return core.SettlementReceipt{}, fmt.Errorf("settlement requires both from and to addresses")
	}
	if req.Network == "" {
		return core.SettlementReceipt{}, fmt.Errorf("settlement network is required")
	}
	if req.ID == "" {
		req.ID = core.NewID()
	}

	a.Notify("settlement.submitted", map[string]any{
		"request_id": req.ID,
		"amount":     req.Amount.String(),
		"network":    req.Network,
		"gasless":    req.Gasless,
	})

	receipt, err := a.facilitator.Submit(ctx, req)
	if err != nil {
		a.Notify("settlement.failed", map[string]any{"request_id": req.ID, "error": err.Error()})
		return core.SettlementReceipt{}, fmt.Errorf("settle %s: %w", req.ID, err)
	}

	a.Notify("settlement.confirmed", map[string]any{
		"request_id": receipt.RequestID,
		"status":     string(receipt.Status),
	})
	return receipt, nil
}
