package agent

import (
	"github.com/quantmesh/quantmesh/bus"
	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/logging"
)

// BaseAgent bundles identity and the shared bus/logging plumbing. Embed it
// in concrete agent implementations; the embedding type supplies the domain
// methods.
type BaseAgent struct {
	id          string
	name        string
	description string
	bus         *bus.Bus
	logger      logging.Logger
}

// NewBaseAgent constructs a BaseAgent. Bus and logger may be nil; progress
// notifications are then dropped and logging is silent.
func NewBaseAgent(id, name string, b *bus.Bus, logger logging.Logger) BaseAgent {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return BaseAgent{id: id, name: name, description: "Agent " + name, bus: b, logger: logger}
}

// ID returns the stable registry identifier.
func (b *BaseAgent) ID() string { return b.id }

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a detailed description of this agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// Logger returns the agent's logger, never nil.
func (b *BaseAgent) Logger() logging.Logger { return b.logger }

// Notify broadcasts a progress notification on the bus. A nil bus drops the
// message silently; notifications are observability, not control flow.
func (b *BaseAgent) Notify(msgType string, payload any) {
	if b.bus == nil {
		return
	}
	b.bus.Broadcast(core.NewBroadcastMessage(b.id, msgType, payload))
}

// NotifyAgent sends a progress notification addressed to one agent.
func (b *BaseAgent) NotifyAgent(to, msgType string, payload any) {
	if b.bus == nil {
		return
	}
	b.bus.Send(core.NewMessage(b.id, to, msgType, payload))
}
