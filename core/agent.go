package core

// Stable agent identifiers used for registry lookup and bus addressing.
const (
	AgentRisk       = "risk"
	AgentHedging    = "hedging"
	AgentSettlement = "settlement"
	AgentReporting  = "reporting"
	AgentLead       = "lead"
)

// Agent is the interface every computation unit implements. Agents in
// QuantMesh are flat, stateless units addressed by a stable string ID; the
// orchestrator looks them up per operation and tolerates a missing agent by
// failing that operation's envelope rather than crashing the process.
//
// Concrete agents expose their domain operations as ordinary methods; the
// orchestrator binds to those directly after a registry lookup and type
// assertion.
type Agent interface {
	// ID returns the stable registry identifier (e.g. "risk").
	ID() string
	// Name returns the human-readable agent name.
	Name() string
	// Description returns a short description of the agent's purpose.
	Description() string
}
