// Package orchestrator exposes the composite portfolio operations over the
// registered agents. Every operation returns a uniform Result envelope:
// agent failures, missing agents and panics all surface as Success == false
// with a message, never as a propagated error or crash. Operations run under
// an explicit per-call timeout, and independent steps inside an operation
// (risk assessment alongside a prediction-signal fetch) run concurrently.
package orchestrator
