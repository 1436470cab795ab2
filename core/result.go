package core

import "time"

// Result is the uniform envelope every composite orchestrator operation
// returns regardless of which agent(s) answered it. Operations never
// propagate a Go error to the caller; failures are surfaced as
// Success == false with a descriptive Error message. ExecutionTime is
// always populated, including on failure.
type Result[T any] struct {
	Success       bool          `json:"success"`
	Data          T             `json:"data,omitempty"`
	Error         string        `json:"error,omitempty"`
	AgentID       string        `json:"agent_id"`
	ExecutionTime time.Duration `json:"execution_time"`
}

// Ok builds a successful envelope.
func Ok[T any](agentID string, data T, elapsed time.Duration) Result[T] {
	return Result[T]{Success: true, Data: data, AgentID: agentID, ExecutionTime: elapsed}
}

// Fail builds a failed envelope carrying the error message text. The zero
// value of T is returned in Data.
func Fail[T any](agentID string, err error, elapsed time.Duration) Result[T] {
	var zero T
	return Result[T]{Success: false, Data: zero, Error: err.Error(), AgentID: agentID, ExecutionTime: elapsed}
}
