package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Broadcast is the sentinel recipient meaning "all subscribers".
const Broadcast = "broadcast"

// SystemSender identifies messages originating from the bus itself rather
// than a named agent.
const SystemSender = "system"

// AgentMessage is the unit of communication between agents on the message
// bus. Once sent it must be treated as immutable. Identity is ID; uniqueness
// is caller-supplied, not enforced. Ordering is insertion order in the bus
// history.
type AgentMessage struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"` // agent id or Broadcast
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IsBroadcast reports whether the message is addressed to all subscribers.
func (m AgentMessage) IsBroadcast() bool { return m.To == Broadcast }

// NewMessage constructs a message addressed to a single recipient.
func NewMessage(from, to, msgType string, payload any) AgentMessage {
	return AgentMessage{
		ID:        NewID(),
		From:      from,
		To:        to,
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewBroadcastMessage constructs a message addressed to all subscribers.
func NewBroadcastMessage(from, msgType string, payload any) AgentMessage {
	return NewMessage(from, Broadcast, msgType, payload)
}

// NewID generates a new unique identifier for messages and settlement requests.
func NewID() string { return uuid.NewString() }

// TimeID derives an identifier from the current wall clock. Publish uses it
// when the caller supplied no ID; collisions within the same nanosecond are
// acceptable because the bus does not enforce uniqueness.
func TimeID() string { return fmt.Sprintf("msg-%d", time.Now().UnixNano()) }
