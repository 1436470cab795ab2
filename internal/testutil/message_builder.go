package testutil

import (
	"time"

	"github.com/quantmesh/quantmesh/core"
)

// MessageBuilder provides a fluent helper for constructing bus messages in
// tests. Example:
//
//	msg := NewMessageBuilder().From("risk").To("lead").Type("risk.updated").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	id      string
	from    string
	to      string
	msgType string
	payload any
	at      time.Time
}

// NewMessageBuilder creates a builder with sender "system" and a generated ID.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		id:   core.NewID(),
		from: core.SystemSender,
		at:   time.Now().UTC(),
	}
}

// ID overrides the auto-generated message ID (chainable). Use mainly where
// determinism matters.
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.id = id; return b }

// From sets the sender agent ID (chainable).
func (b *MessageBuilder) From(from string) *MessageBuilder { b.from = from; return b }

// To sets the recipient agent ID (chainable).
func (b *MessageBuilder) To(to string) *MessageBuilder { b.to = to; return b }

// Broadcast addresses the message to all subscribers (chainable).
func (b *MessageBuilder) Broadcast() *MessageBuilder { b.to = core.Broadcast; return b }

// Type sets the message type (chainable).
func (b *MessageBuilder) Type(t string) *MessageBuilder { b.msgType = t; return b }

// Payload sets the message payload (chainable).
func (b *MessageBuilder) Payload(p any) *MessageBuilder { b.payload = p; return b }

// At overrides the timestamp (chainable).
func (b *MessageBuilder) At(t time.Time) *MessageBuilder { b.at = t; return b }

// Build assembles the message.
func (b *MessageBuilder) Build() core.AgentMessage {
	return core.AgentMessage{
		ID:        b.id,
		From:      b.from,
		To:        b.to,
		Type:      b.msgType,
		Payload:   b.payload,
		Timestamp: b.at,
	}
}
