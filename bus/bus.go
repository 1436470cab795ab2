// Package bus implements the in-process publish/subscribe hub that decouples
// producers and consumers of inter-agent notifications. The bus retains a
// bounded, replayable message history for observability and fans every sent
// message out to three logical topics: the generic "message" topic, a
// type-scoped topic and a recipient-scoped topic.
//
// The bus never fails: Send has no error return, and a subscriber that
// panics is recovered and logged so it cannot block delivery to the
// remaining subscribers.
package bus

import (
	"sync"
	"time"

	"github.com/quantmesh/quantmesh/core"
	"github.com/quantmesh/quantmesh/logging"
	"github.com/quantmesh/quantmesh/metrics"
)

// DefaultMaxHistory caps the retained message history unless overridden.
const DefaultMaxHistory = 1000

// topicPrefix scopes type- and recipient-topics below the generic topic.
const (
	topicMessage = "message"
	topicPrefix  = "message:"
)

// Handler receives messages for topics the caller subscribed to.
type Handler func(msg core.AgentMessage)

// Options configures a Bus instance.
type Options struct {
	// MaxHistory bounds the retained history; oldest entries are evicted
	// first. Values <= 0 fall back to DefaultMaxHistory.
	MaxHistory int
	// Logger receives dispatch diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Bus is the in-process message hub. All methods are safe for concurrent
// use; dispatch to subscribers happens synchronously on the sender's
// goroutine, so within one Send the listeners observe a fixed order.
type Bus struct {
	mu         sync.RWMutex
	history    []core.AgentMessage
	maxHistory int
	topics     map[string][]*subscription
	nextSubID  uint64
	logger     logging.Logger
}

type subscription struct {
	id      uint64
	handler Handler
}

// New constructs a Bus with optional overrides.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{
		MaxHistory: DefaultMaxHistory,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Bus{
		maxHistory: opts.MaxHistory,
		topics:     make(map[string][]*subscription),
		logger:     opts.Logger,
	}
}

// Send appends the message to the history (evicting the oldest entry when
// the cap is exceeded) and dispatches it to the generic topic, the
// type-scoped topic and the recipient-scoped topic. A broadcast message's
// recipient topic is the broadcast topic itself, which is how dual-registered
// subscribers receive it. Send never fails; subscriber panics are recovered
// per listener.
func (b *Bus) Send(msg core.AgentMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > b.maxHistory {
		b.history = b.history[len(b.history)-b.maxHistory:]
	}
	historyLen := len(b.history)
	handlers := b.handlersForLocked(msg)
	b.mu.Unlock()

	metrics.MessagesPublished.WithLabelValues(msg.Type).Inc()
	metrics.BusHistorySize.Set(float64(historyLen))

	for _, h := range handlers {
		b.dispatch(h, msg)
	}
}

// handlersForLocked collects the subscriptions for the message's topics,
// deduplicated so a listener fires at most once per message even when the
// type topic and the recipient topic collide (e.g. a broadcast whose type is
// also "broadcast"). Caller must hold b.mu.
func (b *Bus) handlersForLocked(msg core.AgentMessage) []*subscription {
	seenTopics := map[string]struct{}{}
	seenSubs := map[uint64]struct{}{}
	var out []*subscription

	for _, topic := range []string{topicMessage, topicPrefix + msg.Type, topicPrefix + msg.To} {
		if _, dup := seenTopics[topic]; dup {
			continue
		}
		seenTopics[topic] = struct{}{}
		for _, sub := range b.topics[topic] {
			if _, dup := seenSubs[sub.id]; dup {
				continue
			}
			seenSubs[sub.id] = struct{}{}
			out = append(out, sub)
		}
	}
	return out
}

// dispatch invokes one handler, recovering panics so a failing subscriber
// cannot abort delivery to the rest.
func (b *Bus) dispatch(sub *subscription, msg core.AgentMessage) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SubscriberErrors.Inc()
			b.logger.Error("bus subscriber panicked", "message_id", msg.ID, "type", msg.Type, "panic", r)
		}
	}()
	sub.handler(msg)
}

// Broadcast sends the message to all subscribers by forcing the recipient to
// the broadcast sentinel.
func (b *Bus) Broadcast(msg core.AgentMessage) {
	msg.To = core.Broadcast
	b.Send(msg)
}

// Publish fills required fields with defaults (timestamp-derived ID, system
// sender, broadcast type) and forces the recipient to the given channel,
// then sends. An accidental To in the partial message never wins over the
// channel argument.
func (b *Bus) Publish(channel string, partial core.AgentMessage) {
	if partial.ID == "" {
		partial.ID = core.TimeID()
	}
	if partial.From == "" {
		partial.From = core.SystemSender
	}
	if partial.Type == "" {
		partial.Type = core.Broadcast
	}
	partial.To = channel
	b.Send(partial)
}

// Subscribe registers the handler for the channel-scoped topic AND the
// broadcast topic, so every subscriber also receives broadcasts. It returns
// an unsubscribe function; callers that go away without invoking it leak
// their listener registration.
func (b *Bus) Subscribe(channel string, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	sub := &subscription{id: b.nextSubID, handler: handler}

	channelTopic := topicPrefix + channel
	broadcastTopic := topicPrefix + core.Broadcast

	b.topics[channelTopic] = append(b.topics[channelTopic], sub)
	if channelTopic != broadcastTopic {
		b.topics[broadcastTopic] = append(b.topics[broadcastTopic], sub)
	}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.removeLocked(channelTopic, sub.id)
		if channelTopic != broadcastTopic {
			b.removeLocked(broadcastTopic, sub.id)
		}
	}
}

// SubscribeAll registers the handler for the generic topic, receiving every
// message sent through the bus regardless of type or recipient.
func (b *Bus) SubscribeAll(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	sub := &subscription{id: b.nextSubID, handler: handler}
	b.topics[topicMessage] = append(b.topics[topicMessage], sub)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.removeLocked(topicMessage, sub.id)
	}
}

func (b *Bus) removeLocked(topic string, id uint64) {
	subs := b.topics[topic]
	for i, s := range subs {
		if s.id == id {
			b.topics[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}

// History returns the retained messages in insertion order. A positive limit
// returns only the most recent entries. The returned slice is a copy.
func (b *Bus) History(limit int) []core.AgentMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()

	src := b.history
	if limit > 0 && limit < len(src) {
		src = src[len(src)-limit:]
	}
	out := make([]core.AgentMessage, len(src))
	copy(out, src)
	return out
}

// AgentMessages returns the history subset where the agent is sender,
// recipient, or the recipient is broadcast, preserving insertion order.
func (b *Bus) AgentMessages(agentID string, limit int) []core.AgentMessage {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []core.AgentMessage
	for _, msg := range b.history {
		if msg.From == agentID || msg.To == agentID || msg.To == core.Broadcast {
			out = append(out, msg)
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out
}

// ClearHistory drops all retained messages. Subscriptions are unaffected.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
	metrics.BusHistorySize.Set(0)
}

// Stats summarizes the retained history by message type and by sender.
type Stats struct {
	Total    int            `json:"total"`
	ByType   map[string]int `json:"by_type"`
	BySender map[string]int `json:"by_sender"`
}

// Stats computes counts over the current history.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{
		Total:    len(b.history),
		ByType:   make(map[string]int),
		BySender: make(map[string]int),
	}
	for _, msg := range b.history {
		s.ByType[msg.Type]++
		s.BySender[msg.From]++
	}
	return s
}
