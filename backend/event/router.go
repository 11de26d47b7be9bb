package event

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultChannelBufferSize is the default buffer size for subscriber channels.
	DefaultChannelBufferSize = 100
)

// StreamEvent is the event type distributed by the EventRouter.
type StreamEvent struct {
	// Type is the event type string (e.g., "quarantine.progress").
	Type string

	// Action is the action that occurred (progress, completed, failed).
	Action string

	Timestamp time.Time

	// AgentID and ToolCallID scope the event to one quarantine session.
	AgentID    string
	ToolCallID string

	// Payload is the domain payload (e.g., *ProgressPayload).
	Payload any
}

// SubscribeOptions configures event subscription filtering.
type SubscribeOptions struct {
	// EventTypes specifies which event types to receive using glob patterns.
	// Supports: "*" (all), "entity.*", "*.action", or exact match.
	// Empty slice subscribes to all events.
	EventTypes []string

	// AgentID limits delivery to events of one agent.
	AgentID string

	// ToolCallID limits delivery to events of one quarantine session.
	ToolCallID string
}

type eventSubscription struct {
	id         uuid.UUID
	patterns   []string
	agentID    string
	toolCallID string
	channel    chan *StreamEvent
	cancelFunc context.CancelFunc
}

// EventRouter manages event subscriptions and distribution.
type EventRouter struct {
	subscriptions map[uuid.UUID]*eventSubscription
	mu            sync.RWMutex
	bufferSize    int
	closed        bool
	metrics       *routerMetricsProvider
	logger        *slog.Logger
}

type RouterOption func(*EventRouter)

func WithMetrics(registry *prometheus.Registry) RouterOption {
	return func(r *EventRouter) {
		r.metrics = newRouterMetricsProvider(registry)
	}
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *EventRouter) {
		r.logger = logger
	}
}

// NewEventRouter creates a new EventRouter with the specified channel buffer size.
func NewEventRouter(bufferSize int, opts ...RouterOption) *EventRouter {
	if bufferSize <= 0 {
		bufferSize = DefaultChannelBufferSize
	}
	router := &EventRouter{
		subscriptions: make(map[uuid.UUID]*eventSubscription),
		bufferSize:    bufferSize,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(router)
	}
	return router
}

// Subscribe creates a new subscription and returns a channel for receiving
// events. Call the returned cancel function to unsubscribe and close the
// channel. The channel is also closed if ctx is cancelled.
func (r *EventRouter) Subscribe(ctx context.Context, opts SubscribeOptions) (<-chan *StreamEvent, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		ch := make(chan *StreamEvent)
		close(ch)
		return ch, func() {}
	}

	patterns := opts.EventTypes
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}

	subCtx, cancel := context.WithCancel(ctx)
	ch := make(chan *StreamEvent, r.bufferSize)

	sub := &eventSubscription{
		id:         uuid.New(),
		patterns:   patterns,
		agentID:    opts.AgentID,
		toolCallID: opts.ToolCallID,
		channel:    ch,
		cancelFunc: cancel,
	}
	r.subscriptions[sub.id] = sub

	go func() {
		<-subCtx.Done()
		r.unsubscribe(sub.id)
	}()

	return ch, cancel
}

func (r *EventRouter) unsubscribe(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.subscriptions[id]; ok {
		close(sub.channel)
		delete(r.subscriptions, id)
	}
}

// Publish sends an event to all matching subscribers. Delivery never
// blocks; if a subscriber's channel is full, the event is dropped.
func (r *EventRouter) Publish(event *StreamEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	r.metrics.IncrementPublished(event.Type)
	for _, sub := range r.subscriptions {
		if !matches(sub, event) {
			continue
		}
		select {
		case sub.channel <- event:
			r.metrics.IncrementDelivered(event.Type)
		default:
			r.metrics.IncrementDropped(event.Type)
			r.logger.Debug("dropped event due to full channel buffer",
				"event_type", event.Type,
				"subscription_id", sub.id,
			)
		}
	}
}

func matches(sub *eventSubscription, event *StreamEvent) bool {
	if sub.agentID != "" && event.AgentID != sub.agentID {
		return false
	}
	if sub.toolCallID != "" && event.ToolCallID != sub.toolCallID {
		return false
	}

	for _, pattern := range sub.patterns {
		if matchPattern(pattern, event.Type) {
			return true
		}
	}
	return false
}

// matchPattern checks if an event type matches a glob pattern.
// Supported patterns:
//   - "*" matches all event types
//   - "entity.*" matches all events for that entity
//   - "*.action" matches that action across all entities
//   - Exact strings match exactly
func matchPattern(pattern, eventType string) bool {
	if pattern == "*" || pattern == eventType {
		return true
	}

	patternEntity, patternAction, ok := strings.Cut(pattern, ".")
	if !ok {
		return false
	}
	eventEntity, eventAction, ok := strings.Cut(eventType, ".")
	if !ok {
		return false
	}

	if patternAction == "*" && patternEntity == eventEntity {
		return true
	}
	return patternEntity == "*" && patternAction == eventAction
}

// Close shuts down the router and closes all subscription channels.
func (r *EventRouter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true

	for id, sub := range r.subscriptions {
		sub.cancelFunc()
		close(sub.channel)
		delete(r.subscriptions, id)
	}
}

// SubscriptionCount returns the number of active subscriptions.
func (r *EventRouter) SubscriptionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscriptions)
}
