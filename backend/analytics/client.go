// Package analytics sends anonymous usage events to PostHog. Nothing is sent
// unless a project key is configured, and tool data never leaves the process.
package analytics

import (
	"context"
	"fmt"

	"github.com/furisto/toolgate/backend/event"
	"github.com/posthog/posthog-go"
)

// Client is the part of posthog.Client used for capturing events.
type Client interface {
	Enqueue(msg posthog.Message) error
	Close() error
}

// NewClient returns a PostHog client, or a client that drops every event
// when apiKey is empty.
func NewClient(apiKey string, endpoint string) (Client, error) {
	if apiKey == "" {
		return NoopClient{}, nil
	}

	config := posthog.Config{}
	if endpoint != "" {
		config.Endpoint = endpoint
	}
	client, err := posthog.NewWithConfig(apiKey, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics client: %w", err)
	}
	return client, nil
}

type NoopClient struct{}

func (NoopClient) Enqueue(posthog.Message) error { return nil }

func (NoopClient) Close() error { return nil }

// Forward captures quarantine completion events from the router in the
// background until ctx is done or the router is closed. The returned stop
// function unsubscribes and waits until the events already delivered are
// captured.
func Forward(ctx context.Context, router *event.EventRouter, client Client) (stop func()) {
	events, unsubscribe := router.Subscribe(ctx, event.SubscribeOptions{
		EventTypes: []string{event.EventTypeQuarantineCompleted, event.EventTypeQuarantineFailed},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for streamEvent := range events {
			capture(client, streamEvent)
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

func capture(client Client, streamEvent *event.StreamEvent) {
	payload, ok := streamEvent.Payload.(*event.CompletionPayload)
	if !ok {
		return
	}
	switch streamEvent.Type {
	case event.EventTypeQuarantineCompleted:
		EmitQuarantineCompleted(client, streamEvent.AgentID, streamEvent.ToolCallID, payload.Outcome, payload.Rounds)
	case event.EventTypeQuarantineFailed:
		EmitQuarantineFailed(client, streamEvent.AgentID, streamEvent.ToolCallID, payload.Rounds)
	}
}
