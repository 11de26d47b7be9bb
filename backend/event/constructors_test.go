package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/furisto/toolgate/backend/quarantine"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var cmpOpts = []cmp.Option{
	cmpopts.IgnoreFields(StreamEvent{}, "Timestamp"),
}

func TestNewProgressEvent(t *testing.T) {
	progress := quarantine.Progress{
		AgentID:    "agent-1",
		ToolCallID: "call-1",
		Round:      1,
		Question:   "Does the repo exist?",
		Options:    []string{"yes", "no"},
		Answer:     "0",
	}

	got := NewProgressEvent(progress)

	want := &StreamEvent{
		Type:       EventTypeQuarantineProgress,
		Action:     ActionProgress,
		AgentID:    "agent-1",
		ToolCallID: "call-1",
		Payload:    &ProgressPayload{Progress: progress},
	}
	if diff := cmp.Diff(want, got, cmpOpts...); diff != "" {
		t.Errorf("NewProgressEvent() mismatch (-want +got):\n%s", diff)
	}
	if got.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}

	progress.Options[0] = "mutated"
	if got.Payload.(*ProgressPayload).Progress.Options[0] != "yes" {
		t.Error("event shares options with the caller")
	}
}

func TestNewCompletionEvent(t *testing.T) {
	tests := []struct {
		name       string
		completion quarantine.Completion
		want       *StreamEvent
	}{
		{
			name:       "completed",
			completion: quarantine.Completion{AgentID: "agent-1", ToolCallID: "call-1", Outcome: "done", Rounds: 2},
			want: &StreamEvent{
				Type:       EventTypeQuarantineCompleted,
				Action:     ActionCompleted,
				AgentID:    "agent-1",
				ToolCallID: "call-1",
				Payload:    &CompletionPayload{Outcome: "done", Rounds: 2},
			},
		},
		{
			name:       "failed",
			completion: quarantine.Completion{AgentID: "agent-1", ToolCallID: "call-1", Outcome: "error", Err: errors.New("quota exceeded")},
			want: &StreamEvent{
				Type:       EventTypeQuarantineFailed,
				Action:     ActionFailed,
				AgentID:    "agent-1",
				ToolCallID: "call-1",
				Payload:    &CompletionPayload{Outcome: "error", Error: "quota exceeded"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewCompletionEvent(tt.completion)
			if diff := cmp.Diff(tt.want, got, cmpOpts...); diff != "" {
				t.Errorf("NewCompletionEvent() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRouterAsObserver(t *testing.T) {
	router := NewEventRouter(10)
	defer router.Close()

	ch, unsubscribe := router.Subscribe(context.Background(), SubscribeOptions{AgentID: "agent-1"})
	defer unsubscribe()

	var observer quarantine.Observer = router
	observer.Observe(context.Background(), quarantine.Progress{AgentID: "agent-1", Answer: "1"})
	router.Completed(context.Background(), quarantine.Completion{AgentID: "agent-1", Outcome: "done"})

	var types []string
	for range 2 {
		select {
		case event := <-ch:
			types = append(types, event.Type)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for event")
		}
	}

	want := []string{EventTypeQuarantineProgress, EventTypeQuarantineCompleted}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("event types mismatch (-want +got):\n%s", diff)
	}
}
