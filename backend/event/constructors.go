package event

import (
	"context"
	"slices"
	"time"

	"github.com/furisto/toolgate/backend/quarantine"
)

const (
	EventTypeQuarantineProgress  = "quarantine.progress"
	EventTypeQuarantineCompleted = "quarantine.completed"
	EventTypeQuarantineFailed    = "quarantine.failed"
)

const (
	ActionProgress  = "progress"
	ActionCompleted = "completed"
	ActionFailed    = "failed"
)

// ProgressPayload contains the payload for quarantine.progress events.
type ProgressPayload struct {
	Progress quarantine.Progress
}

// CompletionPayload contains the payload for quarantine.completed and
// quarantine.failed events.
type CompletionPayload struct {
	Outcome string
	Rounds  int
	Error   string
}

func NewProgressEvent(progress quarantine.Progress) *StreamEvent {
	progress.Options = slices.Clone(progress.Options)
	return &StreamEvent{
		Type:       EventTypeQuarantineProgress,
		Action:     ActionProgress,
		Timestamp:  time.Now(),
		AgentID:    progress.AgentID,
		ToolCallID: progress.ToolCallID,
		Payload:    &ProgressPayload{Progress: progress},
	}
}

func NewCompletionEvent(completion quarantine.Completion) *StreamEvent {
	event := &StreamEvent{
		Type:       EventTypeQuarantineCompleted,
		Action:     ActionCompleted,
		Timestamp:  time.Now(),
		AgentID:    completion.AgentID,
		ToolCallID: completion.ToolCallID,
	}

	payload := &CompletionPayload{Outcome: completion.Outcome, Rounds: completion.Rounds}
	if completion.Err != nil {
		event.Type = EventTypeQuarantineFailed
		event.Action = ActionFailed
		payload.Error = completion.Err.Error()
	}
	event.Payload = payload
	return event
}

var (
	_ quarantine.Observer           = (*EventRouter)(nil)
	_ quarantine.CompletionObserver = (*EventRouter)(nil)
)

// Observe publishes quarantine progress, making the router usable as the
// orchestrator's observer.
func (r *EventRouter) Observe(_ context.Context, progress quarantine.Progress) {
	r.Publish(NewProgressEvent(progress))
}

func (r *EventRouter) Completed(_ context.Context, completion quarantine.Completion) {
	r.Publish(NewCompletionEvent(completion))
}
