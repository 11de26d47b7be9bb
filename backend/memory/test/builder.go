package test

import (
	"context"
	"testing"

	"github.com/furisto/toolgate/backend/model"
	"github.com/furisto/toolgate/backend/quarantine"
)

const (
	AgentID    = "agent-0195fbbe"
	ToolCallID = "toolu_0195fbbd"
)

type RecordBuilder struct {
	t     *testing.T
	store quarantine.Store

	agentID      string
	toolCallID   string
	conversation []quarantine.TranscriptEntry
	result       string
	outcome      string
}

func NewRecordBuilder(t *testing.T, store quarantine.Store) *RecordBuilder {
	if t == nil {
		panic("testing.T is required")
	}
	if store == nil {
		t.Fatal("store is required")
	}

	return &RecordBuilder{
		t:          t,
		store:      store,
		agentID:    AgentID,
		toolCallID: ToolCallID,
		conversation: []quarantine.TranscriptEntry{
			{Role: model.ChatRoleUser, Content: "seed prompt"},
			{Role: model.ChatRoleAssistant, Content: "QUESTION: Does the repo exist?\nOPTIONS:\n0: yes\n1: no"},
			{Role: model.ChatRoleUser, Content: "Answer: 0 (yes)"},
		},
		result:  "The repo exists.",
		outcome: quarantine.StateRoundLimitReached.String(),
	}
}

func (b *RecordBuilder) WithAgentID(agentID string) *RecordBuilder {
	b.agentID = agentID
	return b
}

func (b *RecordBuilder) WithToolCallID(toolCallID string) *RecordBuilder {
	b.toolCallID = toolCallID
	return b
}

func (b *RecordBuilder) WithResult(result string) *RecordBuilder {
	b.result = result
	return b
}

func (b *RecordBuilder) WithConversation(conversation ...quarantine.TranscriptEntry) *RecordBuilder {
	b.conversation = conversation
	return b
}

func (b *RecordBuilder) WithOutcome(outcome quarantine.State) *RecordBuilder {
	b.outcome = outcome.String()
	return b
}

func (b *RecordBuilder) Record() quarantine.Record {
	return quarantine.Record{
		AgentID:      b.agentID,
		ToolCallID:   b.toolCallID,
		Conversation: b.conversation,
		Result:       b.result,
		Outcome:      b.outcome,
	}
}

func (b *RecordBuilder) Build(ctx context.Context) quarantine.Record {
	record := b.Record()
	if err := b.store.SaveQuarantineRecord(ctx, record); err != nil {
		b.t.Fatalf("failed to save quarantine record: %v", err)
	}
	return record
}
