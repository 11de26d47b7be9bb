package analytics

import (
	"github.com/posthog/posthog-go"
)

const distinctID = "user"

func EmitQuarantineCompleted(client Client, agentID string, toolCallID string, outcome string, rounds int) {
	client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      "quarantine_completed",
		Properties: map[string]interface{}{
			"agent_id":     agentID,
			"tool_call_id": toolCallID,
			"outcome":      outcome,
			"rounds":       rounds,
		},
	})
}

func EmitQuarantineFailed(client Client, agentID string, toolCallID string, rounds int) {
	client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      "quarantine_failed",
		Properties: map[string]interface{}{
			"agent_id":     agentID,
			"tool_call_id": toolCallID,
			"rounds":       rounds,
		},
	})
}

func EmitToolCallsConverted(client Client, provider string, count int) {
	client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      "tool_calls_converted",
		Properties: map[string]interface{}{
			"provider": provider,
			"count":    count,
		},
	})
}

func EmitToolResultsConverted(client Client, provider string, count int, compact bool) {
	client.Enqueue(posthog.Capture{
		DistinctId: distinctID,
		Event:      "tool_results_converted",
		Properties: map[string]interface{}{
			"provider": provider,
			"count":    count,
			"compact":  compact,
		},
	})
}
