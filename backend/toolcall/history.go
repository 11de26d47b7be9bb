package toolcall

import (
	"encoding/json"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// ToolResultsFromHistory rebuilds canonical results from a stored Anthropic
// conversation. Each tool_result block is attributed to the most recent
// earlier tool_use block with the same id. Results that cannot be attributed
// are dropped.
func (a *AnthropicAdapter) ToolResultsFromHistory(history []anthropic.MessageParam) []ToolResult {
	results := []ToolResult{}
	for i, message := range history {
		if message.Role != anthropic.MessageParamRoleUser {
			continue
		}

		for _, block := range message.Content {
			toolResult := block.OfToolResult
			if toolResult == nil {
				continue
			}

			name, ok := toolUseName(history[:i], toolResult.ToolUseID)
			if !ok {
				a.logger.Debug("dropping unattributed tool result", "tool_call_id", toolResult.ToolUseID)
				continue
			}

			results = append(results, historyResult(toolResult, name))
		}
	}
	return results
}

func toolUseName(history []anthropic.MessageParam, id string) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != anthropic.MessageParamRoleAssistant {
			continue
		}
		for _, block := range history[i].Content {
			if block.OfToolUse != nil && block.OfToolUse.ID == id {
				return toolNameOrUnknown(block.OfToolUse.Name), true
			}
		}
	}
	return "", false
}

func historyResult(block *anthropic.ToolResultBlockParam, name string) ToolResult {
	result := ToolResult{ID: block.ToolUseID, Name: name}

	var texts []string
	var content []any
	hasImage := false
	for _, part := range block.Content {
		switch {
		case part.OfText != nil:
			texts = append(texts, part.OfText.Text)
			content = append(content, TextBlock{Text: part.OfText.Text})
		case part.OfImage != nil && part.OfImage.Source.OfBase64 != nil:
			source := part.OfImage.Source.OfBase64
			content = append(content, ImageBlock{Data: source.Data, MimeType: string(source.MediaType)})
			hasImage = true
		case part.OfImage != nil:
			content = append(content, *part.OfImage)
			hasImage = true
		}
	}

	text := strings.Join(texts, "\n")
	switch {
	case block.IsError.Value:
		result.IsError = true
		result.Error = strings.TrimPrefix(text, "Error: ")
	case hasImage:
		result.Content = content
	default:
		result.Content = decodeHistoryText(text)
	}
	return result
}

// decodeHistoryText recovers the JSON value a result was serialized from, or
// keeps the text when it is not JSON.
func decodeHistoryText(text string) any {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return text
	}
	return value
}
