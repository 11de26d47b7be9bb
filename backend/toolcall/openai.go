package toolcall

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

const (
	OpenAIToolCallTypeFunction = "function"
	OpenAIToolCallTypeCustom   = "custom"

	openAIRoleTool         = "tool"
	openAIPartTypeText     = "text"
	openAIPartTypeImageURL = "image_url"
)

// OpenAIToolCall is a tool call as it appears in an OpenAI chat completion.
// Exactly one of Function or Custom is set, selected by Type.
type OpenAIToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function *OpenAIFunction `json:"function,omitempty"`
	Custom   *OpenAICustom   `json:"custom,omitempty"`
}

type OpenAIFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type OpenAICustom struct {
	Name  string `json:"name"`
	Input string `json:"input"`
}

// OpenAIToolMessage answers one tool call. Content is a string or a
// []OpenAIContentPart.
type OpenAIToolMessage struct {
	Role       string `json:"role"`
	ToolCallID string `json:"tool_call_id"`
	Content    any    `json:"content"`
}

type OpenAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *OpenAIImageURL `json:"image_url,omitempty"`
}

func (p OpenAIContentPart) MarshalJSON() ([]byte, error) {
	if p.Type == openAIPartTypeText {
		return json.Marshal(struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}{Type: p.Type, Text: p.Text})
	}

	type part OpenAIContentPart
	return json.Marshal(part(p))
}

type OpenAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type OpenAIAdapter struct {
	logger  *slog.Logger
	metrics *adapterMetricsProvider
}

func NewOpenAIAdapter(opts ...AdapterOption) *OpenAIAdapter {
	options := newAdapterOptions(opts)
	return &OpenAIAdapter{
		logger:  options.logger,
		metrics: newAdapterMetricsProvider(options.metrics),
	}
}

func (a *OpenAIAdapter) ToolCallsToCommon(calls []OpenAIToolCall) []ToolCall {
	toolCalls := make([]ToolCall, 0, len(calls))
	for _, call := range calls {
		toolCall := ToolCall{
			ID:        call.ID,
			Name:      UnknownToolName,
			Arguments: map[string]any{},
		}

		switch {
		case call.Type == OpenAIToolCallTypeFunction && call.Function != nil:
			toolCall.Name = toolNameOrUnknown(call.Function.Name)
			toolCall.Arguments = a.parseArguments(call.ID, call.Function.Arguments)
		case call.Type == OpenAIToolCallTypeCustom && call.Custom != nil:
			toolCall.Name = toolNameOrUnknown(call.Custom.Name)
			toolCall.Arguments = a.parseArguments(call.ID, call.Custom.Input)
		default:
			a.logger.Debug("unsupported openai tool call", "tool_call_id", call.ID, "type", call.Type)
		}

		toolCalls = append(toolCalls, toolCall)
	}
	return toolCalls
}

func (a *OpenAIAdapter) parseArguments(callID, raw string) map[string]any {
	args, err := decodeArguments([]byte(raw))
	if err != nil {
		a.logger.Debug("failed to parse tool call arguments", "tool_call_id", callID, "error", err)
	}
	return args
}

// ToolCallsFromCommon renders canonical calls as OpenAI function calls.
func (a *OpenAIAdapter) ToolCallsFromCommon(calls []ToolCall) []OpenAIToolCall {
	toolCalls := make([]OpenAIToolCall, 0, len(calls))
	for _, call := range calls {
		arguments := Serialize(argumentsOrEmpty(call.Arguments)).Value
		toolCalls = append(toolCalls, OpenAIToolCall{
			ID:   call.ID,
			Type: OpenAIToolCallTypeFunction,
			Function: &OpenAIFunction{
				Name:      call.Name,
				Arguments: arguments,
			},
		})
	}
	return toolCalls
}

func (a *OpenAIAdapter) ToolResultsToMessages(results []ToolResult, opts ...ResultOption) []OpenAIToolMessage {
	messages := make([]OpenAIToolMessage, 0, len(results))
	for _, result := range results {
		messages = append(messages, OpenAIToolMessage{
			Role:       openAIRoleTool,
			ToolCallID: result.ID,
			Content:    a.resultContent(result),
		})
	}
	return messages
}

func (a *OpenAIAdapter) resultContent(result ToolResult) any {
	if result.IsError {
		a.metrics.IncrementResult(ProviderKindOpenAI, resultOutcomeError)
		return result.ErrorText()
	}

	if HasImageContent(result.Content, IsImageBlock, isOpenAINativeImage) {
		items, _ := contentItems(result.Content)
		images := 0
		parts, converted := convertImageContent(items, func(item any) (OpenAIContentPart, bool) {
			if image, ok := imageBlockOf(item); ok {
				images++
				return OpenAIContentPart{
					Type:     openAIPartTypeImageURL,
					ImageURL: &OpenAIImageURL{URL: dataURL(image)},
				}, true
			}
			return openAIPartOf(item)
		})
		if converted {
			a.metrics.IncrementResult(ProviderKindOpenAI, resultOutcomeImage)
			a.metrics.AddImages(ProviderKindOpenAI, images)
			return parts
		}
	}

	a.metrics.IncrementResult(ProviderKindOpenAI, resultOutcomeText)
	return resultText(result, false)
}

// openAIPartOf maps text blocks and already-native parts.
func openAIPartOf(item any) (OpenAIContentPart, bool) {
	if text, ok := textBlockOf(item); ok {
		return OpenAIContentPart{Type: openAIPartTypeText, Text: text.Text}, true
	}

	switch part := item.(type) {
	case OpenAIContentPart:
		return part, true
	case *OpenAIContentPart:
		if part != nil {
			return *part, true
		}
	}

	if isOpenAINativeImage(item) {
		object, _ := objectOf(item)
		imageURL, _ := objectOf(object["image_url"])
		url, _ := imageURL["url"].(string)
		detail, _ := imageURL["detail"].(string)
		return OpenAIContentPart{
			Type:     openAIPartTypeImageURL,
			ImageURL: &OpenAIImageURL{URL: url, Detail: detail},
		}, true
	}
	return OpenAIContentPart{}, false
}

func isOpenAINativeImage(item any) bool {
	switch part := item.(type) {
	case OpenAIContentPart:
		return part.Type == openAIPartTypeImageURL && part.ImageURL != nil
	case *OpenAIContentPart:
		return part != nil && part.Type == openAIPartTypeImageURL && part.ImageURL != nil
	}

	object, ok := objectOf(item)
	if !ok || object["type"] != openAIPartTypeImageURL {
		return false
	}
	imageURL, ok := objectOf(object["image_url"])
	if !ok {
		return false
	}
	_, ok = imageURL["url"].(string)
	return ok
}

func dataURL(image ImageBlock) string {
	return fmt.Sprintf("data:%s;base64,%s", image.MediaType(), image.Data)
}

// decodeArguments parses a JSON object. Anything else yields an empty map
// alongside the reason.
func decodeArguments(raw []byte) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return map[string]any{}, err
	}
	if args == nil {
		return map[string]any{}, nil
	}
	return args, nil
}

func argumentsOrEmpty(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}

var _ Adapter[OpenAIToolCall, OpenAIToolMessage] = (*OpenAIAdapter)(nil)
