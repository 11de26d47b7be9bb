package toolcall

import (
	"log/slog"
	"maps"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// GeminiAdapter converts genai function calls and responses. Function
// responses are matched to calls by name, so the adapter resolves names
// from the call list supplied with WithToolCalls.
type GeminiAdapter struct {
	logger  *slog.Logger
	metrics *adapterMetricsProvider
	newID   func() string
}

func NewGeminiAdapter(opts ...AdapterOption) *GeminiAdapter {
	options := newAdapterOptions(opts)
	return &GeminiAdapter{
		logger:  options.logger,
		metrics: newAdapterMetricsProvider(options.metrics),
		newID: func() string {
			return "call_" + uuid.NewString()
		},
	}
}

func (a *GeminiAdapter) ToolCallsToCommon(calls []*genai.FunctionCall) []ToolCall {
	toolCalls := make([]ToolCall, 0, len(calls))
	for _, call := range calls {
		if call == nil {
			toolCalls = append(toolCalls, ToolCall{ID: a.newID(), Name: UnknownToolName, Arguments: map[string]any{}})
			continue
		}

		id := call.ID
		if id == "" {
			id = a.newID()
			a.logger.Debug("generated id for function call", "tool", call.Name, "tool_call_id", id)
		}

		args := map[string]any{}
		if call.Args != nil {
			args = maps.Clone(call.Args)
		}

		toolCalls = append(toolCalls, ToolCall{
			ID:        id,
			Name:      toolNameOrUnknown(call.Name),
			Arguments: args,
		})
	}
	return toolCalls
}

func (a *GeminiAdapter) ToolCallsFromCommon(calls []ToolCall) []*genai.FunctionCall {
	functionCalls := make([]*genai.FunctionCall, 0, len(calls))
	for _, call := range calls {
		functionCalls = append(functionCalls, &genai.FunctionCall{
			ID:   call.ID,
			Name: call.Name,
			Args: maps.Clone(argumentsOrEmpty(call.Arguments)),
		})
	}
	return functionCalls
}

func (a *GeminiAdapter) ToolResultsToMessages(results []ToolResult, opts ...ResultOption) []*genai.FunctionResponse {
	options := newResultOptions(opts)

	lookup := options.toolCalls
	if !options.hasCalls {
		lookup = make([]ToolCall, 0, len(results))
		for _, result := range results {
			lookup = append(lookup, ToolCall{ID: result.ID, Name: result.Name})
		}
	}

	responses := make([]*genai.FunctionResponse, 0, len(results))
	for _, result := range results {
		responses = append(responses, &genai.FunctionResponse{
			ID:       result.ID,
			Name:     geminiToolName(lookup, result.ID),
			Response: a.resultResponse(result),
		})
	}
	return responses
}

func geminiToolName(calls []ToolCall, id string) string {
	for _, call := range calls {
		if call.ID == id {
			return toolNameOrUnknown(call.Name)
		}
	}
	return UnknownToolName
}

func (a *GeminiAdapter) resultResponse(result ToolResult) map[string]any {
	if result.IsError {
		a.metrics.IncrementResult(ProviderKindGemini, resultOutcomeError)
		return map[string]any{"error": result.ErrorText()}
	}

	if HasImageContent(result.Content, IsImageBlock, isGeminiNativeImage) {
		items, _ := contentItems(result.Content)
		var texts []string
		var images []any
		for _, item := range items {
			if text, ok := textBlockOf(item); ok {
				texts = append(texts, text.Text)
				continue
			}
			if image, ok := imageBlockOf(item); ok {
				images = append(images, map[string]any{
					"inlineData": map[string]any{
						"mimeType": image.MediaType(),
						"data":     image.Data,
					},
				})
				continue
			}
			if isGeminiNativeImage(item) {
				images = append(images, item)
			}
		}

		if len(images) > 0 {
			a.metrics.IncrementResult(ProviderKindGemini, resultOutcomeImage)
			a.metrics.AddImages(ProviderKindGemini, len(images))
			return map[string]any{
				"text":   strings.Join(texts, "\n"),
				"images": images,
			}
		}
	}

	a.metrics.IncrementResult(ProviderKindGemini, resultOutcomeText)
	return map[string]any{"output": resultText(result, false)}
}

func isGeminiNativeImage(item any) bool {
	switch part := item.(type) {
	case *genai.Part:
		return part != nil && part.InlineData != nil
	case genai.Part:
		return part.InlineData != nil
	}

	object, ok := objectOf(item)
	if !ok {
		return false
	}
	inline, ok := objectOf(object["inlineData"])
	if !ok {
		return false
	}
	_, ok = inline["data"].(string)
	return ok
}

var _ Adapter[*genai.FunctionCall, *genai.FunctionResponse] = (*GeminiAdapter)(nil)
