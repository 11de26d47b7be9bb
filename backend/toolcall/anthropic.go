package toolcall

import (
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
)

// AnthropicAdapter converts tool_use blocks into canonical calls and batches
// canonical results into a single user message of tool_result blocks.
type AnthropicAdapter struct {
	logger  *slog.Logger
	metrics *adapterMetricsProvider
}

func NewAnthropicAdapter(opts ...AdapterOption) *AnthropicAdapter {
	options := newAdapterOptions(opts)
	return &AnthropicAdapter{
		logger:  options.logger,
		metrics: newAdapterMetricsProvider(options.metrics),
	}
}

func (a *AnthropicAdapter) ToolCallsToCommon(calls []anthropic.ToolUseBlock) []ToolCall {
	toolCalls := make([]ToolCall, 0, len(calls))
	for _, call := range calls {
		args := map[string]any{}
		if len(call.Input) > 0 {
			var err error
			args, err = decodeArguments(call.Input)
			if err != nil {
				a.logger.Debug("failed to decode tool use input", "tool_call_id", call.ID, "error", err)
			}
		}

		toolCalls = append(toolCalls, ToolCall{
			ID:        call.ID,
			Name:      toolNameOrUnknown(call.Name),
			Arguments: args,
		})
	}
	return toolCalls
}

// ToolCallsFromCommon renders canonical calls as tool_use blocks for an
// assistant message.
func (a *AnthropicAdapter) ToolCallsFromCommon(calls []ToolCall) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(calls))
	for _, call := range calls {
		blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, argumentsOrEmpty(call.Arguments), call.Name))
	}
	return blocks
}

func (a *AnthropicAdapter) ToolResultsToMessages(results []ToolResult, opts ...ResultOption) []anthropic.MessageParam {
	if len(results) == 0 {
		return []anthropic.MessageParam{}
	}

	options := newResultOptions(opts)

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, result := range results {
		blocks = append(blocks, anthropic.ContentBlockParamUnion{
			OfToolResult: &anthropic.ToolResultBlockParam{
				ToolUseID: result.ID,
				IsError:   anthropic.Bool(result.IsError),
				Content:   a.resultContent(result, options.compact),
			},
		})
	}

	return []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)}
}

func (a *AnthropicAdapter) resultContent(result ToolResult, compact bool) []anthropic.ToolResultBlockParamContentUnion {
	if result.IsError {
		a.metrics.IncrementResult(ProviderKindAnthropic, resultOutcomeError)
		return anthropicText(result.ErrorText())
	}

	if HasImageContent(result.Content, IsImageBlock, isAnthropicNativeImage) {
		items, _ := contentItems(result.Content)
		images := 0
		blocks, converted := convertImageContent(items, func(item any) (anthropic.ToolResultBlockParamContentUnion, bool) {
			if image, ok := imageBlockOf(item); ok {
				images++
				return anthropic.ToolResultBlockParamContentUnion{
					OfImage: &anthropic.ImageBlockParam{
						Source: anthropic.ImageBlockParamSourceUnion{
							OfBase64: &anthropic.Base64ImageSourceParam{
								Data:      image.Data,
								MediaType: anthropic.Base64ImageSourceMediaType(image.MediaType()),
							},
						},
					},
				}, true
			}
			return anthropicPartOf(item)
		})
		if converted {
			a.metrics.IncrementResult(ProviderKindAnthropic, resultOutcomeImage)
			a.metrics.AddImages(ProviderKindAnthropic, images)
			return blocks
		}
	}

	a.metrics.IncrementResult(ProviderKindAnthropic, resultOutcomeText)
	if !compact {
		return anthropicText(resultText(result, false))
	}

	jsonText := resultText(result, false)
	compactText := resultText(result, true)
	a.metrics.AddEncodedBytes(ProviderKindAnthropic, encodingJSON, len(jsonText))
	a.metrics.AddEncodedBytes(ProviderKindAnthropic, encodingCompact, len(compactText))
	a.logger.Debug("encoded tool result",
		"tool_call_id", result.ID,
		"json_bytes", len(jsonText),
		"compact_bytes", len(compactText),
	)
	return anthropicText(compactText)
}

func anthropicText(text string) []anthropic.ToolResultBlockParamContentUnion {
	return []anthropic.ToolResultBlockParamContentUnion{
		{OfText: &anthropic.TextBlockParam{Text: text}},
	}
}

// anthropicPartOf maps text blocks and already-native image blocks.
func anthropicPartOf(item any) (anthropic.ToolResultBlockParamContentUnion, bool) {
	if text, ok := textBlockOf(item); ok {
		return anthropic.ToolResultBlockParamContentUnion{
			OfText: &anthropic.TextBlockParam{Text: text.Text},
		}, true
	}

	switch block := item.(type) {
	case anthropic.ImageBlockParam:
		return anthropic.ToolResultBlockParamContentUnion{OfImage: &block}, true
	case *anthropic.ImageBlockParam:
		if block != nil {
			return anthropic.ToolResultBlockParamContentUnion{OfImage: block}, true
		}
		return anthropic.ToolResultBlockParamContentUnion{}, false
	}

	object, ok := objectOf(item)
	if !ok || !isAnthropicNativeImage(item) {
		return anthropic.ToolResultBlockParamContentUnion{}, false
	}

	source, _ := objectOf(object["source"])
	var union anthropic.ImageBlockParamSourceUnion
	if url, ok := source["url"].(string); ok && source["type"] == "url" {
		union.OfURL = &anthropic.URLImageSourceParam{URL: url}
	} else {
		data, _ := source["data"].(string)
		mediaType, _ := source["media_type"].(string)
		if mediaType == "" {
			mediaType = DefaultImageMimeType
		}
		union.OfBase64 = &anthropic.Base64ImageSourceParam{
			Data:      data,
			MediaType: anthropic.Base64ImageSourceMediaType(mediaType),
		}
	}

	return anthropic.ToolResultBlockParamContentUnion{
		OfImage: &anthropic.ImageBlockParam{Source: union},
	}, true
}

func isAnthropicNativeImage(item any) bool {
	switch block := item.(type) {
	case anthropic.ImageBlockParam:
		return true
	case *anthropic.ImageBlockParam:
		return block != nil
	}

	object, ok := objectOf(item)
	if !ok || object["type"] != string(ContentBlockTypeImage) {
		return false
	}
	_, ok = objectOf(object["source"])
	return ok
}

var _ Adapter[anthropic.ToolUseBlock, anthropic.MessageParam] = (*AnthropicAdapter)(nil)
