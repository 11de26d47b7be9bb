package toolcall

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Adapter converts between one provider's wire types and the common tool
// protocol. Call is the provider's tool call type and Message the type that
// carries tool results back to the provider.
type Adapter[Call, Message any] interface {
	ToolCallsToCommon(calls []Call) []ToolCall
	ToolResultsToMessages(results []ToolResult, opts ...ResultOption) []Message
}

type resultOptions struct {
	compact   bool
	toolCalls []ToolCall
	hasCalls  bool
}

type ResultOption func(*resultOptions)

// WithCompactEncoding switches non-image, non-error result bodies to the
// compact encoding. Only the Anthropic adapter honors it.
func WithCompactEncoding(enabled bool) ResultOption {
	return func(o *resultOptions) {
		o.compact = enabled
	}
}

// WithToolCalls supplies the calls the results answer. Adapters whose wire
// format needs the tool name look it up here by call id.
func WithToolCalls(calls []ToolCall) ResultOption {
	return func(o *resultOptions) {
		o.toolCalls = calls
		o.hasCalls = true
	}
}

func newResultOptions(opts []ResultOption) *resultOptions {
	options := &resultOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

type adapterOptions struct {
	logger  *slog.Logger
	metrics *prometheus.Registry
}

type AdapterOption func(*adapterOptions)

func WithLogger(logger *slog.Logger) AdapterOption {
	return func(o *adapterOptions) {
		o.logger = logger
	}
}

func WithMetrics(registry *prometheus.Registry) AdapterOption {
	return func(o *adapterOptions) {
		o.metrics = registry
	}
}

func newAdapterOptions(opts []AdapterOption) *adapterOptions {
	options := &adapterOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	return options
}

// Codec is the provider-tag boundary of the protocol. It decodes a provider's
// JSON tool call list and encodes canonical results into the provider's JSON
// message list.
type Codec interface {
	Kind() ProviderKind
	DecodeToolCalls(data []byte) ([]ToolCall, error)
	EncodeToolResults(results []ToolResult, opts ...ResultOption) ([]byte, error)
}

type adapterCodec[Call, Message any] struct {
	kind    ProviderKind
	adapter Adapter[Call, Message]
}

func (c *adapterCodec[Call, Message]) Kind() ProviderKind {
	return c.kind
}

// DecodeToolCalls only fails when data is not a JSON array. Elements that do
// not decode are passed to the adapter as zero values and degrade there.
func (c *adapterCodec[Call, Message]) DecodeToolCalls(data []byte) ([]ToolCall, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s tool calls: %w", c.kind, err)
	}

	calls := make([]Call, len(raw))
	for i, element := range raw {
		var call Call
		if err := json.Unmarshal(element, &call); err != nil {
			call = *new(Call)
		}
		calls[i] = call
	}

	return c.adapter.ToolCallsToCommon(calls), nil
}

func (c *adapterCodec[Call, Message]) EncodeToolResults(results []ToolResult, opts ...ResultOption) ([]byte, error) {
	messages := c.adapter.ToolResultsToMessages(results, opts...)
	if messages == nil {
		messages = []Message{}
	}

	data, err := marshalJSON(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s tool results: %w", c.kind, err)
	}
	return data, nil
}

// NewCodec wraps an adapter as a Codec for the given provider kind.
func NewCodec[Call, Message any](kind ProviderKind, adapter Adapter[Call, Message]) Codec {
	return &adapterCodec[Call, Message]{kind: kind, adapter: adapter}
}

// CodecFor returns the codec for a provider kind.
func CodecFor(kind ProviderKind, opts ...AdapterOption) (Codec, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	switch kind {
	case ProviderKindOpenAI:
		return NewCodec(kind, NewOpenAIAdapter(opts...)), nil
	case ProviderKindAnthropic:
		return NewCodec(kind, NewAnthropicAdapter(opts...)), nil
	default:
		return NewCodec(kind, NewGeminiAdapter(opts...)), nil
	}
}

// resultText is the textual payload of a result that carries no images.
func resultText(result ToolResult, compact bool) string {
	if result.IsError {
		return result.ErrorText()
	}
	if compact {
		return SerializeCompact(result.Content).Value
	}
	return Serialize(result.Content).Value
}

// convertImageContent walks image-bearing content and maps every element with
// convert. The second return value reports whether any element converted.
func convertImageContent[T any](items []any, convert func(item any) (T, bool)) ([]T, bool) {
	blocks := make([]T, 0, len(items))
	converted := false
	for _, item := range items {
		block, ok := convert(item)
		if !ok {
			continue
		}
		blocks = append(blocks, block)
		converted = true
	}
	return blocks, converted
}
