// Package model provides the chat clients used by the quarantine
// orchestrator: a plain text completion and a completion constrained to a
// JSON schema, backed by the Anthropic, OpenAI and Gemini SDKs.
package model

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/furisto/toolgate/backend/toolcall"
	"github.com/invopop/jsonschema"
)

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: ChatRoleUser, Content: content}
}

func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: ChatRoleAssistant, Content: content}
}

// ChatClient is a single-shot chat completion. Implementations must be safe
// for concurrent use.
type ChatClient interface {
	Chat(ctx context.Context, messages []ChatMessage, temperature float64) (string, error)
	// ChatWithSchema asks for a JSON value matching schema and returns it
	// undecoded.
	ChatWithSchema(ctx context.Context, messages []ChatMessage, schema *jsonschema.Schema, temperature float64) (json.RawMessage, error)
}

type ClientConfig struct {
	Kind      toolcall.ProviderKind
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int64
}

func (c ClientConfig) Validate() error {
	if err := c.Kind.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("%s API key is required", c.Kind)
	}
	return nil
}

// NewChatClient builds the SDK backed client for cfg.Kind. An empty model
// name selects the provider's default model.
func NewChatClient(ctx context.Context, cfg ClientConfig, opts ...ProviderOption) (ChatClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Kind).Name
	}

	switch cfg.Kind {
	case toolcall.ProviderKindAnthropic:
		return NewAnthropicClient(cfg, opts...)
	case toolcall.ProviderKindOpenAI:
		return NewOpenAIClient(cfg, opts...)
	default:
		return NewGeminiClient(ctx, cfg, opts...)
	}
}

func validateMessages(messages []ChatMessage) error {
	if len(messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}
	for i, message := range messages {
		if message.Role != ChatRoleUser && message.Role != ChatRoleAssistant {
			return fmt.Errorf("message %d has unsupported role %q", i, message.Role)
		}
	}
	return nil
}

// schemaDocument converts a reflected schema into the plain JSON object
// form the provider SDKs accept.
func schemaDocument(schema *jsonschema.Schema) (map[string]any, error) {
	if schema == nil {
		return nil, fmt.Errorf("schema is required")
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	var document map[string]any
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	delete(document, "$schema")
	delete(document, "$id")
	return document, nil
}
