package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/invopop/jsonschema"
)

const anthropicStructuredOutputTool = "structured_output"

// AnthropicMessageService is the subset of the Anthropic SDK used by the
// client.
type AnthropicMessageService interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClient struct {
	messages  AnthropicMessageService
	model     string
	maxTokens int64
	invoker   *invoker
}

func NewAnthropicClient(cfg ClientConfig, opts ...ProviderOption) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	clientOptions := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropic.NewClient(clientOptions...)
	return NewAnthropicClientWithService(&client.Messages, cfg, opts...), nil
}

func NewAnthropicClientWithService(service AnthropicMessageService, cfg ClientConfig, opts ...ProviderOption) *AnthropicClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Kind).Name
	}
	options := newProviderOptions("anthropic", opts)
	return &AnthropicClient{
		messages:  service,
		model:     cfg.Model,
		maxTokens: maxTokensFor(cfg),
		invoker:   newInvoker("anthropic", options, classifyAnthropicError),
	}
}

func (c *AnthropicClient) Chat(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	params := c.params(messages, temperature)
	return invoke(ctx, c.invoker, "chat", func(ctx context.Context) (string, error) {
		resp, err := c.messages.New(ctx, params)
		if err != nil {
			return "", err
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		return text.String(), nil
	})
}

// ChatWithSchema forces a single tool call whose input schema is the
// requested schema and returns the tool input.
func (c *AnthropicClient) ChatWithSchema(ctx context.Context, messages []ChatMessage, schema *jsonschema.Schema, temperature float64) (json.RawMessage, error) {
	if err := validateMessages(messages); err != nil {
		return nil, err
	}

	document, err := schemaDocument(schema)
	if err != nil {
		return nil, err
	}

	inputSchema := anthropic.ToolInputSchemaParam{Properties: document["properties"]}
	if required, ok := document["required"].([]any); ok {
		for _, name := range required {
			if s, ok := name.(string); ok {
				inputSchema.Required = append(inputSchema.Required, s)
			}
		}
	}

	params := c.params(messages, temperature)
	params.Tools = []anthropic.ToolUnionParam{
		{OfTool: &anthropic.ToolParam{
			Name:        anthropicStructuredOutputTool,
			Description: anthropic.String("Report the answer in the required structure."),
			InputSchema: inputSchema,
		}},
	}
	params.ToolChoice = anthropic.ToolChoiceParamOfTool(anthropicStructuredOutputTool)

	return invoke(ctx, c.invoker, "chat_with_schema", func(ctx context.Context) (json.RawMessage, error) {
		resp, err := c.messages.New(ctx, params)
		if err != nil {
			return nil, err
		}

		for _, block := range resp.Content {
			if block.Type == "tool_use" && block.Name == anthropicStructuredOutputTool {
				return block.Input, nil
			}
		}
		return nil, NewProviderError("anthropic", ProviderErrorKindInvalidResponse, errors.New("response has no structured output"))
	})
}

func (c *AnthropicClient) params(messages []ChatMessage, temperature float64) anthropic.MessageNewParams {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, message := range messages {
		block := anthropic.NewTextBlock(message.Content)
		switch message.Role {
		case ChatRoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(block))
		default:
			params = append(params, anthropic.NewUserMessage(block))
		}
	}

	return anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages:    params,
	}
}

func classifyAnthropicError(err error) *ProviderError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return classifyStatus("anthropic", err, apiErr.StatusCode, header)
	}
	return classifyStatus("anthropic", err, 0, nil)
}
