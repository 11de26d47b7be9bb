package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const openAISchemaName = "answer"

// OpenAIChatCompletionService is the subset of the OpenAI SDK used by the
// client.
type OpenAIChatCompletionService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

type OpenAIClient struct {
	chatService OpenAIChatCompletionService
	model       string
	invoker     *invoker
}

func NewOpenAIClient(cfg ClientConfig, opts ...ProviderOption) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	clientOptions := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(clientOptions...)
	return NewOpenAIClientWithService(&client.Chat.Completions, cfg, opts...), nil
}

func NewOpenAIClientWithService(service OpenAIChatCompletionService, cfg ClientConfig, opts ...ProviderOption) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Kind).Name
	}
	options := newProviderOptions("openai", opts)
	return &OpenAIClient{
		chatService: service,
		model:       cfg.Model,
		invoker:     newInvoker("openai", options, classifyOpenAIError),
	}
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	params := c.params(messages, temperature)
	return invoke(ctx, c.invoker, "chat", func(ctx context.Context) (string, error) {
		resp, err := c.chatService.New(ctx, params)
		if err != nil {
			return "", err
		}
		return firstChoice(resp)
	})
}

// ChatWithSchema uses strict json_schema structured outputs.
func (c *OpenAIClient) ChatWithSchema(ctx context.Context, messages []ChatMessage, schema *jsonschema.Schema, temperature float64) (json.RawMessage, error) {
	if err := validateMessages(messages); err != nil {
		return nil, err
	}

	document, err := schemaDocument(schema)
	if err != nil {
		return nil, err
	}

	params := c.params(messages, temperature)
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   openAISchemaName,
				Strict: openai.Bool(true),
				Schema: document,
			},
		},
	}

	return invoke(ctx, c.invoker, "chat_with_schema", func(ctx context.Context) (json.RawMessage, error) {
		resp, err := c.chatService.New(ctx, params)
		if err != nil {
			return nil, err
		}

		content, err := firstChoice(resp)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(strings.TrimSpace(content)), nil
	})
}

func (c *OpenAIClient) params(messages []ChatMessage, temperature float64) openai.ChatCompletionNewParams {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case ChatRoleAssistant:
			params = append(params, openai.AssistantMessage(message.Content))
		default:
			params = append(params, openai.UserMessage(message.Content))
		}
	}

	return openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    params,
		Temperature: openai.Float(temperature),
	}
}

func firstChoice(resp *openai.ChatCompletion) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", NewProviderError("openai", ProviderErrorKindInvalidResponse, errors.New("response has no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) *ProviderError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return classifyStatus("openai", err, apiErr.StatusCode, header)
	}
	return classifyStatus("openai", err, 0, nil)
}
