package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/furisto/toolgate/shared/conv"
	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

// GeminiModelService is the subset of the genai SDK used by the client.
type GeminiModelService interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	models  GeminiModelService
	model   string
	invoker *invoker
}

func NewGeminiClient(ctx context.Context, cfg ClientConfig, opts ...ProviderOption) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return NewGeminiClientWithService(client.Models, cfg, opts...), nil
}

func NewGeminiClientWithService(service GeminiModelService, cfg ClientConfig, opts ...ProviderOption) *GeminiClient {
	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Kind).Name
	}
	options := newProviderOptions("gemini", opts)
	return &GeminiClient{
		models:  service,
		model:   cfg.Model,
		invoker: newInvoker("gemini", options, classifyGeminiError),
	}
}

func (c *GeminiClient) Chat(ctx context.Context, messages []ChatMessage, temperature float64) (string, error) {
	if err := validateMessages(messages); err != nil {
		return "", err
	}

	contents := geminiContents(messages)
	config := &genai.GenerateContentConfig{Temperature: conv.Ptr(float32(temperature))}
	return invoke(ctx, c.invoker, "chat", func(ctx context.Context) (string, error) {
		resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	})
}

func (c *GeminiClient) ChatWithSchema(ctx context.Context, messages []ChatMessage, schema *jsonschema.Schema, temperature float64) (json.RawMessage, error) {
	if err := validateMessages(messages); err != nil {
		return nil, err
	}

	document, err := schemaDocument(schema)
	if err != nil {
		return nil, err
	}

	contents := geminiContents(messages)
	config := &genai.GenerateContentConfig{
		Temperature:        conv.Ptr(float32(temperature)),
		ResponseMIMEType:   "application/json",
		ResponseJsonSchema: document,
	}
	return invoke(ctx, c.invoker, "chat_with_schema", func(ctx context.Context) (json.RawMessage, error) {
		resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
		if err != nil {
			return nil, err
		}

		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return nil, NewProviderError("gemini", ProviderErrorKindInvalidResponse, errors.New("response has no content"))
		}
		return json.RawMessage(text), nil
	})
}

func geminiContents(messages []ChatMessage) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, message := range messages {
		role := genai.RoleUser
		if message.Role == ChatRoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(message.Content, genai.Role(role)))
	}
	return contents
}

func classifyGeminiError(err error) *ProviderError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus("gemini", err, apiErr.Code, nil)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return classifyStatus("gemini", err, apiErrPtr.Code, nil)
	}
	return classifyStatus("gemini", err, 0, nil)
}
