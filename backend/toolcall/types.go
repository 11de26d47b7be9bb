// Package toolcall implements the common tool protocol: a provider-agnostic
// representation of tool calls and tool results, and adapters that convert it
// to and from the OpenAI, Anthropic and Gemini wire formats.
package toolcall

import (
	"encoding/json"
	"fmt"
)

const (
	// DefaultImageMimeType is used for image blocks that carry no MIME type.
	DefaultImageMimeType = "image/png"

	// DefaultToolErrorMessage is shown when a failed tool result has no error text.
	DefaultToolErrorMessage = "Tool execution failed"

	// UnknownToolName is used when a tool name cannot be determined.
	UnknownToolName = "unknown"
)

type ProviderKind string

const (
	ProviderKindOpenAI    ProviderKind = "openai"
	ProviderKindAnthropic ProviderKind = "anthropic"
	ProviderKindGemini    ProviderKind = "gemini"
)

func (k ProviderKind) Validate() error {
	switch k {
	case ProviderKindOpenAI, ProviderKindAnthropic, ProviderKindGemini:
		return nil
	}
	return fmt.Errorf("unsupported provider kind %q", string(k))
}

// ToolCall is a tool invocation requested by a model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of executing a ToolCall. Content holds any JSON
// value, a list of content blocks, or nil.
type ToolResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content any    `json:"content"`
	IsError bool   `json:"isError"`
	Error   string `json:"error,omitempty"`
}

// ErrorText is the display text of a failed result. The result content is
// never part of it.
func (r ToolResult) ErrorText() string {
	message := r.Error
	if message == "" {
		message = DefaultToolErrorMessage
	}
	return "Error: " + message
}

type ContentBlockType string

const (
	ContentBlockTypeText  ContentBlockType = "text"
	ContentBlockTypeImage ContentBlockType = "image"
)

// ContentBlock is one element of multimodal tool result content.
type ContentBlock interface {
	Type() ContentBlockType
}

type TextBlock struct {
	Text string
}

func (b TextBlock) Type() ContentBlockType {
	return ContentBlockTypeText
}

func (b TextBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{
		Type: string(ContentBlockTypeText),
		Text: b.Text,
	})
}

// ImageBlock carries raw base64 image data.
type ImageBlock struct {
	Data     string
	MimeType string
}

func (b ImageBlock) Type() ContentBlockType {
	return ContentBlockTypeImage
}

func (b ImageBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     string `json:"type"`
		Data     string `json:"data"`
		MimeType string `json:"mimeType,omitempty"`
	}{
		Type:     string(ContentBlockTypeImage),
		Data:     b.Data,
		MimeType: b.MimeType,
	})
}

// MediaType returns the MIME type, falling back to DefaultImageMimeType.
func (b ImageBlock) MediaType() string {
	if b.MimeType == "" {
		return DefaultImageMimeType
	}
	return b.MimeType
}

func toolNameOrUnknown(name string) string {
	if name == "" {
		return UnknownToolName
	}
	return name
}
