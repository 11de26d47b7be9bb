package toolcall

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOpenAIAdapter_ToolCallsToCommon(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		calls []OpenAIToolCall
		want  []ToolCall
	}{
		{
			name: "function call",
			calls: []OpenAIToolCall{
				{ID: "call_1", Type: "function", Function: &OpenAIFunction{Name: "read_file", Arguments: `{"path":"/tmp/a"}`}},
			},
			want: []ToolCall{
				{ID: "call_1", Name: "read_file", Arguments: map[string]any{"path": "/tmp/a"}},
			},
		},
		{
			name: "custom call",
			calls: []OpenAIToolCall{
				{ID: "call_2", Type: "custom", Custom: &OpenAICustom{Name: "browse", Input: `{"url":"https://example.com"}`}},
			},
			want: []ToolCall{
				{ID: "call_2", Name: "browse", Arguments: map[string]any{"url": "https://example.com"}},
			},
		},
		{
			name: "unknown tag",
			calls: []OpenAIToolCall{
				{ID: "call_3", Type: "mystery"},
			},
			want: []ToolCall{
				{ID: "call_3", Name: "unknown", Arguments: map[string]any{}},
			},
		},
		{
			name: "malformed arguments",
			calls: []OpenAIToolCall{
				{ID: "call_4", Type: "function", Function: &OpenAIFunction{Name: "read_file", Arguments: `{"path":`}},
				{ID: "call_5", Type: "function", Function: &OpenAIFunction{Name: "", Arguments: `[1,2]`}},
				{ID: "call_6", Type: "function", Function: &OpenAIFunction{Name: "noop", Arguments: `null`}},
			},
			want: []ToolCall{
				{ID: "call_4", Name: "read_file", Arguments: map[string]any{}},
				{ID: "call_5", Name: "unknown", Arguments: map[string]any{}},
				{ID: "call_6", Name: "noop", Arguments: map[string]any{}},
			},
		},
		{
			name:  "empty",
			calls: nil,
			want:  []ToolCall{},
		},
	}

	adapter := NewOpenAIAdapter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := adapter.ToolCallsToCommon(tt.calls)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ToolCallsToCommon() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOpenAIAdapter_RoundTrip(t *testing.T) {
	t.Parallel()

	adapter := NewOpenAIAdapter()
	original := []OpenAIToolCall{
		{ID: "call_1", Type: "function", Function: &OpenAIFunction{Name: "search", Arguments: `{"limit":5,"query":"go generics"}`}},
		{ID: "call_2", Type: "function", Function: &OpenAIFunction{Name: "list", Arguments: `{}`}},
	}

	got := adapter.ToolCallsFromCommon(adapter.ToolCallsToCommon(original))
	if diff := cmp.Diff(original, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestOpenAIAdapter_ToolResultsToMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		results []ToolResult
		want    []OpenAIToolMessage
	}{
		{
			name:    "empty",
			results: nil,
			want:    []OpenAIToolMessage{},
		},
		{
			name: "error without message",
			results: []ToolResult{
				{ID: "call_1", Name: "read_file", IsError: true, Content: "ignored"},
			},
			want: []OpenAIToolMessage{
				{Role: "tool", ToolCallID: "call_1", Content: "Error: Tool execution failed"},
			},
		},
		{
			name: "json content",
			results: []ToolResult{
				{ID: "call_1", Name: "stat", Content: map[string]any{"size": 12, "name": "<a>"}},
			},
			want: []OpenAIToolMessage{
				{Role: "tool", ToolCallID: "call_1", Content: `{"name":"<a>","size":12}`},
			},
		},
		{
			name: "text and image",
			results: []ToolResult{
				{ID: "call_1", Name: "screenshot", Content: []any{
					map[string]any{"type": "text", "text": "Screenshot"},
					map[string]any{"type": "image", "data": "base64data"},
				}},
			},
			want: []OpenAIToolMessage{
				{Role: "tool", ToolCallID: "call_1", Content: []OpenAIContentPart{
					{Type: "text", Text: "Screenshot"},
					{Type: "image_url", ImageURL: &OpenAIImageURL{URL: "data:image/png;base64,base64data"}},
				}},
			},
		},
		{
			name: "native image passes through",
			results: []ToolResult{
				{ID: "call_1", Content: []any{
					map[string]any{"type": "image_url", "image_url": map[string]any{"url": "https://example.com/a.png", "detail": "low"}},
				}},
			},
			want: []OpenAIToolMessage{
				{Role: "tool", ToolCallID: "call_1", Content: []OpenAIContentPart{
					{Type: "image_url", ImageURL: &OpenAIImageURL{URL: "https://example.com/a.png", Detail: "low"}},
				}},
			},
		},
		{
			name: "typed jpeg image",
			results: []ToolResult{
				{ID: "call_1", Content: []ContentBlock{ImageBlock{Data: "xyz", MimeType: "image/jpeg"}}},
			},
			want: []OpenAIToolMessage{
				{Role: "tool", ToolCallID: "call_1", Content: []OpenAIContentPart{
					{Type: "image_url", ImageURL: &OpenAIImageURL{URL: "data:image/jpeg;base64,xyz"}},
				}},
			},
		},
	}

	adapter := NewOpenAIAdapter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := adapter.ToolResultsToMessages(tt.results)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ToolResultsToMessages() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
