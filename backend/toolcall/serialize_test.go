package toolcall

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSerialize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  Serialized
	}{
		{
			name:  "object",
			value: map[string]any{"b": 1, "a": "x"},
			want:  Serialized{Value: `{"a":"x","b":1}`, OK: true},
		},
		{
			name:  "html is not escaped",
			value: map[string]any{"html": "<b>&</b>"},
			want:  Serialized{Value: `{"html":"<b>&</b>"}`, OK: true},
		},
		{
			name:  "nil",
			value: nil,
			want:  Serialized{Value: "null", OK: true},
		},
		{
			name:  "content blocks",
			value: []ContentBlock{TextBlock{Text: "hi"}, ImageBlock{Data: "abc"}},
			want:  Serialized{Value: `[{"type":"text","text":"hi"},{"type":"image","data":"abc"}]`, OK: true},
		},
		{
			name:  "unsupported value",
			value: func() {},
			want:  Serialized{OK: false},
		},
		{
			name:  "cyclic map",
			value: cyclicMap(),
			want:  Serialized{Value: "[map[string]interface {}]", OK: false},
		},
		{
			name:  "cyclic slice",
			value: cyclicSlice(),
			want:  Serialized{Value: "[[]interface {}]", OK: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Serialize(tt.value)
			if !tt.want.OK {
				if got.OK {
					t.Fatalf("expected serialization to fail, got %q", got.Value)
				}
				if got.Value == "" {
					t.Error("expected fallback text")
				}
				if tt.want.Value != "" && got.Value != tt.want.Value {
					t.Errorf("fallback = %q, want %q", got.Value, tt.want.Value)
				}
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Serialize() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSerializeCompact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{
			name: "tabular and inline arrays",
			value: map[string]any{
				"name": "Ada",
				"tags": []any{"admin", "ops"},
				"users": []any{
					map[string]any{"id": 1, "name": "Ada"},
					map[string]any{"id": 2, "name": "Bob"},
				},
			},
			want: []string{
				"name: Ada",
				"tags[2]: admin,ops",
				"users[2]{id,name}:",
				"  1,Ada",
				"  2,Bob",
			},
		},
		{
			name: "quoting",
			value: map[string]any{
				"empty":   "",
				"flag":    true,
				"note":    "a,b",
				"nothing": nil,
				"num":     "42",
			},
			want: []string{
				`empty: ""`,
				"flag: true",
				`note: "a,b"`,
				"nothing: null",
				`num: "42"`,
			},
		},
		{
			name: "nested object",
			value: map[string]any{
				"user": map[string]any{"id": 1, "tags": []any{}},
			},
			want: []string{
				"user:",
				"  id: 1",
				"  tags[0]:",
			},
		},
		{
			name: "mixed list",
			value: []any{
				map[string]any{"id": 1, "meta": map[string]any{"a": 1}},
				7,
			},
			want: []string{
				"[2]:",
				"  - id: 1",
				"    meta:",
				"      a: 1",
				"  - 7",
			},
		},
		{
			name:  "root string",
			value: "hello world",
			want:  []string{"hello world"},
		},
		{
			name:  "root keyword string",
			value: "true",
			want:  []string{`"true"`},
		},
		{
			name:  "struct field order",
			value: ToolCall{ID: "c1", Name: "read", Arguments: map[string]any{"path": "/tmp/a b"}},
			want: []string{
				"id: c1",
				"name: read",
				"arguments:",
				"  path: /tmp/a b",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SerializeCompact(tt.value)
			if !got.OK {
				t.Fatalf("SerializeCompact() failed, fallback %q", got.Value)
			}
			if diff := cmp.Diff(strings.Join(tt.want, "\n"), got.Value); diff != "" {
				t.Errorf("SerializeCompact() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func cyclicMap() map[string]any {
	m := map[string]any{"a": 1}
	m["self"] = m
	return m
}

func cyclicSlice() []any {
	s := make([]any, 1)
	s[0] = s
	return s
}

func TestSerializeCompactFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "channel", value: make(chan int)},
		{name: "cyclic map", value: cyclicMap(), want: "[map[string]interface {}]"},
		{name: "cyclic slice", value: cyclicSlice(), want: "[[]interface {}]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := SerializeCompact(tt.value)
			if got.OK {
				t.Fatalf("expected fallback, got %q", got.Value)
			}
			if tt.want != "" && got.Value != tt.want {
				t.Errorf("fallback = %q, want %q", got.Value, tt.want)
			}
		})
	}
}

func TestResultTextCyclicContent(t *testing.T) {
	t.Parallel()

	result := ToolResult{ID: "call-1", Name: "fetch", Content: cyclicMap()}
	for _, compact := range []bool{false, true} {
		if got := resultText(result, compact); got != "[map[string]interface {}]" {
			t.Errorf("resultText(compact=%v) = %q", compact, got)
		}
	}
}
