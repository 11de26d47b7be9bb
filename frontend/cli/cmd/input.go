package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/furisto/toolgate/backend/toolcall"
	"github.com/spf13/cobra"
)

// readInput reads path from the command's file system, or stdin when path is
// empty or "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := getFileSystem(cmd.Context()).ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// decodeList decodes a JSON array of T. A single JSON object is accepted as
// a list of one.
func decodeList[T any](data []byte, what string) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("no %s given", what)
	}

	if data[0] == '{' {
		var item T
		if err := json.Unmarshal(data, &item); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", what, err)
		}
		return []T{item}, nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", what, err)
	}
	return items, nil
}

func decodeToolResults(data []byte) ([]toolcall.ToolResult, error) {
	return decodeList[toolcall.ToolResult](data, "tool results")
}

func decodeToolCalls(data []byte) ([]toolcall.ToolCall, error) {
	return decodeList[toolcall.ToolCall](data, "tool calls")
}

type providerFlag struct {
	kind toolcall.ProviderKind
}

func (p *providerFlag) String() string {
	return string(p.kind)
}

func (p *providerFlag) Set(v string) error {
	kind := toolcall.ProviderKind(v)
	if err := kind.Validate(); err != nil {
		return fmt.Errorf(`must be one of "openai", "anthropic", or "gemini"`)
	}
	p.kind = kind
	return nil
}

func (p *providerFlag) Type() string {
	return "provider"
}

func addProviderFlag(cmd *cobra.Command, provider *providerFlag) {
	cmd.Flags().Var(provider, "provider", "wire format of the provider (openai, anthropic, gemini)")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.RegisterFlagCompletionFunc("provider", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			string(toolcall.ProviderKindOpenAI),
			string(toolcall.ProviderKindAnthropic),
			string(toolcall.ProviderKindGemini),
		}, cobra.ShellCompDirectiveNoFileComp
	})
}
