package cmd

import (
	"encoding/json"
	"log/slog"

	"github.com/furisto/toolgate/backend/analytics"
	"github.com/furisto/toolgate/backend/toolcall"
	"github.com/spf13/cobra"
)

type resultsOptions struct {
	Provider      providerFlag
	File          string
	CallsFile     string
	Compact       bool
	RenderOptions RenderOptions
}

func NewResultsCmd() *cobra.Command {
	var options resultsOptions

	cmd := &cobra.Command{
		Use:   "results --provider <provider> [--file <file>]",
		Short: "Convert canonical tool results into a provider's messages",
		Long: `Convert canonical tool results into the messages a provider expects.

Failed results are rendered as "Error: <message>" and never expose their
content. Image content becomes native image blocks of the provider.`,
		Example: `  # Encode results for Anthropic with the compact encoding
  toolgate results --provider anthropic --compact --file results.json

  # Gemini needs the tool names; take them from the original calls
  toolgate results --provider gemini --calls calls.json --file results.json`,
		GroupID: "protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			codec, err := toolcall.CodecFor(options.Provider.kind,
				toolcall.WithLogger(slog.Default()),
				toolcall.WithMetrics(getMetrics(ctx)),
			)
			if err != nil {
				return err
			}

			data, err := readInput(cmd, options.File)
			if err != nil {
				return err
			}
			results, err := decodeToolResults(data)
			if err != nil {
				return err
			}

			resultOptions := []toolcall.ResultOption{toolcall.WithCompactEncoding(options.Compact)}
			if options.CallsFile != "" {
				callsData, err := getFileSystem(ctx).ReadFile(options.CallsFile)
				if err != nil {
					return err
				}
				calls, err := decodeToolCalls(callsData)
				if err != nil {
					return err
				}
				resultOptions = append(resultOptions, toolcall.WithToolCalls(calls))
			}

			messages, err := codec.EncodeToolResults(results, resultOptions...)
			if err != nil {
				return err
			}
			analytics.EmitToolResultsConverted(getAnalytics(ctx), string(codec.Kind()), len(results), options.Compact)

			return getRenderer(ctx).Render(json.RawMessage(messages), &options.RenderOptions)
		},
	}

	addProviderFlag(cmd, &options.Provider)
	cmd.Flags().StringVarP(&options.File, "file", "f", "", `file with a JSON array of tool results ("-" or empty reads stdin)`)
	cmd.Flags().StringVar(&options.CallsFile, "calls", "", "file with the canonical tool calls the results answer")
	cmd.Flags().BoolVar(&options.Compact, "compact", false, "use the compact encoding for plain results (anthropic only)")
	addRenderOptions(cmd, &options.RenderOptions, OutputFormatJSON)
	return cmd
}
