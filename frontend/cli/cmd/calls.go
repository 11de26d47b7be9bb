package cmd

import (
	"log/slog"

	"github.com/furisto/toolgate/backend/analytics"
	"github.com/furisto/toolgate/backend/toolcall"
	"github.com/spf13/cobra"
)

type callsOptions struct {
	Provider      providerFlag
	File          string
	RenderOptions RenderOptions
}

func NewCallsCmd() *cobra.Command {
	var options callsOptions

	cmd := &cobra.Command{
		Use:   "calls --provider <provider> [--file <file>]",
		Short: "Convert a provider's tool calls into canonical tool calls",
		Example: `  # Decode OpenAI tool calls from a file
  toolgate calls --provider openai --file calls.json

  # Decode Anthropic tool_use blocks from stdin
  cat tool_use.json | toolgate calls --provider anthropic`,
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

			calls, err := codec.DecodeToolCalls(data)
			if err != nil {
				return err
			}
			analytics.EmitToolCallsConverted(getAnalytics(ctx), string(codec.Kind()), len(calls))

			return getRenderer(ctx).Render(calls, &options.RenderOptions)
		},
	}

	addProviderFlag(cmd, &options.Provider)
	cmd.Flags().StringVarP(&options.File, "file", "f", "", `file with a JSON array of tool calls ("-" or empty reads stdin)`)
	addRenderOptions(cmd, &options.RenderOptions, OutputFormatJSON)
	return cmd
}
