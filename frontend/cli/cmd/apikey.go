package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/furisto/toolgate/backend/toolcall"
	"github.com/spf13/cobra"
)

func NewAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage provider API keys in the system keyring",
		Long: `Manage provider API keys in the system keyring.

A key in the provider's environment variable always takes precedence over the
keyring.`,
		GroupID: "system",
	}

	cmd.AddCommand(NewAPIKeySetCmd())
	cmd.AddCommand(NewAPIKeyDeleteCmd())
	return cmd
}

func NewAPIKeySetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <provider>",
		Short: "Store the API key read from stdin",
		Example: `  # Store the Anthropic key
  printf '%s' "$KEY" | toolgate apikey set anthropic`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(toolcall.ProviderKindOpenAI), string(toolcall.ProviderKindAnthropic), string(toolcall.ProviderKindGemini)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := toolcall.ProviderKind(args[0])
			if err := kind.Validate(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Enter the %s API key: ", kind)
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			apiKey := strings.TrimSpace(line)
			if apiKey == "" {
				if err != nil {
					return fmt.Errorf("failed to read API key: %w", err)
				}
				return fmt.Errorf("API key must not be empty")
			}

			if err := getConfigManager(cmd.Context()).StoreAPIKey(kind, apiKey); err != nil {
				return fmt.Errorf("failed to store API key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored the %s API key\n", kind)
			return nil
		},
	}
}

func NewAPIKeyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "delete <provider>",
		Short:     "Remove a stored API key",
		Aliases:   []string{"rm"},
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(toolcall.ProviderKindOpenAI), string(toolcall.ProviderKindAnthropic), string(toolcall.ProviderKindGemini)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := toolcall.ProviderKind(args[0])
			if err := kind.Validate(); err != nil {
				return err
			}
			if err := getConfigManager(cmd.Context()).DeleteAPIKey(kind); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted the %s API key\n", kind)
			return nil
		},
	}
}
