package cmd

import (
	"fmt"

	"github.com/furisto/toolgate/shared/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Show or create toolgate.yaml",
		GroupID: "system",
	}

	cmd.AddCommand(NewConfigShowCmd())
	cmd.AddCommand(NewConfigInitCmd())
	return cmd
}

func NewConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration, defaults included",
		RunE: func(cmd *cobra.Command, args []string) error {
			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)
			if err := encoder.Encode(getConfig(cmd.Context())); err != nil {
				return err
			}
			return encoder.Close()
		},
	}
}

type configInitOptions struct {
	Force bool
}

func NewConfigInitCmd() *cobra.Command {
	var options configInitOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default toolgate.yaml",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			manager := getConfigManager(ctx)

			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			path, err := manager.Path(configPath)
			if err != nil {
				return err
			}

			exists, err := getFileSystem(ctx).Exists(path)
			if err != nil {
				return err
			}
			if exists && !options.Force {
				return fmt.Errorf("%s already exists, use --force to overwrite it", path)
			}

			if err := manager.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&options.Force, "force", false, "overwrite an existing file")
	return cmd
}
