package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"platter/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			written, err := config.WriteSample(target)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample configuration to %s\n", written)
			return nil
		},
	}
	cmd.Flags().StringVar(&targetPath, "path", "", "where to write the config file")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !exists {
				fmt.Fprintln(cmd.OutOrStdout(), "no config file found; defaults are valid")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", path)
			fmt.Fprintf(cmd.OutOrStdout(), "database: %s\n", cfg.DatabasePath())
			fmt.Fprintf(cmd.OutOrStdout(), "api bind: %s\n", cfg.Paths.APIBind)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "path", "", "path to configuration file")
	return cmd
}
