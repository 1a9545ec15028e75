package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/oarkflow/otadrop"
	"github.com/oarkflow/otadrop/internal/config"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration file",
	Long: `Check if the configuration file is valid.

This validates:
  - YAML syntax
  - Backend names
  - Storage settings`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			configPath = config.DefaultFile
		}

		if ok, _ := afero.Exists(appFs, configPath); !ok {
			return fmt.Errorf("config file not found: %s", configPath)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Configuration file %s is valid\n", configPath)
		fmt.Fprintf(out, "  Storage:   %s\n", cfg.Storage.Backend)
		fmt.Fprintf(out, "  Root:      %s\n", cfg.DropboxRoot)
		fmt.Fprintf(out, "  Templates: %s\n", cfg.TemplateDir)
		return nil
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new configuration file",
	Long: `Initialize a new .otadrop.yaml configuration file.

This creates a configuration file listing every setting with its
default value that you can customize.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultFile
		if cfgFile != "" {
			configPath = cfgFile
		}

		if ok, _ := afero.Exists(appFs, configPath); ok {
			return fmt.Errorf("config file already exists: %s", configPath)
		}

		if err := afero.WriteFile(appFs, configPath, []byte(config.DefaultTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", configPath)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit, and build date of otadrop.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "otadrop %s\n", otadrop.Version)
		if otadrop.GitCommit != "" {
			fmt.Fprintf(out, "  Commit: %s\n", otadrop.GitCommit)
		}
		if otadrop.BuildDate != "" {
			fmt.Fprintf(out, "  Built:  %s\n", otadrop.BuildDate)
		}
	},
}
