/*
Package cmd provides the CLI commands for otadrop.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/oarkflow/otadrop/internal/config"
	"github.com/oarkflow/otadrop/internal/pipeline"
	"github.com/oarkflow/otadrop/internal/runner"
)

var (
	cfgFile         string
	verbose         bool
	debug           bool
	quiet           bool
	checkOnly       bool
	dropboxRoot     string
	signingIdentity string
	mobileProvision string
)

// appFs is the filesystem commands read and write.
var appFs = afero.NewOsFs()

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "otadrop [flags] <bundle.app>",
	Short: "Publish ad hoc iOS builds for over-the-air install",
	Long: `otadrop packages a signed iOS .app bundle into an .ipa, uploads it to
Dropbox together with an OTA manifest and an install page, and prints the
link testers open on their device.

Example:
  otadrop build/Release-iphoneos/MyApp.app
  otadrop --check-only MyApp.app     # validate and resolve signing only
  otadrop -q MyApp.app               # print only the install link`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPublish,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is "+config.DefaultFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print the install link")

	rootCmd.Flags().StringVar(&dropboxRoot, "dropbox-root", config.DefaultDropboxRoot, "path in Dropbox to put builds")
	rootCmd.Flags().StringVarP(&signingIdentity, "signing-identity", "s", "", "signing identity (default: first iPhone Distribution identity)")
	rootCmd.Flags().StringVar(&mobileProvision, "mobile-provision", "", "provisioning profile (default: installed 'XC Ad Hoc: <bundle id>' profile)")
	rootCmd.Flags().BoolVar(&checkOnly, "check-only", false, "validate and resolve signing info, skip packaging and upload")

	// Add subcommands
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	env, err := pipeline.NewEnv(cfg, logger, appFs, runner.NewExec(logger))
	if err != nil {
		return err
	}
	env.Out = cmd.ErrOrStderr()
	defer func() {
		if err := env.Close(); err != nil {
			logger.Warn("Failed to remove temporary directory", "dir", env.TmpDir, "error", err)
		}
	}()

	link, err := pipeline.New(env, pipeline.Options{
		Bundle:    args[0],
		CheckOnly: checkOnly,
	}).Run(cmd.Context())
	if err != nil {
		return err
	}

	if link != "" {
		fmt.Fprintln(cmd.OutOrStdout(), link)
	}
	return nil
}

// newLogger returns a stderr logger at the level selected by the flags.
func newLogger(cmd *cobra.Command) *log.Logger {
	logger := log.New(cmd.ErrOrStderr())
	switch {
	case debug || verbose:
		logger.SetLevel(log.DebugLevel)
	case quiet:
		logger.SetLevel(log.WarnLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}

// loadConfig layers the config file, the built-in defaults and the flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if ok, _ := afero.Exists(appFs, config.DefaultFile); ok {
			path = config.DefaultFile
		}
	}

	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.Load(appFs, path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to find home directory: %w", err)
	}
	if err := cfg.Merge(config.Defaults(home, installDir())); err != nil {
		return nil, err
	}

	flags := &config.Config{
		SigningIdentity: signingIdentity,
		MobileProvision: mobileProvision,
	}
	if f := cmd.Flags().Lookup("dropbox-root"); f != nil && f.Changed {
		flags.DropboxRoot = dropboxRoot
	}
	if err := cfg.Override(flags); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// installDir is the directory holding the otadrop executable, its templates
// and the PackageApplication patch.
func installDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
