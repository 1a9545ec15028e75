package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var shells = []string{"bash", "zsh", "fish", "powershell"}

// completionCmd generates shell completions
var completionCmd = &cobra.Command{
	Use:   "completion [shell]",
	Short: "Generate shell completions",
	Long: `Generate shell completion scripts for various shells.

Bash:
  source <(otadrop completion bash)

Zsh:
  otadrop completion zsh > "${fpath[1]}/_otadrop"

Fish:
  otadrop completion fish | source

PowerShell:
  otadrop completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             shells,
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		var buf bytes.Buffer
		if err := genCompletion(cmd.Root(), args[0], &buf); err != nil {
			return err
		}
		_, err := cmd.OutOrStdout().Write(buf.Bytes())
		return err
	},
}

// completionInstallCmd installs shell completions
var completionInstallCmd = &cobra.Command{
	Use:   "install [shell]",
	Short: "Install shell completions",
	Long: `Install shell completion scripts into the user's completion directory.

Examples:
  otadrop completion install zsh
  otadrop completion install fish
`,
	ValidArgs: shells,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to find home directory: %w", err)
		}
		path, err := installCompletion(appFs, cmd.Root(), args[0], home)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Completion script installed to: %s\n", path)
		return nil
	},
}

func init() {
	completionCmd.AddCommand(completionInstallCmd)
	rootCmd.AddCommand(completionCmd)
}

func genCompletion(root *cobra.Command, shell string, buf *bytes.Buffer) error {
	switch shell {
	case "bash":
		return root.GenBashCompletion(buf)
	case "zsh":
		return root.GenZshCompletion(buf)
	case "fish":
		return root.GenFishCompletion(buf, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(buf)
	}
	return fmt.Errorf("unsupported shell: %s", shell)
}

// completionPath returns where a shell picks up user completions.
func completionPath(shell, home string) string {
	switch shell {
	case "bash":
		return filepath.Join(home, ".local/share/bash-completion/completions/otadrop")
	case "zsh":
		return filepath.Join(home, ".zsh/completions/_otadrop")
	case "fish":
		return filepath.Join(home, ".config/fish/completions/otadrop.fish")
	default:
		return filepath.Join(home, ".config/powershell/otadrop.ps1")
	}
}

// installCompletion writes the completion script for shell under home.
func installCompletion(fs afero.Fs, root *cobra.Command, shell, home string) (string, error) {
	var content bytes.Buffer
	if err := genCompletion(root, shell, &content); err != nil {
		return "", err
	}

	path := completionPath(shell, home)
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create completion directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, content.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write completion file: %w", err)
	}
	return path, nil
}
