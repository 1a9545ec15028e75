package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/otadrop"
	"github.com/oarkflow/otadrop/internal/config"
)

// run executes the root command against an in-memory filesystem.
func run(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()

	saved := appFs
	appFs = fs
	t.Cleanup(func() {
		appFs = saved
		cfgFile = ""
	})

	if args == nil {
		args = []string{}
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "otadrop "+otadrop.Version)
}

func TestInitWritesDefaultConfig(t *testing.T) {
	fs := afero.NewMemMapFs()

	out, err := run(t, fs, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Created "+config.DefaultFile)

	data, err := afero.ReadFile(fs, config.DefaultFile)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTemplate(), string(data))

	_, err = run(t, fs, "init")
	assert.EqualError(t, err, "config file already exists: "+config.DefaultFile)
}

func TestCheck(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "ci.yaml", []byte("dropbox_root: /CI\n"), 0o644))

	out, err := run(t, fs, "check", "--config", "ci.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file ci.yaml is valid")
	assert.Contains(t, out, "/CI")

	require.NoError(t, afero.WriteFile(fs, "bad.yaml", []byte("storage:\n  backend: ftp\n"), 0o644))
	_, err = run(t, fs, "check", "-c", "bad.yaml")
	assert.ErrorContains(t, err, "unknown storage backend: ftp")

	_, err = run(t, fs, "check", "-c", "missing.yaml")
	assert.EqualError(t, err, "config file not found: missing.yaml")
}

func TestRootRequiresBundle(t *testing.T) {
	_, err := run(t, afero.NewMemMapFs())
	assert.Error(t, err)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, config.DefaultFile, []byte("dropbox_root: /FromFile\nsigning_identity: FromFile\n"), 0o644))

	saved := appFs
	appFs = fs
	t.Cleanup(func() {
		appFs = saved
		dropboxRoot = config.DefaultDropboxRoot
		signingIdentity = ""
	})

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&dropboxRoot, "dropbox-root", config.DefaultDropboxRoot, "")

	cfg, err := loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/FromFile", cfg.DropboxRoot)
	assert.Equal(t, "FromFile", cfg.SigningIdentity)

	require.NoError(t, cmd.Flags().Set("dropbox-root", "/FromFlag"))
	signingIdentity = "FromFlag"

	cfg, err = loadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/FromFlag", cfg.DropboxRoot)
	assert.Equal(t, "FromFlag", cfg.SigningIdentity)
}

func TestInstallCompletion(t *testing.T) {
	fs := afero.NewMemMapFs()

	path, err := installCompletion(fs, rootCmd, "zsh", "/Users/me")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/Users/me", ".zsh/completions/_otadrop"), path)

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "otadrop")
}
