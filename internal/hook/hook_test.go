package hook

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/otadrop/internal/config"
	"github.com/oarkflow/otadrop/internal/runner/runnertest"
	"github.com/oarkflow/otadrop/internal/tmpl"
)

func newRunner(t *testing.T, f *runnertest.Fake) *Runner {
	t.Setenv("SHELL", "/bin/zsh")
	data := tmpl.New()
	data.Set(tmpl.BundleName, "Tester")
	return NewRunner(f, data, log.New(io.Discard))
}

func TestRunSubstitutesPlaceholders(t *testing.T) {
	f := runnertest.NewFake().On("/bin/zsh -c", runnertest.Response{})
	r := newRunner(t, f)

	require.NoError(t, r.RunHooks(context.Background(), []config.Hook{
		{Cmd: "say $bundle_name"},
		{Cmd: "  "},
		{Cmd: "echo $unknown"},
	}))

	calls := f.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"-c", "say Tester"}, calls[0].Args)
	assert.Equal(t, []string{"-c", "echo $unknown"}, calls[1].Args)
}

func TestRunQuotesValues(t *testing.T) {
	f := runnertest.NewFake().On("/bin/zsh -c", runnertest.Response{})
	t.Setenv("SHELL", "/bin/zsh")
	data := tmpl.New()
	data.Set(tmpl.BundleName, "Evil $(touch pwned)")
	data.Set(tmpl.BundleVersion, "Bob's App")
	data.Set(tmpl.InstallURL, "https://share.example.com/AdHoc Builds/index.html")
	r := NewRunner(f, data, log.New(io.Discard))

	require.NoError(t, r.RunHooks(context.Background(), []config.Hook{
		{Cmd: "say $bundle_name"},
		{Cmd: "say ${bundle_version}"},
		{Cmd: "open $install_url"},
	}))

	calls := f.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "say 'Evil $(touch pwned)'", calls[0].Args[1])
	assert.Equal(t, `say 'Bob'\''s App'`, calls[1].Args[1])
	assert.Equal(t, "open 'https://share.example.com/AdHoc Builds/index.html'", calls[2].Args[1])
}

func TestRunFailFast(t *testing.T) {
	f := runnertest.NewFake().On("/bin/zsh -c", runnertest.Response{Err: errors.New("exit status 2")})
	r := newRunner(t, f)

	err := r.RunHooks(context.Background(), []config.Hook{{Cmd: "false", FailFast: true}, {Cmd: "true"}})
	assert.ErrorContains(t, err, "hook failed")
	assert.Len(t, f.Calls(), 1)
}

func TestRunContinuesOnFailure(t *testing.T) {
	f := runnertest.NewFake().On("/bin/zsh -c", runnertest.Response{Err: errors.New("exit status 2")})
	r := newRunner(t, f)

	assert.NoError(t, r.RunHooks(context.Background(), []config.Hook{{Cmd: "false"}, {Cmd: "true"}}))
	assert.Len(t, f.Calls(), 2)
}

func TestShellFallback(t *testing.T) {
	t.Setenv("SHELL", "")
	assert.Equal(t, "/bin/sh", shell())
}
