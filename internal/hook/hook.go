// Package hook provides lifecycle hook execution.
package hook

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/kballard/go-shellquote"

	"github.com/oarkflow/otadrop/internal/config"
	"github.com/oarkflow/otadrop/internal/runner"
	"github.com/oarkflow/otadrop/internal/tmpl"
)

// Runner executes lifecycle hooks.
type Runner struct {
	runner  runner.Runner
	tmplCtx *tmpl.Context
	logger  *log.Logger
	// Out receives hook output.
	Out io.Writer
}

// NewRunner creates a new hook runner.
func NewRunner(r runner.Runner, tmplCtx *tmpl.Context, logger *log.Logger) *Runner {
	return &Runner{
		runner:  r,
		tmplCtx: tmplCtx,
		logger:  logger,
	}
}

// Run executes a hook.
func (r *Runner) Run(ctx context.Context, hook config.Hook) error {
	if strings.TrimSpace(hook.Cmd) == "" {
		return nil
	}

	cmd := r.tmplCtx.ApplyFunc(hook.Cmd, quote)
	r.logger.Info("Running hook", "cmd", cmd)

	if err := r.runner.Run(ctx, r.Out, shell(), "-c", cmd); err != nil {
		if hook.FailFast {
			return fmt.Errorf("hook failed: %w", err)
		}
		r.logger.Warn("Hook failed but continuing", "cmd", cmd, "error", err)
	}

	return nil
}

// RunHooks executes multiple hooks.
func (r *Runner) RunHooks(ctx context.Context, hooks []config.Hook) error {
	for _, hook := range hooks {
		if err := r.Run(ctx, hook); err != nil {
			return err
		}
	}
	return nil
}

// quote makes a substituted value a single shell word.
func quote(v string) string {
	return shellquote.Join(v)
}

// shell returns the user's shell, falling back to /bin/sh.
func shell() string {
	if s := os.Getenv("SHELL"); s != "" {
		return s
	}
	return "/bin/sh"
}
