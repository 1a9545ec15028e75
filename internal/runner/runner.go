// Package runner executes the external tools otadrop drives.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Runner runs a command to completion.
type Runner interface {
	// Run executes name with args, writing the command's stdout to stdout.
	// A non-zero exit is returned as an error that includes stderr.
	Run(ctx context.Context, stdout io.Writer, name string, args ...string) error
}

// Looker is implemented by runners that resolve executables themselves.
type Looker interface {
	Lookup(name string) (string, error)
}

// Exec runs commands on the host with os/exec.
type Exec struct {
	logger *log.Logger
	// Dir is the working directory for every command. Empty means the
	// current directory.
	Dir string
}

// NewExec creates a new host runner.
func NewExec(logger *log.Logger) *Exec {
	return &Exec{logger: logger}
}

// Run executes a command.
func (e *Exec) Run(ctx context.Context, stdout io.Writer, name string, args ...string) error {
	if e.logger != nil {
		e.logger.Debug("Running command", "cmd", name, "args", args)
	}

	c := exec.CommandContext(ctx, name, args...)
	c.Dir = e.Dir
	c.Env = os.Environ()

	if stdout == nil {
		stdout = io.Discard
	}
	c.Stdout = stdout

	var stderr bytes.Buffer
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%s failed: %w", filepath.Base(name), err)
		}
		return fmt.Errorf("%s failed: %w\n%s", filepath.Base(name), err, msg)
	}

	return nil
}

// Output runs a command and returns its stdout with surrounding whitespace
// removed.
func Output(ctx context.Context, r Runner, name string, args ...string) (string, error) {
	var buf bytes.Buffer
	if err := r.Run(ctx, &buf, name, args...); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// Lookup implements Looker.
func (e *Exec) Lookup(name string) (string, error) {
	return Lookup(name)
}

// LookupWith resolves name through r when it is a Looker, and with Lookup
// otherwise.
func LookupWith(r Runner, name string) (string, error) {
	if l, ok := r.(Looker); ok {
		return l.Lookup(name)
	}
	return Lookup(name)
}

// Lookup resolves a tool to an executable path. Absolute and relative paths
// are returned as-is when they exist; bare names are searched in PATH.
func Lookup(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		fi, err := os.Stat(name)
		if err != nil {
			return "", err
		}
		if fi.IsDir() {
			return "", fmt.Errorf("%s is a directory", name)
		}
		return name, nil
	}
	return exec.LookPath(name)
}
