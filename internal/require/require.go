// Package require holds the fail-fast preconditions checked before any work
// is done.
package require

import (
	"regexp"

	"github.com/spf13/afero"

	"github.com/oarkflow/otadrop/internal/failure"
	"github.com/oarkflow/otadrop/internal/runner"
)

// Patterns for bundle metadata.
var (
	BundleIdentifier = regexp.MustCompile(`^\w+(\.\w+)*$`)
	BundleVersion    = regexp.MustCompile(`^\d+(\.\d+)*$`)
	BundleName       = regexp.MustCompile(`^.+$`)
)

// File fails unless path is a regular file.
func File(fs afero.Fs, path, desc string, hint ...string) error {
	fi, err := fs.Stat(path)
	if err == nil && fi.Mode().IsRegular() {
		return nil
	}
	return withHint(failure.New(failure.Precondition, desc+" not a file.", "path = "+path), hint)
}

// Dir fails unless path is a directory.
func Dir(fs afero.Fs, path, desc string, hint ...string) error {
	if ok, err := afero.IsDir(fs, path); err == nil && ok {
		return nil
	}
	return withHint(failure.New(failure.Precondition, desc+" not a directory.", "path = "+path), hint)
}

// Match fails unless value matches pattern.
func Match(pattern *regexp.Regexp, value, desc string) error {
	if pattern.MatchString(value) {
		return nil
	}
	return failure.New(failure.Pattern, desc+" does not match expected pattern.",
		"value = "+value,
		"pattern = "+pattern.String(),
	)
}

// Tool fails unless name resolves to an executable through r.
func Tool(r runner.Runner, name, desc string, hint ...string) error {
	if _, err := runner.LookupWith(r, name); err == nil {
		return nil
	}
	return withHint(failure.New(failure.Precondition, desc+" not found.", "path = "+name), hint)
}

func withHint(e *failure.Error, hint []string) error {
	if len(hint) > 0 && hint[0] != "" {
		e.WithHint(hint[0])
	}
	return e
}
