// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/oarkflow/otadrop/internal/runner"
)

var (
	_ runner.Runner = (*Fake)(nil)
	_ runner.Looker = (*Fake)(nil)
)

// Call is one command recorded by Fake.
type Call struct {
	Name string
	Args []string
}

// String returns the command line.
func (c Call) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Response is what Fake does for a matching command.
type Response struct {
	Stdout string
	Err    error
	// Do runs instead of writing Stdout when set, e.g. to create output files.
	Do func(args []string, stdout io.Writer) error
}

// Fake is a runner.Runner for tests. Commands are matched by the prefix of their
// command line; the longest registered prefix wins.
type Fake struct {
	mu        sync.Mutex
	responses map[string]Response
	calls     []Call
}

// NewFake creates an empty fake runner. Unregistered commands fail.
func NewFake() *Fake {
	return &Fake{responses: map[string]Response{}}
}

// On registers the response for command lines starting with prefix.
func (f *Fake) On(prefix string, res Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = res
	return f
}

// Calls returns the commands run so far.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Ran reports whether any recorded command line starts with prefix.
func (f *Fake) Ran(prefix string) bool {
	for _, c := range f.Calls() {
		if strings.HasPrefix(c.String(), prefix) {
			return true
		}
	}
	return false
}

// Run implements Runner.
func (f *Fake) Run(_ context.Context, stdout io.Writer, name string, args ...string) error {
	call := Call{Name: name, Args: args}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	var (
		best  string
		res   Response
		found bool
	)
	for prefix, r := range f.responses {
		if strings.HasPrefix(call.String(), prefix) && len(prefix) >= len(best) {
			best, res, found = prefix, r, true
		}
	}
	f.mu.Unlock()

	if !found {
		return fmt.Errorf("unexpected command: %s", call)
	}

	if stdout == nil {
		stdout = io.Discard
	}
	if res.Do != nil {
		if err := res.Do(args, stdout); err != nil {
			return err
		}
	} else if res.Stdout != "" {
		if _, err := io.WriteString(stdout, res.Stdout); err != nil {
			return err
		}
	}
	return res.Err
}

// Lookup implements Looker. A tool resolves when some registered prefix
// runs it.
func (f *Fake) Lookup(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for prefix := range f.responses {
		if prefix == name || strings.HasPrefix(prefix, name+" ") {
			return name, nil
		}
	}
	return "", fmt.Errorf("%s: executable file not found", name)
}
