// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"io"
	"strings"
	"sync"

	"rdbackup/src/runner"
)

// Call is one recorded invocation.
type Call struct {
	Name  string
	Args  []string
	Env   []string
	Stdin string
}

// Line renders the call as "name arg1 arg2".
func (c Call) Line() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Response scripts the outcome of a matching call.
type Response struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Err, when set, simulates a command that could not start.
	Err error
}

// Fake records calls and answers them from Responses. Keys are matched
// against the call line by prefix, longest key first; unmatched calls
// succeed with no output.
type Fake struct {
	mu        sync.Mutex
	Calls     []Call
	Responses map[string]Response
	// Hook, when set, runs for every call before the response is applied.
	Hook func(c runner.Command)
}

func New() *Fake {
	return &Fake{Responses: map[string]Response{}}
}

// On scripts the response for calls whose line starts with prefix.
func (f *Fake) On(prefix string, r Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[prefix] = r
	return f
}

func (f *Fake) Run(ctx context.Context, c runner.Command) (runner.Result, error) {
	call := Call{Name: c.Name, Args: append([]string(nil), c.Args...), Env: append([]string(nil), c.Env...)}
	if c.Stdin != nil {
		b, _ := io.ReadAll(c.Stdin)
		call.Stdin = string(b)
	}
	f.mu.Lock()
	f.Calls = append(f.Calls, call)
	resp, ok := f.match(call.Line())
	hook := f.Hook
	f.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	if !ok {
		return runner.Result{}, nil
	}
	if resp.Err != nil {
		return runner.Result{ExitCode: -1}, resp.Err
	}
	if c.Stdout != nil && resp.Stdout != "" {
		if _, err := io.WriteString(c.Stdout, resp.Stdout); err != nil {
			return runner.Result{}, err
		}
	}
	res := runner.Result{ExitCode: resp.ExitCode, Stderr: resp.Stderr}
	if resp.ExitCode != 0 {
		return res, &runner.ExitError{Command: c.String(), ExitCode: resp.ExitCode, Stderr: resp.Stderr}
	}
	return res, nil
}

func (f *Fake) match(line string) (Response, bool) {
	best := ""
	var resp Response
	found := false
	for k, r := range f.Responses {
		if strings.HasPrefix(line, k) && len(k) >= len(best) {
			best, resp, found = k, r, true
		}
	}
	return resp, found
}

// Lines returns every recorded call line in order.
func (f *Fake) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		out = append(out, c.Line())
	}
	return out
}

// Called reports whether any call was made to the named tool.
func (f *Fake) Called(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if c.Name == name {
			return true
		}
	}
	return false
}
