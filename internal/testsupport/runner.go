// Package testsupport provides shared helpers for packmule tests: fake
// command runners and configuration builders seeded with temp directories.
package testsupport

import (
	"context"
	"sync"
)

// CommandCall records a single invocation of the fake runner.
type CommandCall struct {
	Name string
	Args []string
}

// FakeRunner implements command.Runner with a scripted handler. It records
// every call so tests can assert on the exact tool invocations.
type FakeRunner struct {
	mu sync.Mutex
	// Handler is consulted for every call. A nil handler returns empty
	// output and no error.
	Handler func(name string, args []string) (string, error)
	calls   []CommandCall
}

// Run dispatches to the scripted handler.
func (f *FakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, CommandCall{Name: name, Args: append([]string(nil), args...)})
	f.mu.Unlock()
	if f.Handler == nil {
		return "", nil
	}
	return f.Handler(name, args)
}

// Calls returns a copy of the recorded invocations.
func (f *FakeRunner) Calls() []CommandCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CommandCall(nil), f.calls...)
}

// CallCount returns how many times the named tool was invoked.
func (f *FakeRunner) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, call := range f.calls {
		if call.Name == name {
			count++
		}
	}
	return count
}
