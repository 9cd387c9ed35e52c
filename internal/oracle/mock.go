package oracle

import (
	"context"
	"strings"
	"sync"
)

// MockClient is a scripted oracle double for tests. Responses are matched
// against the prompt by substring, first match wins. A zero MockClient
// returns ErrNoStub for every call.
type MockClient struct {
	Fail  error // when set, every call returns this error
	stubs []stub
	calls []MockCall
	mu    sync.Mutex
}

// MockCall records one Generate invocation.
type MockCall struct {
	Prompt   string
	System   string
	WantJSON bool
}

type stub struct {
	err   error
	match string
	text  string
}

// errNoStub is returned when no stub matches a prompt.
type errNoStub struct{}

func (errNoStub) Error() string { return "mock oracle: no stub matches prompt" }

// Stub registers a response for prompts containing match. An empty match
// matches every prompt.
func (m *MockClient) Stub(match, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{match: match, text: text})
}

// StubError registers an error response for prompts containing match.
func (m *MockClient) StubError(match string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{match: match, err: err})
}

// Generate implements Client.
func (m *MockClient) Generate(_ context.Context, prompt, system string, wantJSON bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, MockCall{Prompt: prompt, System: system, WantJSON: wantJSON})

	if m.Fail != nil {
		return "", m.Fail
	}

	for _, s := range m.stubs {
		if s.match == "" || strings.Contains(prompt, s.match) {
			if s.err != nil {
				return "", s.err
			}
			return s.text, nil
		}
	}
	return "", errNoStub{}
}

// Calls returns a copy of every recorded invocation.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}
