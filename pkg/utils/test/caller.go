package testutils

import (
	"context"
	"sync"
)

// MockCaller is a test LLM caller that returns canned responses per task and
// records every call it receives.
type MockCaller struct {
	mu sync.Mutex

	// Response is returned for any call unless ResponseFor has an entry for
	// the call's task.
	Response string

	// ResponseFor maps task tags to responses.
	ResponseFor map[string]string

	// Err causes every call to fail.
	Err error

	// Calls records the user prompts in call order.
	Calls []string

	// Tasks records the task tag of each call in call order.
	Tasks []string
}

func NewMockCaller(response string) *MockCaller {
	return &MockCaller{Response: response}
}

func (m *MockCaller) Call(_ context.Context, _, user, task string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, user)
	m.Tasks = append(m.Tasks, task)

	if m.Err != nil {
		return "", m.Err
	}

	if resp, ok := m.ResponseFor[task]; ok {
		return resp, nil
	}

	return m.Response, nil
}

// CallCount returns how many calls were made.
func (m *MockCaller) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockBudgetGate is a budget gate with a settable answer.
type MockBudgetGate struct {
	Allow bool

	mu     sync.Mutex
	checks int
}

func (g *MockBudgetGate) CheckBudget() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.checks++
	return g.Allow
}

// Checks returns how many times the gate was consulted.
func (g *MockBudgetGate) Checks() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checks
}
