// Package llm provides the language-model client used for consolidation
// arbitration and extraction, plus the budget gate consulted before
// extraction calls.
package llm

import "context"

// TaskConsolidation tags every model call issued by the consolidation engine
// and the extraction strategies. Providers may route or account by task tag.
const TaskConsolidation = "consolidation"

// Caller issues a single chat completion with a system and user prompt.
// Implementations return the raw response text; callers are responsible for
// parsing and for bounding the call with a context deadline.
type Caller interface {
	Call(ctx context.Context, system, user, task string) (string, error)
}

// CallFunc adapts a plain function to the Caller interface.
type CallFunc func(ctx context.Context, system, user, task string) (string, error)

// Call implements Caller.
func (f CallFunc) Call(ctx context.Context, system, user, task string) (string, error) {
	return f(ctx, system, user, task)
}

// BudgetGate approves or denies model spend before a call is made.
// Checks are synchronous; a denied call incurs no network latency.
type BudgetGate interface {
	CheckBudget() bool
}

// AllowAll is a budget gate that never denies.
type AllowAll struct{}

// CheckBudget always approves.
func (AllowAll) CheckBudget() bool { return true }

// ErrorResponse is the JSON error body returned by the HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`
}
