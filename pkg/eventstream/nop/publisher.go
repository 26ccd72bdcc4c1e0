package nop

import (
	"context"

	"github.com/loomworks/engram/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and disabled mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishDecision validates input and otherwise does nothing.
func (p *Publisher) PublishDecision(_ context.Context, event *eventstream.DecisionRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilDecisionEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
