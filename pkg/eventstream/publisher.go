package eventstream

import "context"

// Publisher publishes decision events to an event stream backend.
type Publisher interface {
	PublishDecision(ctx context.Context, event *DecisionRecordedEvent) error
	Close() error
}
