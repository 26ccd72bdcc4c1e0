// Package eventstreamutils provides factory functions for eventstream publishers.
package eventstreamutils

import (
	"fmt"

	"github.com/loomworks/engram/pkg/eventstream"
	"github.com/loomworks/engram/pkg/eventstream/kafka"
	"github.com/loomworks/engram/pkg/eventstream/nop"
)

// NewPublisher creates an eventstream publisher from a provider name.
// Supported providers are "nop" (the default) and "kafka".
func NewPublisher(provider string, brokers []string, topic string) (eventstream.Publisher, error) {
	switch provider {
	case "nop", "none", "":
		return nop.NewPublisher(), nil
	case "kafka":
		return kafka.NewPublisher(brokers, topic)
	default:
		return nil, fmt.Errorf("unsupported eventstream provider: %s", provider)
	}
}
