package bus

import (
	"fmt"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

// New creates a new event bus based on configuration.
// channel: in-process ChannelBus, for a single laftscreen process.
// nats: NATSBus, for API and workers running as separate processes.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "", "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
