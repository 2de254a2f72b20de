package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowpipe/pkg/channels/gochannel"
	"github.com/dukex/flowpipe/pkg/channels/kafka"
	"github.com/dukex/flowpipe/pkg/eventbus"
)

// ErrUnsupportedEventBus is returned for unknown event bus providers.
var ErrUnsupportedEventBus = errors.New("unsupported event bus provider")

// NewEventBus creates the event bus for provider: "gochannel" keeps events in process,
// "kafka" publishes to the comma separated brokers.
func NewEventBus(logger *slog.Logger, provider, brokers string) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(logger, kafka.ParseBrokers(brokers), "flowpipe")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	case "gochannel", "":
		pub, sub := gochannel.CreateChannel(logger, gochannel.DefaultOptions)

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEventBus, provider)
	}
}
