package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/flowroute/pkg/channels/gochannel"
	"github.com/dukex/flowroute/pkg/eventbus"
)

var ErrUnsupportedEventBus = errors.New("unsupported event bus provider")

// NewEventBus creates the event bus selected by provider. "none" disables lifecycle
// events and returns a nil bus.
//
// nolint:ireturn
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "", "none":
		return nil, nil //nolint:nilnil
	case "gochannel":
		bus, err := gochannel.NewEventBus(logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gochannel pub/sub: %w", err)
		}

		return bus, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEventBus, provider)
	}
}
