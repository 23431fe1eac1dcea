// Package gochannel provides the in-process transport for switch lifecycle events.
package gochannel

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/dukex/flowroute/pkg/eventbus"
)

// CreateChannel creates a GoChannel pubsub. The same instance serves as publisher and
// subscriber.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            1000,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)

	return pubSub, pubSub, nil
}

// CreateTestChannel keeps published messages and blocks until they are acked, so tests
// observe events in publish order.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            10,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return pubSub, pubSub, nil
}

// NewEventBus wires an in-process event bus logging through logger.
func NewEventBus(logger *slog.Logger) (*eventbus.WatermillEventBus, error) {
	pub, sub, err := CreateChannel(watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, err
	}

	return eventbus.NewWatermillEventBus(pub, sub), nil
}
