// Package gochannel provides the in-process watermill pub/sub used when no broker is configured.
package gochannel

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Options tune the in-process pub/sub.
type Options struct {
	// Buffer is the per-subscriber output buffer.
	Buffer int64
	// Blocking makes Publish wait until every subscriber acked the message.
	Blocking bool
}

// DefaultOptions suit a single CLI process publishing flow events.
var DefaultOptions = Options{Buffer: 1000}

// CreateChannel returns one GoChannel that serves as both publisher and subscriber.
func CreateChannel(logger *slog.Logger, opts Options) (*gochannel.GoChannel, *gochannel.GoChannel) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            opts.Buffer,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: opts.Blocking,
		},
		watermill.NewSlogLogger(logger),
	)

	return pubSub, pubSub
}
