package bus

import (
	"context"
	"sync"
)

// MessageBus decouples channels from the bridge with buffered queues.
type MessageBus struct {
	inbound  chan *InboundMessage
	outbound chan *OutboundMessage

	closeOnce sync.Once
}

// NewMessageBus creates a bus whose queues hold up to size messages each.
func NewMessageBus(size int) *MessageBus {
	if size <= 0 {
		size = 1
	}
	return &MessageBus{
		inbound:  make(chan *InboundMessage, size),
		outbound: make(chan *OutboundMessage, size),
	}
}

// PublishInbound queues a message received from a channel. It blocks when
// the queue is full.
func (b *MessageBus) PublishInbound(msg *InboundMessage) {
	b.inbound <- msg
}

// PublishOutbound queues a message for delivery by a channel.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) {
	b.outbound <- msg
}

// PublishOutboundContext is PublishOutbound that gives up when ctx is done.
func (b *MessageBus) PublishOutboundContext(ctx context.Context, msg *OutboundMessage) error {
	select {
	case b.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inbound returns the inbound queue.
func (b *MessageBus) Inbound() <-chan *InboundMessage { return b.inbound }

// Outbound returns the outbound queue.
func (b *MessageBus) Outbound() <-chan *OutboundMessage { return b.outbound }

// Close closes both queues. Publishing after Close panics.
func (b *MessageBus) Close() {
	b.closeOnce.Do(func() {
		close(b.inbound)
		close(b.outbound)
	})
}
