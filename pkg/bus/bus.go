// Package bus connects chat channels to the agent loop. Each direction is a
// bounded queue; a publish that cannot be queued within publishTimeout is
// dropped and counted instead of stalling the poller.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	publishTimeout    = 100 * time.Millisecond
	defaultBufferSize = 100
)

type queue[T any] struct {
	ch      chan T
	dropped atomic.Uint64
}

func newQueue[T any](size int) *queue[T] {
	return &queue[T]{ch: make(chan T, size)}
}

func (q *queue[T]) push(v T) {
	select {
	case q.ch <- v:
		return
	default:
	}
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case q.ch <- v:
	case <-timer.C:
		q.dropped.Add(1)
	}
}

func (q *queue[T]) pop(ctx context.Context) (T, bool) {
	var zero T
	select {
	case v, ok := <-q.ch:
		if !ok {
			return zero, false
		}
		return v, true
	case <-ctx.Done():
		return zero, false
	}
}

type MessageBus struct {
	mu       sync.RWMutex
	closed   bool
	inbound  *queue[InboundMessage]
	outbound *queue[OutboundMessage]
}

func NewMessageBus() *MessageBus {
	return NewMessageBusWithSize(defaultBufferSize)
}

func NewMessageBusWithSize(size int) *MessageBus {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &MessageBus{
		inbound:  newQueue[InboundMessage](size),
		outbound: newQueue[OutboundMessage](size),
	}
}

// PublishInbound queues a user message for the agent loop.
func (mb *MessageBus) PublishInbound(msg InboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if !mb.closed {
		mb.inbound.push(msg)
	}
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return mb.inbound.pop(ctx)
}

// PublishOutbound queues a reply for delivery by the channel manager.
func (mb *MessageBus) PublishOutbound(msg OutboundMessage) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	if !mb.closed {
		mb.outbound.push(msg)
	}
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return mb.outbound.pop(ctx)
}

func (mb *MessageBus) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.inbound.ch)
	close(mb.outbound.ch)
}

func (mb *MessageBus) Stats() map[string]interface{} {
	return map[string]interface{}{
		"inbound_queued":   len(mb.inbound.ch),
		"outbound_queued":  len(mb.outbound.ch),
		"inbound_dropped":  mb.DroppedInbound(),
		"outbound_dropped": mb.DroppedOutbound(),
	}
}

func (mb *MessageBus) DroppedInbound() uint64 {
	return mb.inbound.dropped.Load()
}

func (mb *MessageBus) DroppedOutbound() uint64 {
	return mb.outbound.dropped.Load()
}
