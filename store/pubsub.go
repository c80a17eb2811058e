// Package store provides the publish/subscribe backends that carry counter
// change events between the increment handler and live-update streams.
package store

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed PubSub.
var ErrClosed = errors.New("pubsub closed")

// Handler receives published messages. Handlers must not block.
type Handler func(message []byte)

// PubSub represents a publish-subscribe mechanism for broadcasting across
// components or processes.
type PubSub interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MemoryPubSub provides an in-memory implementation of the PubSub interface.
// It is intended for single-process deployments.
type MemoryPubSub struct {
	subscribers map[string][]Handler
	closed      bool
	mu          sync.RWMutex
}

// NewMemoryPubSub creates a new in-memory PubSub system.
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{
		subscribers: make(map[string][]Handler),
	}
}

// Publish delivers a message to every subscriber of a channel, in
// subscription order, before returning.
func (p *MemoryPubSub) Publish(_ context.Context, channel string, message []byte) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrClosed
	}
	handlers := make([]Handler, len(p.subscribers[channel]))
	copy(handlers, p.subscribers[channel])
	p.mu.RUnlock()

	for _, handler := range handlers {
		handler(message)
	}
	return nil
}

// Subscribe registers a handler for messages on a channel.
func (p *MemoryPubSub) Subscribe(_ context.Context, channel string, handler Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.subscribers[channel] = append(p.subscribers[channel], handler)
	return nil
}

// Close drops all subscribers.
func (p *MemoryPubSub) Close() error {
	p.mu.Lock()
	p.closed = true
	p.subscribers = make(map[string][]Handler)
	p.mu.Unlock()
	return nil
}
