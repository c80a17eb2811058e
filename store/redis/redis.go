// Package redis provides a Redis-backed store.PubSub so several server
// instances can share live-update events.
package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/aydenstechdungeon/clicker/store"
	goredis "github.com/redis/go-redis/v9"
)

// PubSub provides a Redis-backed implementation of the store.PubSub interface.
type PubSub struct {
	client *goredis.Client

	mu     sync.Mutex
	subs   []*goredis.PubSub
	closed bool
	wg     sync.WaitGroup
}

// NewPubSub creates a new Redis PubSub.
func NewPubSub(client *goredis.Client) *PubSub {
	return &PubSub{client: client}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*PubSub, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewPubSub(client), nil
}

// Publish publishes a message to a Redis channel.
func (p *PubSub) Publish(ctx context.Context, channel string, message []byte) error {
	return p.client.Publish(ctx, channel, message).Err()
}

// Subscribe subscribes to a Redis channel and invokes the handler for each
// message on a dedicated goroutine, in arrival order.
func (p *PubSub) Subscribe(ctx context.Context, channel string, handler store.Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return store.ErrClosed
	}

	sub := p.client.Subscribe(ctx, channel)
	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe %s: %w", channel, err)
	}
	p.subs = append(p.subs, sub)

	ch := sub.Channel()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for msg := range ch {
			handler([]byte(msg.Payload))
		}
	}()
	return nil
}

// Close ends all subscriptions and closes the client.
func (p *PubSub) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}
	p.wg.Wait()
	return p.client.Close()
}

var _ store.PubSub = (*PubSub)(nil)
