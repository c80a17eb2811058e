// Package counter holds the process-wide click counter and the change
// notifications published whenever it moves.
package counter

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/atomic"
)

// Channel is the pub/sub channel counter events are published on.
const Channel = "clicker:counter"

// Counter is a monotonically increasing click counter safe for concurrent use.
// The zero value is not usable; call New.
type Counter struct {
	value *atomic.Uint64
}

// New returns a counter starting at zero.
func New() *Counter {
	return &Counter{value: atomic.NewUint64(0)}
}

// Load returns the current value.
func (c *Counter) Load() uint64 {
	return c.value.Load()
}

// Increment adds one and returns the value it produced.
func (c *Counter) Increment() uint64 {
	return c.value.Inc()
}

// String implements fmt.Stringer.
func (c *Counter) String() string {
	return fmt.Sprintf("Clicked: %d", c.Load())
}

// Event is published after every increment.
type Event struct {
	// Count is the value produced by the increment.
	Count uint64 `msgpack:"count"`
	// Origin identifies the server instance that incremented.
	Origin string `msgpack:"origin"`
}

// Encode serializes the event for the pub/sub wire.
func (e Event) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("encode counter event: %w", err)
	}
	return data, nil
}

// DecodeEvent parses an event produced by Encode.
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode counter event: %w", err)
	}
	return e, nil
}
