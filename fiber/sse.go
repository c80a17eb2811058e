package fiber

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	gofiber "github.com/gofiber/fiber/v2"
)

// SSEEvent represents a Server-Sent Event.
type SSEEvent struct {
	// ID is the event identifier
	ID string `json:"id,omitempty"`
	// Event is the event type/name
	Event string `json:"event,omitempty"`
	// Data is the event payload. Strings and byte slices are sent verbatim,
	// anything else as JSON.
	Data any `json:"data"`
	// Retry specifies reconnection time in milliseconds
	Retry int `json:"retry,omitempty"`
}

// SSEClient represents a connected SSE client.
type SSEClient struct {
	// ID is the unique client identifier
	ID string
	// Channel is the client's event channel
	Channel chan SSEEvent
	// ConnectedAt is the connection timestamp
	ConnectedAt time.Time
}

// SSEBroker manages SSE connections and event distribution.
type SSEBroker struct {
	clients           map[string]*SSEClient
	mutex             sync.RWMutex
	eventBufferSize   int
	heartbeatInterval time.Duration
	retry             int
	done              chan struct{}
	closeOnce         sync.Once
}

// SSEConfig holds SSE broker configuration.
type SSEConfig struct {
	// EventBufferSize is the buffer size for client channels
	EventBufferSize int
	// HeartbeatInterval is the keepalive interval
	HeartbeatInterval time.Duration
	// Retry is the reconnection delay advertised to clients, in milliseconds
	Retry int
}

// NewSSEBroker creates a new SSE broker.
func NewSSEBroker(config *SSEConfig) *SSEBroker {
	if config == nil {
		config = &SSEConfig{}
	}
	if config.EventBufferSize == 0 {
		config.EventBufferSize = 16
	}
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.Retry == 0 {
		config.Retry = 2000
	}
	return &SSEBroker{
		clients:           make(map[string]*SSEClient),
		eventBufferSize:   config.EventBufferSize,
		heartbeatInterval: config.HeartbeatInterval,
		retry:             config.Retry,
		done:              make(chan struct{}),
	}
}

// Connect registers a new SSE client.
func (b *SSEBroker) Connect(clientID string) *SSEClient {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if old, exists := b.clients[clientID]; exists {
		close(old.Channel)
	}
	client := &SSEClient{
		ID:          clientID,
		Channel:     make(chan SSEEvent, b.eventBufferSize),
		ConnectedAt: time.Now(),
	}
	b.clients[clientID] = client
	return client
}

// Disconnect removes an SSE client and closes its channel.
func (b *SSEBroker) Disconnect(client *SSEClient) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if current, exists := b.clients[client.ID]; exists && current == client {
		close(client.Channel)
		delete(b.clients, client.ID)
	}
}

// Broadcast queues an event for every connected client and returns how many
// accepted it. Clients whose buffer is full miss the event.
func (b *SSEBroker) Broadcast(event SSEEvent) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	delivered := 0
	for _, client := range b.clients {
		select {
		case client.Channel <- event:
			delivered++
		default:
		}
	}
	return delivered
}

// ClientCount returns the number of connected clients.
func (b *SSEBroker) ClientCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

// Close ends every open stream. The broker accepts no new streams afterwards.
func (b *SSEBroker) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.mutex.Lock()
		for id, client := range b.clients {
			close(client.Channel)
			delete(b.clients, id)
		}
		b.mutex.Unlock()
	})
}

// Closed reports whether Close has been called.
func (b *SSEBroker) Closed() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Handler returns a Fiber handler streaming events to one client until it
// goes away or the broker closes.
func (b *SSEBroker) Handler() gofiber.Handler {
	return func(c *gofiber.Ctx) error {
		if b.Closed() {
			return NewAppError(ErrorCodeUnavailable, "event stream closed", gofiber.StatusServiceUnavailable)
		}

		c.Set(gofiber.HeaderContentType, "text/event-stream")
		c.Set(gofiber.HeaderCacheControl, "no-cache")
		c.Set(gofiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		client := b.Connect(generateClientID())
		retry := b.retry
		heartbeat := b.heartbeatInterval

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer b.Disconnect(client)

			ticker := time.NewTicker(heartbeat)
			defer ticker.Stop()

			if err := writeSSEEvent(w, SSEEvent{Event: "connected", Data: client.ID, Retry: retry}); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}

			for {
				select {
				case <-b.done:
					return
				case event, ok := <-client.Channel:
					if !ok {
						return
					}
					if err := writeSSEEvent(w, event); err != nil {
						return
					}
				case <-ticker.C:
					if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
						return
					}
				}
				// a failed flush means the client is gone
				if err := w.Flush(); err != nil {
					return
				}
			}
		})
		return nil
	}
}

// StatsHandler reports the number of connected clients as JSON.
func (b *SSEBroker) StatsHandler() gofiber.Handler {
	return func(c *gofiber.Ctx) error {
		return c.JSON(gofiber.Map{"clients": b.ClientCount()})
	}
}

// writeSSEEvent writes an SSE event frame. Multi-line data is split over
// several data fields.
func writeSSEEvent(w io.Writer, event SSEEvent) error {
	var b strings.Builder
	if event.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", event.ID)
	}
	if event.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", event.Event)
	}
	if event.Retry > 0 {
		fmt.Fprintf(&b, "retry: %d\n", event.Retry)
	}

	var data string
	switch v := event.Data.(type) {
	case string:
		data = v
	case []byte:
		data = string(v)
	default:
		encoded, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("encode sse data: %w", err)
		}
		data = string(encoded)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// generateClientID generates a unique client ID.
func generateClientID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("sse_%d", time.Now().UnixNano())
	}
	return "sse_" + hex.EncodeToString(bytes)
}
