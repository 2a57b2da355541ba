package eventbus

import (
	"context"
	"errors"
	"sync"

	"github.com/kilianp07/edgegrid/core/transport"
)

// ErrNotConnected is returned when publishing on a disconnected Conn.
var ErrNotConnected = errors.New("eventbus: not connected")

// inboxSize bounds the queue of undelivered messages per connection.
const inboxSize = 256

// Broker is an in-process topic broker with MQTT style wildcard matching.
// Each module obtains its own Conn, which satisfies transport.PubSub.
type Broker struct {
	mu   sync.RWMutex
	subs []subscription
}

type subscription struct {
	conn    *Conn
	pattern string
	deliver transport.Delivery
}

type message struct {
	topic   string
	payload []byte
	deliver transport.Delivery
}

// NewBroker creates an empty broker.
func NewBroker() *Broker { return &Broker{} }

// Conn returns a new connection named after the module using it.
func (b *Broker) Conn(name string) *Conn {
	return &Conn{broker: b, name: name}
}

func (b *Broker) route(ctx context.Context, topic string, payload []byte) error {
	b.mu.RLock()
	var targets []subscription
	for _, s := range b.subs {
		if transport.MatchTopic(s.pattern, topic) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		// each subscriber gets its own copy
		p := append([]byte(nil), payload...)
		if err := s.conn.enqueue(ctx, message{topic: topic, payload: p, deliver: s.deliver}); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) add(s subscription) {
	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()
}

func (b *Broker) removeConn(c *Conn) {
	b.mu.Lock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.conn != c {
			kept = append(kept, s)
		}
	}
	b.subs = kept
	b.mu.Unlock()
}

// Subscriptions returns the number of active subscriptions.
func (b *Broker) Subscriptions() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Conn is one module's connection to a Broker. Messages are delivered in
// publish order on a dedicated goroutine.
type Conn struct {
	broker *Broker
	name   string

	mu        sync.RWMutex
	connected bool
	inbox     chan message
	done      chan struct{}
}

// Name returns the connection name.
func (c *Conn) Name() string { return c.name }

// Connect starts the delivery goroutine. Connecting twice is a no-op.
func (c *Conn) Connect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return nil
	}
	c.inbox = make(chan message, inboxSize)
	c.done = make(chan struct{})
	c.connected = true
	go c.loop(c.inbox, c.done)
	return nil
}

func (c *Conn) loop(inbox <-chan message, done chan<- struct{}) {
	defer close(done)
	for m := range inbox {
		m.deliver(m.topic, m.payload)
	}
}

// Disconnect drops the connection's subscriptions and drains its inbox.
func (c *Conn) Disconnect(ctx context.Context) error {
	c.broker.removeConn(c)
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = false
	close(c.inbox)
	done := c.done
	c.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish routes payload to every matching subscription.
func (c *Conn) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.RLock()
	ok := c.connected
	c.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	return c.broker.route(ctx, topic, payload)
}

// Subscribe registers d for topics matching pattern.
func (c *Conn) Subscribe(_ context.Context, pattern string, d transport.Delivery) error {
	c.mu.RLock()
	ok := c.connected
	c.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}
	c.broker.add(subscription{conn: c, pattern: pattern, deliver: d})
	return nil
}

func (c *Conn) enqueue(ctx context.Context, m message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		// subscriber went away between routing and delivery
		return nil
	}
	select {
	case c.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
