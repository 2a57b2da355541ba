// Package mqtt5 binds the transport layer to an MQTT v5 broker using the
// auto reconnecting paho client.
package mqtt5

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/kilianp07/edgegrid/core/transport"
	"github.com/kilianp07/edgegrid/infra/logger"
)

// Config is the MQTT v5 binding configuration.
type Config struct {
	Broker    string `json:"broker"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	KeepAlive uint16 `json:"keep_alive"`
	QoS       byte   `json:"qos"`
}

// ErrNotConnected is returned before Connect succeeded.
var ErrNotConnected = errors.New("mqtt5: not connected")

// Client is a transport.PubSub over autopaho. Subscriptions are replayed
// each time the connection comes up.
type Client struct {
	cfg    autopaho.ClientConfig
	router *paho.StandardRouter
	qos    byte
	log    logger.Logger

	mu   sync.Mutex
	cm   *autopaho.ConnectionManager
	subs map[string]struct{}
}

var _ transport.PubSub = (*Client)(nil)

// NewClient prepares a client. The broker connection is opened by Connect.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt5: broker is required")
	}
	u, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("mqtt5: broker url: %w", err)
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 20
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "edgegrid-" + uuid.NewString()[:8]
	}
	c := &Client{router: paho.NewStandardRouter(), qos: cfg.QoS, log: log, subs: make(map[string]struct{})}
	c.cfg = autopaho.ClientConfig{
		BrokerUrls: []*url.URL{u},
		KeepAlive:  cfg.KeepAlive,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			c.log.Infof("mqtt5 connection up")
			c.resubscribe(cm)
		},
		OnConnectError: func(err error) { c.log.Warnf("mqtt5 connect attempt failed: %v", err) },
		ClientConfig: paho.ClientConfig{
			ClientID:      cfg.ClientID,
			Router:        c.router,
			OnClientError: func(err error) { c.log.Errorf("mqtt5 client error: %v", err) },
			OnServerDisconnect: func(d *paho.Disconnect) {
				if d.Properties != nil {
					c.log.Warnf("mqtt5 server requested disconnect: %s", d.Properties.ReasonString)
				} else {
					c.log.Warnf("mqtt5 server requested disconnect; reason code: %d", d.ReasonCode)
				}
			},
		},
	}
	if cfg.Username != "" {
		c.cfg.SetUsernamePassword(cfg.Username, []byte(cfg.Password))
	}
	return c, nil
}

// Connect starts the connection manager and waits for the first connection.
func (c *Client) Connect(ctx context.Context) error {
	cm, err := autopaho.NewConnection(context.Background(), c.cfg)
	if err != nil {
		return fmt.Errorf("mqtt5 connect: %w", err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		_ = cm.Disconnect(context.Background())
		return fmt.Errorf("mqtt5 connect: %w", err)
	}
	c.mu.Lock()
	c.cm = cm
	c.mu.Unlock()
	return nil
}

// Disconnect stops the connection manager.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	cm := c.cm
	c.cm = nil
	c.mu.Unlock()
	if cm == nil {
		return nil
	}
	return cm.Disconnect(ctx)
}

// Publish sends payload on topic.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	cm := c.conn()
	if cm == nil {
		return ErrNotConnected
	}
	_, err := cm.Publish(ctx, &paho.Publish{QoS: c.qos, Topic: topic, Payload: payload})
	return err
}

// Subscribe registers d with the router and subscribes on the broker.
func (c *Client) Subscribe(ctx context.Context, pattern string, d transport.Delivery) error {
	c.router.RegisterHandler(pattern, func(p *paho.Publish) { d(p.Topic, p.Payload) })
	c.mu.Lock()
	c.subs[pattern] = struct{}{}
	cm := c.cm
	c.mu.Unlock()
	if cm == nil {
		return nil
	}
	if _, err := cm.Subscribe(ctx, c.subscribePacket(pattern)); err != nil {
		return fmt.Errorf("mqtt5 subscribe %s: %w", pattern, err)
	}
	return nil
}

func (c *Client) conn() *autopaho.ConnectionManager {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cm
}

func (c *Client) subscribePacket(patterns ...string) *paho.Subscribe {
	s := &paho.Subscribe{}
	for _, p := range patterns {
		s.Subscriptions = append(s.Subscriptions, paho.SubscribeOptions{Topic: p, QoS: c.qos})
	}
	return s
}

func (c *Client) resubscribe(cm *autopaho.ConnectionManager) {
	c.mu.Lock()
	patterns := make([]string, 0, len(c.subs))
	for p := range c.subs {
		patterns = append(patterns, p)
	}
	c.mu.Unlock()
	if len(patterns) == 0 {
		return
	}
	go func() {
		if _, err := cm.Subscribe(context.Background(), c.subscribePacket(patterns...)); err != nil {
			c.log.Errorf("mqtt5 resubscribe: %v", err)
		}
	}()
}
