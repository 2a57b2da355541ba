package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/edgegrid/core/transport"
	"github.com/kilianp07/edgegrid/infra/logger"
)

// Config defines the MQTT client configuration.
type Config struct {
	Broker   string `json:"broker"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`

	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	AuthMethod string `json:"auth_method"`

	// QoS per message class: "publish" and "subscribe".
	QoS map[string]byte `json:"qos"`

	LWTTopic   string `json:"lwt_topic"`
	LWTPayload string `json:"lwt_payload"`
	LWTQoS     byte   `json:"lwt_qos"`
	LWTRetain  bool   `json:"lwt_retain"`

	MaxRetries int `json:"max_retries"`
	BackoffMS  int `json:"backoff_ms"`

	TLSConfig *tls.Config `json:"-"`
}

// ErrNotConnected is returned when publishing while the broker link is down
// and no retries remain.
var ErrNotConnected = errors.New("mqtt: not connected")

const connectTimeout = 10 * time.Second

// LoadTLSConfig builds a tls.Config from the certificate paths.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if !c.UseTLS {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.ClientCert != "" && c.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	if c.CABundle != "" {
		caData, err := os.ReadFile(c.CABundle)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caData) {
			return nil, fmt.Errorf("invalid CA bundle")
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

// NewClientOptions returns paho options from the configuration.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "edgegrid-" + uuid.NewString()[:8]
	}
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg := cfg.TLSConfig
		if tlsCfg == nil {
			var err error
			tlsCfg, err = cfg.LoadTLSConfig()
			if err != nil {
				return nil, err
			}
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// pahoClient is the subset of paho.Client used by Client.
type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }

// Client is a transport.PubSub backed by an MQTT 3.1.1 broker.
//
// Subscriptions are remembered and replayed on every (re)connect so a clean
// session after a broker restart keeps routing.
type Client struct {
	cli        pahoClient
	log        logger.Logger
	pubQoS     byte
	subQoS     byte
	maxRetries int
	backoff    time.Duration

	mu   sync.Mutex
	subs map[string]transport.Delivery
}

var _ transport.PubSub = (*Client)(nil)

// NewClient creates an MQTT client. It does not connect.
func NewClient(cfg Config, log logger.Logger) (*Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker is required")
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	c := &Client{
		log:        log,
		pubQoS:     cfg.QoS["publish"],
		subQoS:     cfg.QoS["subscribe"],
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		subs:       make(map[string]transport.Delivery),
	}
	if c.maxRetries <= 0 {
		c.maxRetries = 3
	}
	if c.backoff <= 0 {
		c.backoff = 100 * time.Millisecond
	}
	opts.OnConnect = func(cl paho.Client) { c.resubscribe() }
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		c.log.Warnf("mqtt connection lost: %v", err)
	}
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) {
		c.log.Infof("mqtt reconnecting to %s", cfg.Broker)
	}
	c.cli = newMQTTClient(opts)
	return c, nil
}

// Connect opens the broker connection, bounded by ctx.
func (c *Client) Connect(ctx context.Context) error {
	tok := c.cli.Connect()
	if err := waitToken(ctx, tok); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Disconnect closes the broker connection.
func (c *Client) Disconnect(context.Context) error {
	c.cli.Disconnect(250)
	return nil
}

// Publish sends payload, retrying with exponential backoff.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	backoff := c.backoff
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if c.cli.IsConnected() {
			err = waitToken(ctx, c.cli.Publish(topic, c.pubQoS, false, payload))
			if err == nil {
				return nil
			}
		} else {
			err = ErrNotConnected
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warnf("mqtt publish to %s failed (attempt %d): %v", topic, attempt+1, err)
		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("mqtt publish %s: %w", topic, err)
}

// Subscribe registers d for pattern. The subscription is sent immediately
// when connected and replayed on reconnect.
func (c *Client) Subscribe(ctx context.Context, pattern string, d transport.Delivery) error {
	c.mu.Lock()
	c.subs[pattern] = d
	c.mu.Unlock()
	if !c.cli.IsConnected() {
		return nil
	}
	if err := waitToken(ctx, c.cli.Subscribe(pattern, c.subQoS, handler(d))); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", pattern, err)
	}
	return nil
}

func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]transport.Delivery, len(c.subs))
	for p, d := range c.subs {
		subs[p] = d
	}
	c.mu.Unlock()
	for p, d := range subs {
		tok := c.cli.Subscribe(p, c.subQoS, handler(d))
		if tok.WaitTimeout(connectTimeout) && tok.Error() != nil {
			c.log.Errorf("mqtt resubscribe %s: %v", p, tok.Error())
		}
	}
	c.log.Infof("mqtt connected, %d subscriptions active", len(subs))
}

func handler(d transport.Delivery) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		d(msg.Topic(), msg.Payload())
	}
}

func waitToken(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
