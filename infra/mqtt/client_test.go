package mqtt

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
}

func TestNewClientRequiresBroker(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	require.Error(t, err)
}

func TestQoSSettings(t *testing.T) {
	mc := &mockClient{connected: true}
	withMock(t, mc)
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883", ClientID: "id", QoS: map[string]byte{"publish": 2, "subscribe": 1}}, nil)
	require.NoError(t, err)

	require.NoError(t, cli.Subscribe(context.Background(), "edge/a/inputs/#", func(string, []byte) {}))
	require.NoError(t, cli.Publish(context.Background(), "edge/a/outputs/x", []byte("{}")))

	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, byte(1), mc.subscribed[0].qos)
	require.Len(t, mc.published, 1)
	assert.Equal(t, byte(2), mc.published[0].qos)
}

func TestSubscribeDeliversMessages(t *testing.T) {
	mc := &mockClient{connected: true}
	withMock(t, mc)
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883"}, nil)
	require.NoError(t, err)

	var gotTopic string
	var gotPayload []byte
	require.NoError(t, cli.Subscribe(context.Background(), "edge/+/outputs/telemetry", func(topic string, p []byte) {
		gotTopic, gotPayload = topic, p
	}))
	mc.deliver("edge/solar-module/outputs/telemetry", []byte(`{"a":1}`))

	assert.Equal(t, "edge/solar-module/outputs/telemetry", gotTopic)
	assert.JSONEq(t, `{"a":1}`, string(gotPayload))
}

func TestSubscriptionsReplayedOnConnect(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883"}, nil)
	require.NoError(t, err)

	require.NoError(t, cli.Subscribe(context.Background(), "edge/a/methods/+", func(string, []byte) {}))
	assert.Empty(t, mc.subscribed, "no subscribe before connect")

	require.NoError(t, cli.Connect(context.Background()))
	require.Len(t, mc.subscribed, 1)
	assert.Equal(t, "edge/a/methods/+", mc.subscribed[0].topic)
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewClient(cfg, nil)
	require.NoError(t, err)
	require.True(t, mc.opts.WillEnabled)
	assert.Equal(t, "lwt", mc.opts.WillTopic)
	assert.Equal(t, "bye", string(mc.opts.WillPayload))

	require.NoError(t, cli.Disconnect(context.Background()))
	assert.Empty(t, mc.published, "unexpected publish on disconnect")
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{connected: true, publishErrs: []error{fmt.Errorf("net fail"), nil}}
	withMock(t, mc)
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, nil)
	require.NoError(t, err)

	require.NoError(t, cli.Publish(context.Background(), "t", []byte("x")))
	assert.Len(t, mc.published, 2)
}

func TestPublishGivesUpAfterRetries(t *testing.T) {
	fail := fmt.Errorf("net fail")
	mc := &mockClient{connected: true, publishErrs: []error{fail, fail, fail}}
	withMock(t, mc)
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 2, BackoffMS: 1}, nil)
	require.NoError(t, err)

	err = cli.Publish(context.Background(), "t", []byte("x"))
	require.ErrorIs(t, err, fail)
	assert.Len(t, mc.published, 3)
}

func TestPublishWhileDisconnected(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 1, BackoffMS: 1}, nil)
	require.NoError(t, err)

	err = cli.Publish(context.Background(), "t", []byte("x"))
	require.ErrorIs(t, err, ErrNotConnected)
	assert.Empty(t, mc.published)
}

func TestPublishHonoursContext(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewClient(Config{Broker: "tcp://localhost:1883", MaxRetries: 5, BackoffMS: 1000}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = cli.Publish(ctx, "t", []byte("x"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

// mockClient implements pahoClient and paho.Client for tests.
type mockClient struct {
	mu        sync.Mutex
	opts      *paho.ClientOptions
	connected bool
	handlers  map[string]paho.MessageHandler

	subscribed []struct {
		topic string
		qos   byte
	}
	published []struct {
		topic string
		qos   byte
	}
	publishErrs []error
}

func (m *mockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockClient) Connect() paho.Token {
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}

func (m *mockClient) Disconnect(uint) {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

func (m *mockClient) Publish(topic string, qos byte, _ bool, _ interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, struct {
		topic string
		qos   byte
	}{topic, qos})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}

func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	if m.handlers == nil {
		m.handlers = make(map[string]paho.MessageHandler)
	}
	m.handlers[topic] = h
	return &dummyToken{}
}

// deliver invokes every handler; the tests subscribe a single pattern.
func (m *mockClient) deliver(topic string, payload []byte) {
	m.mu.Lock()
	hs := make([]paho.MessageHandler, 0, len(m.handlers))
	for _, h := range m.handlers {
		hs = append(hs, h)
	}
	m.mu.Unlock()
	for _, h := range hs {
		h(m, mockMessage{topic: topic, p: payload})
	}
}

func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return m.IsConnected() }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
