package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/edgegrid/core/logger"
	"github.com/kilianp07/edgegrid/core/model"
)

// DefaultCallTimeout applies when Call is given a non positive timeout.
const DefaultCallTimeout = 10 * time.Second

// Client implements Transport on top of a PubSub. It correlates method calls
// with their responses, classifies inbound traffic and routes it to the
// registered handlers.
type Client struct {
	module string
	ps     PubSub
	log    logger.Logger
	extra  []string
	newID  func() string
	met    *Metrics

	mu      sync.Mutex
	pending map[string]chan MethodResponse
	closed  bool

	hmu       sync.RWMutex
	onMessage MessageHandler
	onMethod  MethodHandler
	onTwin    TwinHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ Transport = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) { c.log = logger.OrNop(l) }
}

// WithExtraTopics subscribes to additional patterns on connect, typically
// other modules' outputs. Messages on them are delivered as data.
func WithExtraTopics(patterns ...string) ClientOption {
	return func(c *Client) { c.extra = append(c.extra, patterns...) }
}

// WithMetrics records publish failures, call timeouts, routing drops and
// pending calls on m.
func WithMetrics(m *Metrics) ClientOption {
	return func(c *Client) { c.met = m }
}

// WithIDGenerator replaces the correlation id generator.
func WithIDGenerator(f func() string) ClientOption {
	return func(c *Client) {
		if f != nil {
			c.newID = f
		}
	}
}

// NewClient creates a client for the given module identity.
func NewClient(module string, ps PubSub, opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		module:  module,
		ps:      ps,
		log:     logger.NopLogger{},
		newID:   uuid.NewString,
		pending: make(map[string]chan MethodResponse),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Module returns the module identity.
func (c *Client) Module() string { return c.module }

// Connect connects the underlying PubSub and subscribes to the module's
// inputs, methods, desired properties, every response topic and the extra
// patterns.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := c.ps.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", c.module, err)
	}
	for _, p := range c.patterns() {
		if err := c.ps.Subscribe(ctx, p, c.deliver); err != nil {
			return fmt.Errorf("subscribe %s: %w", p, err)
		}
	}
	c.log.Infof("transport connected as %s", c.module)
	return nil
}

func (c *Client) patterns() []string {
	p := []string{
		InputsPattern(c.module),
		MethodsPattern(c.module),
		DesiredTopic(c.module),
		ResponsesPattern,
	}
	return append(p, c.extra...)
}

// Disconnect fails every pending call with ErrClosed, cancels running method
// handlers and closes the PubSub.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.met.pending(c.module, 0)
	c.mu.Unlock()

	c.cancel()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.log.Warnf("method handlers still running on disconnect of %s", c.module)
	}
	if err := c.ps.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect %s: %w", c.module, err)
	}
	return nil
}

// Publish sends payload as JSON on the module's output channel.
func (c *Client) Publish(ctx context.Context, channel string, payload any) {
	c.publishJSON(ctx, OutputTopic(c.module, channel), payload)
}

// UpdateReported publishes reported properties.
func (c *Client) UpdateReported(ctx context.Context, props model.Payload) {
	c.publishJSON(ctx, ReportedTopic(c.module), props)
}

func (c *Client) publishJSON(ctx context.Context, topic string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Errorf("encode message for %s: %v", topic, err)
		c.met.publishFailed(c.module, "encode")
		return
	}
	if err := c.ps.Publish(ctx, topic, b); err != nil {
		c.log.Warnf("publish %s: %v", topic, err)
		c.met.publishFailed(c.module, "publish")
	}
}

// Call invokes method on target and blocks until the correlated response
// arrives, the timeout elapses or ctx is cancelled. A response with a status
// of 400 or above is returned as a *StatusError.
func (c *Client) Call(ctx context.Context, target, method string, payload model.Payload, timeout time.Duration) (model.Payload, error) {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	id := c.newID()
	ch := make(chan MethodResponse, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.met.pending(c.module, len(c.pending))
	c.mu.Unlock()

	body := payload.Clone()
	if body == nil {
		body = model.Payload{}
	}
	body[RequestIDField] = id
	b, err := json.Marshal(body)
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	if err := c.ps.Publish(ctx, MethodTopic(target, method), b); err != nil {
		c.forget(id)
		return nil, fmt.Errorf("publish %s to %s: %w", method, target, err)
	}
	c.log.Debugf("call %s.%s id=%s", target, method, id)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if resp.Status >= 400 {
			return resp.Payload, &StatusError{Module: target, Method: method, Status: resp.Status, Payload: resp.Payload}
		}
		return resp.Payload, nil
	case <-timer.C:
		c.forget(id)
		c.met.callTimedOut(c.module, target)
		return nil, fmt.Errorf("%w: %s on %s after %s", ErrTimeout, method, target, timeout)
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.met.pending(c.module, len(c.pending))
	c.mu.Unlock()
}

// PendingCalls returns the number of calls awaiting a response.
func (c *Client) PendingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// OnMessage sets the data message handler.
func (c *Client) OnMessage(h MessageHandler) {
	c.hmu.Lock()
	c.onMessage = h
	c.hmu.Unlock()
}

// OnMethod sets the method invocation handler.
func (c *Client) OnMethod(h MethodHandler) {
	c.hmu.Lock()
	c.onMethod = h
	c.hmu.Unlock()
}

// OnTwinUpdate sets the desired properties handler.
func (c *Client) OnTwinUpdate(h TwinHandler) {
	c.hmu.Lock()
	c.onTwin = h
	c.hmu.Unlock()
}

func (c *Client) handlers() (MessageHandler, MethodHandler, TwinHandler) {
	c.hmu.RLock()
	defer c.hmu.RUnlock()
	return c.onMessage, c.onMethod, c.onTwin
}

// deliver classifies an inbound message by topic and routes it.
func (c *Client) deliver(topic string, raw []byte) {
	pt := parseTopic(topic)
	switch pt.kind {
	case kindResponse:
		c.resolve(pt.name, raw)
	case kindInvocation:
		if pt.module != c.module {
			c.log.Debugf("ignoring invocation for %s on %s", pt.module, topic)
			return
		}
		c.invoke(topic, pt.name, raw)
	case kindDesired:
		if pt.module != c.module {
			return
		}
		c.twin(topic, raw)
	case kindReported:
		c.log.Debugf("ignoring reported properties on %s", topic)
	default:
		c.data(topic, pt.name, raw)
	}
}

func (c *Client) resolve(id string, raw []byte) {
	var resp MethodResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log.Warnf("malformed response %s: %v", id, err)
		return
	}
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		c.met.pending(c.module, len(c.pending))
	}
	c.mu.Unlock()
	if !ok {
		c.log.Debugf("response %s has no pending call", id)
		return
	}
	ch <- resp
}

func (c *Client) invoke(topic, method string, raw []byte) {
	body, err := decodePayload(raw)
	if err != nil {
		c.log.Warnf("malformed invocation on %s: %v", topic, err)
		return
	}
	id := body.String(RequestIDField)
	delete(body, RequestIDField)
	if id == "" {
		id = method + "-" + c.newID()
	}
	_, h, _ := c.handlers()
	if h == nil {
		c.log.Warnf("%v", &RoutingError{Topic: topic, Kind: kindInvocation.String()})
		c.met.dropped(c.module, kindInvocation.String())
		return
	}
	req := MethodRequest{RequestID: id, Name: method, Payload: body}
	// Add under c.mu so Disconnect never waits on a group that grows after
	// it started waiting.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.log.Debugf("dropping invocation %s on closed client %s", method, c.module)
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		resp := c.serve(h, req)
		c.publishJSON(c.ctx, ResponseTopic(c.module, id), resp)
	}()
}

func (c *Client) serve(h MethodHandler, req MethodRequest) (resp MethodResponse) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("method %s panicked: %v", req.Name, r)
			resp = Fail(StatusInternal, fmt.Errorf("internal error: %v", r))
		}
	}()
	resp = h(c.ctx, req)
	if resp.Status == 0 {
		resp.Status = StatusOK
	}
	if resp.Payload == nil {
		resp.Payload = model.Payload{}
	}
	return resp
}

func (c *Client) twin(topic string, raw []byte) {
	patch, err := decodePayload(raw)
	if err != nil {
		c.log.Warnf("malformed desired properties on %s: %v", topic, err)
		return
	}
	_, _, h := c.handlers()
	if h == nil {
		c.log.Debugf("%v", &RoutingError{Topic: topic, Kind: kindDesired.String()})
		c.met.dropped(c.module, kindDesired.String())
		return
	}
	h(c.ctx, patch)
}

func (c *Client) data(topic, channel string, raw []byte) {
	data, err := decodePayload(raw)
	if err != nil {
		c.log.Warnf("malformed message on %s: %v", topic, err)
		return
	}
	h, _, _ := c.handlers()
	if h == nil {
		c.log.Debugf("%v", &RoutingError{Topic: topic, Kind: kindData.String()})
		c.met.dropped(c.module, kindData.String())
		return
	}
	h(c.ctx, channel, data)
}

func decodePayload(raw []byte) (model.Payload, error) {
	var p model.Payload
	if len(raw) == 0 {
		return model.Payload{}, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	if p == nil {
		p = model.Payload{}
	}
	return p, nil
}
