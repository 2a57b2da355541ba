package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/edgegrid/core/model"
)

// RequestIDField is the out-of-band field carrying the correlation id inside
// a method invocation body. The callee strips it and echoes it in the
// response topic.
const RequestIDField = "_request_id"

// Status codes used in method responses.
const (
	StatusOK       = http.StatusOK
	StatusNotFound = http.StatusNotFound
	StatusConflict = http.StatusConflict
	StatusInternal = http.StatusInternalServerError
)

var (
	// ErrTimeout is returned by Call when no response arrives before the deadline.
	ErrTimeout = errors.New("method call timed out")
	// ErrClosed is returned for calls issued on, or pending during, a disconnect.
	ErrClosed = errors.New("transport closed")
	// ErrRouting marks messages delivered to an address without a handler.
	ErrRouting = errors.New("no handler registered")
)

// RoutingError describes a dropped message.
type RoutingError struct {
	Topic string
	Kind  string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("%s message on %s dropped: %v", e.Kind, e.Topic, ErrRouting)
}

func (e *RoutingError) Unwrap() error { return ErrRouting }

// StatusError is returned by Call when the callee answered with a non 2xx status.
type StatusError struct {
	Module  string
	Method  string
	Status  int
	Payload model.Payload
}

func (e *StatusError) Error() string {
	if msg := e.Payload.String("error"); msg != "" {
		return fmt.Sprintf("%s on %s returned %d: %s", e.Method, e.Module, e.Status, msg)
	}
	return fmt.Sprintf("%s on %s returned %d", e.Method, e.Module, e.Status)
}

// MethodRequest is an inbound method invocation.
type MethodRequest struct {
	RequestID string
	Name      string
	Payload   model.Payload
}

// MethodResponse is the reply to a MethodRequest.
type MethodResponse struct {
	Status  int           `json:"status"`
	Payload model.Payload `json:"payload"`
}

// OK builds a 200 response.
func OK(payload model.Payload) MethodResponse {
	return MethodResponse{Status: StatusOK, Payload: payload}
}

// Fail builds an error response with the message under "error".
func Fail(status int, err error) MethodResponse {
	return MethodResponse{Status: status, Payload: model.Payload{"error": err.Error()}}
}

// MessageHandler receives data messages with their logical channel name.
type MessageHandler func(ctx context.Context, channel string, data model.Payload)

// MethodHandler serves method invocations addressed to the module.
type MethodHandler func(ctx context.Context, req MethodRequest) MethodResponse

// TwinHandler receives desired property patches.
type TwinHandler func(ctx context.Context, patch model.Payload)

// Transport is the capability set every module relies on. Client provides it
// on top of any PubSub; a cloud binding may implement it directly.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	// Publish sends data on an output channel. Failures are logged, not returned.
	Publish(ctx context.Context, channel string, payload any)
	// Call invokes a method on another module and waits for its response.
	Call(ctx context.Context, target, method string, payload model.Payload, timeout time.Duration) (model.Payload, error)
	OnMessage(h MessageHandler)
	OnMethod(h MethodHandler)
	OnTwinUpdate(h TwinHandler)
	// UpdateReported publishes reported properties. Failures are logged, not returned.
	UpdateReported(ctx context.Context, props model.Payload)
}

// Delivery is invoked by a PubSub for every message matching a subscription.
type Delivery func(topic string, payload []byte)

// PubSub is the broker primitive a binding provides.
type PubSub interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, pattern string, d Delivery) error
}
