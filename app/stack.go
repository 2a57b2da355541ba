package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/edgegrid/config"
	"github.com/kilianp07/edgegrid/core/model"
	"github.com/kilianp07/edgegrid/internal/eventbus"
)

// Stack is the controller plus every asset module in one process.
type Stack struct {
	Controller *Controller
	Assets     []*Asset
}

// NewStack builds the full stack. With the local transport all modules share
// one in-process broker.
func NewStack(cfg *config.Config, opts ...Option) (*Stack, error) {
	if cfg.Transport.Type == config.TransportLocal {
		opts = append([]Option{WithBroker(eventbus.NewBroker())}, opts...)
	}
	ctrl, err := NewController(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}
	s := &Stack{Controller: ctrl}
	for _, kind := range Kinds() {
		a, err := NewAsset(kind, cfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		s.Assets = append(s.Assets, a)
	}
	return s, nil
}

// Run runs every module until ctx is cancelled or one of them fails.
func (s *Stack) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, a := range s.Assets {
		g.Go(func() error { return a.Run(ctx) })
	}
	g.Go(func() error { return s.Controller.Run(ctx) })
	return g.Wait()
}

// Call performs one method call from a short lived cli-* module and returns
// the response payload.
func Call(ctx context.Context, cfg *config.Config, target, method string, payload model.Payload, timeout time.Duration, opts ...Option) (model.Payload, error) {
	o := buildOptions(opts)
	tr, err := newTransport("cli-"+uuid.NewString()[:8], cfg, o)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	if err := tr.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = tr.Disconnect(dctx)
	}()
	return tr.Call(ctx, target, method, payload, timeout)
}
