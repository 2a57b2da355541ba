package asset

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kilianp07/edgegrid/core/logger"
)

// State is the lifecycle state of an asset driver.
type State string

const (
	StateIdle     State = "IDLE"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
	StateFault    State = "FAULT"
)

func (s State) String() string { return string(s) }

// HookFailedCode is the fault code recorded when an on-start or on-stop hook fails.
const HookFailedCode = "HOOK_FAILED"

var (
	// ErrInvalidTransition is returned when an operation is not allowed in the
	// current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidArgument is returned by drivers for out of range setpoints.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrHookFailed wraps errors returned by driver hooks.
	ErrHookFailed = errors.New("hook failed")
)

// TransitionError reports an operation rejected in a given state.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Op, e.State)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// Hooks are the driver specific callbacks invoked during transitions.
// Nil hooks are skipped.
type Hooks struct {
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
	OnFault func(ctx context.Context, code string) error
}

// Observer is notified of every state change, in order, while the transition
// lock is held. Observers must not call back into the machine.
type Observer func(id string, from, to State)

// Handle is a point in time view of a machine.
type Handle struct {
	ID        string
	Type      string
	State     State
	FaultCode string
}

// Machine is the lifecycle engine shared by all asset drivers.
//
// Start, Stop, Fault and Reset are serialized by a single transition lock, so
// a fault raised from a simulation tick waits for a running start or stop to
// finish. Reads use a separate lock and never wait for a hook.
type Machine struct {
	id    string
	typ   string
	hooks Hooks
	log   logger.Logger
	obs   []Observer

	transition sync.Mutex

	mu        sync.RWMutex
	state     State
	faultCode string
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for transition logs.
func WithLogger(l logger.Logger) Option {
	return func(m *Machine) { m.log = logger.OrNop(l) }
}

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(m *Machine) {
		if o != nil {
			m.obs = append(m.obs, o)
		}
	}
}

// NewMachine returns a machine in the IDLE state.
func NewMachine(id, assetType string, hooks Hooks, opts ...Option) *Machine {
	m := &Machine{id: id, typ: assetType, hooks: hooks, log: logger.NopLogger{}, state: StateIdle}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ID returns the asset identifier.
func (m *Machine) ID() string { return m.id }

// Type returns the asset type.
func (m *Machine) Type() string { return m.typ }

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// FaultCode returns the recorded fault code, empty unless the state is FAULT.
func (m *Machine) FaultCode() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.faultCode
}

// Handle returns a consistent snapshot of identity, state and fault code.
func (m *Machine) Handle() Handle {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Handle{ID: m.id, Type: m.typ, State: m.state, FaultCode: m.faultCode}
}

func (m *Machine) set(to State, code string) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.faultCode = code
	m.mu.Unlock()
	if from == to {
		return
	}
	for _, o := range m.obs {
		o(m.id, from, to)
	}
}

// Start moves IDLE → STARTING → RUNNING, running the on-start hook while
// STARTING. It is a no-op when the asset is already starting, running or
// stopping.
func (m *Machine) Start(ctx context.Context) error {
	m.transition.Lock()
	defer m.transition.Unlock()

	switch cur := m.State(); cur {
	case StateStarting, StateRunning, StateStopping:
		m.log.Debugf("start ignored for %s in state %s", m.id, cur)
		return nil
	case StateFault:
		return &TransitionError{Op: "start", State: cur}
	}
	m.set(StateStarting, "")
	m.log.Infof("asset %s starting", m.id)
	if m.hooks.OnStart != nil {
		if err := m.hooks.OnStart(ctx); err != nil {
			return m.hookFailed("start", err)
		}
	}
	m.set(StateRunning, "")
	m.log.Infof("asset %s running", m.id)
	return nil
}

// Stop moves RUNNING or STARTING → STOPPING → IDLE, running the on-stop hook
// while STOPPING. It is a no-op when idle or already stopping.
func (m *Machine) Stop(ctx context.Context) error {
	m.transition.Lock()
	defer m.transition.Unlock()

	switch cur := m.State(); cur {
	case StateIdle, StateStopping:
		return nil
	case StateFault:
		return &TransitionError{Op: "stop", State: cur}
	}
	m.set(StateStopping, "")
	if m.hooks.OnStop != nil {
		if err := m.hooks.OnStop(ctx); err != nil {
			return m.hookFailed("stop", err)
		}
	}
	m.set(StateIdle, "")
	m.log.Infof("asset %s stopped", m.id)
	return nil
}

// Fault moves the machine to FAULT from any state and records code.
func (m *Machine) Fault(ctx context.Context, code string) error {
	m.transition.Lock()
	defer m.transition.Unlock()

	m.set(StateFault, code)
	m.log.Errorf("asset %s fault: %s", m.id, code)
	if m.hooks.OnFault != nil {
		if err := m.hooks.OnFault(ctx, code); err != nil {
			return fmt.Errorf("%w: fault: %w", ErrHookFailed, err)
		}
	}
	return nil
}

// Reset moves FAULT → IDLE and clears the fault code. It is a no-op in any
// other state.
func (m *Machine) Reset(context.Context) error {
	m.transition.Lock()
	defer m.transition.Unlock()

	if m.State() != StateFault {
		return nil
	}
	m.set(StateIdle, "")
	m.log.Infof("asset %s reset", m.id)
	return nil
}

// hookFailed parks the machine in FAULT so it never stays in a transient state.
func (m *Machine) hookFailed(op string, err error) error {
	m.set(StateFault, HookFailedCode)
	m.log.Errorf("asset %s %s hook failed: %v", m.id, op, err)
	if m.hooks.OnFault != nil {
		if ferr := m.hooks.OnFault(context.Background(), HookFailedCode); ferr != nil {
			m.log.Errorf("asset %s fault hook failed: %v", m.id, ferr)
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrHookFailed, op, err)
}
