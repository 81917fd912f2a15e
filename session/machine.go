package session

import (
	"fmt"
	"sync"
	"time"
)

// Transition is one published state change.
type Transition struct {
	From  State
	To    State
	Cause Cause
	At    time.Time
}

type subscriber struct {
	ch chan Transition
}

// Machine owns the current [State]. It is safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	state   State
	subs    map[*subscriber]struct{}
	now     func() time.Time
	pending Cause
}

// NewMachine returns a machine in the Initial state.
func NewMachine() *Machine {
	return &Machine{
		state: Initial,
		subs:  make(map[*subscriber]struct{}),
		now:   time.Now,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Resolve leaves Initial based on whether credentials are stored. Stored
// credentials are optimistically treated as Authenticated; a later 401 corrects it.
func (m *Machine) Resolve(hasCredentials bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Kind != KindInitial {
		return m.invalid("resolve")
	}
	if hasCredentials {
		m.transition(Authenticated, CauseStartup)
	} else {
		m.transition(Unauthenticated, CauseStartup)
	}
	return nil
}

// BeginAuth enters Authenticating for a login or register attempt.
func (m *Machine) BeginAuth(cause Cause) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state.Kind {
	case KindUnauthenticated, KindError:
		m.pending = cause
		m.transition(Authenticating, cause)
		return nil
	default:
		return m.invalid("begin auth")
	}
}

// AuthSucceeded completes an attempt started with BeginAuth.
func (m *Machine) AuthSucceeded() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Kind != KindAuthenticating {
		return m.invalid("auth succeeded")
	}
	m.transition(Authenticated, m.pending)
	return nil
}

// AuthFailed moves an in-progress attempt to Error(reason).
func (m *Machine) AuthFailed(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Kind != KindAuthenticating {
		return m.invalid("auth failed")
	}
	m.transition(Error(reason), m.pending)
	return nil
}

// SignOut moves any state to Unauthenticated. It reports false, and publishes
// nothing, when the machine is already Unauthenticated.
func (m *Machine) SignOut(cause Cause) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Kind == KindUnauthenticated {
		return false
	}
	m.transition(Unauthenticated, cause)
	return true
}

// Dismiss clears a displayed Error back to Unauthenticated.
func (m *Machine) Dismiss() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Kind != KindError {
		return m.invalid("dismiss")
	}
	m.transition(Unauthenticated, CauseDismissed)
	return nil
}

// Subscribe registers a listener. Transitions are delivered in order; when the
// buffer is full the oldest undelivered transition is dropped so the newest
// always arrives. cancel unregisters and closes the channel.
func (m *Machine) Subscribe(buffer int) (<-chan Transition, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	sub := &subscriber{ch: make(chan Transition, buffer)}

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, sub)
			close(sub.ch)
			m.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// transition must be called with mu held.
func (m *Machine) transition(to State, cause Cause) {
	t := Transition{From: m.state, To: to, Cause: cause, At: m.now()}
	m.state = to

	for sub := range m.subs {
		for {
			select {
			case sub.ch <- t:
			default:
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

func (m *Machine) invalid(event string) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, m.state)
}
