// Package statemachine serializes every update to a session document
// through one actor goroutine per session. The shared store itself has no
// isolation; funneling read-merge-write through the actor removes the
// last-write-wins race between concurrent callers in this process.
package statemachine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"InterviewCoach/internal/session"
	"InterviewCoach/internal/sessionstore"
)

var (
	// ErrInvalidTransition is returned when a transition helper is used from the wrong status
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrSessionBusy is returned when an answer is submitted mid-turn
	ErrSessionBusy = errors.New("session is busy")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("state machine closed")
)

const defaultIdleTimeout = 5 * time.Minute

// Machine owns the turn-taking state of every session
type Machine struct {
	store       sessionstore.Store
	logger      *slog.Logger
	idleTimeout time.Duration
	now         func() time.Time

	mu     sync.Mutex
	actors map[string]*actor
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Machine
type Option func(*Machine)

// WithIdleTimeout sets how long a session actor lingers without work
func WithIdleTimeout(d time.Duration) Option {
	return func(m *Machine) { m.idleTimeout = d }
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// New creates a state machine over store
func New(store sessionstore.Store, logger *slog.Logger, opts ...Option) *Machine {
	m := &Machine{
		store:       store,
		logger:      logger,
		idleTimeout: defaultIdleTimeout,
		now:         time.Now,
		actors:      make(map[string]*actor),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type op struct {
	run    func(ctx context.Context) (session.State, error)
	ctx    context.Context
	result chan opResult
}

type opResult struct {
	state session.State
	err   error
}

type actor struct {
	id      string
	ops     chan op
	stop    chan struct{}
	pending int
}

// do runs fn on the session's actor and waits for its result
func (m *Machine) do(ctx context.Context, id string, fn func(ctx context.Context) (session.State, error)) (session.State, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return session.State{}, ErrClosed
	}
	a, ok := m.actors[id]
	if !ok {
		a = &actor{id: id, ops: make(chan op), stop: make(chan struct{})}
		m.actors[id] = a
		m.wg.Add(1)
		go m.loop(a)
	}
	a.pending++
	m.mu.Unlock()

	o := op{run: fn, ctx: ctx, result: make(chan opResult, 1)}
	select {
	case a.ops <- o:
	case <-a.stop:
		m.done(a)
		return session.State{}, ErrClosed
	case <-ctx.Done():
		m.done(a)
		return session.State{}, ctx.Err()
	}

	select {
	case r := <-o.result:
		return r.state, r.err
	case <-ctx.Done():
		return session.State{}, ctx.Err()
	}
}

// done releases a pending slot for work that never reached the actor
func (m *Machine) done(a *actor) {
	m.mu.Lock()
	a.pending--
	m.mu.Unlock()
}

func (m *Machine) loop(a *actor) {
	defer m.wg.Done()

	timer := time.NewTimer(m.idleTimeout)
	defer timer.Stop()

	for {
		select {
		case o := <-a.ops:
			state, err := o.run(o.ctx)
			o.result <- opResult{state: state, err: err}

			m.mu.Lock()
			a.pending--
			m.mu.Unlock()

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(m.idleTimeout)

		case <-timer.C:
			m.mu.Lock()
			if a.pending == 0 {
				delete(m.actors, a.id)
				m.mu.Unlock()
				m.logger.Debug("session actor retired", "session_id", a.id)
				return
			}
			m.mu.Unlock()
			timer.Reset(m.idleTimeout)

		case <-a.stop:
			return
		}
	}
}

// Close stops every session actor. In-flight operations finish first.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for id, a := range m.actors {
		close(a.stop)
		delete(m.actors, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Create establishes a new idle session. The id must be unique.
func (m *Machine) Create(ctx context.Context, id, owner string) (session.State, error) {
	if id == "" {
		return session.State{}, fmt.Errorf("session id is required")
	}
	return m.do(ctx, id, func(ctx context.Context) (session.State, error) {
		now := m.now()
		state := session.State{
			SessionID: id,
			Owner:     owner,
			Status:    session.StatusIdle,
			History:   []session.Message{},
			Avatar:    session.NeutralAvatar(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.store.Create(ctx, state); err != nil {
			return session.State{}, err
		}
		m.logger.Info("created session", "session_id", id, "owner", owner)
		return state, nil
	})
}

// Read returns the current snapshot
func (m *Machine) Read(ctx context.Context, id string) (session.State, error) {
	return m.do(ctx, id, func(ctx context.Context) (session.State, error) {
		return m.store.Get(ctx, id)
	})
}

// Patch shallow-merges p over the current snapshot and writes the result back
func (m *Machine) Patch(ctx context.Context, id string, p session.Patch) (session.State, error) {
	return m.Update(ctx, id, func(session.State) (session.Patch, error) {
		return p, nil
	})
}

// Update computes a patch from the current snapshot and applies it, all
// inside the session's actor
func (m *Machine) Update(ctx context.Context, id string, fn func(session.State) (session.Patch, error)) (session.State, error) {
	return m.do(ctx, id, func(ctx context.Context) (session.State, error) {
		current, err := m.store.Get(ctx, id)
		if err != nil {
			return session.State{}, err
		}
		p, err := fn(current)
		if err != nil {
			return session.State{}, err
		}
		if p.Empty() {
			return current, nil
		}
		next := p.Apply(current)
		next.UpdatedAt = m.now()
		if err := m.store.Put(ctx, next); err != nil {
			return session.State{}, err
		}
		if p.Status != nil && *p.Status != current.Status {
			m.logger.Info("session transition", "session_id", id, "from", current.Status, "to", next.Status)
		}
		return next, nil
	})
}

// Subscribe registers fn for every change to the session and delivers the
// current snapshot immediately when one exists. Registration and the first
// read run on the session's actor; if a change still reaches fn before the
// first snapshot does, that snapshot is dropped as stale. fn may run on the
// session's actor and must not call back into the Machine synchronously.
func (m *Machine) Subscribe(ctx context.Context, id string, fn func(session.State)) (func(), error) {
	g := &gate{fn: fn}
	var unsubscribe func()
	_, err := m.do(ctx, id, func(ctx context.Context) (session.State, error) {
		stop, err := m.store.Watch(ctx, id, g.change)
		if err != nil {
			return session.State{}, fmt.Errorf("failed to watch session: %w", err)
		}

		current, err := m.store.Get(ctx, id)
		switch {
		case err == nil:
			g.initial(current)
		case errors.Is(err, sessionstore.ErrNotFound):
		default:
			stop()
			return session.State{}, err
		}
		unsubscribe = stop
		return current, nil
	})
	if err != nil {
		return nil, err
	}
	return unsubscribe, nil
}

// gate orders a subscriber's first snapshot against live changes
type gate struct {
	mu      sync.Mutex
	fn      func(session.State)
	started bool
}

func (g *gate) change(s session.State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.started = true
	g.fn(s)
}

func (g *gate) initial(s session.State) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return
	}
	g.started = true
	g.fn(s)
}
