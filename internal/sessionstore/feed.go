package sessionstore

import (
	"context"
	"sync"

	"InterviewCoach/internal/session"
)

// Feed fans written snapshots out to in-process watchers
type Feed struct {
	mu       sync.RWMutex
	nextID   int
	watchers map[string]map[int]func(session.State)
}

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{watchers: make(map[string]map[int]func(session.State))}
}

// Add registers fn for id and returns a func that removes it
func (f *Feed) Add(id string, fn func(session.State)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	key := f.nextID
	if f.watchers[id] == nil {
		f.watchers[id] = make(map[int]func(session.State))
	}
	f.watchers[id][key] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.watchers[id], key)
			if len(f.watchers[id]) == 0 {
				delete(f.watchers, id)
			}
		})
	}
}

// Publish delivers a copy of state to every watcher of its session
func (f *Feed) Publish(state session.State) {
	f.mu.RLock()
	fns := make([]func(session.State), 0, len(f.watchers[state.SessionID]))
	for _, fn := range f.watchers[state.SessionID] {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(state.Clone())
	}
}

// Count returns the number of watchers registered for id
func (f *Feed) Count(id string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.watchers[id])
}

// BindContext arranges for stop to run when ctx is done and returns a stop
// func that is safe to call more than once.
func BindContext(ctx context.Context, stop func()) func() {
	done := make(chan struct{})
	var once sync.Once
	wrapped := func() {
		once.Do(func() {
			close(done)
			stop()
		})
	}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				wrapped()
			case <-done:
			}
		}()
	}
	return wrapped
}
