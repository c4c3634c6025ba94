package engine

import (
	"context"
	"fmt"
	"sync"

	"trackstyler/logger"
)

// SessionState is the lifecycle phase of the shared engine session.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InitializationError reports a failed engine load. The failure is terminal
// for the session; every later EnsureLoaded call returns the same error.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("engine initialization failed: %v", e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// Session owns the single shared engine instance. Loading is expensive, so
// the whole application shares one session; EnsureLoaded is idempotent and
// safe under concurrent callers.
type Session struct {
	capability Capability

	mu      sync.Mutex
	state   SessionState
	loadErr error
	done    chan struct{} // closed when a load attempt finishes

	subMu       sync.Mutex
	subscribers map[chan LogEntry]struct{}
}

// NewSession wraps an engine capability in an unloaded session.
func NewSession(capability Capability) *Session {
	return &Session{
		capability:  capability,
		state:       StateUninitialized,
		subscribers: make(map[chan LogEntry]struct{}),
	}
}

// State returns the current lifecycle phase.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Loaded reports whether the engine is ready for commands.
func (s *Session) Loaded() bool {
	return s.State() == StateLoaded
}

// Engine returns the underlying capability. Callers must hold a loaded
// session before issuing commands.
func (s *Session) Engine() Capability {
	return s.capability
}

// EnsureLoaded initializes the engine exactly once. Concurrent callers wait
// for the in-flight load rather than starting a second one. A failed load is
// not retried; the original error is returned to every caller.
func (s *Session) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateLoaded:
		s.mu.Unlock()
		return nil
	case StateFailed:
		err := s.loadErr
		s.mu.Unlock()
		return err
	case StateLoading:
		done := s.done
		s.mu.Unlock()
		select {
		case <-done:
			return s.loadResult()
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.state = StateLoading
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	logger.Info("loading engine session")
	err := s.capability.Load(ctx)

	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
		s.loadErr = &InitializationError{Err: err}
		logger.Error("engine session load failed", logger.ErrorField(err))
	} else {
		s.state = StateLoaded
		s.capability.OnLog(s.forwardLog)
		logger.Info("engine session loaded")
	}
	result := s.loadErr
	s.mu.Unlock()
	close(done)

	return result
}

func (s *Session) loadResult() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// forwardLog classifies engine output (error-channel lines as warnings) and
// fans it out to subscribers.
func (s *Session) forwardLog(entry LogEntry) {
	if entry.Stream == "stderr" {
		logger.Warn("engine log", logger.String("message", entry.Message))
	} else {
		logger.Info("engine log", logger.String("message", entry.Message))
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- entry:
		default:
			// Slow subscriber; drop rather than stall the engine.
		}
	}
}

// Subscribe returns a channel of engine log lines and a cancel function.
func (s *Session) Subscribe() (<-chan LogEntry, func()) {
	ch := make(chan LogEntry, 64)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		delete(s.subscribers, ch)
		s.subMu.Unlock()
	}
	return ch, cancel
}
