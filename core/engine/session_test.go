package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type stubEngine struct {
	loadCalls int32
	loadErr   error
	callbacks []func(LogEntry)
}

func (s *stubEngine) Load(ctx context.Context) error {
	atomic.AddInt32(&s.loadCalls, 1)
	return s.loadErr
}

func (s *stubEngine) WriteFile(ctx context.Context, name string, data []byte) error { return nil }
func (s *stubEngine) ReadFile(ctx context.Context, name string) ([]byte, error)     { return nil, nil }
func (s *stubEngine) RemoveFile(ctx context.Context, name string) error             { return nil }
func (s *stubEngine) Exec(ctx context.Context, args []string) error                 { return nil }
func (s *stubEngine) Probe(ctx context.Context, args []string) error                { return nil }
func (s *stubEngine) OnLog(fn func(LogEntry))                                       { s.callbacks = append(s.callbacks, fn) }

func TestEnsureLoadedIdempotent(t *testing.T) {
	stub := &stubEngine{}
	session := NewSession(stub)

	if session.State() != StateUninitialized {
		t.Fatalf("initial state = %v, want uninitialized", session.State())
	}

	for i := 0; i < 3; i++ {
		if err := session.EnsureLoaded(context.Background()); err != nil {
			t.Fatalf("EnsureLoaded #%d returned error: %v", i, err)
		}
	}

	if got := atomic.LoadInt32(&stub.loadCalls); got != 1 {
		t.Errorf("engine Load called %d times, want 1", got)
	}
	if !session.Loaded() {
		t.Error("session not loaded after EnsureLoaded")
	}
	if len(stub.callbacks) != 1 {
		t.Errorf("log callback attached %d times, want 1", len(stub.callbacks))
	}
}

func TestEnsureLoadedConcurrent(t *testing.T) {
	stub := &stubEngine{}
	session := NewSession(stub)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := session.EnsureLoaded(context.Background()); err != nil {
				t.Errorf("EnsureLoaded returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&stub.loadCalls); got != 1 {
		t.Errorf("engine Load called %d times under concurrency, want 1", got)
	}
}

func TestEnsureLoadedFailureIsTerminal(t *testing.T) {
	stub := &stubEngine{loadErr: errors.New("wasm fetch failed")}
	session := NewSession(stub)

	err := session.EnsureLoaded(context.Background())
	if err == nil {
		t.Fatal("EnsureLoaded = nil error, want InitializationError")
	}
	var initErr *InitializationError
	if !errors.As(err, &initErr) {
		t.Fatalf("error type = %T, want *InitializationError", err)
	}

	// No automatic retry: the second call fails fast without reloading.
	err2 := session.EnsureLoaded(context.Background())
	if err2 == nil {
		t.Fatal("second EnsureLoaded = nil error, want the original failure")
	}
	if got := atomic.LoadInt32(&stub.loadCalls); got != 1 {
		t.Errorf("engine Load called %d times after failure, want 1", got)
	}
	if session.State() != StateFailed {
		t.Errorf("state = %v, want failed", session.State())
	}
}

func TestSubscribeReceivesForwardedLogs(t *testing.T) {
	stub := &stubEngine{}
	session := NewSession(stub)
	if err := session.EnsureLoaded(context.Background()); err != nil {
		t.Fatalf("EnsureLoaded returned error: %v", err)
	}

	ch, cancel := session.Subscribe()
	defer cancel()

	stub.callbacks[0](LogEntry{Stream: "stderr", Message: "size= 1024kB"})

	select {
	case entry := <-ch:
		if entry.Message != "size= 1024kB" || entry.Stream != "stderr" {
			t.Errorf("received %+v, want forwarded stderr entry", entry)
		}
	default:
		t.Error("no log entry forwarded to subscriber")
	}
}
