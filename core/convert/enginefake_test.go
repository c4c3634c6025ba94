package convert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"trackstyler/core/engine"
)

// fakeEngine is an in-memory engine capability recording every call, used to
// assert on the exact command plans the pipeline issues.
type fakeEngine struct {
	mu     sync.Mutex
	files  map[string][]byte
	writes []string
	execs  [][]string
	probes [][]string

	writeDelay  time.Duration
	writeErr    func(name string) error
	execErr     func(args []string) error
	probeErr    error
	probeOutput []byte            // written to the "-o" target of Probe
	execOutput  map[string][]byte // by output name (last arg); default "encoded"
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		files:      make(map[string][]byte),
		execOutput: make(map[string][]byte),
	}
}

func (f *fakeEngine) Load(ctx context.Context) error { return nil }

func (f *fakeEngine) WriteFile(ctx context.Context, name string, data []byte) error {
	if f.writeDelay > 0 {
		time.Sleep(f.writeDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		if err := f.writeErr(name); err != nil {
			return err
		}
	}
	f.files[name] = data
	f.writes = append(f.writes, name)
	return nil
}

func (f *fakeEngine) ReadFile(ctx context.Context, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("no such file %q", name)
	}
	return data, nil
}

func (f *fakeEngine) RemoveFile(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
	return nil
}

func (f *fakeEngine) Exec(ctx context.Context, args []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, append([]string(nil), args...))
	if f.execErr != nil {
		if err := f.execErr(args); err != nil {
			return err
		}
	}
	if len(args) > 0 {
		outName := args[len(args)-1]
		data, ok := f.execOutput[outName]
		if !ok {
			data = []byte("encoded")
		}
		f.files[outName] = data
	}
	return nil
}

func (f *fakeEngine) Probe(ctx context.Context, args []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes = append(f.probes, append([]string(nil), args...))
	if f.probeErr != nil {
		return f.probeErr
	}
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-o" {
			f.files[args[i+1]] = f.probeOutput
		}
	}
	return nil
}

func (f *fakeEngine) OnLog(fn func(engine.LogEntry)) {}

func (f *fakeEngine) writeCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, w := range f.writes {
		if w == name {
			count++
		}
	}
	return count
}

func (f *fakeEngine) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.execs)
}

func (f *fakeEngine) lastExec() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.execs) == 0 {
		return nil
	}
	return f.execs[len(f.execs)-1]
}

// hasPair reports whether flag is immediately followed by value in args.
func hasPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

// hasFlag reports whether args contains the exact token.
func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// loadedSession returns a session over the fake, already loaded.
func loadedSession(f *fakeEngine) *engine.Session {
	s := engine.NewSession(f)
	if err := s.EnsureLoaded(context.Background()); err != nil {
		panic(err)
	}
	return s
}
