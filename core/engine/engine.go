// Package engine wraps the external media-processing engine behind an
// explicit capability contract. All other components address engine storage
// by relative path names; only the adapter knows where the bytes live.
package engine

import "context"

// LogEntry is one line of engine output.
type LogEntry struct {
	Stream  string // "stdout" or "stderr"
	Message string
}

// Capability is the contract of the external processing engine: a private
// file storage plus command execution and introspection. Exec and Probe
// return an error on nonzero exit; the engine processes one command at a
// time.
type Capability interface {
	// Load initializes the engine with its required resources. Expensive;
	// called once per session.
	Load(ctx context.Context) error

	// WriteFile stores bytes into engine storage under a relative name.
	WriteFile(ctx context.Context, name string, data []byte) error

	// ReadFile reads bytes back from engine storage.
	ReadFile(ctx context.Context, name string) ([]byte, error)

	// RemoveFile deletes a name from engine storage. Missing names are not
	// an error.
	RemoveFile(ctx context.Context, name string) error

	// Exec runs one conversion command against engine storage.
	Exec(ctx context.Context, args []string) error

	// Probe runs one introspection command against engine storage.
	Probe(ctx context.Context, args []string) error

	// OnLog registers a callback receiving engine output lines.
	OnLog(fn func(LogEntry))
}
