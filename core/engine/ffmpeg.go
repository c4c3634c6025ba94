package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// FFmpeg implements Capability by shelling out to native ffmpeg/ffprobe
// binaries. A dedicated working directory plays the role of the engine's
// private file storage: commands run inside it and reference files by their
// relative names only.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	workDir     string

	mu        sync.Mutex
	callbacks []func(LogEntry)
}

// NewFFmpeg creates an adapter around the given binaries and work directory.
func NewFFmpeg(ffmpegPath, ffprobePath, workDir string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		workDir:     workDir,
	}
}

// Load verifies the binaries are runnable and creates the work directory.
func (f *FFmpeg) Load(ctx context.Context) error {
	if _, err := exec.LookPath(f.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg binary not found at %q: %w", f.ffmpegPath, err)
	}
	if _, err := exec.LookPath(f.ffprobePath); err != nil {
		return fmt.Errorf("ffprobe binary not found at %q: %w", f.ffprobePath, err)
	}
	if err := os.MkdirAll(f.workDir, 0755); err != nil {
		return fmt.Errorf("failed to create engine work directory %s: %w", f.workDir, err)
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, "-version")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not runnable: %w", err)
	}
	if line, _, err := bufio.NewReader(&out).ReadLine(); err == nil {
		f.emit(LogEntry{Stream: "stdout", Message: string(line)})
	}
	return nil
}

// WriteFile stores bytes under a relative name inside the work directory.
func (f *FFmpeg) WriteFile(_ context.Context, name string, data []byte) error {
	path, err := f.resolve(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile reads a relative name back from the work directory.
func (f *FFmpeg) ReadFile(_ context.Context, name string) ([]byte, error) {
	path, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// RemoveFile deletes a relative name; missing files are ignored.
func (f *FFmpeg) RemoveFile(_ context.Context, name string) error {
	path, err := f.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exec runs ffmpeg with the given args inside the work directory. "-y" is
// prepended so repeated conversions overwrite their previous outputs, as the
// engine's storage semantics require.
func (f *FFmpeg) Exec(ctx context.Context, args []string) error {
	full := append([]string{"-hide_banner", "-nostdin", "-y"}, args...)
	cmd := exec.CommandContext(ctx, f.ffmpegPath, full...)
	cmd.Dir = f.workDir

	var stderr bytes.Buffer
	stdoutLines := f.logWriter("stdout")
	stderrLines := f.logWriter("stderr")
	cmd.Stdout = stdoutLines
	cmd.Stderr = io.MultiWriter(&stderr, stderrLines)

	err := cmd.Run()
	stdoutLines.flush()
	stderrLines.flush()
	if err != nil {
		return fmt.Errorf("ffmpeg execution failed: %w\nFFmpeg Error: %s", err, tail(stderr.String()))
	}
	return nil
}

// Probe runs ffprobe with the given args inside the work directory. Older
// ffprobe releases have no "-o" flag; the pair is intercepted here and the
// captured stdout is written to that name, so callers can treat probe output
// as a regular engine file.
func (f *FFmpeg) Probe(ctx context.Context, args []string) error {
	outName := ""
	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if args[i] == "-o" && i+1 < len(args) {
			outName = args[i+1]
			i++
			continue
		}
		filtered = append(filtered, args[i])
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, filtered...)
	cmd.Dir = f.workDir

	var out, stderr bytes.Buffer
	stderrLines := f.logWriter("stderr")
	cmd.Stdout = &out
	cmd.Stderr = io.MultiWriter(&stderr, stderrLines)

	err := cmd.Run()
	stderrLines.flush()
	if err != nil {
		return fmt.Errorf("ffprobe execution failed: %w\nFFprobe Error: %s", err, tail(stderr.String()))
	}

	if outName != "" {
		return f.WriteFile(ctx, outName, out.Bytes())
	}
	f.emit(LogEntry{Stream: "stdout", Message: out.String()})
	return nil
}

// OnLog registers a callback for engine output lines.
func (f *FFmpeg) OnLog(fn func(LogEntry)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, fn)
}

func (f *FFmpeg) emit(entry LogEntry) {
	f.mu.Lock()
	callbacks := make([]func(LogEntry), len(f.callbacks))
	copy(callbacks, f.callbacks)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(entry)
	}
}

// resolve maps a relative storage name onto the work directory, rejecting
// names that would escape it.
func (f *FFmpeg) resolve(name string) (string, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid engine storage name %q", name)
	}
	return filepath.Join(f.workDir, cleaned), nil
}

// logWriter returns a writer that emits each complete line as a LogEntry.
// Callers flush it after the command exits so a final line without a
// trailing newline is not lost.
func (f *FFmpeg) logWriter(stream string) *lineWriter {
	return &lineWriter{emit: func(line string) {
		f.emit(LogEntry{Stream: stream, Message: line})
	}}
}

type lineWriter struct {
	emit func(string)
	buf  bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line stays buffered until the next write.
			w.buf.WriteString(line)
			break
		}
		if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
			w.emit(trimmed)
		}
	}
	return len(p), nil
}

// flush emits whatever is still buffered as a final line.
func (w *lineWriter) flush() {
	if trimmed := strings.TrimRight(w.buf.String(), "\r\n"); trimmed != "" {
		w.emit(trimmed)
	}
	w.buf.Reset()
}

// tail keeps error messages readable when ffmpeg dumps a long transcript.
func tail(s string) string {
	const maxLen = 2048
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		return "..." + s[len(s)-maxLen:]
	}
	return s
}
