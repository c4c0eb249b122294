// Package matolog wraps zerolog with the framework's own log sink: a
// dedicated writer goroutine that drains a buffered channel of log lines
// to disk at <log_path>/<epoch>_<suffix> and keeps <log_path>/last
// pointed at the newest file, per §6. It mirrors the teacher's
// logging.Writer shape (an io.Writer zerolog writes JSON lines into,
// backed by a channel-draining goroutine) adapted to a plain file sink
// instead of a database-backed log service.
package matolog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mato-framework/mato/internal/matoutil"
)

// Writer is an io.Writer zerolog writes its JSON-line output into. It
// fans every write to a rotating log file under logPath and, when
// console mirroring is enabled, to stderr.
type Writer struct {
	logPath        string
	consoleEnabled bool
	console        io.Writer

	lines chan []byte
	done  chan struct{}

	mu     sync.Mutex
	file   *os.File
	closed atomic.Bool
}

// NewWriter opens (creating if needed) logPath and starts the drain
// goroutine. consoleEnabled additionally mirrors every line to a pretty
// zerolog.ConsoleWriter on stderr, matching the teacher's
// consoleEnabled/format toggle.
func NewWriter(logPath string, bufferSize int, consoleEnabled bool) (*Writer, error) {
	if err := os.MkdirAll(logPath, 0o755); err != nil {
		return nil, fmt.Errorf("mato: creating log path %q: %w", logPath, err)
	}
	if bufferSize <= 0 {
		bufferSize = 4096
	}

	w := &Writer{
		logPath:        logPath,
		consoleEnabled: consoleEnabled,
		lines:          make(chan []byte, bufferSize),
		done:           make(chan struct{}),
	}
	if consoleEnabled {
		w.console = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	file, suffix, err := rotateFile(logPath)
	if err != nil {
		return nil, err
	}
	w.file = file
	if err := relinkLast(logPath, suffix); err != nil {
		_ = file.Close()
		return nil, err
	}

	go w.run()
	return w, nil
}

// Write implements io.Writer. It never blocks the caller on disk I/O: the
// line is copied and handed to the drain goroutine's channel, dropped
// with a best-effort stderr notice if the channel is full.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed.Load() {
		return len(p), nil
	}
	line := matoutil.CopyBytes(p)
	select {
	case w.lines <- line:
	default:
		fmt.Fprintln(os.Stderr, "mato: log writer buffer full, dropping line")
	}
	return len(p), nil
}

func (w *Writer) run() {
	for {
		select {
		case line := <-w.lines:
			w.writeLine(line)
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case line := <-w.lines:
			w.writeLine(line)
		default:
			return
		}
	}
}

func (w *Writer) writeLine(line []byte) {
	if w.consoleEnabled && w.console != nil {
		_, _ = w.console.Write(line)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		_, _ = w.file.Write(line)
	}
}

// Close stops the drain goroutine after flushing whatever is queued, and
// closes the underlying file.
func (w *Writer) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	close(w.done)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// rotateFile creates a new <epoch>_<suffix> log file under logPath.
func rotateFile(logPath string) (*os.File, string, error) {
	suffix := fmt.Sprintf("%d_%d", time.Now().Unix(), os.Getpid())
	name := filepath.Join(logPath, suffix)
	file, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("mato: creating log file %q: %w", name, err)
	}
	return file, suffix, nil
}

// relinkLast atomically repoints <log_path>/last at the newest log file
// by creating a new symlink under a temp name and renaming it over the
// old one, so concurrent readers never observe a missing symlink.
func relinkLast(logPath, suffix string) error {
	link := filepath.Join(logPath, "last")
	tmp := link + ".tmp"
	_ = os.Remove(tmp)
	if err := os.Symlink(suffix, tmp); err != nil {
		return fmt.Errorf("mato: creating last symlink: %w", err)
	}
	if err := os.Rename(tmp, link); err != nil {
		return fmt.Errorf("mato: repointing last symlink: %w", err)
	}
	return nil
}
