// Package dogmalog installs a single process-wide structured logger: a
// slog.Logger writing to a file and optionally stdout, set up once via
// sync.Once. There is no separate no-op variant: code that runs without
// Init (tests included) logs through slog.Default().
package dogmalog

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	global     *slog.Logger
	globalFile io.Closer
	once       sync.Once
	mu         sync.RWMutex
)

// Init installs the process-wide logger. It is safe to call multiple
// times; only the first call takes effect.
func Init(filename string, logToStdout bool) error {
	var initErr error
	once.Do(func() {
		var writers []io.Writer
		var file *os.File
		if filename != "" {
			f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				initErr = err
				return
			}
			file = f
			writers = append(writers, f)
		}
		if logToStdout || filename == "" {
			writers = append(writers, os.Stdout)
		}
		handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{})
		mu.Lock()
		global = slog.New(handler).With("pid", os.Getpid())
		globalFile = file
		mu.Unlock()
	})
	return initErr
}

// Get returns the process-wide logger, or slog.Default() (which writes
// to stderr) if Init was never called; nothing is installed in that case.
func Get() *slog.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}
	return slog.Default()
}

// Close releases the underlying log file, if one was opened.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if globalFile != nil {
		return globalFile.Close()
	}
	return nil
}
