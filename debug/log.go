package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	charmlog "github.com/charmbracelet/log"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
	logger  = newLogger(os.Stderr, charmlog.InfoLevel)
)

func newLogger(w io.Writer, level charmlog.Level) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           level,
		Prefix:          "piano",
	})
}

// Logger returns the shared logger used by every package.
func Logger() *charmlog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// SetOutput redirects logging (the TUI needs stderr kept quiet).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// Enable turns on debug-level logging to path.
// An empty path keeps the current writer and only lowers the level.
func Enable(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		file = f
		logger = newLogger(f, charmlog.DebugLevel)
	} else {
		logger.SetLevel(charmlog.DebugLevel)
	}
	enabled = true

	logger.Debug("=== Debug logging started ===", "category", "debug")
	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
		logger = newLogger(os.Stderr, charmlog.InfoLevel)
	}
	logger.SetLevel(charmlog.InfoLevel)
	enabled = false
}

// Log writes a debug message tagged with category
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	if !enabled {
		return
	}

	logger.Debug(fmt.Sprintf(format, args...), "category", category)
	if file != nil {
		file.Sync() // flush immediately so we see logs even on crash
	}
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
