package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gemdrop/internal/config"
)

var (
	sinkMu sync.RWMutex
	sink   io.Writer = os.Stdout
)

// Init configures the global zerolog logger. When cfg.File is set, log
// output goes to a size-limited file instead of stdout; the request-log
// middleware shares the same sink via Writer.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && cfg.Level != "" {
		level = parsed
	}

	var output io.Writer = os.Stdout
	if cfg.File != "" {
		if w, err := newSizeLimitedWriter(cfg.File, cfg.MaxMB); err == nil {
			output = w
		}
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	sinkMu.Lock()
	sink = output
	sinkMu.Unlock()

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// Writer returns the sink Init selected, for handlers that log outside
// zerolog (httplog's slog handler).
func Writer() io.Writer {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}
