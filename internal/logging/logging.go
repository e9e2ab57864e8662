// Package logging configures Beach's single process-wide zerolog logger
// (spec §6) and the per-component filter vibetunnel's own
// VIBETUNNEL_DEBUG env switch inspired but did not itself implement as a
// structured-logging sub-logger tree.
package logging

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Options configures the process-wide logger.
type Options struct {
	Level   string // "trace", "debug", "info", "warn", "error"
	LogFile string // empty means stderr only
	// Filter maps component name to a minimum level, parsed from
	// BEACH_LOG_FILTER as a comma list of "component=level" pairs. A
	// component not listed uses Level.
	Filter map[string]zerolog.Level
}

// ParseFilter parses BEACH_LOG_FILTER's "component=level,component=level"
// syntax. Malformed entries are skipped rather than treated as fatal,
// since a typo in an env var should not prevent the host from starting.
func ParseFilter(raw string) map[string]zerolog.Level {
	out := make(map[string]zerolog.Level)
	if raw == "" {
		return out
	}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		lvl, err := zerolog.ParseLevel(strings.TrimSpace(kv[1]))
		if err != nil {
			continue
		}
		out[strings.TrimSpace(kv[0])] = lvl
	}
	return out
}

// base is the process-wide root logger, set by Init and read by
// Component.
var base zerolog.Logger
var filter map[string]zerolog.Level

// Init sets up the process-wide logger per Options. It must be called
// once, early in main, before any Component loggers are taken.
func Init(opts Options) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("logging: parse level %q: %w", opts.Level, err)
	}

	var out io.Writer = os.Stderr
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("logging: open log file: %w", err)
		}
		out = f
	}

	filter = opts.Filter
	global := level
	for _, lvl := range opts.Filter {
		if lvl < global {
			global = lvl
		}
	}
	zerolog.SetGlobalLevel(global)
	base = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return base, nil
}

// Component returns a child logger tagged with "component", honoring any
// per-component override from BEACH_LOG_FILTER.
func Component(name string) zerolog.Logger {
	l := base.With().Str("component", name).Logger()
	if lvl, ok := filter[name]; ok {
		l = l.Level(lvl)
	}
	return l
}

// ProfileEnabled reports whether BEACH_PROFILE requested the lightweight
// counters sink.
func ProfileEnabled() bool {
	v, _ := strconv.ParseBool(os.Getenv("BEACH_PROFILE"))
	return v
}
