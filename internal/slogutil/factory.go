package slogutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"archdoc/internal/config"
)

// LoggerFactory builds the logger for a single CLI invocation.
// Precedence for the stderr level: CLI flags > config > default (warn).
// The optional log file always records at the configured level so that
// a quiet run still leaves a trace on disk.
type LoggerFactory struct {
	repoRoot  string
	config    *config.Config
	verbosity int
	quiet     bool
	stderr    io.Writer
	closers   []io.Closer
}

// NewLoggerFactory creates a new logger factory.
func NewLoggerFactory(repoRoot string, cfg *config.Config, verbosity int, quiet bool) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{
		repoRoot:  repoRoot,
		config:    cfg,
		verbosity: verbosity,
		quiet:     quiet,
		stderr:    os.Stderr,
	}
}

// WithStderr redirects console output, mainly for tests.
func (f *LoggerFactory) WithStderr(w io.Writer) *LoggerFactory {
	f.stderr = w
	return f
}

// CLILogger returns a logger writing to stderr and, when logging.file is set,
// to a rotating file. A file that cannot be opened degrades to stderr only.
func (f *LoggerFactory) CLILogger() *slog.Logger {
	console := NewTextHandler(f.stderr, &slog.HandlerOptions{Level: f.consoleLevel()})

	path := f.logFilePath()
	if path == "" {
		return slog.New(console)
	}

	w, err := f.openLogFile(path)
	if err != nil {
		logger := slog.New(console)
		logger.Warn("Log file unavailable", "path", path, "error", err)
		return logger
	}
	f.closers = append(f.closers, w)

	file := NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(f.config.Logging.Level)})
	return slog.New(Tee(console, file))
}

// consoleLevel applies CLI flags first and falls back to the configured level.
func (f *LoggerFactory) consoleLevel() slog.Level {
	if f.quiet || f.verbosity > 0 {
		return VerbosityLevel(f.verbosity, f.quiet)
	}
	if lvl := ParseLevel(f.config.Logging.Level); lvl != slog.LevelInfo {
		return lvl
	}
	return slog.LevelWarn
}

// logFilePath resolves logging.file against the repository root.
func (f *LoggerFactory) logFilePath() string {
	p := f.config.Logging.File
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) && f.repoRoot != "" {
		p = filepath.Join(f.repoRoot, p)
	}
	return p
}

func (f *LoggerFactory) openLogFile(path string) (io.WriteCloser, error) {
	policy, err := ParseRotationPolicy(f.config.Logging.MaxSize, f.config.Logging.MaxBackups)
	if err != nil {
		return nil, err
	}
	return OpenLogFile(path, policy)
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
