package slogutil

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestTextHandler_Line(t *testing.T) {
	var buf bytes.Buffer
	h := NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})

	r := slog.NewRecord(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), slog.LevelWarn, "Render tier failed", 0)
	r.AddAttrs(slog.String("tier", "local"), slog.Int("attempt", 2))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	want := "2026-03-01T10:00:00Z [warn] Render tier failed | tier=local attempt=2\n"
	if got := buf.String(); got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestTextHandler_Values(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"plain", slog.String("diagram", "containers"), "diagram=containers"},
		{"spaces quoted", slog.String("path", "My Docs/a.md"), `path="My Docs/a.md"`},
		{"empty quoted", slog.String("name", ""), `name=""`},
		{"error", slog.Any("error", errors.New("exit status 1")), `error="exit status 1"`},
		{"duration", slog.Duration("took", 1500*time.Millisecond), "took=1.5s"},
		{"bool", slog.Bool("force", true), "force=true"},
		{"group", slog.Group("model", slog.Int("containers", 4), slog.Int("externals", 2)), "model.containers=4 model.externals=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewLogger(&buf, slog.LevelInfo).LogAttrs(context.Background(), slog.LevelInfo, "msg", tt.attr)
			if !strings.HasSuffix(strings.TrimSuffix(buf.String(), "\n"), " | "+tt.want) {
				t.Errorf("got %q, want suffix %q", buf.String(), tt.want)
			}
		})
	}
}

func TestTextHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).With("run_id", "r1").WithGroup("render")
	logger.Info("Rendered", "tier", "local")
	logger.Info("Rendered again")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], "| run_id=r1 render.tier=local") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "[info] Rendered again | run_id=r1") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestTextHandler_NoAttrs(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, slog.LevelInfo).Info("done")
	if strings.Contains(buf.String(), "|") {
		t.Errorf("record without attributes should have no separator: %q", buf.String())
	}
}

func TestTextHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	for _, dropped := range []string{"debug message", "info message"} {
		if strings.Contains(out, dropped) {
			t.Errorf("%q should be filtered", dropped)
		}
	}
	for _, kept := range []string{"[warn] warn message", "[error] error message"} {
		if !strings.Contains(out, kept) {
			t.Errorf("missing %q in %q", kept, out)
		}
	}
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not enable any level")
	}
	logger.Error("dropped")
}

func TestTee(t *testing.T) {
	var console, file bytes.Buffer
	logger := slog.New(Tee(
		NewTextHandler(&console, &slog.HandlerOptions{Level: slog.LevelWarn}),
		NewTextHandler(&file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)).With("run_id", "r1")

	logger.Debug("resolving")
	logger.Warn("manifest skipped")

	if strings.Contains(console.String(), "resolving") {
		t.Error("console should drop debug records")
	}
	if !strings.Contains(console.String(), "manifest skipped | run_id=r1") {
		t.Errorf("console = %q", console.String())
	}
	if !strings.Contains(file.String(), "[debug] resolving | run_id=r1") {
		t.Errorf("file = %q", file.String())
	}
	if !strings.Contains(file.String(), "manifest skipped") {
		t.Errorf("file = %q", file.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"silent", LevelSilent},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestVerbosityLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		quiet     bool
		want      slog.Level
	}{
		{0, false, slog.LevelWarn},
		{1, false, slog.LevelInfo},
		{2, false, slog.LevelDebug},
		{4, false, slog.LevelDebug},
		{0, true, LevelSilent},
		{3, true, LevelSilent},
	}
	for _, tt := range tests {
		if got := VerbosityLevel(tt.verbosity, tt.quiet); got != tt.want {
			t.Errorf("VerbosityLevel(%d, %v) = %v, want %v", tt.verbosity, tt.quiet, got, tt.want)
		}
	}
}
