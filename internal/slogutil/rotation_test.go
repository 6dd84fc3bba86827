package slogutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseRotationPolicy(t *testing.T) {
	tests := []struct {
		size    string
		backups int
		want    RotationPolicy
		wantErr bool
	}{
		{"", 3, RotationPolicy{}, false},
		{"100", 2, RotationPolicy{MaxBytes: 100, Backups: 2}, false},
		{"1KB", 1, RotationPolicy{MaxBytes: 1000, Backups: 1}, false},
		{"1MiB", 0, RotationPolicy{MaxBytes: 1 << 20}, false},
		{"10MB", -1, RotationPolicy{MaxBytes: 10_000_000}, false},
		{"huge", 3, RotationPolicy{}, true},
	}
	for _, tt := range tests {
		got, err := ParseRotationPolicy(tt.size, tt.backups)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRotationPolicy(%q) error = %v, wantErr %v", tt.size, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRotationPolicy(%q) = %+v, want %+v", tt.size, got, tt.want)
		}
	}
}

func TestRotatingFile_ShiftsBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archdoc.log")
	rf, err := OpenRotatingFile(path, RotationPolicy{MaxBytes: 10, Backups: 2})
	if err != nil {
		t.Fatalf("OpenRotatingFile() error = %v", err)
	}

	for _, line := range []string{"first---\n", "second--\n", "third---\n", "fourth--\n"} {
		if _, err := rf.Write([]byte(line)); err != nil {
			t.Fatalf("Write(%q) error = %v", line, err)
		}
	}
	if err := rf.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	want := map[string]string{
		path:        "fourth--\n",
		path + ".1": "third---\n",
		path + ".2": "second--\n",
	}
	for p, content := range want {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("reading %s: %v", filepath.Base(p), err)
		}
		if string(data) != content {
			t.Errorf("%s = %q, want %q", filepath.Base(p), data, content)
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("only two backups should be kept")
	}
}

func TestRotatingFile_NoBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archdoc.log")
	rf, err := OpenRotatingFile(path, RotationPolicy{MaxBytes: 8})
	if err != nil {
		t.Fatalf("OpenRotatingFile() error = %v", err)
	}
	_, _ = rf.Write([]byte("aaaaaa\n"))
	_, _ = rf.Write([]byte("bbbbbb\n"))
	_ = rf.Close()

	data, _ := os.ReadFile(path)
	if string(data) != "bbbbbb\n" {
		t.Errorf("log = %q, want only the latest record", data)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("no backup should be written")
	}
}

func TestRotatingFile_ResumesExistingSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archdoc.log")
	if err := os.WriteFile(path, []byte("previous\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rf, err := OpenRotatingFile(path, RotationPolicy{MaxBytes: 12, Backups: 1})
	if err != nil {
		t.Fatalf("OpenRotatingFile() error = %v", err)
	}
	_, _ = rf.Write([]byte("next\n"))
	_ = rf.Close()

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("existing content should have rotated: %v", err)
	}
	if string(backup) != "previous\n" {
		t.Errorf("backup = %q", backup)
	}
}

func TestRotatingFile_WriteAfterClose(t *testing.T) {
	rf, err := OpenRotatingFile(filepath.Join(t.TempDir(), "a.log"), RotationPolicy{MaxBytes: 100})
	if err != nil {
		t.Fatal(err)
	}
	_ = rf.Close()
	if _, err := rf.Write([]byte("late\n")); err == nil {
		t.Error("Write after Close should fail")
	}
}

func TestOpenLogFile_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".archdoc", "logs", "archdoc.log")
	w, err := OpenLogFile(path, RotationPolicy{})
	if err != nil {
		t.Fatalf("OpenLogFile() error = %v", err)
	}
	logger := NewLogger(w, 0)
	logger.Info("Model assembled", "containers", 4)
	_ = w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("Model assembled | containers=4")) {
		t.Errorf("log = %q", data)
	}
	if strings.Count(string(data), "\n") != 1 {
		t.Errorf("expected one line, got %q", data)
	}
}
