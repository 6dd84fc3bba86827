package slogutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/dustin/go-humanize"
)

// RotationPolicy bounds a log file. A zero MaxBytes disables rotation.
type RotationPolicy struct {
	MaxBytes int64
	Backups  int
}

// ParseRotationPolicy reads a human size such as "10MB" or "1MiB".
// An empty size disables rotation.
func ParseRotationPolicy(maxSize string, backups int) (RotationPolicy, error) {
	if maxSize == "" {
		return RotationPolicy{}, nil
	}
	n, err := humanize.ParseBytes(maxSize)
	if err != nil {
		return RotationPolicy{}, fmt.Errorf("invalid log size %q: %w", maxSize, err)
	}
	if backups < 0 {
		backups = 0
	}
	return RotationPolicy{MaxBytes: int64(n), Backups: backups}, nil
}

// OpenLogFile opens path for appending, creating parent directories, and
// wraps it in a RotatingFile when the policy asks for it.
func OpenLogFile(path string, policy RotationPolicy) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if policy.MaxBytes <= 0 {
		return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
	return OpenRotatingFile(path, policy)
}

// RotatingFile is a log file that is moved to path.1 once a write would take
// it past MaxBytes. Older backups shift to path.2, path.3 and so on; anything
// beyond Backups is removed.
type RotatingFile struct {
	mu     sync.Mutex
	path   string
	policy RotationPolicy
	file   *os.File
	size   int64
}

// OpenRotatingFile opens path and picks up its current size.
func OpenRotatingFile(path string, policy RotationPolicy) (*RotatingFile, error) {
	rf := &RotatingFile{path: path, policy: policy}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *RotatingFile) open() error {
	f, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	rf.file, rf.size = f, info.Size()
	return nil
}

func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, os.ErrClosed
	}
	// A record larger than the limit still goes into a fresh file.
	if rf.size > 0 && rf.size+int64(len(p)) > rf.policy.MaxBytes {
		if err := rf.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := rf.file.Write(p)
	rf.size += int64(n)
	return n, err
}

func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}

func (rf *RotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		return err
	}
	rf.file = nil

	if rf.policy.Backups == 0 {
		if err := os.Remove(rf.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return rf.open()
	}

	_ = os.Remove(rf.backup(rf.policy.Backups))
	for i := rf.policy.Backups - 1; i >= 1; i-- {
		_ = os.Rename(rf.backup(i), rf.backup(i+1))
	}
	if err := os.Rename(rf.path, rf.backup(1)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return rf.open()
}

func (rf *RotatingFile) backup(n int) string {
	return rf.path + "." + strconv.Itoa(n)
}
