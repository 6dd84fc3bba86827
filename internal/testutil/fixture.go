// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// Fixture is a sample repository under testdata/fixtures.
type Fixture struct {
	Name string
	Root string
}

// Path joins elem onto the fixture root.
func (f *Fixture) Path(elem ...string) string {
	return filepath.Join(append([]string{f.Root}, elem...)...)
}

// LoadFixture returns the checked-in fixture. Tests must not write to it.
func LoadFixture(t *testing.T, name string) *Fixture {
	t.Helper()
	dir := filepath.Join(fixturesDir(t), name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("fixture %q not found under %s", name, fixturesDir(t))
	}
	return &Fixture{Name: name, Root: dir}
}

// CopyFixture returns a private copy of the fixture in a temp directory,
// for tests that write artifacts next to the manifests.
func CopyFixture(t *testing.T, name string) *Fixture {
	t.Helper()
	src := LoadFixture(t, name)
	dst := filepath.Join(t.TempDir(), name)

	if err := os.CopyFS(dst, os.DirFS(src.Root)); err != nil {
		t.Fatalf("copying fixture %q: %v", name, err)
	}
	return &Fixture{Name: name, Root: dst}
}

// WriteFiles writes files under root. Keys are slash-separated relative paths.
func WriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", rel, err)
		}
	}
}

// fixturesDir is <module root>/testdata/fixtures, located from this file.
func fixturesDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "testdata", "fixtures")
}
