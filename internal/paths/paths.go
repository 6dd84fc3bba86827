// Package paths locates archdoc state: the per-user tools cache, the
// per-repository .archdoc directory, and paths written inside manifests.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"archdoc/internal/config"
)

const (
	HomeEnvVar  = "ARCHDOC_HOME" // overrides ~/.archdoc
	DefaultHome = ".archdoc"
	ToolsSubdir = "tools" // downloaded plantuml.jar lives here
	LedgerFile  = "ledger.db"
)

// GetHome returns the per-user archdoc directory.
// ARCHDOC_HOME wins over ~/.archdoc.
func GetHome() (string, error) {
	if h := os.Getenv(HomeEnvVar); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultHome), nil
}

// GetToolsDir returns the shared cache directory for downloaded tools.
// A non-empty override is used as-is.
func GetToolsDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ToolsSubdir), nil
}

// EnsureDir creates dir (and parents) if missing and returns it.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetRepoDataDir returns <repoRoot>/.archdoc
func GetRepoDataDir(repoRoot string) string {
	return filepath.Join(repoRoot, config.DirName)
}

// GetLedgerPath returns <repoRoot>/.archdoc/ledger.db
func GetLedgerPath(repoRoot string) string {
	return filepath.Join(GetRepoDataDir(repoRoot), LedgerFile)
}

// ResolveRepoPath joins a configured path onto repoRoot unless it is absolute.
func ResolveRepoPath(repoRoot, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(repoRoot, p)
}

// ResolveManifestReference resolves a reference written inside a manifest
// (often with Windows separators) relative to the manifest's directory.
func ResolveManifestReference(manifestDir, include string) string {
	include = strings.TrimSpace(include)
	if include == "" {
		return ""
	}
	parts := strings.Split(strings.ReplaceAll(include, "\\", "/"), "/")
	joined := filepath.Join(parts...)
	if strings.HasPrefix(include, "/") {
		joined = string(filepath.Separator) + joined
	}
	if filepath.IsAbs(joined) {
		return filepath.Clean(joined)
	}
	return filepath.Clean(filepath.Join(manifestDir, joined))
}
