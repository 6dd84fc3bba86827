package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"archdoc/internal/errors"
	"archdoc/internal/slogutil"
)

// DefaultCacheSize bounds the parse cache when no size is configured.
const DefaultCacheSize = 512

// PackagesConfigName is the legacy per-project package list.
const PackagesConfigName = "packages.config"

type cacheEntry struct {
	modTime time.Time
	size    int64
	project *Project
}

// Reader parses manifests and memoizes results keyed by absolute path.
// An entry is reused only while the file's modification time and size are unchanged.
type Reader struct {
	cache  *lru.Cache[string, cacheEntry]
	logger *slog.Logger
}

// NewReader creates a reader with a bounded parse cache.
func NewReader(cacheSize int, logger *slog.Logger) (*Reader, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, cacheEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating manifest cache: %w", err)
	}
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Reader{cache: cache, logger: logger}, nil
}

// Read parses the manifest at path. Failures are *errors.ArchError with
// code ManifestUnreadable, ManifestMalformed or ManifestUnsupported.
func (r *Reader) Read(ctx context.Context, path string) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewArchError(errors.ManifestUnreadable, path, err)
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.NewArchError(errors.ManifestUnreadable, abs, err)
	}
	if info.IsDir() {
		return nil, errors.NewArchError(errors.ManifestUnreadable, abs+" is a directory", nil)
	}

	if entry, ok := r.cache.Get(abs); ok && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
		r.logger.Debug("Manifest cache hit", "path", abs)
		return entry.project, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, errors.NewArchError(errors.ManifestUnreadable, abs, err)
	}

	proj, err := parseProject(abs, data)
	if err != nil {
		return nil, err
	}

	if proj.Dialect == DialectLegacy {
		r.mergePackagesConfig(proj)
	}

	r.cache.Add(abs, cacheEntry{modTime: info.ModTime(), size: info.Size(), project: proj})
	r.logger.Debug("Parsed manifest",
		"path", abs,
		"dialect", string(proj.Dialect),
		"packages", len(proj.Packages),
		"references", len(proj.ProjectReferences),
	)
	return proj, nil
}

// mergePackagesConfig adds entries from a sibling packages.config.
// An unreadable or malformed file is logged and ignored.
func (r *Reader) mergePackagesConfig(proj *Project) {
	cfgPath := filepath.Join(proj.Dir(), PackagesConfigName)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("Cannot read packages.config", "path", cfgPath, "error", err.Error())
		}
		return
	}
	pkgs, err := parsePackagesConfig(data)
	if err != nil {
		r.logger.Warn("Malformed packages.config", "path", cfgPath, "error", err.Error())
		return
	}
	for _, p := range pkgs {
		proj.addPackage(p.Name, p.Version)
	}
}

// Len returns the number of cached manifests.
func (r *Reader) Len() int {
	return r.cache.Len()
}
