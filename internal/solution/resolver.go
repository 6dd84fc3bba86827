// Package solution turns a solution file or a directory into an ordered list
// of manifest paths.
package solution

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar"

	"archdoc/internal/config"
	"archdoc/internal/errors"
	"archdoc/internal/paths"
	"archdoc/internal/slogutil"
)

// projectLine matches `Project("{type}") = "Name", "rel\path.csproj", "{guid}"`.
var projectLine = regexp.MustCompile(`^Project\("\{[^}]+\}"\)\s*=\s*"([^"]*)"\s*,\s*"([^"]+)"`)

// Kind describes what the resolved target was.
type Kind string

const (
	KindSolution  Kind = "solution"
	KindManifest  Kind = "manifest"
	KindDirectory Kind = "directory"
)

// Result is the outcome of resolving a target. Manifests are absolute,
// cleaned and unique, in solution order or lexical walk order.
type Result struct {
	Target    string
	Kind      Kind
	Root      string
	Name      string
	Manifests []string
	Warnings  []errors.Warning
}

// Resolver discovers manifests.
type Resolver struct {
	extensions  []string
	ignoreDirs  map[string]bool
	ignoreGlobs []string
	logger      *slog.Logger
}

// NewResolver creates a resolver from discovery settings.
func NewResolver(cfg config.DiscoveryConfig, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	exts := make([]string, 0, len(cfg.ManifestExtensions))
	for _, e := range cfg.ManifestExtensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	ignore := make(map[string]bool, len(cfg.IgnoreDirs))
	for _, d := range cfg.IgnoreDirs {
		ignore[strings.ToLower(d)] = true
	}
	return &Resolver{
		extensions:  exts,
		ignoreDirs:  ignore,
		ignoreGlobs: cfg.IgnoreGlobs,
		logger:      logger,
	}
}

// Resolve never fails: problems become warnings and the manifest list may be empty.
func (r *Resolver) Resolve(ctx context.Context, target string) *Result {
	res := &Result{Target: target}

	abs, err := filepath.Abs(target)
	if err != nil {
		res.warn(errors.ResolutionFailed, target, "cannot resolve path: %v", err)
		return res
	}
	abs = filepath.Clean(abs)

	info, err := os.Stat(abs)
	if err != nil {
		res.warn(errors.ResolutionFailed, abs, "target does not exist")
		res.Root = filepath.Dir(abs)
		res.Name = baseName(abs)
		return res
	}

	switch {
	case info.IsDir():
		res.Kind = KindDirectory
		res.Root = abs
		res.Name = filepath.Base(abs)
		r.walk(ctx, abs, res)
	case isSolution(abs):
		res.Kind = KindSolution
		res.Root = filepath.Dir(abs)
		res.Name = baseName(abs)
		r.readSolution(abs, res)
	case r.isManifest(abs):
		res.Kind = KindManifest
		res.Root = filepath.Dir(abs)
		res.Name = baseName(abs)
		res.Manifests = []string{abs}
	default:
		res.Root = filepath.Dir(abs)
		res.Name = baseName(abs)
		res.warn(errors.ResolutionFailed, abs, "not a solution, manifest or directory")
	}

	if len(res.Manifests) == 0 && res.Kind != "" {
		res.warn(errors.ResolutionFailed, abs, "no project manifests found")
	}

	r.logger.Info("Resolved manifests",
		"target", abs,
		"kind", string(res.Kind),
		"manifests", len(res.Manifests),
		"warnings", len(res.Warnings),
	)
	return res
}

func (r *Resolver) readSolution(path string, res *Result) {
	data, err := os.ReadFile(path)
	if err != nil {
		res.warn(errors.ResolutionFailed, path, "cannot read solution: %v", err)
		return
	}

	var rels []string
	if strings.EqualFold(filepath.Ext(path), ".slnx") {
		rels, err = parseSlnx(data)
		if err != nil {
			res.warn(errors.ResolutionFailed, path, "malformed solution: %v", err)
			return
		}
	} else {
		rels = parseSln(data)
	}

	dir := filepath.Dir(path)
	seen := make(map[string]bool)
	for _, rel := range rels {
		// Solution folders and non-manifest items share the same line format
		if !r.isManifest(rel) {
			continue
		}
		manifest := paths.ResolveManifestReference(dir, rel)
		if seen[manifest] {
			continue
		}
		seen[manifest] = true

		if _, err := os.Stat(manifest); err != nil {
			res.warn(errors.ManifestUnreadable, manifest, "referenced by solution but missing")
			continue
		}
		if r.ignored(res.Root, manifest) {
			r.logger.Debug("Skipping ignored manifest", "path", manifest)
			continue
		}
		res.Manifests = append(res.Manifests, manifest)
	}
}

func (r *Resolver) walk(ctx context.Context, root string, res *Result) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			res.warn(errors.ResolutionFailed, path, "cannot read: %v", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && (r.ignoreDirs[strings.ToLower(d.Name())] || r.ignored(root, path)) {
				return fs.SkipDir
			}
			return nil
		}
		if r.isManifest(path) && !r.ignored(root, path) {
			res.Manifests = append(res.Manifests, path)
		}
		return nil
	})
	if err != nil {
		res.warn(errors.ResolutionFailed, root, "directory walk stopped: %v", err)
	}
}

// ignored reports whether path matches one of the configured globs,
// evaluated against the slash-separated path relative to root.
func (r *Resolver) ignored(root, path string) bool {
	if len(r.ignoreGlobs) == 0 {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range r.ignoreGlobs {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			r.logger.Warn("Invalid ignore glob", "pattern", pattern, "error", err.Error())
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func (r *Resolver) isManifest(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range r.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (res *Result) warn(code errors.ErrorCode, subject, format string, args ...interface{}) {
	res.Warnings = append(res.Warnings, errors.NewWarning(code, subject, format, args...))
}

// parseSln extracts the relative path of every Project line.
func parseSln(data []byte) []string {
	var rels []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if m := projectLine.FindStringSubmatch(line); m != nil {
			rels = append(rels, m[2])
		}
	}
	return rels
}

type xmlSlnx struct {
	Projects []xmlSlnxProject `xml:"Project"`
	Folders  []xmlSlnxFolder  `xml:"Folder"`
}

type xmlSlnxFolder struct {
	Projects []xmlSlnxProject `xml:"Project"`
	Folders  []xmlSlnxFolder  `xml:"Folder"`
}

type xmlSlnxProject struct {
	Path string `xml:"Path,attr"`
}

// parseSlnx extracts project paths from the XML solution format, including
// projects nested in solution folders.
func parseSlnx(data []byte) ([]string, error) {
	var raw xmlSlnx
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var rels []string
	for _, p := range raw.Projects {
		rels = append(rels, p.Path)
	}
	var visit func(folders []xmlSlnxFolder)
	visit = func(folders []xmlSlnxFolder) {
		for _, f := range folders {
			for _, p := range f.Projects {
				rels = append(rels, p.Path)
			}
			visit(f.Folders)
		}
	}
	visit(raw.Folders)
	return rels, nil
}

func isSolution(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sln", ".slnx":
		return true
	}
	return false
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// RootOf returns the directory a target is anchored in: the directory
// itself, or the directory containing a solution or manifest file.
func RootOf(target string) string {
	abs, err := filepath.Abs(target)
	if err != nil {
		return target
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return abs
	}
	return filepath.Dir(abs)
}
