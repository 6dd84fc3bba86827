// Package persist writes diagram artifacts and keeps the architecture
// document section pointing at them.
package persist

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"archdoc/internal/diagram"
	"archdoc/internal/errors"
	"archdoc/internal/slogutil"
)

// Options controls where and how artifacts are written
type Options struct {
	// OutputDir receives one subdirectory per diagram
	OutputDir string
	// Document is the markdown file whose section is rewritten; empty disables it
	Document string
	Heading  string
	// Format is the expected image extension
	Format string
	// LargeArtifactBytes triggers a warning when an image exceeds it; 0 disables
	LargeArtifactBytes int64
	// Force re-renders even when the image is fresh
	Force bool
}

// Persister writes descriptions, tracks image freshness and updates the document.
type Persister struct {
	opts   Options
	logger *slog.Logger
}

// NewPersister creates a persister
func NewPersister(opts Options, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if opts.Format == "" {
		opts.Format = "svg"
	}
	if opts.Heading == "" {
		opts.Heading = "## Architecture Diagrams"
	}
	return &Persister{opts: opts, logger: logger}
}

// DiagramDir returns the directory holding a diagram's files
func (p *Persister) DiagramDir(name string) string {
	return filepath.Join(p.opts.OutputDir, name)
}

// WriteSource writes the description for d. The file is rewritten only
// when its bytes differ, so an unchanged model keeps the old modification
// time. The returned bool reports whether the file was written.
func (p *Persister) WriteSource(d *diagram.Diagram) (*diagram.Artifact, bool, error) {
	dir := p.DiagramDir(d.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, false, errors.NewArchError(errors.PersistenceFailed, "cannot create "+dir, err)
	}
	path := filepath.Join(dir, d.FileName())

	changed := true
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, d.Source) {
		changed = false
	}
	if changed {
		if err := writeFileAtomic(path, d.Source); err != nil {
			return nil, false, errors.NewArchError(errors.PersistenceFailed, "cannot write "+path, err)
		}
		p.logger.Info("Wrote diagram description", "path", path, "bytes", len(d.Source))
	} else {
		p.logger.Debug("Diagram description unchanged", "path", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, false, errors.NewArchError(errors.PersistenceFailed, "cannot stat "+path, err)
	}
	return &diagram.Artifact{
		Diagram:     d,
		Name:        d.Name,
		SourcePath:  path,
		SourceTime:  info.ModTime(),
		SourceBytes: info.Size(),
	}, changed, nil
}

// ImagePath returns where the rendered image of a lives
func (p *Persister) ImagePath(a *diagram.Artifact) string {
	ext := filepath.Ext(a.SourcePath)
	return a.SourcePath[:len(a.SourcePath)-len(ext)] + "." + p.opts.Format
}

// NeedsRender reports whether a must be rendered. An image that is not
// older than its description is current unless Force is set; a current
// image is recorded on a.
func (p *Persister) NeedsRender(a *diagram.Artifact) bool {
	if p.opts.Force {
		return true
	}
	info, err := os.Stat(p.ImagePath(a))
	if err != nil || info.Size() == 0 {
		return true
	}
	if info.ModTime().Before(a.SourceTime) {
		return true
	}
	a.RenderedPath = p.ImagePath(a)
	a.RenderedTime = info.ModTime()
	a.ImageBytes = info.Size()
	p.logger.Debug("Rendered image is current", "path", a.RenderedPath)
	return false
}

// RecordImage attaches a freshly rendered image to a and checks its size.
func (p *Persister) RecordImage(a *diagram.Artifact, imagePath string) ([]errors.Warning, error) {
	info, err := os.Stat(imagePath)
	if err != nil {
		return nil, errors.NewArchError(errors.PersistenceFailed, "rendered image vanished: "+imagePath, err)
	}
	a.RenderedPath = imagePath
	a.RenderedTime = info.ModTime()
	a.ImageBytes = info.Size()
	return p.CheckSize(a), nil
}

// CheckSize warns when the image exceeds the large-artifact threshold.
func (p *Persister) CheckSize(a *diagram.Artifact) []errors.Warning {
	limit := p.opts.LargeArtifactBytes
	if limit <= 0 || !a.Rendered() || a.ImageBytes <= limit {
		return nil
	}
	p.logger.Warn("Rendered image is large", "path", a.RenderedPath, "size", humanize.Bytes(uint64(a.ImageBytes)))
	return []errors.Warning{errors.NewWarning(errors.LargeArtifact, a.RenderedPath,
		"%s is %s, above the %s threshold; consider splitting the diagram",
		filepath.Base(a.RenderedPath), humanize.Bytes(uint64(a.ImageBytes)), humanize.Bytes(uint64(limit)))}
}

// UpdateDocument rewrites the diagrams section of the configured document.
// The file is created when absent and left untouched when nothing changed.
func (p *Persister) UpdateDocument(systemName, fingerprint string, artifacts []*diagram.Artifact) (bool, error) {
	if p.opts.Document == "" {
		return false, nil
	}

	doc := p.opts.Document
	var current string
	data, err := os.ReadFile(doc)
	switch {
	case err == nil:
		current = string(data)
	case os.IsNotExist(err):
		current = fmt.Sprintf("# %s Architecture\n", systemName)
	default:
		return false, errors.NewArchError(errors.PersistenceFailed, "cannot read "+doc, err)
	}

	heading, level := NormalizeHeading(p.opts.Heading)
	body := SectionBody(filepath.Dir(doc), p.opts.Format, fingerprint, level+1, artifacts)
	updated := ReplaceSection(current, heading, body)
	if updated == string(data) {
		p.logger.Debug("Document section unchanged", "path", doc)
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(doc), 0755); err != nil {
		return false, errors.NewArchError(errors.PersistenceFailed, "cannot create "+filepath.Dir(doc), err)
	}
	if err := writeFileAtomic(doc, []byte(updated)); err != nil {
		return false, errors.NewArchError(errors.PersistenceFailed, "cannot write "+doc, err)
	}
	p.logger.Info("Updated architecture document", "path", doc, "heading", p.opts.Heading)
	return true, nil
}

// writeFileAtomic writes through a temporary file and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
