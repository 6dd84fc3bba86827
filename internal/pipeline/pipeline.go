// Package pipeline runs a documentation pass end to end: resolve, read,
// assemble, serialize, persist, render, record.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"archdoc/internal/architecture"
	"archdoc/internal/config"
	"archdoc/internal/diagram"
	"archdoc/internal/errors"
	"archdoc/internal/manifest"
	"archdoc/internal/paths"
	"archdoc/internal/persist"
	"archdoc/internal/render"
	"archdoc/internal/slogutil"
	"archdoc/internal/solution"
	"archdoc/internal/storage"
)

// Options are the per-invocation knobs of Generate.
type Options struct {
	Target string
	// Force re-renders images that are still current
	Force bool
	// NoRender writes descriptions only
	NoRender bool
	// OutputDir and Document override the configured locations
	OutputDir string
	Document  string
}

// Run carries the state of one pass. Each stage reads what earlier stages
// left and adds its own results.
type Run struct {
	ID         string    `json:"id"`
	Target     string    `json:"target"`
	Root       string    `json:"root"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	Resolution *solution.Result           `json:"-"`
	Projects   []*manifest.Project        `json:"-"`
	Model      *architecture.Model        `json:"-"`
	Diagrams   []*diagram.Diagram         `json:"-"`
	Artifacts  []*diagram.Artifact        `json:"artifacts"`
	Renders    map[string]*render.Outcome `json:"renders,omitempty"`

	// PreviousFingerprint is the model fingerprint of the last recorded
	// run for the same target, if any.
	PreviousFingerprint string `json:"previousFingerprint,omitempty"`

	DocumentUpdated bool               `json:"documentUpdated"`
	Mirrored        []string           `json:"mirrored,omitempty"`
	Warnings        []errors.Warning   `json:"warnings"`
	Outcome         storage.RunOutcome `json:"outcome"`
}

func (r *Run) warn(ws ...errors.Warning) {
	r.Warnings = append(r.Warnings, ws...)
}

// ModelChanged reports whether the model differs from the last recorded run.
// Without a previous run every model counts as changed.
func (r *Run) ModelChanged() bool {
	return r.Model == nil || r.PreviousFingerprint == "" || r.PreviousFingerprint != r.Model.Fingerprint()
}

// Rendered counts artifacts with a current image.
func (r *Run) Rendered() int {
	n := 0
	for _, a := range r.Artifacts {
		if a.Rendered() {
			n++
		}
	}
	return n
}

// Deps are the collaborators a pipeline needs besides its configuration.
// Renderer, Ledger and Mirror are optional.
type Deps struct {
	Reader   *manifest.Reader
	Renderer *render.Renderer
	Ledger   *storage.RunStore
	Mirror   *persist.Mirror
}

// Pipeline runs documentation passes for one repository configuration.
type Pipeline struct {
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
}

// New creates a pipeline. A missing manifest reader is created from cfg.
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if deps.Reader == nil {
		reader, err := manifest.NewReader(cfg.Model.ManifestCacheSize, logger)
		if err != nil {
			return nil, errors.NewArchError(errors.InternalError, "cannot create manifest reader", err)
		}
		deps.Reader = reader
	}
	return &Pipeline{cfg: cfg, deps: deps, logger: logger}, nil
}

// Model runs the extraction stages only and returns the run with its model.
func (p *Pipeline) Model(ctx context.Context, target string) (*Run, error) {
	run := p.newRun(target)
	if err := p.extract(ctx, run); err != nil {
		return run, err
	}
	run.FinishedAt = time.Now()
	return run, nil
}

// Generate runs a full pass. Degraded inputs and failed render tiers become
// warnings; only a failure to persist artifacts is returned as an error.
func (p *Pipeline) Generate(ctx context.Context, opts Options) (*Run, error) {
	run := p.newRun(opts.Target)
	p.logger.Info("Starting documentation run", "run_id", run.ID, "target", run.Target)

	if err := p.extract(ctx, run); err != nil {
		return run, p.fail(run, err)
	}

	p.comparePrevious(run)

	diagrams, err := diagram.Serialize(run.Model)
	if err != nil {
		return run, p.fail(run, errors.NewArchError(errors.InternalError, "cannot serialize model", err))
	}
	run.Diagrams = diagrams

	persister := p.persister(run.Root, opts)
	for _, d := range run.Diagrams {
		if err := ctx.Err(); err != nil {
			return run, p.fail(run, err)
		}
		if err := p.persistDiagram(ctx, run, persister, d, opts.NoRender); err != nil {
			return run, p.fail(run, err)
		}
	}

	updated, err := persister.UpdateDocument(run.Model.System().Name, run.Model.Fingerprint(), run.Artifacts)
	if err != nil {
		return run, p.fail(run, err)
	}
	run.DocumentUpdated = updated

	if p.deps.Mirror != nil {
		keys, warnings := p.deps.Mirror.Upload(ctx, run.ID, run.Artifacts)
		run.Mirrored = keys
		run.warn(warnings...)
	}

	run.Outcome = outcomeOf(run)
	run.FinishedAt = time.Now()
	p.record(run, "")

	p.logger.Info("Documentation run finished",
		"run_id", run.ID,
		"outcome", run.Outcome,
		"rendered", run.Rendered(),
		"diagrams", len(run.Artifacts),
		"warnings", len(run.Warnings),
		"duration", run.FinishedAt.Sub(run.StartedAt).String())
	return run, nil
}

func (p *Pipeline) newRun(target string) *Run {
	if target == "" {
		target = "."
	}
	return &Run{
		ID:        storage.NewRunID(),
		Target:    target,
		Root:      solution.RootOf(target),
		StartedAt: time.Now(),
		Renders:   make(map[string]*render.Outcome),
	}
}

// extract fills Resolution, Projects and Model.
func (p *Pipeline) extract(ctx context.Context, run *Run) error {
	res := solution.NewResolver(p.cfg.Discovery, p.logger).Resolve(ctx, run.Target)
	run.Resolution = res
	run.Root = res.Root
	run.warn(res.Warnings...)

	for _, path := range res.Manifests {
		if err := ctx.Err(); err != nil {
			return err
		}
		proj, err := p.deps.Reader.Read(ctx, path)
		if err != nil {
			p.logger.Warn("Skipping manifest", "path", path, "error", err.Error())
			run.warn(errors.WarningFromError(err, path))
			continue
		}
		run.Projects = append(run.Projects, proj)
	}

	var signatures []architecture.Signature
	if file := paths.ResolveRepoPath(run.Root, p.cfg.Model.SignaturesFile); file != "" {
		sigs, err := architecture.LoadSignatureFile(file)
		if err != nil {
			run.warn(errors.NewWarning(errors.ConfigInvalid, file, "ignoring signature file: %v", err))
		}
		signatures = sigs
	}

	decl, err := architecture.LoadDeclaration(paths.ResolveRepoPath(run.Root, p.cfg.Model.DeclarationFile))
	if err != nil {
		run.warn(errors.NewWarning(errors.ConfigInvalid, p.cfg.Model.DeclarationFile, "ignoring system declaration: %v", err))
		decl = nil
	}

	assembler := architecture.NewAssembler(architecture.AssemblerOptions{
		Signatures:      signatures,
		FollowLibraries: p.cfg.Model.FollowLibraryReferences,
	}, p.logger)
	model, warnings := assembler.Assemble(architecture.Input{
		Root:        run.Root,
		System:      architecture.ResolveIdentity(res.Name, p.cfg.System.Name, p.cfg.System.Description, decl),
		Projects:    run.Projects,
		Declaration: decl,
	})
	run.Model = model
	run.warn(warnings...)

	p.logger.Debug("Model assembled",
		"containers", len(model.Containers()),
		"externals", len(model.ExternalSystems()),
		"relationships", len(model.Relationships()),
		"fingerprint", model.ShortFingerprint())
	return nil
}

func (p *Pipeline) persister(root string, opts Options) *persist.Persister {
	outDir := opts.OutputDir
	if outDir == "" {
		outDir = p.cfg.Output.Dir
	}
	doc := opts.Document
	if doc == "" {
		doc = p.cfg.Output.Document
	}
	threshold, err := p.cfg.LargeArtifactBytes()
	if err != nil {
		p.logger.Warn("Ignoring large artifact threshold", "error", err.Error())
		threshold = 0
	}
	format := p.cfg.Render.Format
	if p.deps.Renderer != nil {
		format = p.deps.Renderer.Format()
	}
	return persist.NewPersister(persist.Options{
		OutputDir:          paths.ResolveRepoPath(root, outDir),
		Document:           paths.ResolveRepoPath(root, doc),
		Heading:            p.cfg.Output.SectionHeading,
		Format:             format,
		LargeArtifactBytes: threshold,
		Force:              opts.Force,
	}, p.logger)
}

func (p *Pipeline) persistDiagram(ctx context.Context, run *Run, persister *persist.Persister, d *diagram.Diagram, noRender bool) error {
	artifact, _, err := persister.WriteSource(d)
	if err != nil {
		return err
	}
	run.Artifacts = append(run.Artifacts, artifact)

	if !persister.NeedsRender(artifact) {
		run.warn(persister.CheckSize(artifact)...)
		return nil
	}
	if noRender || !p.cfg.Render.Enabled || p.deps.Renderer == nil {
		p.logger.Debug("Rendering skipped", "diagram", d.Name)
		return nil
	}

	outcome := p.deps.Renderer.Render(ctx, artifact.SourcePath)
	run.Renders[d.Name] = outcome
	run.warn(outcome.Warnings...)
	if !outcome.Rendered() {
		return nil
	}
	warnings, err := persister.RecordImage(artifact, outcome.OutputPath)
	if err != nil {
		return err
	}
	run.warn(warnings...)
	return nil
}

func (p *Pipeline) comparePrevious(run *Run) {
	if p.deps.Ledger == nil {
		return
	}
	prev, err := p.deps.Ledger.LastFingerprint(run.Target)
	if err != nil {
		p.logger.Debug("Cannot read previous run", "error", err)
		return
	}
	run.PreviousFingerprint = prev
	if !run.ModelChanged() {
		p.logger.Info("Model unchanged since last run", "fingerprint", run.Model.ShortFingerprint())
	}
}

// fail records a failed run and passes err through.
func (p *Pipeline) fail(run *Run, err error) error {
	run.Outcome = storage.OutcomeFailed
	run.FinishedAt = time.Now()
	p.logger.Error("Documentation run failed", "run_id", run.ID, "error", err.Error())
	p.record(run, err.Error())
	return err
}

// record appends the run to the ledger; ledger problems become warnings.
func (p *Pipeline) record(run *Run, errMsg string) {
	if p.deps.Ledger == nil {
		return
	}
	rec := &storage.RunRecord{
		ID:         run.ID,
		Target:     run.Target,
		Outcome:    run.Outcome,
		Warnings:   len(run.Warnings),
		Error:      errMsg,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
	var snapshot []byte
	if m := run.Model; m != nil {
		rec.SystemName = m.System().Name
		rec.Fingerprint = m.Fingerprint()
		rec.Containers = len(m.Containers())
		rec.Externals = len(m.ExternalSystems())
		rec.Relationships = len(m.Relationships())
		data, err := json.Marshal(m.Snapshot())
		if err == nil {
			snapshot = data
		}
	}

	if err := p.deps.Ledger.Save(rec, snapshot); err != nil {
		p.logger.Warn("Cannot record run", "run_id", run.ID, "error", err.Error())
		run.warn(errors.NewWarning(errors.LedgerFailed, run.ID, "run not recorded: %v", err))
		return
	}
	if deleted, err := p.deps.Ledger.Prune(p.cfg.Ledger.MaxRuns); err != nil {
		p.logger.Warn("Cannot prune ledger", "error", err.Error())
	} else if deleted > 0 {
		p.logger.Debug("Pruned ledger", "deleted", deleted)
	}
}

func outcomeOf(run *Run) storage.RunOutcome {
	rendered := run.Rendered()
	switch {
	case len(run.Artifacts) > 0 && rendered == len(run.Artifacts):
		return storage.OutcomeRendered
	case rendered > 0:
		return storage.OutcomePartial
	default:
		return storage.OutcomeSourceOnly
	}
}
