package render

import (
	"context"
	"log/slog"

	"archdoc/internal/errors"
	"archdoc/internal/slogutil"
)

// Toolchain renders descriptions on this machine.
type Toolchain interface {
	// Ready verifies the executable and runtime, acquiring missing pieces.
	Ready(ctx context.Context) error
	// Render writes the image next to sourcePath and returns its path.
	Render(ctx context.Context, sourcePath, format string) (string, error)
}

// Service renders descriptions through a hosted endpoint.
type Service interface {
	Reachable(ctx context.Context) bool
	Render(ctx context.Context, sourcePath, format string) (string, error)
}

// Attempt records one tier that was tried
type Attempt struct {
	Tier  Tier   `json:"tier"`
	Error string `json:"error,omitempty"`
}

// Outcome is the final state of rendering one description.
type Outcome struct {
	State      State            `json:"state"`
	Tier       Tier             `json:"tier"`
	OutputPath string           `json:"outputPath,omitempty"`
	Attempts   []Attempt        `json:"attempts,omitempty"`
	Warnings   []errors.Warning `json:"warnings,omitempty"`
}

// Rendered reports whether an image was produced
func (o *Outcome) Rendered() bool {
	return o.State == StateRendered
}

// Renderer walks the tiers for each description. Readiness and
// reachability are probed at most once per Renderer.
type Renderer struct {
	local  Toolchain
	online Service
	format string
	logger *slog.Logger

	localReady *bool
	localErr   error
	reachable  *bool
}

// NewRenderer creates a renderer. Either tier may be nil.
func NewRenderer(local Toolchain, online Service, format string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if format == "" {
		format = "svg"
	}
	return &Renderer{
		local:  local,
		online: online,
		format: format,
		logger: logger,
	}
}

// Format returns the image format requested from the tiers
func (r *Renderer) Format() string {
	return r.format
}

// Render drives the state machine for sourcePath. It never fails: when no
// tier produces an image the outcome is SourceOnly with warnings attached.
func (r *Renderer) Render(ctx context.Context, sourcePath string) *Outcome {
	out := &Outcome{State: StateSourceGenerated}

	localReady := r.isLocalReady(ctx)
	tier := selectTier(localReady, !localReady && r.isReachable(ctx))
	if tier != TierLocal && r.localErr != nil {
		out.Warnings = append(out.Warnings,
			errors.WarningFromError(r.localErr, sourcePath))
	}

	for {
		next, err := transition(out.State, eventFor(tier))
		if err != nil {
			// Unreachable with the tables above; keep the description
			r.logger.Error("Render state machine rejected event", "state", string(out.State), "tier", string(tier), "error", err)
			out.State, out.Tier = StateSourceOnly, TierSourceOnly
			return out
		}
		out.State, out.Tier = next, tier
		if out.State.Terminal() {
			r.logger.Info("Rendering degraded to source only", "source", sourcePath, "attempts", len(out.Attempts))
			return out
		}

		path, err := r.run(ctx, tier, sourcePath)
		if err == nil {
			out.State, _ = transition(out.State, EventSuccess)
			out.OutputPath = path
			out.Attempts = append(out.Attempts, Attempt{Tier: tier})
			r.logger.Info("Rendered diagram", "source", sourcePath, "output", path, "tier", string(tier))
			return out
		}

		r.logger.Warn("Render tier failed", "tier", string(tier), "source", sourcePath, "error", err)
		out.Attempts = append(out.Attempts, Attempt{Tier: tier, Error: err.Error()})
		out.Warnings = append(out.Warnings, errors.NewWarning(errors.RenderFailed, sourcePath,
			"%s rendering failed: %v", tier, err))

		tier = fallbackTier(tier, r.isReachable(ctx))
	}
}

func (r *Renderer) run(ctx context.Context, tier Tier, sourcePath string) (string, error) {
	switch tier {
	case TierLocal:
		return r.local.Render(ctx, sourcePath, r.format)
	case TierOnline:
		return r.online.Render(ctx, sourcePath, r.format)
	}
	return "", errors.NewArchError(errors.InternalError, "no renderer for tier "+string(tier), nil)
}

func (r *Renderer) isLocalReady(ctx context.Context) bool {
	if r.localReady != nil {
		return *r.localReady
	}
	ready := false
	if r.local != nil {
		r.localErr = r.local.Ready(ctx)
		ready = r.localErr == nil
		if !ready {
			r.logger.Warn("Local render toolchain unavailable", "error", r.localErr)
		}
	}
	r.localReady = &ready
	return ready
}

func (r *Renderer) isReachable(ctx context.Context) bool {
	if r.reachable != nil {
		return *r.reachable
	}
	ok := r.online != nil && r.online.Reachable(ctx)
	r.logger.Debug("Render service probe", "reachable", ok)
	r.reachable = &ok
	return ok
}
