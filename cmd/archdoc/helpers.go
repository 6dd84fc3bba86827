package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"archdoc/internal/config"
	"archdoc/internal/errors"
	"archdoc/internal/paths"
	"archdoc/internal/persist"
	"archdoc/internal/render"
	"archdoc/internal/slogutil"
	"archdoc/internal/solution"
	"archdoc/internal/storage"
)

// commandEnv is the configuration and logging of one invocation against
// one analyzed root.
type commandEnv struct {
	root    string
	cfg     *config.Config
	factory *slogutil.LoggerFactory
	logger  *slog.Logger
	closers []func() error
}

// newEnv loads .archdoc/config.json from the root of target and builds the logger.
func newEnv(target string) (*commandEnv, error) {
	root := solution.RootOf(target)
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, errors.NewArchError(errors.ConfigInvalid, "cannot load "+config.Path(root), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewArchError(errors.ConfigInvalid, "invalid "+config.Path(root), err)
	}

	factory := slogutil.NewLoggerFactory(root, cfg, verbosity, quiet)
	env := &commandEnv{
		root:    root,
		cfg:     cfg,
		factory: factory,
		logger:  factory.CLILogger(),
	}
	env.closers = append(env.closers, factory.Close)
	return env, nil
}

// Close releases the ledger and log files in reverse order of acquisition.
func (e *commandEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

func (e *commandEnv) plantUML() (*render.PlantUML, error) {
	return render.NewPlantUML(e.cfg.Render, e.logger)
}

func (e *commandEnv) onlineService() *render.OnlineService {
	timeout := time.Duration(e.cfg.Render.ProbeTimeoutMs) * time.Millisecond
	return render.NewOnlineService(e.cfg.Render.OnlineURL, timeout, e.logger)
}

// renderer returns nil when rendering is disabled in the configuration.
func (e *commandEnv) renderer() (*render.Renderer, error) {
	if !e.cfg.Render.Enabled {
		return nil, nil
	}
	local, err := e.plantUML()
	if err != nil {
		return nil, err
	}
	return render.NewRenderer(local, e.onlineService(), e.cfg.Render.Format, e.logger), nil
}

// ledger opens the run history. It returns nil when the ledger is disabled.
func (e *commandEnv) ledger() (*storage.RunStore, error) {
	if !e.cfg.Ledger.Enabled {
		return nil, nil
	}
	db, err := storage.Open(paths.GetLedgerPath(e.root), e.logger)
	if err != nil {
		return nil, errors.NewArchError(errors.LedgerFailed, "cannot open run ledger", err)
	}
	e.closers = append(e.closers, db.Close)
	return storage.NewRunStore(db), nil
}

// mirror returns nil when no mirror is configured.
func (e *commandEnv) mirror() (*persist.Mirror, error) {
	if !e.cfg.Mirror.Enabled() {
		return nil, nil
	}
	return persist.NewMirror(e.cfg.Mirror, e.logger)
}

// newContext returns a context cancelled on interrupt.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func targetArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return "."
}

// relPath shortens p to a root-relative, slash-separated path when possible.
func relPath(root, p string) string {
	if p == "" {
		return ""
	}
	rel, err := filepath.Rel(root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return p
	}
	return filepath.ToSlash(rel)
}
