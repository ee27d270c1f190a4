package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/richcarl/stdapp/internal/config"
	"github.com/richcarl/stdapp/internal/ctxlog"
	"github.com/richcarl/stdapp/internal/goal"
	"github.com/richcarl/stdapp/internal/toolchain"
	"github.com/richcarl/stdapp/internal/vcs"
)

// App encapsulates one build invocation: configuration, logger and the
// external collaborators (compiler toolchain, source control).
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *config.Config
	tc     toolchain.Toolchain
	vcs    vcs.VCS
}

// New constructs an App. Passing nil for tc or v selects the real
// collaborators (the configured compiler executable and git); tests inject
// fakes here.
func New(outW io.Writer, cfg *config.Config, tc toolchain.Toolchain, v vcs.VCS) *App {
	if tc == nil {
		tc = toolchain.NewErlc(cfg.Compiler, cfg.CompilerFlags)
	}
	if v == nil {
		v = vcs.NewGit(cfg.Root)
	}
	return &App{
		outW:   outW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		cfg:    cfg,
		tc:     tc,
		vcs:    v,
	}
}

// Run executes the given goal to completion.
func (a *App) Run(ctx context.Context, g goal.Goal) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("Goal dispatch.", "goal", g.String(), "package", a.cfg.Name)

	switch {
	case g.IsDestructive():
		return a.clean(ctx, g)
	case g == goal.Docs:
		return a.docs(ctx)
	case g == goal.Install:
		vsn, err := a.build(ctx, g)
		if err != nil {
			return err
		}
		return a.install(ctx, vsn)
	default:
		if a.cfg.Watch {
			return a.watch(ctx, g)
		}
		_, err := a.build(ctx, g)
		return err
	}
}
