package app

import (
	"context"
	"fmt"

	"github.com/richcarl/stdapp/internal/ctxlog"
	"github.com/richcarl/stdapp/internal/discover"
	"github.com/richcarl/stdapp/internal/goal"
	"github.com/richcarl/stdapp/internal/manifest"
	"github.com/richcarl/stdapp/internal/planner"
	"github.com/richcarl/stdapp/internal/version"
)

// build runs the full pipeline for a build or tests goal: discovery,
// incremental planning, parallel compilation, then descriptor synthesis.
// The package version is resolved exactly once here and returned, so
// later steps of the same invocation (install) reuse the string instead
// of re-running the resolution ladder against their own output.
func (a *App) build(ctx context.Context, g goal.Goal) (string, error) {
	logger := ctxlog.FromContext(ctx)

	vsn := version.New(a.cfg, a.vcs).Resolve(ctx)

	disc, err := discover.Scan(a.cfg)
	if err != nil {
		return "", fmt.Errorf("source discovery: %w", err)
	}
	logger.Debug("Discovery complete.",
		"sources", len(disc.Sources), "grammars", len(disc.Grammars), "tests", len(disc.Tests))

	pl := planner.New(a.cfg, a.tc)
	plan, err := pl.Build(ctx, g, disc)
	if err != nil {
		return "", err
	}
	if err := pl.Execute(ctx, plan); err != nil {
		return "", err
	}

	return vsn, a.synthesize(ctx, vsn, disc)
}

// synthesize regenerates the descriptor when its template or the source
// listing changed. It runs serialized, after the compile pool has
// drained, because it aggregates the whole module set.
func (a *App) synthesize(ctx context.Context, vsn string, disc *discover.Result) error {
	logger := ctxlog.FromContext(ctx)

	synth := manifest.New(a.cfg)

	created, err := synth.EnsureTemplate(ctx, vsn)
	if err != nil {
		return err
	}
	if !created && !synth.NeedsRegen() {
		logger.Debug("Descriptor up to date, skipping synthesis.")
		return nil
	}
	return synth.Synthesize(ctx, vsn, disc.Modules())
}
