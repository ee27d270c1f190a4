// Package planner turns discovery output and persisted dependency records
// into an incremental build plan and executes it.
//
// The planner aggregates every per-source dependency record into one
// object-target graph, asks the staleness oracle which targets are out of
// date, propagates staleness through the inter-module edges, and drains
// the stale subset through the concurrent executor. Dependency records are
// never read for destructive cleanup goals; the planner refuses to plan
// them at all.
package planner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/richcarl/stdapp/internal/config"
	"github.com/richcarl/stdapp/internal/ctxlog"
	"github.com/richcarl/stdapp/internal/dag"
	"github.com/richcarl/stdapp/internal/deprecord"
	"github.com/richcarl/stdapp/internal/depscan"
	"github.com/richcarl/stdapp/internal/discover"
	"github.com/richcarl/stdapp/internal/goal"
	"github.com/richcarl/stdapp/internal/toolchain"
)

// unit is one schedulable compilation: a source file and its target.
type unit struct {
	src    discover.SourceFile
	target string
	outDir string
	test   bool
	// grammar units compile a grammar file into a generated source and
	// carry no dependency record.
	grammar bool
}

// Plan is a ready-to-execute incremental build for one package.
type Plan struct {
	Graph *dag.Graph
	units map[string]unit
	stale map[string]bool
}

// StaleCount returns how many targets the plan will rebuild.
func (p *Plan) StaleCount() int { return len(p.stale) }

// IsStale reports whether the given target is scheduled for rebuild.
func (p *Plan) IsStale(target string) bool { return p.stale[target] }

// Planner builds and executes incremental plans.
type Planner struct {
	cfg       *config.Config
	tc        toolchain.Toolchain
	oracle    StalenessOracle
	extractor *depscan.Extractor
}

// New returns a Planner with the default timestamp staleness oracle.
func New(cfg *config.Config, tc toolchain.Toolchain) *Planner {
	return &Planner{
		cfg:       cfg,
		tc:        tc,
		oracle:    ModTimeOracle{},
		extractor: depscan.New(cfg, tc),
	}
}

// WithOracle replaces the staleness policy. Primarily for tests and for
// callers wanting content-based staleness.
func (p *Planner) WithOracle(o StalenessOracle) *Planner {
	p.oracle = o
	return p
}

// Build constructs the incremental plan for g from discovery output.
// Cleanup goals must never reach this point: consulting dependency records
// while cleaning risks resurrecting state the user is deleting, so the
// planner rejects them outright rather than guarding each read.
func (p *Planner) Build(ctx context.Context, g goal.Goal, disc *discover.Result) (*Plan, error) {
	if g.IsDestructive() {
		return nil, fmt.Errorf("refusing to plan destructive goal %q: dependency records must not be consulted during cleanup", g)
	}
	logger := ctxlog.FromContext(ctx)

	plan := &Plan{
		Graph: dag.NewGraph(),
		units: make(map[string]unit),
		stale: make(map[string]bool),
	}

	for _, src := range disc.Grammars {
		u := unit{
			src: src,
			// The grammar's target is the generated ordinary source.
			target:  p.cfg.GeneratedSourcePath(src.Module()),
			outDir:  p.cfg.SourceRoot(),
			grammar: true,
		}
		plan.units[u.target] = u
		plan.Graph.AddNode(u.target)
		if p.oracle.Stale(u.target, []string{src.Path}) {
			plan.stale[u.target] = true
		}
	}

	for _, src := range disc.Sources {
		if err := p.addSourceUnit(ctx, plan, src, false); err != nil {
			return nil, err
		}
	}
	if g.ConcernsTests() {
		for _, src := range disc.Tests {
			if err := p.addSourceUnit(ctx, plan, src, true); err != nil {
				return nil, err
			}
		}
	}

	// A generated source can only be compiled after its grammar ran.
	for _, u := range plan.units {
		if u.grammar {
			if gen, ok := plan.units[p.cfg.ObjectPath(u.src.Module(), false)]; ok {
				if err := plan.Graph.AddEdge(u.target, gen.target); err != nil {
					return nil, fmt.Errorf("linking grammar %s: %w", u.src.Path, err)
				}
			}
		}
	}

	if err := plan.Graph.DetectCycles(); err != nil {
		return nil, fmt.Errorf("invalid dependency graph: %w", err)
	}

	propagateStaleness(plan)
	logger.Debug("Build plan constructed.", "targets", len(plan.units), "stale", len(plan.stale))
	return plan, nil
}

// addSourceUnit schedules one ordinary or test source, consulting its
// dependency record when one is on disk.
func (p *Planner) addSourceUnit(ctx context.Context, plan *Plan, src discover.SourceFile, test bool) error {
	outDir := p.cfg.OutRoot()
	if test {
		outDir = p.cfg.TestOutRoot()
	}
	u := unit{
		src:    src,
		target: p.cfg.ObjectPath(src.Module(), test),
		outDir: outDir,
		test:   test,
	}
	plan.units[u.target] = u
	plan.Graph.AddNode(u.target)

	rec, err := p.loadRecord(ctx, src, test)
	if err != nil {
		return err
	}
	if rec == nil {
		// First build, record cleaned away, or record unreadable: nothing
		// to compare against, rebuild and rewrite it.
		plan.stale[u.target] = true
		return nil
	}

	prereqs := rec.FilePrereqs(p.cfg.ObjectExt)
	objEdges := rec.ObjectPrereqs(p.cfg.ObjectExt)
	if p.oracle.Stale(u.target, prereqs) {
		plan.stale[u.target] = true
	}
	for _, dep := range objEdges {
		if _, scheduled := plan.units[dep]; scheduled {
			if err := plan.Graph.AddEdge(dep, u.target); err != nil {
				return fmt.Errorf("linking %s: %w", src.Path, err)
			}
		} else if p.oracle.Stale(u.target, []string{dep}) {
			// Edge to an object outside this run (e.g. a test object during
			// a library build): fall back to a plain timestamp check.
			plan.stale[u.target] = true
		}
	}
	return nil
}

// loadRecord reads the source's dependency record, or nil when absent. A
// malformed record is treated like a missing one: records are regenerable
// artifacts of this tool, and the compile that follows rewrites a valid
// one, so there is nothing a hard failure would protect.
func (p *Planner) loadRecord(ctx context.Context, src discover.SourceFile, test bool) (*deprecord.Record, error) {
	path := p.cfg.DepPath(src.Module(), test)
	rec, err := deprecord.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		if errors.Is(err, deprecord.ErrMalformed) {
			ctxlog.FromContext(ctx).Warn("Ignoring unreadable dependency record.", "path", path, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("reading dependency record %s: %w", path, err)
	}
	return rec, nil
}

// propagateStaleness marks every transitive dependent of a stale target
// stale as well: when a referenced module's object is rebuilt in this run,
// its referencing modules must rebuild after it.
func propagateStaleness(plan *Plan) {
	queue := make([]string, 0, len(plan.stale))
	for id := range plan.stale {
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, dep := range plan.Graph.Nodes[id].Dependents {
			if !plan.stale[dep.ID] {
				plan.stale[dep.ID] = true
				queue = append(queue, dep.ID)
			}
		}
	}
}

// Execute compiles every stale target in dependency order, refreshing the
// target's dependency record after each successful compile. Up-to-date
// targets complete immediately, so ordering constraints still hold for
// their dependents.
func (p *Planner) Execute(ctx context.Context, plan *Plan) error {
	logger := ctxlog.FromContext(ctx)
	if plan.StaleCount() == 0 {
		logger.Info("All targets up to date, nothing to compile.")
		return nil
	}
	logger.Info("Compiling stale targets.", "count", plan.StaleCount(), "workers", p.cfg.Workers)

	exec := dag.NewExecutor(plan.Graph, p.cfg.Workers, func(ctx context.Context, id string) error {
		u := plan.units[id]
		if !plan.stale[id] {
			return nil
		}
		if err := os.MkdirAll(u.outDir, 0o755); err != nil {
			return fmt.Errorf("creating output directory %s: %w", u.outDir, err)
		}
		if err := p.tc.Compile(ctx, u.src.Path, u.outDir, p.cfg.IncludePaths(), p.cfg.AllDefines()); err != nil {
			return err
		}
		if u.grammar {
			return nil
		}
		_, err := p.extractor.Extract(ctx, u.src)
		return err
	})
	return exec.Run(ctx)
}
