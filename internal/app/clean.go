package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/richcarl/stdapp/internal/ctxlog"
	"github.com/richcarl/stdapp/internal/goal"
)

// clean handles every destructive goal. It works purely from configured
// paths and file name patterns: dependency records are deleted by name and
// never opened, so stale or corrupt records cannot influence a cleanup.
func (a *App) clean(ctx context.Context, g goal.Goal) error {
	switch g {
	case goal.Clean:
		return a.cleanObjects(ctx)
	case goal.CleanTests:
		return a.cleanTestObjects(ctx)
	case goal.CleanDeps:
		return a.cleanDeps(ctx)
	case goal.CleanDocs:
		return a.cleanDocs(ctx)
	case goal.Distclean:
		return firstErr(
			a.cleanObjects(ctx),
			a.cleanTestObjects(ctx),
			a.cleanDeps(ctx),
		)
	case goal.Realclean:
		return firstErr(
			a.cleanObjects(ctx),
			a.cleanTestObjects(ctx),
			a.cleanDeps(ctx),
			a.cleanDocs(ctx),
			a.cleanGenerated(ctx),
		)
	}
	return fmt.Errorf("goal %q is not a cleanup goal", g)
}

// cleanObjects removes compiled objects and the synthesized descriptor.
func (a *App) cleanObjects(ctx context.Context) error {
	if err := removeGlob(ctx, filepath.Join(a.cfg.OutRoot(), "*"+a.cfg.ObjectExt)); err != nil {
		return err
	}
	return removeFile(ctx, a.cfg.DescriptorPath())
}

func (a *App) cleanTestObjects(ctx context.Context) error {
	return removeGlob(ctx, filepath.Join(a.cfg.TestOutRoot(), "*"+a.cfg.ObjectExt))
}

func (a *App) cleanDeps(ctx context.Context) error {
	return removeGlob(ctx, filepath.Join(a.cfg.DepsRoot(), "*"+a.cfg.DepExt))
}

func (a *App) cleanDocs(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	docRoot := a.cfg.DocRoot()
	if _, err := os.Stat(docRoot); os.IsNotExist(err) {
		return nil
	}
	logger.Info("Removing documentation output.", "path", docRoot)
	return os.RemoveAll(docRoot)
}

// cleanGenerated removes grammar-derived sources: any ordinary source
// whose base name matches a grammar file next to it.
func (a *App) cleanGenerated(ctx context.Context) error {
	grammars, err := filepath.Glob(filepath.Join(a.cfg.SourceRoot(), "*"+a.cfg.GrammarExt))
	if err != nil {
		return err
	}
	for _, g := range grammars {
		base := filepath.Base(g)
		module := base[:len(base)-len(a.cfg.GrammarExt)]
		if err := removeFile(ctx, a.cfg.GeneratedSourcePath(module)); err != nil {
			return err
		}
	}
	return nil
}

func removeGlob(ctx context.Context, pattern string) error {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := removeFile(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func removeFile(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)
	err := os.Remove(path)
	if err == nil {
		logger.Debug("Removed.", "path", path)
		return nil
	}
	if os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("removing %s: %w", path, err)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
