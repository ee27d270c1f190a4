// Package depscan derives the dependency record for a single source file.
//
// The base edge set (object depends on source plus included headers) comes
// from the toolchain's scan facility. On top of that, the raw source text
// is inspected for declarations that reference other modules of the same
// package, and a matching object-to-object edge is appended for each
// reference that resolves to a source file present in the package.
//
// The text pass is a deliberate approximation, not a parser: it recognizes
// exactly two declaration shapes, line by line,
//
//	-behaviour(name).            (also the -behavior spelling)
//	-compile({parse_transform, name}).
//
// and only resolves names against this package's own source and test roots.
package depscan

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/richcarl/stdapp/internal/config"
	"github.com/richcarl/stdapp/internal/ctxlog"
	"github.com/richcarl/stdapp/internal/deprecord"
	"github.com/richcarl/stdapp/internal/discover"
	"github.com/richcarl/stdapp/internal/toolchain"
)

var (
	behaviourRe = regexp.MustCompile(`^\s*-behaviou?r\(\s*'?([a-zA-Z0-9_@]+)'?\s*\)`)
	transformRe = regexp.MustCompile(`^\s*-compile\(.*\{\s*parse_transform\s*,\s*'?([a-zA-Z0-9_@]+)'?\s*\}`)
)

// Extractor derives and persists dependency records.
type Extractor struct {
	cfg *config.Config
	tc  toolchain.Toolchain
}

// New returns an Extractor using the given toolchain for base edges.
func New(cfg *config.Config, tc toolchain.Toolchain) *Extractor {
	return &Extractor{cfg: cfg, tc: tc}
}

// Extract derives the dependency record for src and writes it atomically
// to its deterministic path. Re-running on an unchanged source produces a
// byte-identical record. If the toolchain scan fails, no record is written
// and the previous one, if any, is left in place.
func (e *Extractor) Extract(ctx context.Context, src discover.SourceFile) (*deprecord.Record, error) {
	logger := ctxlog.FromContext(ctx).With("source", src.Path)
	logger.Debug("Extracting dependency record.")

	isTest := src.Kind == discover.KindTest
	rec := &deprecord.Record{
		Target: e.cfg.ObjectPath(src.Module(), isTest),
	}

	base, err := e.tc.ScanDeps(ctx, src.Path, e.cfg.IncludePaths(), e.cfg.AllDefines())
	if err != nil {
		return nil, err
	}
	rec.Prereqs = append(rec.Prereqs, src.Path)
	rec.Prereqs = append(rec.Prereqs, base...)

	refs, err := scanModuleRefs(src.Path)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", src.Path, err)
	}
	for _, ref := range refs {
		if obj, ok := e.resolveModule(ref); ok && obj != rec.Target {
			logger.Debug("Resolved in-package module reference.", "module", ref, "object", obj)
			rec.Prereqs = append(rec.Prereqs, obj)
		}
	}

	depPath := e.cfg.DepPath(src.Module(), isTest)
	if err := deprecord.Write(depPath, rec); err != nil {
		return nil, fmt.Errorf("emitting dependency record for %s: %w", src.Path, err)
	}
	logger.Debug("Dependency record written.", "path", depPath, "prereqs", len(rec.Prereqs))
	return rec, nil
}

// scanModuleRefs collects the module names referenced by behaviour or
// parse-transform declarations in the file at path.
func scanModuleRefs(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var refs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if m := behaviourRe.FindStringSubmatch(line); m != nil {
			refs = append(refs, m[1])
			continue
		}
		if m := transformRe.FindStringSubmatch(line); m != nil {
			refs = append(refs, m[1])
		}
	}
	return refs, scanner.Err()
}

// resolveModule looks a referenced module name up in the package: first in
// the main source root (to the same nesting depth discovery uses), then in
// the test root. It returns the referenced module's object target path.
// Unresolvable references are not an error; the module may live in another
// package entirely.
func (e *Extractor) resolveModule(name string) (string, bool) {
	fileName := name + e.cfg.SourceExt
	candidates := []string{
		filepath.Join(e.cfg.SourceRoot(), fileName),
	}
	if matches, err := filepath.Glob(filepath.Join(e.cfg.SourceRoot(), "*", fileName)); err == nil {
		candidates = append(candidates, matches...)
	}
	if matches, err := filepath.Glob(filepath.Join(e.cfg.SourceRoot(), "*", "*", fileName)); err == nil {
		candidates = append(candidates, matches...)
	}
	for _, c := range candidates {
		if fileExists(c) {
			return e.cfg.ObjectPath(name, false), true
		}
	}
	if fileExists(filepath.Join(e.cfg.TestRoot(), fileName)) {
		return e.cfg.ObjectPath(name, true), true
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
