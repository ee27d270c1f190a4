// Package discover enumerates the source files of a package and the module
// set they imply. Discovery is pure enumeration: it never creates or touches
// anything on disk, and an empty tree is a valid result.
package discover

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/richcarl/stdapp/internal/config"
	"github.com/richcarl/stdapp/internal/fsutil"
)

// Kind classifies a discovered source file.
type Kind int

const (
	// KindSource is an ordinary compilable source file.
	KindSource Kind = iota
	// KindGrammar is a grammar file compiled into a generated source.
	KindGrammar
	// KindTest is a test source file.
	KindTest
)

// SourceFile is one discovered file. Identity is the path.
type SourceFile struct {
	Path string
	Kind Kind
	// Generated marks an ordinary source derived from a grammar file. Its
	// Path may not exist yet on a first build.
	Generated bool
}

// Module returns the module name: the base name with the extension stripped.
func (f SourceFile) Module() string {
	base := filepath.Base(f.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Result is the full discovery output for one package.
type Result struct {
	// Sources are ordinary sources, including grammar-derived ones.
	Sources []SourceFile
	// Grammars are the grammar files themselves.
	Grammars []SourceFile
	// Tests are test sources, found flat under the test root.
	Tests []SourceFile
}

// Modules returns the sorted, de-duplicated module names of the ordinary
// sources. This is the set written into the package descriptor.
func (r *Result) Modules() []string {
	seen := make(map[string]bool, len(r.Sources))
	var modules []string
	for _, f := range r.Sources {
		if !seen[f.Module()] {
			seen[f.Module()] = true
			modules = append(modules, f.Module())
		}
	}
	sort.Strings(modules)
	return modules
}

// nestingDepth is how many subdirectory levels below the source root are
// searched. Deeper trees are invisible to discovery.
const nestingDepth = 2

// Scan enumerates the package's sources, grammars and tests. For every
// grammar file a generated ordinary source sharing its base name is added
// to the source set. Two ordinary sources sharing a module name is an
// error: module names must be unique for manifest generation.
func Scan(cfg *config.Config) (*Result, error) {
	res := &Result{}

	sources, err := fsutil.FindFilesByExtension(cfg.SourceRoot(), cfg.SourceExt, nestingDepth)
	if err != nil {
		return nil, fmt.Errorf("scanning sources: %w", err)
	}
	for _, p := range sources {
		res.Sources = append(res.Sources, SourceFile{Path: p, Kind: KindSource})
	}

	grammars, err := fsutil.FindFilesByExtension(cfg.SourceRoot(), cfg.GrammarExt, nestingDepth)
	if err != nil {
		return nil, fmt.Errorf("scanning grammars: %w", err)
	}
	for _, p := range grammars {
		g := SourceFile{Path: p, Kind: KindGrammar}
		res.Grammars = append(res.Grammars, g)
		gen := SourceFile{Path: cfg.GeneratedSourcePath(g.Module()), Kind: KindSource, Generated: true}
		if !containsPath(res.Sources, gen.Path) {
			res.Sources = append(res.Sources, gen)
		}
	}

	tests, err := fsutil.FindFilesByExtension(cfg.TestRoot(), cfg.SourceExt, 0)
	if err != nil {
		return nil, fmt.Errorf("scanning tests: %w", err)
	}
	for _, p := range tests {
		res.Tests = append(res.Tests, SourceFile{Path: p, Kind: KindTest})
	}

	if err := checkModuleCollisions(res); err != nil {
		return nil, err
	}
	return res, nil
}

// checkModuleCollisions rejects duplicate module base names. Two sources
// in different subdirectories mapping to the same module would silently
// fight over one object target and one descriptor entry, so this is an
// explicit error rather than last-wins.
func checkModuleCollisions(res *Result) error {
	byModule := make(map[string]string, len(res.Sources))
	for _, f := range res.Sources {
		if prev, ok := byModule[f.Module()]; ok && prev != f.Path {
			return fmt.Errorf("duplicate module %q: %s and %s", f.Module(), prev, f.Path)
		}
		byModule[f.Module()] = f.Path
	}
	for _, f := range res.Tests {
		if prev, ok := byModule[f.Module()]; ok && prev != f.Path {
			return fmt.Errorf("duplicate module %q: %s and %s", f.Module(), prev, f.Path)
		}
		byModule[f.Module()] = f.Path
	}
	return nil
}

func containsPath(files []SourceFile, path string) bool {
	for _, f := range files {
		if f.Path == path {
			return true
		}
	}
	return false
}
