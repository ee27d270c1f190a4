// Package manifest synthesizes the package descriptor from its hand-edited
// template, a resolved version string and the live module list.
//
// Synthesis is textual: only the version and module-list fields are
// rewritten, every other byte of the template (unknown fields, comments,
// layout) passes through untouched. The written descriptor is then parsed
// back with the standard HCL parser; a result that fails to parse is
// deleted on the spot so a broken manifest is never left on disk.
package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/richcarl/stdapp/internal/config"
	"github.com/richcarl/stdapp/internal/ctxlog"
)

// ValidationError reports a synthesized descriptor that failed to parse.
// The offending file has already been removed when this error is returned.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("synthesized descriptor %s is not loadable: %v", e.Path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Synthesizer produces package descriptors for one configured package.
type Synthesizer struct {
	cfg *config.Config
}

// New returns a Synthesizer for cfg.
func New(cfg *config.Config) *Synthesizer {
	return &Synthesizer{cfg: cfg}
}

// NeedsRegen reports whether the descriptor must be rebuilt: it is absent,
// the template is newer, or the source root directory's entry listing has
// changed (tracked through the directory's own mtime). Edits inside an
// existing source file, and any change below a nested subdirectory, do not
// trigger regeneration on their own.
func (s *Synthesizer) NeedsRegen() bool {
	descInfo, err := os.Stat(s.cfg.DescriptorPath())
	if err != nil {
		return true
	}
	if tmplInfo, err := os.Stat(s.cfg.TemplatePath()); err == nil && tmplInfo.ModTime().After(descInfo.ModTime()) {
		return true
	}
	if srcInfo, err := os.Stat(s.cfg.SourceRoot()); err == nil && srcInfo.ModTime().After(descInfo.ModTime()) {
		return true
	}
	return false
}

// Synthesize rewrites the template's version and module-list fields and
// installs the result as the package descriptor, validating it afterwards.
func (s *Synthesizer) Synthesize(ctx context.Context, version string, modules []string) error {
	logger := ctxlog.FromContext(ctx)

	text, err := os.ReadFile(s.cfg.TemplatePath())
	if err != nil {
		return fmt.Errorf("reading descriptor template: %w", err)
	}

	out, err := substituteVersion(string(text), version)
	if err != nil {
		return fmt.Errorf("template %s: %w", s.cfg.TemplatePath(), err)
	}
	out, err = substituteModules(out, modules)
	if err != nil {
		return fmt.Errorf("template %s: %w", s.cfg.TemplatePath(), err)
	}

	descPath := s.cfg.DescriptorPath()
	if err := os.MkdirAll(filepath.Dir(descPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(descPath, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing descriptor: %w", err)
	}

	if _, err := Consult(descPath); err != nil {
		os.Remove(descPath)
		return &ValidationError{Path: descPath, Err: err}
	}
	logger.Info("Package descriptor synthesized.", "path", descPath, "version", version, "modules", len(modules))
	return nil
}

var (
	// versionStringRe matches a plain-string version assignment. The
	// rightmost occurrence is the one substituted.
	versionStringRe = regexp.MustCompile(`(version\s*=\s*)"(?:[^"\\]|\\.)*"`)
	// versionObjectRe matches the object form: version = { value = "..." }.
	versionObjectRe = regexp.MustCompile(`(?s)(version\s*=\s*\{[^}]*?value\s*=\s*)"(?:[^"\\]|\\.)*"`)
	// modulesRe matches the module-list assignment, which may span lines.
	modulesRe = regexp.MustCompile(`(?s)(modules\s*=\s*)\[.*?\]`)
)

// substituteVersion replaces the string payload of the rightmost version
// field, handling both the plain-string and the object representation.
func substituteVersion(text, version string) (string, error) {
	for _, re := range []*regexp.Regexp{versionStringRe, versionObjectRe} {
		if locs := re.FindAllStringSubmatchIndex(text, -1); locs != nil {
			m := locs[len(locs)-1]
			return text[:m[0]] + text[m[2]:m[3]] + strconv.Quote(version) + text[m[1]:], nil
		}
	}
	return "", fmt.Errorf("no version field found")
}

// substituteModules replaces the module-list value with the sorted,
// de-duplicated, quoted live module set.
func substituteModules(text string, modules []string) (string, error) {
	m := modulesRe.FindStringSubmatchIndex(text)
	if m == nil {
		return "", fmt.Errorf("no modules field found")
	}
	return text[:m[0]] + text[m[2]:m[3]] + formatModuleList(modules) + text[m[1]:], nil
}

func formatModuleList(modules []string) string {
	uniq := make([]string, 0, len(modules))
	seen := make(map[string]bool, len(modules))
	for _, mod := range modules {
		if !seen[mod] {
			seen[mod] = true
			uniq = append(uniq, mod)
		}
	}
	sort.Strings(uniq)

	quoted := make([]string, len(uniq))
	for i, mod := range uniq {
		quoted[i] = strconv.Quote(mod)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
