// Package version resolves the package version string for one invocation.
//
// Resolution walks a fixed priority ladder and takes the first non-empty
// answer: explicit override, forced source-control tag, the legacy
// standalone version file, the version of an already-compiled descriptor,
// the source-control tag, the template's version, and finally a fixed
// default. The result is resolved once and threaded through the rest of
// the build as a plain value.
package version

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/richcarl/stdapp/internal/config"
	"github.com/richcarl/stdapp/internal/ctxlog"
	"github.com/richcarl/stdapp/internal/manifest"
	"github.com/richcarl/stdapp/internal/vcs"
)

// Resolver computes version strings for one configured package.
type Resolver struct {
	cfg *config.Config
	vcs vcs.VCS
}

// New returns a Resolver backed by the given source-control queries.
func New(cfg *config.Config, v vcs.VCS) *Resolver {
	return &Resolver{cfg: cfg, vcs: v}
}

// Resolve computes the version string. It never fails: every rung of the
// ladder degrades to "try the next one", and the fixed default always
// answers.
func (r *Resolver) Resolve(ctx context.Context) string {
	logger := ctxlog.FromContext(ctx)
	tag := r.vcs.Tag(ctx)

	resolved, source := r.resolve(ctx, tag)
	if r.cfg.HashSuffix && resolved != tag {
		// A version read back from a previous descriptor may already
		// carry the suffix; never stack a second one.
		if hash := r.vcs.ShortHash(ctx); hash != "" && !strings.HasSuffix(resolved, "-g"+hash) {
			resolved += "-g" + hash
		}
	}
	logger.Debug("Version resolved.", "version", resolved, "source", source)
	return resolved
}

func (r *Resolver) resolve(ctx context.Context, tag string) (string, string) {
	if r.cfg.Version != "" {
		return r.cfg.Version, "override"
	}
	if r.cfg.ForceTag && tag != "" {
		return tag, "forced tag"
	}
	if !r.cfg.NoVsnFile {
		if v := readVsnFile(r.cfg.VsnFilePath()); v != "" {
			return v, "vsn file"
		}
	}
	if v, ok := manifest.ReadVersion(r.cfg.DescriptorPath()); ok {
		return v, "descriptor"
	}
	if tag != "" {
		return tag, "tag"
	}
	if v, ok := manifest.ReadVersion(r.cfg.TemplatePath()); ok {
		return v, "template"
	}
	return r.cfg.DefaultVsn, "default"
}

// readVsnFile returns the first non-blank line of the legacy version file,
// or "" when the file is absent or empty.
func readVsnFile(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line
		}
	}
	return ""
}
