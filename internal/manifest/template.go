package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/richcarl/stdapp/internal/ctxlog"
)

// EnsureTemplate creates a skeleton descriptor template when none exists,
// returning whether one was created. When a previously synthesized
// descriptor is still sitting in the output directory, its version is
// cloned into the fresh template instead of the resolved default, so a
// deleted template does not reset the package version.
func (s *Synthesizer) EnsureTemplate(ctx context.Context, version string) (bool, error) {
	logger := ctxlog.FromContext(ctx)

	tmplPath := s.cfg.TemplatePath()
	if _, err := os.Stat(tmplPath); err == nil {
		return false, nil
	}

	if desc, err := Consult(s.cfg.DescriptorPath()); err == nil && desc.Version != "" {
		logger.Debug("Cloning version from existing descriptor into new template.", "version", desc.Version)
		version = desc.Version
	}

	if err := os.MkdirAll(filepath.Dir(tmplPath), 0o755); err != nil {
		return false, fmt.Errorf("creating source directory: %w", err)
	}
	if err := os.WriteFile(tmplPath, []byte(skeleton(s.cfg.Name, version)), 0o644); err != nil {
		return false, fmt.Errorf("writing template skeleton: %w", err)
	}
	logger.Info("Descriptor template created.", "path", tmplPath)
	return true, nil
}

// skeleton renders a minimal but complete template for a new package.
func skeleton(name, version string) string {
	return fmt.Sprintf(`package %q {
  description  = "%s application"
  version      = %q
  modules      = []
  registered   = []
  applications = ["kernel", "stdlib"]
  env          = {}
}
`, name, name, version)
}
