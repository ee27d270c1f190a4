package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/richcarl/stdapp/internal/ctxlog"
)

// install copies the built package into <install-root>/<name>-<vsn>/,
// preserving the object and header layout the runtime loader expects.
// Run builds the package first, so the copy always sees fresh artifacts;
// vsn is the version that build already resolved and stamped into the
// descriptor, keeping the directory name and the descriptor in agreement.
func (a *App) install(ctx context.Context, vsn string) error {
	logger := ctxlog.FromContext(ctx)

	dest := filepath.Join(a.cfg.InstallRoot(), a.cfg.Name+"-"+vsn)
	logger.Info("Installing package.", "dest", dest)

	if err := copyDir(a.cfg.OutRoot(), filepath.Join(dest, a.cfg.OutDir)); err != nil {
		return fmt.Errorf("installing objects: %w", err)
	}
	if _, err := os.Stat(a.cfg.IncludeRoot()); err == nil {
		if err := copyDir(a.cfg.IncludeRoot(), filepath.Join(dest, a.cfg.IncludeDir)); err != nil {
			return fmt.Errorf("installing headers: %w", err)
		}
	}
	return nil
}

// docs runs the configured documentation command, if any. Documentation
// generation itself is an external collaborator; the build core only
// provides the hook.
func (a *App) docs(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	if a.cfg.DocCommand == "" {
		logger.Info("No doc command configured, nothing to do.")
		return nil
	}
	if err := os.MkdirAll(a.cfg.DocRoot(), 0o755); err != nil {
		return fmt.Errorf("creating doc directory: %w", err)
	}
	logger.Info("Running doc command.", "command", a.cfg.DocCommand)
	cmd := exec.CommandContext(ctx, "sh", "-c", a.cfg.DocCommand)
	cmd.Dir = a.cfg.Root
	cmd.Stdout = a.outW
	cmd.Stderr = a.outW
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("doc command failed: %w", err)
	}
	return nil
}

// copyDir copies the regular files directly under src into dst.
func copyDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
