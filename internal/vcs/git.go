// Package vcs is the boundary to the source-control system. Queries are
// best-effort: a missing repository, a missing tag, or a missing git
// binary all degrade to empty answers, never to build failures.
package vcs

import (
	"context"
	"os/exec"
	"strings"
)

// VCS answers version-control queries for a working directory.
type VCS interface {
	// Tag returns the most recent reachable tag, or "" when none exists.
	Tag(ctx context.Context) string
	// ShortHash returns the abbreviated current commit hash, or "".
	ShortHash(ctx context.Context) string
}

// Git queries git through subprocess invocation.
type Git struct {
	// Dir is the working directory for git commands.
	Dir string
}

// NewGit returns a Git VCS rooted at dir.
func NewGit(dir string) *Git {
	return &Git{Dir: dir}
}

// Tag implements VCS.
func (g *Git) Tag(ctx context.Context) string {
	return g.run(ctx, "describe", "--tags", "--abbrev=0")
}

// ShortHash implements VCS.
func (g *Git) ShortHash(ctx context.Context) string {
	return g.run(ctx, "rev-parse", "--short", "HEAD")
}

func (g *Git) run(ctx context.Context, args ...string) string {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", g.Dir}, args...)...)
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// None is a VCS with no repository behind it; every query is empty.
type None struct{}

// Tag implements VCS.
func (None) Tag(context.Context) string { return "" }

// ShortHash implements VCS.
func (None) ShortHash(context.Context) string { return "" }
