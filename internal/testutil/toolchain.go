// Package testutil provides shared helpers for package tests, most
// importantly an in-process fake toolchain so builds can run without a
// real compiler installed.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/richcarl/stdapp/internal/toolchain"
)

// FakeToolchain satisfies toolchain.Toolchain without spawning processes.
// Compile writes a placeholder object file (or, for grammar sources, a
// placeholder generated source); ScanDeps answers from the Headers map.
type FakeToolchain struct {
	mu sync.Mutex
	// Compiled records source paths in the order Compile was called.
	Compiled []string

	// Headers maps a source path to extra file dependencies reported by
	// ScanDeps, on top of the source itself.
	Headers map[string][]string
	// FailCompile makes Compile fail for the given source paths.
	FailCompile map[string]error
	// FailScan makes ScanDeps fail for the given source paths.
	FailScan map[string]error

	// GrammarExt and SourceExt control grammar translation; they default
	// to .yrl and .erl.
	GrammarExt string
	SourceExt  string
	ObjectExt  string
}

// NewFakeToolchain returns a FakeToolchain with Erlang-flavored extensions.
func NewFakeToolchain() *FakeToolchain {
	return &FakeToolchain{
		Headers:     make(map[string][]string),
		FailCompile: make(map[string]error),
		FailScan:    make(map[string]error),
		GrammarExt:  ".yrl",
		SourceExt:   ".erl",
		ObjectExt:   ".beam",
	}
}

// CompiledCount returns how many Compile calls have happened.
func (f *FakeToolchain) CompiledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Compiled)
}

// CompiledSources returns a copy of the compile log.
func (f *FakeToolchain) CompiledSources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Compiled...)
}

// Compile implements toolchain.Toolchain.
func (f *FakeToolchain) Compile(_ context.Context, src, outDir string, _ []string, _ map[string]string) error {
	f.mu.Lock()
	f.Compiled = append(f.Compiled, src)
	err := f.FailCompile[src]
	f.mu.Unlock()
	if err != nil {
		return &toolchain.CompileError{Source: src, Err: err}
	}

	base := filepath.Base(src)
	module := strings.TrimSuffix(base, filepath.Ext(base))
	target := filepath.Join(outDir, module+f.ObjectExt)
	if strings.HasSuffix(src, f.GrammarExt) {
		target = filepath.Join(outDir, module+f.SourceExt)
	}
	content := fmt.Sprintf("compiled from %s\n", src)
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return &toolchain.CompileError{Source: src, Err: err}
	}
	return nil
}

// ScanDeps implements toolchain.Toolchain.
func (f *FakeToolchain) ScanDeps(_ context.Context, src string, _ []string, _ map[string]string) ([]string, error) {
	f.mu.Lock()
	err := f.FailScan[src]
	headers := append([]string(nil), f.Headers[src]...)
	f.mu.Unlock()
	if err != nil {
		return nil, &toolchain.ScanError{Source: src, Err: err}
	}
	return append([]string{src}, headers...), nil
}
