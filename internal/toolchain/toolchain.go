// Package toolchain is the boundary to the external compiler. The core
// treats compilation as a black box: one source file in, one object file
// out, plus a scan-only facility that reports a source's file-level
// dependencies without compiling it.
package toolchain

import (
	"context"
	"fmt"
)

// Toolchain is the contract the build core needs from a compiler.
type Toolchain interface {
	// Compile transforms one source file into one object file under outDir.
	Compile(ctx context.Context, src, outDir string, includes []string, defines map[string]string) error

	// ScanDeps reports the files src depends on (the source itself plus
	// transitively included headers) without producing an object and with
	// compile-time transform side effects suppressed.
	ScanDeps(ctx context.Context, src string, includes []string, defines map[string]string) ([]string, error)
}

// CompileError reports a failed compilation of one source file.
type CompileError struct {
	Source string
	Output []byte
	Err    error
}

func (e *CompileError) Error() string {
	if len(e.Output) > 0 {
		return fmt.Sprintf("compiling %s: %v\n%s", e.Source, e.Err, e.Output)
	}
	return fmt.Sprintf("compiling %s: %v", e.Source, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

// ScanError reports a failed dependency scan of one source file.
type ScanError struct {
	Source string
	Output []byte
	Err    error
}

func (e *ScanError) Error() string {
	if len(e.Output) > 0 {
		return fmt.Sprintf("scanning dependencies of %s: %v\n%s", e.Source, e.Err, e.Output)
	}
	return fmt.Sprintf("scanning dependencies of %s: %v", e.Source, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }
