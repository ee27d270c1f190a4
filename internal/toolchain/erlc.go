package toolchain

import (
	"context"
	"os/exec"
	"sort"
	"strings"

	"github.com/richcarl/stdapp/internal/ctxlog"
)

// scanDefine is set during dependency scans so that sources (and any
// transforms they would pull in) can tell a scan-only pass apart from a
// real compile.
const scanDefine = "STDAPP_DEP_SCAN"

// Erlc drives an erlc-style compiler through subprocess invocation.
// Flags are appended to every compile command after the computed ones.
type Erlc struct {
	Cmd   string
	Flags []string
}

// NewErlc returns an Erlc toolchain for the given executable name.
func NewErlc(cmd string, flags []string) *Erlc {
	if cmd == "" {
		cmd = "erlc"
	}
	return &Erlc{Cmd: cmd, Flags: flags}
}

// Compile runs the compiler on src, placing the object under outDir.
func (t *Erlc) Compile(ctx context.Context, src, outDir string, includes []string, defines map[string]string) error {
	args := []string{"-o", outDir}
	args = appendIncludes(args, includes)
	args = appendDefines(args, defines)
	args = append(args, t.Flags...)
	args = append(args, src)

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Invoking compiler.", "cmd", t.Cmd, "args", strings.Join(args, " "))

	out, err := exec.CommandContext(ctx, t.Cmd, args...).CombinedOutput()
	if err != nil {
		return &CompileError{Source: src, Output: out, Err: err}
	}
	return nil
}

// ScanDeps runs the compiler's make-dependency emission (-M) on src and
// parses the prerequisite list out of the resulting rule text. The scan
// define marks the pass so transform side effects stay suppressed.
func (t *Erlc) ScanDeps(ctx context.Context, src string, includes []string, defines map[string]string) ([]string, error) {
	args := []string{"-M"}
	args = appendIncludes(args, includes)
	args = appendDefines(args, defines)
	args = append(args, "-D"+scanDefine, src)

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Invoking dependency scan.", "cmd", t.Cmd, "args", strings.Join(args, " "))

	out, err := exec.CommandContext(ctx, t.Cmd, args...).Output()
	if err != nil {
		var stderr []byte
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = exitErr.Stderr
		}
		return nil, &ScanError{Source: src, Output: stderr, Err: err}
	}
	return parseMakeDeps(string(out)), nil
}

// parseMakeDeps extracts the prerequisite paths from make-style rule
// output, honoring backslash continuations and skipping rule targets.
func parseMakeDeps(text string) []string {
	joined := strings.ReplaceAll(text, "\\\n", " ")
	var deps []string
	for _, line := range strings.Split(joined, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, rest, ok := strings.Cut(line, ":"); ok {
			line = rest
		}
		deps = append(deps, strings.Fields(line)...)
	}
	return deps
}

func appendIncludes(args, includes []string) []string {
	for _, inc := range includes {
		args = append(args, "-I", inc)
	}
	return args
}

func appendDefines(args []string, defines map[string]string) []string {
	// Sorted for reproducible command lines.
	keys := make([]string, 0, len(defines))
	for k := range defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := defines[k]; v != "" {
			args = append(args, "-D"+k+"="+v)
		} else {
			args = append(args, "-D"+k)
		}
	}
	return args
}
