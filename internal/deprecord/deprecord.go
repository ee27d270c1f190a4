// Package deprecord persists per-source dependency records. A record maps
// one object target to the set of prerequisites that must be unchanged for
// the object to remain valid, in make-style include syntax:
//
//	ebin/foo.beam: src/foo.erl \
//	  include/foo.hrl \
//	  ebin/bar.beam
//
// Records are written atomically (temp file plus rename) and emitted in a
// stable order, so re-deriving a record for an unchanged source produces
// byte-identical output.
package deprecord

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrMalformed marks record text that does not parse. Records are this
// tool's own regenerable artifacts, so readers may treat a malformed one
// like a missing one and rebuild rather than abort.
var ErrMalformed = errors.New("malformed dependency record")

// Record maps an object target to its prerequisite files. Prereqs holds the
// source itself, transitively included headers, and the object targets of
// same-package modules referenced by the source.
type Record struct {
	Target  string
	Prereqs []string
}

// ObjectPrereqs returns the prerequisites that are object targets, i.e. the
// inter-module edges, identified by the object extension.
func (r *Record) ObjectPrereqs(objectExt string) []string {
	var objs []string
	for _, p := range r.Prereqs {
		if strings.HasSuffix(p, objectExt) {
			objs = append(objs, p)
		}
	}
	return objs
}

// FilePrereqs returns the prerequisites that are plain files (source and
// headers), i.e. everything that is not an object target.
func (r *Record) FilePrereqs(objectExt string) []string {
	var files []string
	for _, p := range r.Prereqs {
		if !strings.HasSuffix(p, objectExt) {
			files = append(files, p)
		}
	}
	return files
}

// normalize sorts the prerequisites and drops duplicates and self-edges,
// giving Write its stable byte output.
func (r *Record) normalize() {
	seen := make(map[string]bool, len(r.Prereqs))
	var prereqs []string
	for _, p := range r.Prereqs {
		if p == "" || p == r.Target || seen[p] {
			continue
		}
		seen[p] = true
		prereqs = append(prereqs, p)
	}
	sort.Strings(prereqs)
	r.Prereqs = prereqs
}

// Read parses the record stored at path.
func Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes a record from make-style rule text. Continuation
// backslashes are honored; everything after the first rule is ignored.
func Parse(text string) (*Record, error) {
	joined := strings.ReplaceAll(text, "\\\n", " ")
	for _, line := range strings.Split(joined, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		target, rest, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: malformed dependency rule: %q", ErrMalformed, line)
		}
		return &Record{
			Target:  strings.TrimSpace(target),
			Prereqs: strings.Fields(rest),
		}, nil
	}
	return nil, fmt.Errorf("%w: empty dependency record", ErrMalformed)
}

// Write emits the record to path atomically: the full content is written to
// a temp file in the same directory and renamed into place, so a reader
// never observes a partially written record.
func Write(path string, rec *Record) error {
	rec.normalize()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating record directory: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(rec.Target)
	sb.WriteString(":")
	for _, p := range rec.Prereqs {
		sb.WriteString(" \\\n  ")
		sb.WriteString(p)
	}
	sb.WriteString("\n")

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp record: %w", err)
	}
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing record: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("installing record: %w", err)
	}
	return nil
}
