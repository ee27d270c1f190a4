package version

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/richcarl/stdapp/internal/config"
	"github.com/richcarl/stdapp/internal/testutil"
)

// fakeVCS answers with canned values.
type fakeVCS struct {
	tag  string
	hash string
}

func (f fakeVCS) Tag(context.Context) string       { return f.tag }
func (f fakeVCS) ShortHash(context.Context) string { return f.hash }

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Name = "mypkg"
	return cfg
}

func writeDescriptor(t *testing.T, cfg *config.Config, version string) {
	t.Helper()
	testutil.WriteFile(t, cfg.DescriptorPath(),
		`package "mypkg" {
  version = "`+version+`"
  modules = []
}
`)
}

func writeTemplate(t *testing.T, cfg *config.Config, version string) {
	t.Helper()
	testutil.WriteFile(t, cfg.TemplatePath(),
		`package "mypkg" {
  version = "`+version+`"
  modules = []
}
`)
}

func TestResolve_PrecedenceLadder(t *testing.T) {
	ctx := context.Background()

	t.Run("override wins over everything", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.Version = "9.9.9"
		testutil.WriteFile(t, cfg.VsnFilePath(), "2.0.0\n")
		writeDescriptor(t, cfg, "3.0.0")
		v := New(cfg, fakeVCS{tag: "v1.2.3"}).Resolve(ctx)
		assert.Equal(t, "9.9.9", v)
	})

	t.Run("legacy vsn file wins once override is gone", func(t *testing.T) {
		cfg := newConfig(t)
		testutil.WriteFile(t, cfg.VsnFilePath(), "2.0.0\n")
		writeDescriptor(t, cfg, "3.0.0")
		v := New(cfg, fakeVCS{tag: "v1.2.3"}).Resolve(ctx)
		assert.Equal(t, "2.0.0", v)
	})

	t.Run("vsn file can be disabled", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.NoVsnFile = true
		testutil.WriteFile(t, cfg.VsnFilePath(), "2.0.0\n")
		writeDescriptor(t, cfg, "3.0.0")
		v := New(cfg, fakeVCS{tag: "v1.2.3"}).Resolve(ctx)
		assert.Equal(t, "3.0.0", v)
	})

	t.Run("descriptor beats tag", func(t *testing.T) {
		cfg := newConfig(t)
		writeDescriptor(t, cfg, "3.0.0")
		v := New(cfg, fakeVCS{tag: "v1.2.3"}).Resolve(ctx)
		assert.Equal(t, "3.0.0", v)
	})

	t.Run("tag wins when nothing persisted", func(t *testing.T) {
		cfg := newConfig(t)
		v := New(cfg, fakeVCS{tag: "v1.2.3"}).Resolve(ctx)
		assert.Equal(t, "v1.2.3", v)
	})

	t.Run("template beats the default", func(t *testing.T) {
		cfg := newConfig(t)
		writeTemplate(t, cfg, "4.0.0")
		v := New(cfg, fakeVCS{}).Resolve(ctx)
		assert.Equal(t, "4.0.0", v)
	})

	t.Run("fixed default as last resort", func(t *testing.T) {
		cfg := newConfig(t)
		v := New(cfg, fakeVCS{}).Resolve(ctx)
		assert.Equal(t, "0.1.0", v)
	})
}

func TestResolve_ForceTag(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(t)
	cfg.ForceTag = true
	testutil.WriteFile(t, cfg.VsnFilePath(), "2.0.0\n")

	v := New(cfg, fakeVCS{tag: "v1.2.3"}).Resolve(ctx)
	assert.Equal(t, "v1.2.3", v)
}

func TestResolve_HashSuffix(t *testing.T) {
	ctx := context.Background()

	t.Run("appended when version differs from tag", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.HashSuffix = true
		testutil.WriteFile(t, cfg.VsnFilePath(), "2.0.0\n")
		v := New(cfg, fakeVCS{tag: "v1.2.3", hash: "abcdef1"}).Resolve(ctx)
		assert.Equal(t, "2.0.0-gabcdef1", v)
	})

	t.Run("not appended when the tag itself is the version", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.HashSuffix = true
		v := New(cfg, fakeVCS{tag: "v1.2.3", hash: "abcdef1"}).Resolve(ctx)
		assert.Equal(t, "v1.2.3", v)
	})

	t.Run("not appended without a hash", func(t *testing.T) {
		cfg := newConfig(t)
		cfg.HashSuffix = true
		testutil.WriteFile(t, cfg.VsnFilePath(), "2.0.0\n")
		v := New(cfg, fakeVCS{tag: "v1.2.3"}).Resolve(ctx)
		assert.Equal(t, "2.0.0", v)
	})

	t.Run("not stacked on an already suffixed version", func(t *testing.T) {
		// Resolving against a descriptor that carries the suffix from a
		// previous run must not grow it.
		cfg := newConfig(t)
		cfg.HashSuffix = true
		writeDescriptor(t, cfg, "2.0.0-gabcdef1")
		v := New(cfg, fakeVCS{hash: "abcdef1"}).Resolve(ctx)
		assert.Equal(t, "2.0.0-gabcdef1", v)
	})
}

func TestReadVsnFile_FirstNonBlankLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mypkg.vsn")
	testutil.WriteFile(t, path, "\n  \n5.4.3\nignored\n")
	assert.Equal(t, "5.4.3", readVsnFile(path))
}
