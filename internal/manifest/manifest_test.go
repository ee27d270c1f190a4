package manifest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richcarl/stdapp/internal/config"
	"github.com/richcarl/stdapp/internal/testutil"
)

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Name = "mypkg"
	return cfg
}

const basicTemplate = `package "mypkg" {
  description  = "an example"
  version      = "0.0.0"
  modules      = []
  registered   = []
  applications = ["kernel", "stdlib"]
  env          = {}
}
`

func TestSynthesize_SubstitutesVersionAndModules(t *testing.T) {
	cfg := newConfig(t)
	testutil.WriteFile(t, cfg.TemplatePath(), basicTemplate)

	err := New(cfg).Synthesize(context.Background(), "1.2.3", []string{"foo", "bar", "foo"})
	require.NoError(t, err)

	desc, err := Consult(cfg.DescriptorPath())
	require.NoError(t, err)
	assert.Equal(t, "mypkg", desc.Name)
	assert.Equal(t, "1.2.3", desc.Version)
	assert.Equal(t, []string{"bar", "foo"}, desc.Modules, "module list must be sorted and de-duplicated")
	assert.Equal(t, []string{"kernel", "stdlib"}, desc.Applications)
}

func TestSynthesize_PreservesUnknownFields(t *testing.T) {
	cfg := newConfig(t)
	testutil.WriteFile(t, cfg.TemplatePath(), `package "mypkg" {
  version    = "0.0.0"
  modules    = []
  maintainer = "someone@example.com"
}
`)

	err := New(cfg).Synthesize(context.Background(), "1.0.0", []string{"foo"})
	require.NoError(t, err)

	raw, err := os.ReadFile(cfg.DescriptorPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `maintainer = "someone@example.com"`)
}

func TestSynthesize_MultiLineModuleList(t *testing.T) {
	cfg := newConfig(t)
	testutil.WriteFile(t, cfg.TemplatePath(), `package "mypkg" {
  version = "0.0.0"
  modules = [
    "stale_a",
    "stale_b",
  ]
}
`)

	err := New(cfg).Synthesize(context.Background(), "1.0.0", []string{"fresh"})
	require.NoError(t, err)

	desc, err := Consult(cfg.DescriptorPath())
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, desc.Modules)
}

func TestSynthesize_ObjectVersionForm(t *testing.T) {
	cfg := newConfig(t)
	testutil.WriteFile(t, cfg.TemplatePath(), `package "mypkg" {
  version = { value = "0.0.0" }
  modules = []
}
`)

	err := New(cfg).Synthesize(context.Background(), "2.0.0", nil)
	require.NoError(t, err)

	desc, err := Consult(cfg.DescriptorPath())
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", desc.Version)
}

func TestSynthesize_RightmostVersionWins(t *testing.T) {
	cfg := newConfig(t)
	// A nested block carrying its own version field must not shadow the
	// package version: the rightmost occurrence is the one substituted.
	testutil.WriteFile(t, cfg.TemplatePath(), `package "mypkg" {
  tool {
    version = "binutils-2.40"
  }
  modules = []
  version = "0.0.0"
}
`)

	err := New(cfg).Synthesize(context.Background(), "3.0.0", nil)
	require.NoError(t, err)

	raw, err := os.ReadFile(cfg.DescriptorPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `version = "binutils-2.40"`)
	assert.Contains(t, string(raw), `version = "3.0.0"`)
}

func TestSynthesize_InvalidResultIsDeleted(t *testing.T) {
	cfg := newConfig(t)
	// The template text substitutes fine but is not valid HCL.
	testutil.WriteFile(t, cfg.TemplatePath(), `package "mypkg" {
  version = "0.0.0"
  modules = []
  {{{{
}
`)

	err := New(cfg).Synthesize(context.Background(), "1.0.0", nil)
	require.Error(t, err)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, cfg.DescriptorPath(), vErr.Path)

	_, statErr := os.Stat(cfg.DescriptorPath())
	assert.True(t, os.IsNotExist(statErr), "invalid descriptor must not be left on disk")
}

func TestSynthesize_MissingFieldsAreErrors(t *testing.T) {
	cfg := newConfig(t)

	t.Run("no version field", func(t *testing.T) {
		testutil.WriteFile(t, cfg.TemplatePath(), "package \"mypkg\" {\n  modules = []\n}\n")
		err := New(cfg).Synthesize(context.Background(), "1.0.0", nil)
		assert.ErrorContains(t, err, "no version field")
	})

	t.Run("no modules field", func(t *testing.T) {
		testutil.WriteFile(t, cfg.TemplatePath(), "package \"mypkg\" {\n  version = \"0.0.0\"\n}\n")
		err := New(cfg).Synthesize(context.Background(), "1.0.0", nil)
		assert.ErrorContains(t, err, "no modules field")
	})
}

func TestEnsureTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a loadable skeleton", func(t *testing.T) {
		cfg := newConfig(t)
		created, err := New(cfg).EnsureTemplate(ctx, "1.0.0")
		require.NoError(t, err)
		assert.True(t, created)

		desc, err := Consult(cfg.TemplatePath())
		require.NoError(t, err)
		assert.Equal(t, "mypkg", desc.Name)
		assert.Equal(t, "1.0.0", desc.Version)
		assert.Empty(t, desc.Modules)
		assert.Equal(t, []string{"kernel", "stdlib"}, desc.Applications)
	})

	t.Run("does nothing when a template exists", func(t *testing.T) {
		cfg := newConfig(t)
		testutil.WriteFile(t, cfg.TemplatePath(), basicTemplate)
		created, err := New(cfg).EnsureTemplate(ctx, "1.0.0")
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("clones version from a leftover descriptor", func(t *testing.T) {
		cfg := newConfig(t)
		testutil.WriteFile(t, cfg.DescriptorPath(), `package "mypkg" {
  version = "7.7.7"
  modules = []
}
`)
		created, err := New(cfg).EnsureTemplate(ctx, "1.0.0")
		require.NoError(t, err)
		assert.True(t, created)

		desc, err := Consult(cfg.TemplatePath())
		require.NoError(t, err)
		assert.Equal(t, "7.7.7", desc.Version)
	})
}

func TestNeedsRegen(t *testing.T) {
	base := time.Now().Add(-time.Hour)

	t.Run("missing descriptor", func(t *testing.T) {
		cfg := newConfig(t)
		testutil.WriteFile(t, cfg.TemplatePath(), basicTemplate)
		assert.True(t, New(cfg).NeedsRegen())
	})

	t.Run("up to date", func(t *testing.T) {
		cfg := newConfig(t)
		testutil.WriteFile(t, cfg.TemplatePath(), basicTemplate)
		testutil.WriteFile(t, cfg.DescriptorPath(), basicTemplate)
		testutil.SetModTime(t, cfg.TemplatePath(), base)
		testutil.SetModTime(t, cfg.SourceRoot(), base)
		testutil.SetModTime(t, cfg.DescriptorPath(), base.Add(time.Minute))
		assert.False(t, New(cfg).NeedsRegen())
	})

	t.Run("template newer than descriptor", func(t *testing.T) {
		cfg := newConfig(t)
		testutil.WriteFile(t, cfg.TemplatePath(), basicTemplate)
		testutil.WriteFile(t, cfg.DescriptorPath(), basicTemplate)
		testutil.SetModTime(t, cfg.DescriptorPath(), base)
		testutil.SetModTime(t, cfg.SourceRoot(), base)
		testutil.SetModTime(t, cfg.TemplatePath(), base.Add(time.Minute))
		assert.True(t, New(cfg).NeedsRegen())
	})

	t.Run("source listing change", func(t *testing.T) {
		cfg := newConfig(t)
		testutil.WriteFile(t, cfg.TemplatePath(), basicTemplate)
		testutil.WriteFile(t, cfg.DescriptorPath(), basicTemplate)
		testutil.SetModTime(t, cfg.TemplatePath(), base)
		testutil.SetModTime(t, cfg.DescriptorPath(), base.Add(time.Minute))
		testutil.SetModTime(t, cfg.SourceRoot(), base.Add(2*time.Minute))
		assert.True(t, New(cfg).NeedsRegen())
	})
}

func TestConsult_Errors(t *testing.T) {
	cfg := newConfig(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := Consult(cfg.DescriptorPath())
		assert.Error(t, err)
	})

	t.Run("no package block", func(t *testing.T) {
		testutil.WriteFile(t, cfg.DescriptorPath(), "other \"x\" {\n}\n")
		_, err := Consult(cfg.DescriptorPath())
		assert.ErrorContains(t, err, "no package block")
	})
}
