package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richcarl/stdapp/internal/app"
	"github.com/richcarl/stdapp/internal/config"
	"github.com/richcarl/stdapp/internal/goal"
	"github.com/richcarl/stdapp/internal/manifest"
	"github.com/richcarl/stdapp/internal/testutil"
	"github.com/richcarl/stdapp/internal/vcs"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())
	cfg.Name = "myapp"
	cfg.Workers = 2
	cfg.LogLevel = "error"
	return cfg
}

func runGoal(t *testing.T, cfg *config.Config, tc *testutil.FakeToolchain, g goal.Goal) error {
	t.Helper()
	var out bytes.Buffer
	a := app.New(&out, cfg, tc, vcs.None{})
	return a.Run(context.Background(), g)
}

func TestRun_EmptyPackageBootstrapsDescriptor(t *testing.T) {
	cfg := newTestConfig(t)
	tc := testutil.NewFakeToolchain()

	require.NoError(t, runGoal(t, cfg, tc, goal.Build))

	// Nothing to compile, but a template skeleton and a descriptor with an
	// empty module list materialize.
	assert.Zero(t, tc.CompiledCount())
	assert.FileExists(t, cfg.TemplatePath())

	desc, err := manifest.Consult(cfg.DescriptorPath())
	require.NoError(t, err)
	assert.Equal(t, "myapp", desc.Name)
	assert.Equal(t, cfg.DefaultVsn, desc.Version)
	assert.Empty(t, desc.Modules)
}

func TestRun_BuildAfterAddingSource(t *testing.T) {
	cfg := newTestConfig(t)
	tc := testutil.NewFakeToolchain()

	require.NoError(t, runGoal(t, cfg, tc, goal.Build))

	src := filepath.Join(cfg.SourceRoot(), "foo.erl")
	testutil.WriteFile(t, src, "-module(foo).\n")
	testutil.SetModTime(t, cfg.SourceRoot(), time.Now().Add(time.Second))

	require.NoError(t, runGoal(t, cfg, tc, goal.Build))

	assert.Equal(t, []string{src}, tc.CompiledSources())
	assert.FileExists(t, cfg.ObjectPath("foo", false))
	assert.FileExists(t, cfg.DepPath("foo", false))

	objects, err := filepath.Glob(filepath.Join(cfg.OutRoot(), "*"+cfg.ObjectExt))
	require.NoError(t, err)
	assert.Len(t, objects, 1)
	records, err := filepath.Glob(filepath.Join(cfg.DepsRoot(), "*"+cfg.DepExt))
	require.NoError(t, err)
	assert.Len(t, records, 1)

	desc, err := manifest.Consult(cfg.DescriptorPath())
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, desc.Modules)

	// A third invocation with nothing changed is a no-op.
	before := tc.CompiledCount()
	require.NoError(t, runGoal(t, cfg, tc, goal.Build))
	assert.Equal(t, before, tc.CompiledCount())
}

func TestRun_TestsGoalCompilesTestModules(t *testing.T) {
	cfg := newTestConfig(t)
	tc := testutil.NewFakeToolchain()

	testutil.WriteFile(t, filepath.Join(cfg.SourceRoot(), "foo.erl"), "-module(foo).\n")
	testutil.WriteFile(t, filepath.Join(cfg.TestRoot(), "foo_tests.erl"), "-module(foo_tests).\n")

	require.NoError(t, runGoal(t, cfg, tc, goal.Tests))

	assert.FileExists(t, cfg.ObjectPath("foo", false))
	assert.FileExists(t, cfg.ObjectPath("foo_tests", true))
	assert.FileExists(t, cfg.DepPath("foo_tests", true))
}

func TestRun_CleanRemovesObjectsAndDescriptor(t *testing.T) {
	cfg := newTestConfig(t)
	tc := testutil.NewFakeToolchain()

	testutil.WriteFile(t, filepath.Join(cfg.SourceRoot(), "foo.erl"), "-module(foo).\n")
	require.NoError(t, runGoal(t, cfg, tc, goal.Build))
	require.FileExists(t, cfg.DescriptorPath())

	require.NoError(t, runGoal(t, cfg, tc, goal.Clean))

	assert.NoFileExists(t, cfg.ObjectPath("foo", false))
	assert.NoFileExists(t, cfg.DescriptorPath())
	// Dependency records and the template survive an object clean.
	assert.FileExists(t, cfg.DepPath("foo", false))
	assert.FileExists(t, cfg.TemplatePath())
}

func TestRun_CleanupIgnoresCorruptRecords(t *testing.T) {
	cfg := newTestConfig(t)
	tc := testutil.NewFakeToolchain()

	testutil.WriteFile(t, cfg.DepPath("foo", false), "this is not : a valid : rule\n\\")
	testutil.WriteFile(t, filepath.Join(cfg.OutRoot(), "foo"+cfg.ObjectExt), "x")

	require.NoError(t, runGoal(t, cfg, tc, goal.Distclean))

	assert.Zero(t, tc.CompiledCount())
	assert.NoFileExists(t, cfg.DepPath("foo", false))
	assert.NoFileExists(t, cfg.ObjectPath("foo", false))
}

func TestRun_RealcleanRemovesGeneratedSources(t *testing.T) {
	cfg := newTestConfig(t)
	tc := testutil.NewFakeToolchain()

	testutil.WriteFile(t, filepath.Join(cfg.SourceRoot(), "parser.yrl"), "grammar\n")
	require.NoError(t, runGoal(t, cfg, tc, goal.Build))
	require.FileExists(t, cfg.GeneratedSourcePath("parser"))

	require.NoError(t, runGoal(t, cfg, tc, goal.Realclean))

	assert.NoFileExists(t, cfg.GeneratedSourcePath("parser"))
	// The grammar source itself is never removed.
	assert.FileExists(t, filepath.Join(cfg.SourceRoot(), "parser.yrl"))
}

func TestRun_InstallCopiesBuiltPackage(t *testing.T) {
	cfg := newTestConfig(t)
	tc := testutil.NewFakeToolchain()

	testutil.WriteFile(t, filepath.Join(cfg.SourceRoot(), "foo.erl"), "-module(foo).\n")
	testutil.WriteFile(t, filepath.Join(cfg.IncludeRoot(), "foo.hrl"), "-define(X, 1).\n")

	require.NoError(t, runGoal(t, cfg, tc, goal.Install))

	dest := filepath.Join(cfg.InstallRoot(), "myapp-"+cfg.DefaultVsn)
	assert.FileExists(t, filepath.Join(dest, cfg.OutDir, "foo"+cfg.ObjectExt))
	assert.FileExists(t, filepath.Join(dest, cfg.OutDir, "myapp"+cfg.DescriptorExt))
	assert.FileExists(t, filepath.Join(dest, cfg.IncludeDir, "foo.hrl"))
}

func TestRun_DocsRunsConfiguredCommand(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.DocCommand = "echo generated > doc/index.txt"
	tc := testutil.NewFakeToolchain()

	require.NoError(t, runGoal(t, cfg, tc, goal.Docs))

	data, err := os.ReadFile(filepath.Join(cfg.DocRoot(), "index.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "generated")
}

func TestRun_DocsWithoutCommandIsNoop(t *testing.T) {
	cfg := newTestConfig(t)
	tc := testutil.NewFakeToolchain()

	require.NoError(t, runGoal(t, cfg, tc, goal.Docs))
	assert.NoDirExists(t, cfg.DocRoot())
}

func TestRun_BuildFailureSurfacesCompileError(t *testing.T) {
	cfg := newTestConfig(t)
	tc := testutil.NewFakeToolchain()

	src := filepath.Join(cfg.SourceRoot(), "bad.erl")
	testutil.WriteFile(t, src, "-module(bad).\n")
	tc.FailCompile[src] = os.ErrPermission

	err := runGoal(t, cfg, tc, goal.Build)
	require.Error(t, err)
	assert.NoFileExists(t, cfg.DescriptorPath())
}

// fakeVCS answers with canned values.
type fakeVCS struct {
	tag  string
	hash string
}

func (f fakeVCS) Tag(context.Context) string       { return f.tag }
func (f fakeVCS) ShortHash(context.Context) string { return f.hash }

func TestRun_InstallDirectoryMatchesDescriptorVersion(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.HashSuffix = true
	tc := testutil.NewFakeToolchain()
	testutil.WriteFile(t, filepath.Join(cfg.SourceRoot(), "foo.erl"), "-module(foo).\n")

	var out bytes.Buffer
	a := app.New(&out, cfg, tc, fakeVCS{hash: "abcdef1"})
	require.NoError(t, a.Run(context.Background(), goal.Install))

	desc, err := manifest.Consult(cfg.DescriptorPath())
	require.NoError(t, err)
	assert.Equal(t, "0.1.0-gabcdef1", desc.Version)

	// The install directory carries the exact version the descriptor
	// inside it declares, suffix included, with no second suffix.
	dest := filepath.Join(cfg.InstallRoot(), "myapp-"+desc.Version)
	assert.FileExists(t, filepath.Join(dest, cfg.OutDir, "foo"+cfg.ObjectExt))
	assert.FileExists(t, filepath.Join(dest, cfg.OutDir, "myapp"+cfg.DescriptorExt))
}

func TestRun_WatchRebuildsOnSourceChange(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Watch = true
	tc := testutil.NewFakeToolchain()
	src := filepath.Join(cfg.SourceRoot(), "foo.erl")
	testutil.WriteFile(t, src, "-module(foo).\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out bytes.Buffer
	a := app.New(&out, cfg, tc, vcs.None{})
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, goal.Build) }()

	// Initial build.
	require.Eventually(t, func() bool { return tc.CompiledCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	// A touched source triggers exactly one debounced rebuild.
	testutil.WriteFile(t, src, "-module(foo).\n%% touched\n")
	testutil.SetModTime(t, src, time.Now().Add(time.Second))
	require.Eventually(t, func() bool { return tc.CompiledCount() == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop on context cancellation")
	}
}
