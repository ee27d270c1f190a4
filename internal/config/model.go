package config

import "path/filepath"

// Config holds every knob for one build invocation. Directory fields are
// relative to Root unless absolute; the accessor methods below resolve them.
type Config struct {
	// Name is the package name. Defaults to the base name of Root.
	Name string `yaml:"name"`
	// Root is the package root directory.
	Root string `yaml:"root"`

	SrcDir     string `yaml:"src_dir"`
	IncludeDir string `yaml:"include_dir"`
	TestDir    string `yaml:"test_dir"`
	OutDir     string `yaml:"out_dir"`
	TestOutDir string `yaml:"test_out_dir"`
	DepsDir    string `yaml:"deps_dir"`
	DocDir     string `yaml:"doc_dir"`
	InstallDir string `yaml:"install_dir"`

	SourceExt     string `yaml:"source_ext"`
	GrammarExt    string `yaml:"grammar_ext"`
	ObjectExt     string `yaml:"object_ext"`
	DepExt        string `yaml:"dep_ext"`
	TemplateExt   string `yaml:"template_ext"`
	DescriptorExt string `yaml:"descriptor_ext"`

	// Compiler is the toolchain executable; CompilerFlags are passed through
	// on every compile invocation.
	Compiler      string            `yaml:"compiler"`
	CompilerFlags []string          `yaml:"compiler_flags"`
	Includes      []string          `yaml:"includes"`
	Defines       map[string]string `yaml:"defines"`

	// DocCommand, when non-empty, is run verbatim by the docs goal.
	DocCommand string `yaml:"doc_command"`

	// Version resolution switches.
	Version    string `yaml:"version"`     // explicit override, highest priority
	ForceTag   bool   `yaml:"force_tag"`   // always take the source-control tag
	NoVsnFile  bool   `yaml:"no_vsn_file"` // ignore the legacy <name>.vsn file
	HashSuffix bool   `yaml:"hash_suffix"` // append -g<hash> when version != tag
	DefaultVsn string `yaml:"default_vsn"` // last-resort fallback version

	Workers   int    `yaml:"workers"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Watch     bool   `yaml:"-"`
}

// join resolves a configured directory against the package root.
func (c *Config) join(dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.Root, dir)
}

// SourceRoot returns the directory holding ordinary and grammar sources.
func (c *Config) SourceRoot() string { return c.join(c.SrcDir) }

// IncludeRoot returns the shared header directory.
func (c *Config) IncludeRoot() string { return c.join(c.IncludeDir) }

// TestRoot returns the directory holding test sources.
func (c *Config) TestRoot() string { return c.join(c.TestDir) }

// OutRoot returns the main object output directory.
func (c *Config) OutRoot() string { return c.join(c.OutDir) }

// TestOutRoot returns the test object output directory.
func (c *Config) TestOutRoot() string { return c.join(c.TestOutDir) }

// DepsRoot returns the directory holding dependency records.
func (c *Config) DepsRoot() string { return c.join(c.DepsDir) }

// DocRoot returns the documentation output directory.
func (c *Config) DocRoot() string { return c.join(c.DocDir) }

// InstallRoot returns the directory packages are installed under.
func (c *Config) InstallRoot() string { return c.join(c.InstallDir) }

// TemplatePath returns the path of the hand-authored descriptor template.
func (c *Config) TemplatePath() string {
	return filepath.Join(c.SourceRoot(), c.Name+c.TemplateExt)
}

// DescriptorPath returns the path of the synthesized package descriptor.
func (c *Config) DescriptorPath() string {
	return filepath.Join(c.OutRoot(), c.Name+c.DescriptorExt)
}

// VsnFilePath returns the path of the legacy standalone version file.
func (c *Config) VsnFilePath() string {
	return filepath.Join(c.SourceRoot(), c.Name+".vsn")
}

// ObjectPath returns the object target path for a module. Test modules
// compile into the test output directory.
func (c *Config) ObjectPath(module string, test bool) string {
	if test {
		return filepath.Join(c.TestOutRoot(), module+c.ObjectExt)
	}
	return filepath.Join(c.OutRoot(), module+c.ObjectExt)
}

// DepPath returns the dependency record path for a module.
func (c *Config) DepPath(module string, test bool) string {
	if test {
		return filepath.Join(c.DepsRoot(), module+"_test"+c.DepExt)
	}
	return filepath.Join(c.DepsRoot(), module+c.DepExt)
}

// GeneratedSourcePath returns where a grammar-derived source materializes.
func (c *Config) GeneratedSourcePath(module string) string {
	return filepath.Join(c.SourceRoot(), module+c.SourceExt)
}

// IncludePaths returns the resolved include search path for the toolchain.
func (c *Config) IncludePaths() []string {
	paths := make([]string, 0, len(c.Includes))
	for _, inc := range c.Includes {
		paths = append(paths, c.join(inc))
	}
	return paths
}

// AllDefines returns the configured preprocessor definitions plus the
// injected package-name macro.
func (c *Config) AllDefines() map[string]string {
	defines := make(map[string]string, len(c.Defines)+1)
	for k, v := range c.Defines {
		defines[k] = v
	}
	defines["PACKAGE_NAME"] = c.Name
	return defines
}
