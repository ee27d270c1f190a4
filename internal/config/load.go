package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the project configuration file looked up under the
// package root when no explicit path is given.
const DefaultFileName = "stdapp.yaml"

// Default returns a Config populated with the compiled-in defaults for the
// given package root.
func Default(root string) *Config {
	return &Config{
		Root:          root,
		SrcDir:        "src",
		IncludeDir:    "include",
		TestDir:       "test",
		OutDir:        "ebin",
		TestOutDir:    filepath.Join("test", "ebin"),
		DepsDir:       ".deps",
		DocDir:        "doc",
		InstallDir:    "lib",
		SourceExt:     ".erl",
		GrammarExt:    ".yrl",
		ObjectExt:     ".beam",
		DepExt:        ".d",
		TemplateExt:   ".pkg.src",
		DescriptorExt: ".pkg",
		Compiler:      "erlc",
		Includes:      []string{"include", "src"},
		DefaultVsn:    "0.1.0",
		Workers:       4,
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// Load builds a Config for root: defaults, then the YAML project file (the
// explicit path, or stdapp.yaml under root when present), then .env and
// process environment overrides. Flag overrides are applied afterwards by
// the CLI layer.
func Load(root, file string) (*Config, error) {
	cfg := Default(root)

	path := file
	if path == "" {
		candidate := filepath.Join(root, DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		// The file must not silently move the package root.
		cfg.Root = root
	}

	_ = godotenv.Load(filepath.Join(root, ".env"))
	applyEnv(cfg)

	if cfg.Name == "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolving package root: %w", err)
		}
		cfg.Name = filepath.Base(abs)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return cfg, nil
}

// applyEnv overlays STDAPP_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("STDAPP_NAME"); v != "" {
		cfg.Name = v
	}
	if v := os.Getenv("STDAPP_VERSION"); v != "" {
		cfg.Version = v
	}
	if v := os.Getenv("STDAPP_COMPILER"); v != "" {
		cfg.Compiler = v
	}
	if v := os.Getenv("STDAPP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("STDAPP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
