// Package config defines the immutable per-invocation build configuration.
//
// A Config is constructed exactly once, from compiled defaults, an optional
// YAML project file, environment variables, and finally command-line flags.
// After construction no component reads the ambient environment again; the
// only processes that escape the struct are the declared collaborator calls
// (compiler toolchain, source control).
package config
