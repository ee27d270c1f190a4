// Package cli parses command-line arguments into a build configuration and
// a goal, layering flag overrides on top of file and environment config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/richcarl/stdapp/internal/config"
	"github.com/richcarl/stdapp/internal/goal"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns the resolved Config
// and Goal, a boolean indicating the program should exit cleanly (help
// shown), or an ExitError.
func Parse(args []string, output io.Writer) (*config.Config, goal.Goal, bool, error) {
	flagSet := flag.NewFlagSet("stdapp", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
stdapp - incremental build orchestrator for one application package.

Usage:
  stdapp [options] [GOAL]

Goals:
  `+goalList()+`

The default goal is 'build'.

Options:
`)
		flagSet.PrintDefaults()
	}

	rootFlag := flagSet.String("C", ".", "Package root directory.")
	configFlag := flagSet.String("config", "", "Path to the YAML project configuration file.")
	nameFlag := flagSet.String("name", "", "Package name. Defaults to the root directory's base name.")
	versionFlag := flagSet.String("app-version", "", "Explicit package version, overriding all other sources.")
	forceTagFlag := flagSet.Bool("force-tag", false, "Always use the source-control tag as the version.")
	hashSuffixFlag := flagSet.Bool("hash-suffix", false, "Append a commit hash suffix when the version differs from the tag.")
	noVsnFileFlag := flagSet.Bool("no-vsn-file", false, "Ignore the legacy standalone version file.")
	compilerFlag := flagSet.String("compiler", "", "Compiler executable to invoke.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent compile workers. 0 keeps the configured value.")
	logFormatFlag := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")
	watchFlag := flagSet.Bool("watch", false, "Watch source directories and rebuild on change.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, "", true, nil
		}
		return nil, "", false, &ExitError{Code: 2, Message: err.Error()}
	}

	g := goal.Build
	if flagSet.NArg() > 0 {
		if flagSet.NArg() > 1 {
			return nil, "", false, &ExitError{Code: 2, Message: "at most one goal may be given"}
		}
		parsed, err := goal.Parse(flagSet.Arg(0))
		if err != nil {
			return nil, "", false, &ExitError{Code: 2, Message: err.Error()}
		}
		g = parsed
	}

	cfg, err := config.Load(*rootFlag, *configFlag)
	if err != nil {
		return nil, "", false, &ExitError{Code: 1, Message: err.Error()}
	}

	if *nameFlag != "" {
		cfg.Name = *nameFlag
	}
	if *versionFlag != "" {
		cfg.Version = *versionFlag
	}
	if *forceTagFlag {
		cfg.ForceTag = true
	}
	if *hashSuffixFlag {
		cfg.HashSuffix = true
	}
	if *noVsnFileFlag {
		cfg.NoVsnFile = true
	}
	if *compilerFlag != "" {
		cfg.Compiler = *compilerFlag
	}
	if *workersFlag > 0 {
		cfg.Workers = *workersFlag
	}
	if *logFormatFlag != "" {
		cfg.LogFormat = *logFormatFlag
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}
	cfg.Watch = *watchFlag

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, "", false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, "", false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if cfg.Watch && g.IsDestructive() {
		return nil, "", false, &ExitError{Code: 2, Message: "watch mode cannot be combined with a cleanup goal"}
	}

	return cfg, g, false, nil
}

func goalList() string {
	names := make([]string, len(goal.All))
	for i, g := range goal.All {
		names[i] = g.String()
	}
	return strings.Join(names, ", ")
}
