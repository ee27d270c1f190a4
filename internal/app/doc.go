// Package app wires the build components together and drives one goal per
// invocation: it owns the logger, dispatches destructive goals to the
// cleanup paths (which never consult dependency records), and runs the
// discover → plan → compile → synthesize pipeline for the build goals.
package app
