// Package goal defines the set of build goals a single invocation can
// pursue and the policy questions the rest of the system asks about them.
package goal

import "fmt"

// Goal names one top-level operation on a package.
type Goal string

const (
	Build      Goal = "build"
	Tests      Goal = "tests"
	Docs       Goal = "docs"
	Install    Goal = "install"
	Clean      Goal = "clean"
	CleanTests Goal = "clean-tests"
	CleanDeps  Goal = "clean-deps"
	CleanDocs  Goal = "clean-docs"
	Distclean  Goal = "distclean"
	Realclean  Goal = "realclean"
)

// All lists every recognized goal, in the order shown in usage text.
var All = []Goal{
	Build, Tests, Docs, Install,
	Clean, CleanTests, CleanDeps, CleanDocs, Distclean, Realclean,
}

// Parse maps a command-line argument to a Goal.
func Parse(s string) (Goal, error) {
	for _, g := range All {
		if string(g) == s {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown goal %q", s)
}

// String implements fmt.Stringer.
func (g Goal) String() string { return string(g) }

// IsDestructive reports whether the goal exists to delete generated
// artifacts. Dependency records are never consulted for such goals:
// reading them could schedule compilation as a side effect of a cleanup.
func (g Goal) IsDestructive() bool {
	switch g {
	case Clean, CleanTests, CleanDeps, CleanDocs, Distclean, Realclean:
		return true
	}
	return false
}

// ConcernsTests reports whether the goal operates on test modules.
// Dependency records for test modules are only loaded when it does,
// so a pure library build never touches the test half of the tree.
func (g Goal) ConcernsTests() bool {
	return g == Tests || g == CleanTests
}

// Compiles reports whether the goal may invoke the compiler toolchain.
func (g Goal) Compiles() bool {
	return g == Build || g == Tests || g == Install
}
