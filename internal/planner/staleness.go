package planner

import "os"

// StalenessOracle decides whether a target must be rebuilt given its
// prerequisite files. It exists as an interface so the timestamp policy
// below can be swapped for a content-hash oracle without touching the
// planner's control flow.
type StalenessOracle interface {
	// Stale reports whether target is out of date with respect to prereqs.
	Stale(target string, prereqs []string) bool
}

// ModTimeOracle is the default staleness policy: plain file modification
// time comparison, the same oracle make uses.
type ModTimeOracle struct{}

// Stale implements StalenessOracle. A missing target is stale; a missing
// prerequisite makes the target stale (the compile will surface the real
// problem if the file is genuinely gone); otherwise any prerequisite newer
// than the target makes it stale.
func (ModTimeOracle) Stale(target string, prereqs []string) bool {
	targetInfo, err := os.Stat(target)
	if err != nil {
		return true
	}
	for _, p := range prereqs {
		info, err := os.Stat(p)
		if err != nil {
			return true
		}
		if info.ModTime().After(targetInfo.ModTime()) {
			return true
		}
	}
	return false
}
