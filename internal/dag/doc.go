// Package dag holds the object-target dependency graph and the concurrent
// executor that drains it. Nodes are object targets keyed by path; an edge
// from A to B means B's object must be (re)built after A's. Two targets
// with no path between them may run concurrently, each writing only the
// files it uniquely owns.
package dag
