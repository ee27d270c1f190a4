package dag

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the execution state of a node.
type State int32

const (
	// Pending means the node has not started executing.
	Pending State = iota
	// Running means a worker is executing the node.
	Running
	// Done means the node finished successfully.
	Done
	// Failed means the node failed or was skipped after an upstream failure.
	Failed
)

// Graph is a set of build targets and the dependency edges between them.
type Graph struct {
	// Nodes stores all targets, keyed by ID (the object target path).
	Nodes map[string]*Node
}

// Node is a single build target in the graph.
type Node struct {
	// ID is the unique identifier, the object target path.
	ID string
	// Deps holds the nodes this node must be built after.
	Deps map[string]*Node
	// Dependents holds the nodes that must be built after this one.
	Dependents map[string]*Node

	// remaining counts unfinished dependencies during execution.
	remaining atomic.Int32
	// state tracks the node's execution state.
	state atomic.Int32
	// Err records why the node failed, when it did.
	Err error
	// skipOnce guards the one-shot transition into the skipped-failed state.
	skipOnce sync.Once
}

// State returns the node's current execution state.
func (n *Node) State() State { return State(n.state.Load()) }

// NewGraph returns an initialized, empty Graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode adds a node with the given ID and returns it. Adding an existing
// ID returns the existing node unchanged.
func (g *Graph) AddNode(id string) *Node {
	if n, ok := g.Nodes[id]; ok {
		return n
	}
	n := &Node{
		ID:         id,
		Deps:       make(map[string]*Node),
		Dependents: make(map[string]*Node),
	}
	g.Nodes[id] = n
	return n
}

// AddEdge records that toID must be built after fromID. An error is
// returned if either node is missing or the edge would be self-referential.
func (g *Graph) AddEdge(fromID, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s", fromID)
	}
	from, ok := g.Nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	to, ok := g.Nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}
	to.Deps[fromID] = from
	from.Dependents[toID] = to
	return nil
}

// InitCounters seeds each node's remaining-dependency counter. Must be
// called once, after all edges are added and before execution.
func (g *Graph) InitCounters() {
	for _, n := range g.Nodes {
		n.remaining.Store(int32(len(n.Deps)))
	}
}

// DetectCycles checks the graph for circular dependencies using
// depth-first search, returning an error naming a node on the first cycle
// found.
func (g *Graph) DetectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		visiting[n.ID] = true
		for _, dep := range n.Deps {
			if visiting[dep.ID] {
				return fmt.Errorf("dependency cycle detected involving '%s'", dep.ID)
			}
			if !visited[dep.ID] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		delete(visiting, n.ID)
		visited[n.ID] = true
		return nil
	}

	for _, n := range g.Nodes {
		if !visited[n.ID] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
