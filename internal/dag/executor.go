package dag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/richcarl/stdapp/internal/ctxlog"
)

// RunFunc executes one node. It is called at most once per node, only
// after every dependency of the node has completed successfully.
type RunFunc func(ctx context.Context, id string) error

// Executor drains a graph with a pool of concurrent workers.
type Executor struct {
	graph   *Graph
	workers int
	run     RunFunc
	wg      sync.WaitGroup
}

// NewExecutor returns an Executor over graph with the given worker count.
func NewExecutor(graph *Graph, workers int, run RunFunc) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{graph: graph, workers: workers, run: run}
}

// Run executes the whole graph and returns an error if any node failed.
// On the first failure no new nodes are scheduled; already-running
// independent nodes finish, and their completed output stays on disk for
// the next incremental run.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	e.graph.InitCounters()

	readyChan := make(chan *Node, len(e.graph.Nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rootCount := 0
	for _, n := range e.graph.Nodes {
		if n.remaining.Load() == 0 {
			readyChan <- n
			rootCount++
		}
	}
	logger.Debug("Executor initialized.", "nodes", len(e.graph.Nodes), "roots", rootCount, "workers", e.workers)

	e.wg.Add(len(e.graph.Nodes))
	for i := 0; i < e.workers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	e.wg.Wait()
	close(readyChan)
	logger.Debug("All nodes completed.")

	var failed []string
	var rootCause error
	for _, n := range e.graph.Nodes {
		if n.State() != Failed {
			continue
		}
		// Skipped nodes are symptoms; keep looking for the real cause.
		if n.Err != nil && !strings.HasPrefix(n.Err.Error(), "skipped") && !errors.Is(n.Err, context.Canceled) {
			failed = append(failed, n.ID)
			if rootCause == nil {
				rootCause = n.Err
			}
		}
	}
	if rootCause != nil {
		sort.Strings(failed)
		return fmt.Errorf("build failed for %s: %w", strings.Join(failed, ", "), rootCause)
	}
	return nil
}

// worker is the processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *Node, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)

	for n := range readyChan {
		workerLogger := logger.With("workerID", workerID, "target", n.ID)

		if ctx.Err() != nil {
			n.skipOnce.Do(func() {
				workerLogger.Warn("Context canceled, skipping target.")
				n.state.Store(int32(Failed))
				n.Err = ctx.Err()
				e.wg.Done()
				// A cancel-skipped node's dependents will never be
				// enqueued through the normal countdown; skip them too,
				// or Run's wait would never drain.
				e.skipDependents(ctx, n)
			})
			continue
		}

		workerLogger.Debug("Worker picked up target.")
		n.state.Store(int32(Running))

		if err := e.run(ctx, n.ID); err != nil {
			workerLogger.Error("Target failed.", "error", err)
			n.state.Store(int32(Failed))
			n.Err = err
			cancel()
			e.skipDependents(ctx, n)
			e.wg.Done()
			continue
		}

		n.state.Store(int32(Done))
		for _, dependent := range n.Dependents {
			if dependent.remaining.Add(-1) == 0 {
				readyChan <- dependent
			}
		}
		e.wg.Done()
	}
}

// skipDependents recursively marks all downstream nodes as failed.
func (e *Executor) skipDependents(ctx context.Context, n *Node) {
	logger := ctxlog.FromContext(ctx)
	for _, dependent := range n.Dependents {
		dependent.skipOnce.Do(func() {
			logger.Warn("Skipping target due to upstream failure.", "target", dependent.ID, "failedDependency", n.ID)
			dependent.state.Store(int32(Failed))
			dependent.Err = fmt.Errorf("skipped due to upstream failure of '%s'", n.ID)
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		})
	}
}
