// Package graph provides the task plan graph manager: validation of plan
// submissions and scheduling over the resulting dependency graph.
package graph

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/loomhq/loom/pkg/models"
)

// ErrCycleDetected indicates a circular dependency was found in the submission.
var ErrCycleDetected = errors.New("circular dependency detected")

// DependencyGraph is a directed acyclic graph of task nodes. Edges represent
// "blocked by" relationships.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps node ID to the node itself.
	nodes map[string]*models.TaskNode
	// edges maps node ID to IDs of nodes it depends on.
	edges map[string][]string
	// order preserves submission order for deterministic iteration.
	order []string
	// completed tracks which nodes have been marked complete.
	completed map[string]bool
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// NewDependencyGraph creates a new empty dependency graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		nodes:     make(map[string]*models.TaskNode),
		edges:     make(map[string][]string),
		completed: make(map[string]bool),
		debugLog:  func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *DependencyGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Build constructs the dependency graph from a plan's nodes.
// Returns an error if a cycle is detected or dependencies reference unknown nodes.
func (g *DependencyGraph) Build(nodes []*models.TaskNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range nodes {
		g.nodes[n.ID] = n
		g.edges[n.ID] = nil
		g.order = append(g.order, n.ID)
		if n.Status == models.TaskStatusCompleted {
			g.completed[n.ID] = true
		}
	}

	for _, n := range nodes {
		for _, depID := range n.DependsOn {
			if _, exists := g.nodes[depID]; !exists {
				return fmt.Errorf("node %s depends on unknown node %s", n.ID, depID)
			}
			g.edges[n.ID] = append(g.edges[n.ID], depID)
		}
	}

	if g.hasCycleLocked() {
		return ErrCycleDetected
	}

	g.debugLog("[graph.Build] graph built with %d nodes", len(g.nodes))
	return nil
}

// HasCycle returns true if the graph contains a circular dependency.
// Uses depth-first search with three-color marking to detect back edges.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked is the internal implementation that assumes the lock is held.
func (g *DependencyGraph) hasCycleLocked() bool {
	// Color states: 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1

		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				// Edge into an in-progress node is a back edge.
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}

		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

// Readiness is a point-in-time classification of every node in the graph.
type Readiness struct {
	// Ready holds pending nodes whose dependencies have all completed.
	Ready []*models.TaskNode
	// Waiting holds pending nodes with at least one unmet dependency.
	Waiting []*models.TaskNode
	// InProgress holds nodes currently assigned to a worker.
	InProgress []*models.TaskNode
	// Failed holds failed and cancelled nodes.
	Failed []*models.TaskNode
}

// Classify partitions the graph's nodes by readiness. A pending node is ready
// iff every dependency is in the completed set.
func (g *DependencyGraph) Classify() Readiness {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var r Readiness
	for _, id := range g.order {
		n := g.nodes[id]
		switch n.Status {
		case models.TaskStatusInProgress:
			r.InProgress = append(r.InProgress, n)
		case models.TaskStatusFailed, models.TaskStatusCancelled:
			r.Failed = append(r.Failed, n)
		case models.TaskStatusPending:
			if g.depsMetLocked(id) {
				r.Ready = append(r.Ready, n)
			} else {
				r.Waiting = append(r.Waiting, n)
			}
		}
	}
	return r
}

// GetReady returns the nodes that are ready to be scheduled.
func (g *DependencyGraph) GetReady() []*models.TaskNode {
	return g.Classify().Ready
}

func (g *DependencyGraph) depsMetLocked(id string) bool {
	for _, depID := range g.edges[id] {
		if !g.completed[depID] {
			return false
		}
	}
	return true
}

// MarkComplete marks a node as completed in the graph, unblocking dependents.
func (g *DependencyGraph) MarkComplete(nodeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.debugLog("[graph.MarkComplete] node %s complete", nodeID)
	g.completed[nodeID] = true
}

// GetNode returns the node for a given ID, or nil if not found.
func (g *DependencyGraph) GetNode(nodeID string) *models.TaskNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[nodeID]
}

// Order returns node IDs in submission order.
func (g *DependencyGraph) Order() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Size returns the number of nodes in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// GetDependencies returns the IDs of nodes that the given node depends on,
// in dependency-list order.
func (g *DependencyGraph) GetDependencies(nodeID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edges[nodeID]
}

// GetDependents returns the IDs of nodes that depend on the given node.
func (g *DependencyGraph) GetDependents(nodeID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var dependents []string
	for _, id := range g.order {
		for _, depID := range g.edges[id] {
			if depID == nodeID {
				dependents = append(dependents, id)
				break
			}
		}
	}
	return dependents
}

// Done returns true when no node remains pending or in progress.
func (g *DependencyGraph) Done() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, n := range g.nodes {
		if !n.Status.Terminal() {
			return false
		}
	}
	return true
}

// UpstreamContext concatenates the serialized results of a node's completed
// dependencies, in dependency-list order. Dependencies without a result
// contribute nothing.
func (g *DependencyGraph) UpstreamContext(nodeID string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var sb strings.Builder
	for _, depID := range g.edges[nodeID] {
		dep := g.nodes[depID]
		if dep == nil || dep.Status != models.TaskStatusCompleted || dep.Result == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "## Result of %q\n%s", dep.Description, dep.Result)
	}
	return sb.String()
}
