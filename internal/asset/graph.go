package asset

import (
	"fmt"
	"slices"
	"time"
)

// Graph is a validated, read-only dependency graph over asset specs.
type Graph struct {
	specs    map[Key]Spec
	keys     []Key
	parents  map[Key][]Key
	children map[Key][]Key
	order    []Key
}

// NewGraph validates specs and builds the graph. It fails on the first
// invalid key, duplicate key, dependency without a spec, or cycle.
func NewGraph(specs []Spec) (*Graph, error) {
	g := &Graph{
		specs:    make(map[Key]Spec, len(specs)),
		parents:  make(map[Key][]Key, len(specs)),
		children: make(map[Key][]Key, len(specs)),
	}

	for _, s := range specs {
		if err := s.Key.Validate(); err != nil {
			return nil, &GraphError{Code: ErrInvalidKey, Key: s.Key, Message: err.Error()}
		}
		if _, dup := g.specs[s.Key]; dup {
			return nil, &GraphError{Code: ErrDuplicateKey, Key: s.Key, Message: "asset is defined more than once"}
		}
		g.specs[s.Key] = s
		g.keys = append(g.keys, s.Key)
	}
	slices.SortFunc(g.keys, Key.Compare)

	for _, k := range g.keys {
		s := g.specs[k]
		deps := SortKeys(s.Deps)
		for _, dep := range deps {
			if _, ok := g.specs[dep]; !ok {
				return nil, &GraphError{
					Code:    ErrDanglingDep,
					Key:     k,
					Message: fmt.Sprintf("depends on %q which is not defined", dep),
				}
			}
			g.children[dep] = append(g.children[dep], k)
		}
		g.parents[k] = deps
	}

	if cycle := findCycle(g.parents); cycle != nil {
		return nil, &GraphError{Code: ErrCycleDetected, Key: cycle[0], Message: "dependency cycle", Path: cycle}
	}

	g.order = g.toposort()
	return g, nil
}

// toposort is Kahn's algorithm with the ready set kept in key order.
func (g *Graph) toposort() []Key {
	indegree := make(map[Key]int, len(g.keys))
	var ready []Key
	for _, k := range g.keys {
		indegree[k] = len(g.parents[k])
		if indegree[k] == 0 {
			ready = append(ready, k)
		}
	}

	order := make([]Key, 0, len(g.keys))
	for len(ready) > 0 {
		k := ready[0]
		ready = ready[1:]
		order = append(order, k)
		for _, child := range g.children[k] {
			indegree[child]--
			if indegree[child] == 0 {
				i, _ := slices.BinarySearchFunc(ready, child, Key.Compare)
				ready = slices.Insert(ready, i, child)
			}
		}
	}
	return order
}

// Keys returns every asset key in key order.
func (g *Graph) Keys() []Key { return slices.Clone(g.keys) }

// Has reports whether key is in the graph.
func (g *Graph) Has(key Key) bool {
	_, ok := g.specs[key]
	return ok
}

// Spec returns the spec for key.
func (g *Graph) Spec(key Key) (Spec, bool) {
	s, ok := g.specs[key]
	return s, ok
}

// Parents returns the direct dependencies of key.
func (g *Graph) Parents(key Key) []Key { return slices.Clone(g.parents[key]) }

// Children returns the assets that depend directly on key.
func (g *Graph) Children(key Key) []Key { return slices.Clone(g.children[key]) }

// TopologicalOrder returns keys with every asset after its parents. Ties
// are broken by key order.
func (g *Graph) TopologicalOrder() []Key { return slices.Clone(g.order) }

// Descendants returns every asset reachable downstream of key.
func (g *Graph) Descendants(key Key) []Key {
	seen := make(map[Key]bool)
	queue := g.Children(key)
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if seen[k] {
			continue
		}
		seen[k] = true
		queue = append(queue, g.children[k]...)
	}
	out := make([]Key, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	slices.SortFunc(out, Key.Compare)
	return out
}

// PartitionsDef returns the partitions definition of key if it has one.
func (g *Graph) PartitionsDef(key Key) (PartitionsDefinition, bool) {
	s, ok := g.specs[key]
	if !ok || s.Partitions == nil {
		return nil, false
	}
	return s.Partitions, true
}

// PartitionKeys returns the partitions of key at now, or [""] when the
// asset is unpartitioned.
func (g *Graph) PartitionKeys(key Key, now time.Time) []string {
	def, ok := g.PartitionsDef(key)
	if !ok {
		return []string{""}
	}
	return def.Keys(now)
}

// ParentPartitions maps childPartition of child onto parent's partitions.
//
// An unpartitioned parent maps to [""]. An unpartitioned child, or a
// child whose definition is incompatible with the parent's, depends on
// every parent partition. Compatible definitions map key to key; when the
// parent lacks the key it is returned in nonexistent.
func (g *Graph) ParentPartitions(child Key, childPartition string, parent Key, now time.Time) (mapped, nonexistent []string) {
	parentDef, ok := g.PartitionsDef(parent)
	if !ok {
		return []string{""}, nil
	}
	childDef, ok := g.PartitionsDef(child)
	if !ok || !childDef.Compatible(parentDef) {
		return parentDef.Keys(now), nil
	}
	if parentDef.Has(childPartition, now) {
		return []string{childPartition}, nil
	}
	return nil, []string{childPartition}
}
