package asset

import "slices"

// findCycle returns the first dependency cycle in deps, or nil.
//
// Strongly connected components are found with Tarjan's algorithm. Nodes
// and edges are visited in key order so the reported cycle is stable.
func findCycle(deps map[Key][]Key) []Key {
	nodes := make([]Key, 0, len(deps))
	for k := range deps {
		nodes = append(nodes, k)
	}
	slices.SortFunc(nodes, Key.Compare)

	for _, scc := range tarjanSCC(nodes, deps) {
		if len(scc) > 1 || slices.Contains(deps[scc[0]], scc[0]) {
			return cyclePath(scc, deps)
		}
	}
	return nil
}

func tarjanSCC(nodes []Key, deps map[Key][]Key) [][]Key {
	var (
		index   = 0
		stack   []Key
		indices = make(map[Key]int)
		lowlink = make(map[Key]int)
		onStack = make(map[Key]bool)
		sccs    [][]Key
	)

	var strongConnect func(Key)
	strongConnect = func(v Key) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range deps[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []Key
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.SortFunc(scc, Key.Compare)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath walks edges inside scc from its smallest member back to itself.
func cyclePath(scc []Key, deps map[Key][]Key) []Key {
	start := scc[0]
	if len(scc) == 1 {
		return []Key{start, start}
	}

	members := make(map[Key]bool, len(scc))
	for _, k := range scc {
		members[k] = true
	}

	// Depth-first search for a simple path start -> ... -> start.
	var (
		path    = []Key{start}
		visited = map[Key]bool{start: true}
		walk    func(Key) bool
	)
	walk = func(cur Key) bool {
		for _, next := range deps[cur] {
			if next == start {
				path = append(path, start)
				return true
			}
			if !members[next] || visited[next] {
				continue
			}
			visited[next] = true
			path = append(path, next)
			if walk(next) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	walk(start)
	return path
}
