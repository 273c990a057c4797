package rg

import "github.com/nmxmxh/vkrcore/vkrerr"

// topoSort implements spec.md §4.10: canonical Kahn's algorithm over kept
// (non-culled) passes, considering only edges between kept passes.
// Iteration order provides the implicit declaration-order tie-break.
func (g *Graph) topoSort() ([]int, error) {
	kept := make([]int, 0, len(g.passes))
	for i, p := range g.passes {
		if !p.culled {
			kept = append(kept, i)
		}
	}

	inDegree := make(map[int]int, len(kept))
	keptSet := make(map[int]bool, len(kept))
	for _, i := range kept {
		keptSet[i] = true
	}
	for _, i := range kept {
		deg := 0
		for _, src := range g.passes[i].inEdges {
			if keptSet[src] {
				deg++
			}
		}
		inDegree[i] = deg
	}

	queue := make([]int, 0, len(kept))
	for _, i := range kept {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, len(kept))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		order = append(order, cur)
		for _, dst := range g.passes[cur].outEdges {
			if !keptSet[dst] {
				continue
			}
			inDegree[dst]--
			if inDegree[dst] == 0 {
				queue = append(queue, dst)
			}
		}
	}

	if len(order) != len(kept) {
		return nil, vkrerr.New(vkrerr.DependencyCycle, "dependency cycle detected")
	}
	return order, nil
}
