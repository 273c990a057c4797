package rg

// cull implements spec.md §4.9. It determines the output set (present
// image ∪ exported images/buffers), and if non-empty, keeps only passes
// transitively upstream of NO_CULL passes or writers of an output
// resource, via reverse BFS over the dependency graph built by
// computeDependencyEdges. DISABLED passes are always culled.
func (g *Graph) cull() {
	for _, p := range g.passes {
		p.culled = p.flags.has(PassFlagDisabled)
	}

	outputsEmpty := g.presentImage.IsNull() && len(g.exportImages) == 0 && len(g.exportBuffers) == 0
	if outputsEmpty {
		// Keep all non-disabled passes.
		return
	}

	keep := make([]bool, len(g.passes))
	queue := make([]int, 0, len(g.passes))

	for i, p := range g.passes {
		if p.flags.has(PassFlagDisabled) {
			continue
		}
		if p.flags.has(PassFlagNoCull) {
			if !keep[i] {
				keep[i] = true
				queue = append(queue, i)
			}
		}
	}

	writesOutput := func(p *rgPass) bool {
		if !g.presentImage.IsNull() {
			for _, att := range p.colorAttachments {
				if att.Image.Handle == g.presentImage.Handle {
					return true
				}
			}
			for _, u := range p.imageWrites {
				if u.Handle.Handle == g.presentImage.Handle {
					return true
				}
			}
		}
		for _, exp := range g.exportImages {
			for _, u := range p.imageWrites {
				if u.Handle.Handle == exp.Handle {
					return true
				}
			}
			for _, att := range p.colorAttachments {
				if att.Image.Handle == exp.Handle {
					return true
				}
			}
		}
		for _, exp := range g.exportBuffers {
			for _, u := range p.bufferWrites {
				if u.Handle.Handle == exp.Handle {
					return true
				}
			}
		}
		return false
	}

	for i, p := range g.passes {
		if p.flags.has(PassFlagDisabled) || keep[i] {
			continue
		}
		if writesOutput(p) {
			keep[i] = true
			queue = append(queue, i)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, src := range g.passes[cur].inEdges {
			if keep[src] {
				continue
			}
			keep[src] = true
			queue = append(queue, src)
		}
	}

	for i, p := range g.passes {
		if p.flags.has(PassFlagDisabled) {
			p.culled = true
			continue
		}
		p.culled = !keep[i]
	}
}
