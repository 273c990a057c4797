package rg

import "github.com/nmxmxh/vkrcore/logx"

// Compile implements spec.md §4.7-§4.14's pipeline: validate, compute
// dependency edges, cull, topologically sort, analyze lifetimes,
// synthesize barriers, realize physical resources, and populate the
// renderpass/render-target cache. On any failure, execution_order is left
// untouched (spec.md §7: "render-graph compile returns false without
// mutating execution_order on any validation or topo failure").
func (g *Graph) Compile() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, p := range g.passes {
		p.resetCompiledState()
	}

	if err := g.validate(); err != nil {
		g.log.Error("render graph compile failed: validation", logx.String("session", g.sessionID), logx.Err(err))
		return err
	}

	g.computeDependencyEdges()
	g.cull()

	order, err := g.topoSort()
	if err != nil {
		g.log.Error("render graph compile failed: toposort", logx.String("session", g.sessionID), logx.Err(err))
		return err
	}

	g.computeLifetimes(order)
	g.synthesizeBarriers(order)

	if g.alias != nil {
		g.alias.plan(g, order)
	}

	if err := g.realize(); err != nil {
		g.log.Error("render graph compile failed: realization", logx.String("session", g.sessionID), logx.Err(err))
		return err
	}

	if err := g.populateRenderTargetCache(order); err != nil {
		g.log.Error("render graph compile failed: render target cache", logx.String("session", g.sessionID), logx.Err(err))
		return err
	}

	g.executionOrder = order
	g.compiled = true
	return nil
}
