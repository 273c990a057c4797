package rg

import (
	"github.com/nmxmxh/vkrcore/logx"
	"github.com/nmxmxh/vkrcore/renderer"
	"github.com/nmxmxh/vkrcore/vkrerr"
)

// PassContext is handed to a pass's ExecuteFunc (spec.md §9: "express
// them as Fn(&mut PassContext) -> Result<(), E>").
type PassContext struct {
	PassName   string
	ImageIndex uint32
	UserData   any
}

// Execute implements spec.md §4.15: iterate execution_order, applying
// each pass's pre-barriers, opening/closing its renderpass if graphics,
// and invoking its user callback. compile() must have succeeded first.
func (g *Graph) Execute() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.compiled {
		return vkrerr.New(vkrerr.InvalidArgument, "Execute called before a successful compile")
	}

	imageIdx := g.currentImageIndex
	for _, passIdx := range g.executionOrder {
		p := g.passes[passIdx]

		for _, b := range p.preImageBarriers {
			g.log.Debug("applying image barrier",
				logx.Uint64("image_id", uint64(b.Image.ID)), logx.Int("dst_layout", int(b.DstLayout)))
		}
		for _, b := range p.preBufferBarriers {
			g.log.Debug("applying buffer barrier",
				logx.Uint64("buffer_id", uint64(b.Buffer.ID)), logx.Int("dst_access", int(b.DstAccess)))
		}

		hasTarget := p.typ == PassGraphics && len(p.renderTargets) > 0
		if hasTarget {
			rt := pickRenderTarget(p.renderTargets, imageIdx)
			g.facade.BeginRenderpass(p.renderpass, rt)
		}

		if p.execute != nil {
			if err := p.execute(&PassContext{PassName: p.name, ImageIndex: imageIdx, UserData: p.userData}); err != nil {
				if hasTarget {
					g.facade.EndRenderpass()
				}
				return vkrerr.Wrap(vkrerr.BackendFailure, err, "pass execute callback failed")
			}
		}

		if hasTarget {
			g.facade.EndRenderpass()
		}
	}

	if g.presentBarrier != nil {
		g.log.Debug("applying final present barrier",
			logx.Uint64("image_id", uint64(g.presentBarrier.Image.ID)))
	}
	return nil
}

func pickRenderTarget(targets []renderer.RenderTargetHandle, idx uint32) renderer.RenderTargetHandle {
	if len(targets) == 0 {
		return renderer.NilRenderTarget
	}
	if int(idx) < len(targets) {
		return targets[idx]
	}
	return targets[0]
}
