package rg

import "github.com/nmxmxh/vkrcore/renderer"

// PreImageBarrier is a state transition applied to an image before its
// owning pass executes (spec.md §4.12).
type PreImageBarrier struct {
	Image     ImageHandle
	SrcAccess AccessFlags
	DstAccess AccessFlags
	SrcLayout Layout
	DstLayout Layout
}

// PreBufferBarrier is the buffer analog; buffers have no layout.
type PreBufferBarrier struct {
	Buffer    BufferHandle
	SrcAccess AccessFlags
	DstAccess AccessFlags
}

// ExecuteFunc is a pass's user-supplied GPU work callback, taking the
// PassContext that carries the pass's current image index and user data
// (spec.md §9: "express them as Fn(&mut PassContext) -> Result<(), E> and
// propagate errors through the executor").
type ExecuteFunc func(ctx *PassContext) error

// rgPass is one declared unit of GPU work (spec.md §3.6 RgPass). Unlike
// images/buffers, passes don't survive across begin_frame (the pass
// vector is cleared and redeclared every frame per spec.md §3.6), so they
// are addressed purely by their index in Graph.passes for the lifetime of
// one compile/execute cycle rather than through a generational handle.
type rgPass struct {
	name   string
	typ    PassType
	flags  PassFlags

	colorAttachments []Attachment
	depthAttachment  *Attachment

	imageReads  []ImageUse
	imageWrites []ImageUse

	bufferReads  []BufferUse
	bufferWrites []BufferUse

	execute  ExecuteFunc
	userData any

	// compiled state, rebuilt each compile()
	culled           bool
	outEdges         []int
	inEdges          []int
	preImageBarriers []PreImageBarrier
	preBufferBarriers []PreBufferBarrier

	renderpass    renderer.RenderPassHandle
	renderTargets []renderer.RenderTargetHandle
}

func (p *rgPass) resetCompiledState() {
	p.culled = false
	p.outEdges = p.outEdges[:0]
	p.inEdges = p.inEdges[:0]
	p.preImageBarriers = p.preImageBarriers[:0]
	p.preBufferBarriers = p.preBufferBarriers[:0]
}

// addOutEdge adds to→ dst once, suppressing self-edges and duplicates
// (spec.md §4.8).
func (p *rgPass) addOutEdge(dst int, selfIndex int) {
	if dst == selfIndex {
		return
	}
	for _, e := range p.outEdges {
		if e == dst {
			return
		}
	}
	p.outEdges = append(p.outEdges, dst)
}

func (p *rgPass) addInEdge(src int, selfIndex int) {
	if src == selfIndex {
		return
	}
	for _, e := range p.inEdges {
		if e == src {
			return
		}
	}
	p.inEdges = append(p.inEdges, src)
}

// PassDesc is the caller-facing declaration for AddPass.
type PassDesc struct {
	Name             string
	Type             PassType
	Flags            PassFlags
	ColorAttachments []Attachment
	DepthAttachment  *Attachment
	ImageReads       []ImageUse
	ImageWrites      []ImageUse
	BufferReads      []BufferUse
	BufferWrites     []BufferUse
	Execute          ExecuteFunc
	UserData         any
}

// RenderTargetCacheEntry is the pass-keyed physical-object cache (spec.md
// §3.6, §4.14).
type RenderTargetCacheEntry struct {
	passName       string
	renderpassHash uint64
	renderpass     renderer.RenderPassHandle
	targetHash     uint64
	targetCount    uint32
	targets        []renderer.RenderTargetHandle
}
