package rg

type imageState struct {
	access AccessFlags
	layout Layout
}

type bufferState struct {
	access AccessFlags
}

// synthesizeBarriers implements spec.md §4.12: walk execution order,
// tracking per-resource (access, layout) state, and emit a pre-pass
// barrier whenever a use requires a different state than the resource is
// currently in.
func (g *Graph) synthesizeBarriers(order []int) {
	imageStates := make(map[uint32]imageState)
	bufferStates := make(map[uint32]bufferState)

	g.images.each(func(h Handle, img *rgImage) {
		if img.imported.set {
			imageStates[h.ID] = imageState{access: img.imported.access, layout: img.imported.layout}
		} else {
			imageStates[h.ID] = imageState{access: AccessNone, layout: LayoutUndefined}
		}
	})
	g.buffers.each(func(h Handle, buf *rgBuffer) {
		if buf.imported.set {
			bufferStates[h.ID] = bufferState{access: buf.imported.access}
		} else {
			bufferStates[h.ID] = bufferState{access: AccessNone}
		}
	})

	isDepthImage := func(img *rgImage) bool {
		return img.desc.Type == ImageTypeDepth || img.desc.Type == ImageTypeSampledDepth || img.desc.Type == ImageTypeSampledDepthArray
	}

	transitionImage := func(p *rgPass, h ImageHandle, access AccessFlags) {
		img, ok := g.images.get(h.Handle)
		if !ok {
			return
		}
		wanted := imageState{access: access, layout: layoutForAccess(access, isDepthImage(img))}
		cur := imageStates[h.ID]
		if cur != wanted {
			p.preImageBarriers = append(p.preImageBarriers, PreImageBarrier{
				Image:     h,
				SrcAccess: cur.access,
				DstAccess: wanted.access,
				SrcLayout: cur.layout,
				DstLayout: wanted.layout,
			})
			imageStates[h.ID] = wanted
		}
		img.finalAccess = wanted.access
		img.finalLayout = wanted.layout
	}

	transitionBuffer := func(p *rgPass, h BufferHandle, access AccessFlags) {
		buf, ok := g.buffers.get(h.Handle)
		if !ok {
			return
		}
		cur := bufferStates[h.ID]
		if cur.access != access {
			p.preBufferBarriers = append(p.preBufferBarriers, PreBufferBarrier{
				Buffer:    h,
				SrcAccess: cur.access,
				DstAccess: access,
			})
			bufferStates[h.ID] = bufferState{access: access}
		}
		buf.finalAccess = access
	}

	for _, passIdx := range order {
		p := g.passes[passIdx]
		for _, att := range p.colorAttachments {
			transitionImage(p, att.Image, AccessColorAttachment)
		}
		if p.depthAttachment != nil {
			access := AccessDepthAttachment
			if p.depthAttachment.ReadOnly {
				access = AccessDepthReadOnly
			}
			transitionImage(p, p.depthAttachment.Image, access)
		}
		for _, u := range p.imageReads {
			transitionImage(p, u.Handle, u.Access)
		}
		for _, u := range p.imageWrites {
			transitionImage(p, u.Handle, u.Access)
		}
		for _, u := range p.bufferReads {
			transitionBuffer(p, u.Handle, u.Access)
		}
		for _, u := range p.bufferWrites {
			transitionBuffer(p, u.Handle, u.Access)
		}
	}

	g.presentBarrier = nil
	if !g.presentImage.IsNull() {
		if img, ok := g.images.get(g.presentImage.Handle); ok {
			wanted := imageState{access: AccessPresent, layout: LayoutPresentSrc}
			cur := imageStates[g.presentImage.ID]
			if cur != wanted {
				g.presentBarrier = &PreImageBarrier{
					Image:     g.presentImage,
					SrcAccess: cur.access,
					DstAccess: wanted.access,
					SrcLayout: cur.layout,
					DstLayout: wanted.layout,
				}
			}
			img.finalAccess = wanted.access
			img.finalLayout = wanted.layout
		}
	}
}
