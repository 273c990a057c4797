package rg

// computeLifetimes implements spec.md §4.11: walk execution_order,
// setting first_pass = min(...) and last_pass = max(...) for every
// resource referenced by each pass, where i is the pass's position in
// execution_order (not its declaration index).
func (g *Graph) computeLifetimes(order []int) {
	g.images.each(func(_ Handle, img *rgImage) {
		img.firstPass, img.lastPass = freshLifetime()
	})
	g.buffers.each(func(_ Handle, buf *rgBuffer) {
		buf.firstPass, buf.lastPass = freshLifetime()
	})

	touchImage := func(h ImageHandle, i int) {
		img, ok := g.images.get(h.Handle)
		if !ok {
			return
		}
		if i < img.firstPass {
			img.firstPass = i
		}
		if i > img.lastPass {
			img.lastPass = i
		}
	}
	touchBuffer := func(h BufferHandle, i int) {
		buf, ok := g.buffers.get(h.Handle)
		if !ok {
			return
		}
		if i < buf.firstPass {
			buf.firstPass = i
		}
		if i > buf.lastPass {
			buf.lastPass = i
		}
	}

	for i, passIdx := range order {
		p := g.passes[passIdx]
		for _, att := range p.colorAttachments {
			touchImage(att.Image, i)
		}
		if p.depthAttachment != nil {
			touchImage(p.depthAttachment.Image, i)
		}
		for _, u := range p.imageReads {
			touchImage(u.Handle, i)
		}
		for _, u := range p.imageWrites {
			touchImage(u.Handle, i)
		}
		for _, u := range p.bufferReads {
			touchBuffer(u.Handle, i)
		}
		for _, u := range p.bufferWrites {
			touchBuffer(u.Handle, i)
		}
	}
}
