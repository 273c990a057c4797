package rg

import (
	"github.com/nmxmxh/vkrcore/logx"
	"github.com/nmxmxh/vkrcore/renderer"
)

// resourceDeps tracks last_writer/last_readers during the single forward
// sweep spec.md §4.8 describes, for one resource table (images or
// buffers, keyed by slot index so both tables can share this type).
type resourceDeps struct {
	lastWriter  map[uint32]int
	lastReaders map[uint32][]int
}

func newResourceDeps() *resourceDeps {
	return &resourceDeps{
		lastWriter:  make(map[uint32]int),
		lastReaders: make(map[uint32][]int),
	}
}

func (d *resourceDeps) readerHas(slot uint32, pass int) bool {
	for _, r := range d.lastReaders[slot] {
		if r == pass {
			return true
		}
	}
	return false
}

// computeDependencyEdges implements spec.md §4.8 over both the image and
// buffer tables in one forward sweep across declaration-order passes.
func (g *Graph) computeDependencyEdges() {
	images := newResourceDeps()
	buffers := newResourceDeps()

	for i, p := range g.passes {
		for _, att := range p.colorAttachments {
			g.applyImageDep(images, att.Image, i, false)
		}
		if p.depthAttachment != nil {
			g.applyImageDep(images, p.depthAttachment.Image, i, p.depthAttachment.ReadOnly || p.depthAttachment.LoadOp == renderer.LoadOpLoad)
		}
		for _, u := range p.imageReads {
			g.applyImageDep(images, u.Handle, i, true)
		}
		for _, u := range p.imageWrites {
			g.applyImageDep(images, u.Handle, i, false)
		}
		for _, u := range p.bufferReads {
			g.applyBufferDep(buffers, u.Handle, i)
		}
		for _, u := range p.bufferWrites {
			g.applyBufferWriteDep(buffers, u.Handle, i)
		}
	}

	g.warnReadBeforeWrite(images, buffers)
}

// applyImageDep processes one image reference. isRead selects the read
// rule; attachments other than a read-only/LOAD depth attachment are
// writes.
func (g *Graph) applyImageDep(deps *resourceDeps, h ImageHandle, pass int, isRead bool) {
	if _, ok := g.images.get(h.Handle); !ok {
		return
	}
	slot := h.ID
	if isRead {
		g.depRead(deps, slot, pass)
	} else {
		g.depWrite(deps, slot, pass)
	}
}

func (g *Graph) applyBufferDep(deps *resourceDeps, h BufferHandle, pass int) {
	if _, ok := g.buffers.get(h.Handle); !ok {
		return
	}
	g.depRead(deps, h.ID, pass)
}

func (g *Graph) applyBufferWriteDep(deps *resourceDeps, h BufferHandle, pass int) {
	if _, ok := g.buffers.get(h.Handle); !ok {
		return
	}
	g.depWrite(deps, h.ID, pass)
}

func (g *Graph) depRead(deps *resourceDeps, slot uint32, pass int) {
	if w, ok := deps.lastWriter[slot]; ok {
		g.addEdge(w, pass)
	}
	if !deps.readerHas(slot, pass) {
		deps.lastReaders[slot] = append(deps.lastReaders[slot], pass)
	}
}

func (g *Graph) depWrite(deps *resourceDeps, slot uint32, pass int) {
	if w, ok := deps.lastWriter[slot]; ok {
		g.addEdge(w, pass)
	}
	for _, r := range deps.lastReaders[slot] {
		g.addEdge(r, pass)
	}
	deps.lastReaders[slot] = deps.lastReaders[slot][:0]
	deps.lastWriter[slot] = pass
}

func (g *Graph) addEdge(src, dst int) {
	if src == dst {
		return
	}
	g.passes[src].addOutEdge(dst, src)
	g.passes[dst].addInEdge(src, dst)
}

// warnReadBeforeWrite logs a warning for any resource read before any
// writer that is neither imported nor PERSISTENT/EXTERNAL (spec.md §4.8).
func (g *Graph) warnReadBeforeWrite(images, buffers *resourceDeps) {
	g.images.each(func(h Handle, img *rgImage) {
		if img.imported.set || img.flags.has(FlagPersistent) || img.flags.has(FlagExternal) {
			return
		}
		if _, wrote := images.lastWriter[h.ID]; wrote {
			return
		}
		if len(images.lastReaders[h.ID]) > 0 {
			g.log.Warn("image read before any writer", logx.String("image", img.name))
		}
	})
	g.buffers.each(func(h Handle, buf *rgBuffer) {
		if buf.imported.set || buf.flags.has(FlagPersistent) || buf.flags.has(FlagExternal) {
			return
		}
		if _, wrote := buffers.lastWriter[h.ID]; wrote {
			return
		}
		if len(buffers.lastReaders[h.ID]) > 0 {
			g.log.Warn("buffer read before any writer", logx.String("buffer", buf.name))
		}
	})
}
