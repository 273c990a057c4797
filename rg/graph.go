package rg

import (
	"context"
	"sync"
	"time"

	"github.com/nmxmxh/vkrcore/idgen"
	"github.com/nmxmxh/vkrcore/logx"
	"github.com/nmxmxh/vkrcore/renderer"
	"github.com/nmxmxh/vkrcore/vkrerr"
)

// GraphOptions configures optional, non-default compiler behavior. Every
// field defaults to preserving spec.md's exact observable contract.
type GraphOptions struct {
	// EnableAliasing turns on the optional alias-pool pass (spec.md §9:
	// "implementers may optionally add an alias-pool pass without
	// changing the observable contract"). Off by default: one physical
	// texture per owned image, matching the spec precisely.
	EnableAliasing bool
	Logger         *logx.Logger
	// ShutdownTimeout bounds how long Shutdown waits for registered
	// hooks before giving up. Defaults to 5s.
	ShutdownTimeout time.Duration
}

// GraphStats accumulates the byte totals physical realization credits
// (spec.md §4.13).
type GraphStats struct {
	ImageBytes  uint64
	BufferBytes uint64
}

// Graph holds the render graph's declared resources, the current frame's
// pass list, and the state produced by the most recent compile.
type Graph struct {
	mu sync.Mutex

	facade  renderer.Facade
	options GraphOptions
	log     *logx.Logger

	// sessionID correlates this graph's compile/shutdown log lines across
	// a run (spec.md's logging is per-component, not per-graph-instance).
	sessionID string

	images  *genTable[rgImage]
	buffers *genTable[rgBuffer]

	imagesByName  map[string]ImageHandle
	buffersByName map[string]BufferHandle

	passes   []*rgPass
	passByName map[string]int

	presentImage ImageHandle
	exportImages []ImageHandle
	exportBuffers []BufferHandle

	executionOrder []int
	presentBarrier *PreImageBarrier

	rtCache map[string]*RenderTargetCacheEntry
	alias   *AliasPool

	stats GraphStats

	currentImageIndex uint32

	compiled bool

	shutdownHooks []func() error
}

// NewGraph creates a graph bound to facade (the resource factory it will
// call during physical realization).
func NewGraph(facade renderer.Facade, opts GraphOptions) *Graph {
	if opts.Logger == nil {
		opts.Logger = logx.Nop()
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	g := &Graph{
		facade:        facade,
		options:       opts,
		log:           opts.Logger,
		sessionID:     idgen.New(),
		images:        newGenTable[rgImage](),
		buffers:       newGenTable[rgBuffer](),
		imagesByName:  make(map[string]ImageHandle),
		buffersByName: make(map[string]BufferHandle),
		passByName:    make(map[string]int),
		rtCache:       make(map[string]*RenderTargetCacheEntry),
	}
	if opts.EnableAliasing {
		g.alias = newAliasPool()
	}
	return g
}

// Stats returns the graph's accumulated realization byte totals.
func (g *Graph) Stats() GraphStats { return g.stats }

// DeclareImage registers (or re-fetches, by name) an image resource.
// Re-declaring an existing name updates its descriptor in place, which is
// how a resizable resource's extent changes between frames (spec.md
// §8.5 scenario 3).
func (g *Graph) DeclareImage(name string, desc ImageDesc) ImageHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h, ok := g.imagesByName[name]; ok {
		if img, ok := g.images.get(h.Handle); ok {
			img.desc = desc
			img.flags = desc.Flags
			return h
		}
	}
	first, last := freshLifetime()
	handle := g.images.insert(rgImage{
		name:      name,
		desc:      desc,
		flags:     desc.Flags,
		firstPass: first,
		lastPass:  last,
	})
	h := ImageHandle{handle}
	g.imagesByName[name] = h
	return h
}

// DeclareBuffer is DeclareImage's buffer analog.
func (g *Graph) DeclareBuffer(name string, desc BufferDesc) BufferHandle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if h, ok := g.buffersByName[name]; ok {
		if buf, ok := g.buffers.get(h.Handle); ok {
			buf.desc = desc
			buf.flags = desc.Flags
			return h
		}
	}
	first, last := freshLifetime()
	handle := g.buffers.insert(rgBuffer{
		name:      name,
		desc:      desc,
		flags:     desc.Flags,
		firstPass: first,
		lastPass:  last,
	})
	h := BufferHandle{handle}
	g.buffersByName[name] = h
	return h
}

// ImportSwapchainColor marks image as backed by the renderer's window
// attachment array (spec.md §4.13's "refresh the per-index handle array
// by calling window_attachment_get(i)").
func (g *Graph) ImportSwapchainColor(h ImageHandle, access AccessFlags, layout Layout) error {
	return g.importImage(h, importedSwapchain, renderer.NilTexture, access, layout)
}

// ImportSwapchainDepth marks image as backed by the renderer's single
// depth attachment (depth_attachment_get()).
func (g *Graph) ImportSwapchainDepth(h ImageHandle, access AccessFlags, layout Layout) error {
	return g.importImage(h, importedSwapchainDepth, renderer.NilTexture, access, layout)
}

// ImportExternalTexture marks image as backed by a caller-supplied,
// externally-owned texture handle.
func (g *Graph) ImportExternalTexture(h ImageHandle, tex renderer.TextureHandle, access AccessFlags, layout Layout) error {
	return g.importImage(h, importedExternal, tex, access, layout)
}

func (g *Graph) importImage(h ImageHandle, kind importedKind, tex renderer.TextureHandle, access AccessFlags, layout Layout) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	img, ok := g.images.get(h.Handle)
	if !ok {
		return vkrerr.New(vkrerr.HandleInvalidGeneration, "ImportImage: stale or unknown image handle")
	}
	img.flags |= FlagExternal
	img.imported = importedState{set: true, kind: kind, externalTexture: tex, access: access, layout: layout}
	return nil
}

// DestroyImage invalidates h, bumping its generation so outstanding
// handles fail validation (spec.md §3.6).
func (g *Graph) DestroyImage(h ImageHandle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if img, ok := g.images.get(h.Handle); ok {
		delete(g.imagesByName, img.name)
		for _, tex := range img.textures {
			_ = g.facade.DestroyTexture(tex)
		}
	}
	if !g.images.remove(h.Handle) {
		return vkrerr.New(vkrerr.HandleInvalidGeneration, "DestroyImage: stale or unknown image handle")
	}
	return nil
}

// DestroyBuffer is DestroyImage's buffer analog.
func (g *Graph) DestroyBuffer(h BufferHandle) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if buf, ok := g.buffers.get(h.Handle); ok {
		delete(g.buffersByName, buf.name)
		for _, b := range buf.buffers {
			_ = g.facade.BufferDestroy(b)
		}
	}
	if !g.buffers.remove(h.Handle) {
		return vkrerr.New(vkrerr.HandleInvalidGeneration, "DestroyBuffer: stale or unknown buffer handle")
	}
	return nil
}

// MarkPresent designates h as the frame's present image: culling (spec.md
// §4.9) treats writers of the present image as compile roots.
func (g *Graph) MarkPresent(h ImageHandle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.presentImage = h
}

// MarkExportImage/MarkExportBuffer add h to the export set culling treats
// as a root.
func (g *Graph) MarkExportImage(h ImageHandle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exportImages = append(g.exportImages, h)
}

func (g *Graph) MarkExportBuffer(h BufferHandle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exportBuffers = append(g.exportBuffers, h)
}

// BeginFrame clears the per-frame pass list and the present/export
// designations while preserving persistent/external resources and
// renderpass/render-target cache entries (spec.md §3.6).
func (g *Graph) BeginFrame(currentImageIndex uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.passes = g.passes[:0]
	for k := range g.passByName {
		delete(g.passByName, k)
	}
	g.exportImages = g.exportImages[:0]
	g.exportBuffers = g.exportBuffers[:0]
	g.presentImage = NilImage
	g.executionOrder = nil
	g.compiled = false
	g.currentImageIndex = currentImageIndex
}

// AddPass declares one pass for the current frame.
func (g *Graph) AddPass(desc PassDesc) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := &rgPass{
		name:             desc.Name,
		typ:              desc.Type,
		flags:            desc.Flags,
		colorAttachments: desc.ColorAttachments,
		depthAttachment:  desc.DepthAttachment,
		imageReads:       desc.ImageReads,
		imageWrites:      desc.ImageWrites,
		bufferReads:      desc.BufferReads,
		bufferWrites:     desc.BufferWrites,
		execute:          desc.Execute,
		userData:         desc.UserData,
	}
	g.passByName[desc.Name] = len(g.passes)
	g.passes = append(g.passes, p)
}

// ExecutionOrder returns the most recent successful compile's pass-name
// order, for diagnostics and tests.
func (g *Graph) ExecutionOrder() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.executionOrder))
	for i, idx := range g.executionOrder {
		out[i] = g.passes[idx].name
	}
	return out
}

// EndFrame resets the per-frame lifetime bookkeeping of every image and
// buffer, persistent and external ones included. Spec.md doesn't require freeing owned physical
// textures here — only begin_frame/compile mutate the declared set — so
// this resets bookkeeping fields compile() recomputes from scratch next
// time, keeping the physical arrays in place for reuse.
func (g *Graph) EndFrame() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.images.each(func(_ Handle, img *rgImage) {
		img.firstPass, img.lastPass = freshLifetime()
	})
	g.buffers.each(func(_ Handle, buf *rgBuffer) {
		buf.firstPass, buf.lastPass = freshLifetime()
	})
}

// Shutdown releases every physical resource and cached renderpass/target,
// then starts each registered hook on its own goroutine, most recently
// registered first; the hooks run concurrently, so their completion order
// is not defined — grounded on the teacher's utils/graceful.go
// shutdown-hook pattern.
func (g *Graph) Shutdown() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	_ = g.facade.WaitIdle()

	for _, entry := range g.rtCache {
		for _, t := range entry.targets {
			_ = g.facade.RenderTargetDestroy(t)
		}
		if entry.renderpass != renderer.NilRenderPass {
			_ = g.facade.RenderPassDestroy(entry.renderpass)
		}
	}
	g.rtCache = make(map[string]*RenderTargetCacheEntry)

	g.images.each(func(_ Handle, img *rgImage) {
		for _, tex := range img.textures {
			_ = g.facade.DestroyTexture(tex)
		}
	})
	g.buffers.each(func(_ Handle, buf *rgBuffer) {
		for _, b := range buf.buffers {
			_ = g.facade.BufferDestroy(b)
		}
	})

	hooks := g.shutdownHooks
	g.shutdownHooks = nil
	timeout := g.options.ShutdownTimeout
	log := g.log

	log.Info("starting render graph shutdown", logx.String("session", g.sessionID), logx.Int("hooks", len(hooks)))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	errCh := make(chan error, len(hooks))
	var wg sync.WaitGroup
	for i := len(hooks) - 1; i >= 0; i-- {
		wg.Add(1)
		hook := hooks[i]
		idx := i
		go func() {
			defer wg.Done()
			if err := hook(); err != nil {
				log.Error("shutdown hook failed", logx.Int("index", idx), logx.Err(err))
				errCh <- err
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		select {
		case err := <-errCh:
			return err
		default:
			log.Info("render graph shutdown complete")
			return nil
		}
	case <-shutdownCtx.Done():
		log.Warn("render graph shutdown timed out")
		return vkrerr.New(vkrerr.BackendFailure, "shutdown timed out waiting for hooks")
	}
}

// OnShutdown registers a hook for Shutdown, which starts the hooks
// most-recently-added first (LIFO) and runs them concurrently, mirroring
// the teacher's graceful-shutdown hook stack.
func (g *Graph) OnShutdown(hook func() error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.shutdownHooks = append(g.shutdownHooks, hook)
}
