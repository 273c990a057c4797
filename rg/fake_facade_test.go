package rg

import (
	"github.com/nmxmxh/vkrcore/renderer"
)

// fakeFacade is a minimal in-memory renderer.Facade for exercising the
// compiler without a real Vulkan backend.
type fakeFacade struct {
	windowCount uint32
	windowTex   []renderer.TextureHandle
	depthTex    renderer.TextureHandle

	nextID uint64

	createTextureErr  error
	createBufferErr   error
	renderPassErr     error
	renderTargetErr   error

	createTextureCalls  int
	renderPassCalls     int
	renderTargetCalls   int
	beginRenderpassCall int
}

func newFakeFacade(windowCount uint32) *fakeFacade {
	f := &fakeFacade{windowCount: windowCount, depthTex: 1000}
	for i := uint32(0); i < windowCount; i++ {
		f.windowTex = append(f.windowTex, renderer.TextureHandle(100+i))
	}
	return f
}

func (f *fakeFacade) nextHandle() uint64 {
	f.nextID++
	return f.nextID + 1
}

func (f *fakeFacade) WindowAttachmentCount() uint32 { return f.windowCount }
func (f *fakeFacade) WindowAttachmentGet(i uint32) renderer.TextureHandle {
	if int(i) < len(f.windowTex) {
		return f.windowTex[i]
	}
	return renderer.NilTexture
}
func (f *fakeFacade) DepthAttachmentGet() renderer.TextureHandle { return f.depthTex }

func (f *fakeFacade) CreateRenderTargetTexture(renderer.TextureDesc) (renderer.TextureHandle, error) {
	f.createTextureCalls++
	if f.createTextureErr != nil {
		return renderer.NilTexture, f.createTextureErr
	}
	return renderer.TextureHandle(f.nextHandle()), nil
}
func (f *fakeFacade) CreateDepthAttachment(w, h uint32) (renderer.TextureHandle, error) {
	return f.CreateRenderTargetTexture(renderer.TextureDesc{})
}
func (f *fakeFacade) CreateSampledDepthAttachment(w, h uint32) (renderer.TextureHandle, error) {
	return f.CreateRenderTargetTexture(renderer.TextureDesc{})
}
func (f *fakeFacade) CreateSampledDepthAttachmentArray(w, h, layers uint32) (renderer.TextureHandle, error) {
	return f.CreateRenderTargetTexture(renderer.TextureDesc{})
}
func (f *fakeFacade) ResizeTexture(tex renderer.TextureHandle, w, h uint32, preserve bool) error {
	return nil
}
func (f *fakeFacade) DestroyTexture(renderer.TextureHandle) error { return nil }

func (f *fakeFacade) RenderPassCreateDesc(renderer.RenderPassDesc) (renderer.RenderPassHandle, error) {
	f.renderPassCalls++
	if f.renderPassErr != nil {
		return renderer.NilRenderPass, f.renderPassErr
	}
	return renderer.RenderPassHandle(f.nextHandle()), nil
}
func (f *fakeFacade) RenderPassDestroy(renderer.RenderPassHandle) error { return nil }

func (f *fakeFacade) RenderTargetCreate(renderer.RenderTargetDesc, renderer.RenderPassHandle) (renderer.RenderTargetHandle, error) {
	f.renderTargetCalls++
	if f.renderTargetErr != nil {
		return renderer.NilRenderTarget, f.renderTargetErr
	}
	return renderer.RenderTargetHandle(f.nextHandle()), nil
}
func (f *fakeFacade) RenderTargetDestroy(renderer.RenderTargetHandle) error { return nil }

func (f *fakeFacade) BufferCreate(renderer.BufferDesc, []byte) (renderer.BufferHandle, error) {
	if f.createBufferErr != nil {
		return renderer.NilBuffer, f.createBufferErr
	}
	return renderer.BufferHandle(f.nextHandle()), nil
}
func (f *fakeFacade) BufferDestroy(renderer.BufferHandle) error { return nil }

func (f *fakeFacade) BeginRenderpass(renderer.RenderPassHandle, renderer.RenderTargetHandle) {
	f.beginRenderpassCall++
}
func (f *fakeFacade) EndRenderpass() {}

func (f *fakeFacade) WaitIdle() error                { return nil }
func (f *fakeFacade) GetErrorString(code int) string { return "fake" }

var _ renderer.Facade = (*fakeFacade)(nil)
