package renderer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFacade is a minimal in-memory Facade used only to exercise Guarded;
// the rg package tests have their own, richer fake.
type fakeFacade struct {
	failNext  int
	callCount int
	nextID    uint64
}

func (f *fakeFacade) maybeFail() error {
	f.callCount++
	if f.failNext > 0 {
		f.failNext--
		return errors.New("backend failure")
	}
	return nil
}

func (f *fakeFacade) WindowAttachmentCount() uint32          { return 1 }
func (f *fakeFacade) WindowAttachmentGet(uint32) TextureHandle { return 1 }
func (f *fakeFacade) DepthAttachmentGet() TextureHandle      { return 2 }

func (f *fakeFacade) CreateRenderTargetTexture(TextureDesc) (TextureHandle, error) {
	if err := f.maybeFail(); err != nil {
		return NilTexture, err
	}
	f.nextID++
	return TextureHandle(f.nextID), nil
}
func (f *fakeFacade) CreateDepthAttachment(uint32, uint32) (TextureHandle, error) {
	return f.CreateRenderTargetTexture(TextureDesc{})
}
func (f *fakeFacade) CreateSampledDepthAttachment(uint32, uint32) (TextureHandle, error) {
	return f.CreateRenderTargetTexture(TextureDesc{})
}
func (f *fakeFacade) CreateSampledDepthAttachmentArray(uint32, uint32, uint32) (TextureHandle, error) {
	return f.CreateRenderTargetTexture(TextureDesc{})
}
func (f *fakeFacade) ResizeTexture(TextureHandle, uint32, uint32, bool) error { return f.maybeFail() }
func (f *fakeFacade) DestroyTexture(TextureHandle) error                     { return f.maybeFail() }

func (f *fakeFacade) RenderPassCreateDesc(RenderPassDesc) (RenderPassHandle, error) {
	if err := f.maybeFail(); err != nil {
		return NilRenderPass, err
	}
	f.nextID++
	return RenderPassHandle(f.nextID), nil
}
func (f *fakeFacade) RenderPassDestroy(RenderPassHandle) error { return f.maybeFail() }

func (f *fakeFacade) RenderTargetCreate(RenderTargetDesc, RenderPassHandle) (RenderTargetHandle, error) {
	if err := f.maybeFail(); err != nil {
		return NilRenderTarget, err
	}
	f.nextID++
	return RenderTargetHandle(f.nextID), nil
}
func (f *fakeFacade) RenderTargetDestroy(RenderTargetHandle) error { return f.maybeFail() }

func (f *fakeFacade) BufferCreate(BufferDesc, []byte) (BufferHandle, error) {
	if err := f.maybeFail(); err != nil {
		return NilBuffer, err
	}
	f.nextID++
	return BufferHandle(f.nextID), nil
}
func (f *fakeFacade) BufferDestroy(BufferHandle) error { return f.maybeFail() }

func (f *fakeFacade) BeginRenderpass(RenderPassHandle, RenderTargetHandle) {}
func (f *fakeFacade) EndRenderpass()                                      {}
func (f *fakeFacade) WaitIdle() error                                     { return f.maybeFail() }
func (f *fakeFacade) GetErrorString(code int) string                      { return "fake-error" }

var _ Facade = (*fakeFacade)(nil)

func TestGuardedPassesThroughOnSuccess(t *testing.T) {
	f := &fakeFacade{}
	g := NewGuarded(f, DefaultBreakerConfig(), nil)

	tex, err := g.CreateDepthAttachment(64, 64)
	require.NoError(t, err)
	assert.NotEqual(t, NilTexture, tex)
}

func TestGuardedTripsOpenAfterThreshold(t *testing.T) {
	f := &fakeFacade{failNext: 10}
	cfg := BreakerConfig{FailureThreshold: 3, ResetTimeout: 0, HalfOpenMax: 1}
	g := NewGuarded(f, cfg, nil)

	for i := 0; i < 3; i++ {
		_, err := g.CreateDepthAttachment(1, 1)
		assert.Error(t, err)
	}

	// Breaker should now be open: the call is denied without reaching the
	// backend, so f.callCount stops increasing.
	before := f.callCount
	_, err := g.CreateDepthAttachment(1, 1)
	assert.Error(t, err)
	assert.Equal(t, before, f.callCount)
}

func TestGuardedDelegatesReadOnlyCallsDirectly(t *testing.T) {
	f := &fakeFacade{}
	g := NewGuarded(f, DefaultBreakerConfig(), nil)

	assert.Equal(t, uint32(1), g.WindowAttachmentCount())
	assert.Equal(t, TextureHandle(1), g.WindowAttachmentGet(0))
	assert.Equal(t, TextureHandle(2), g.DepthAttachmentGet())
	assert.Equal(t, "fake-error", g.GetErrorString(42))
}
