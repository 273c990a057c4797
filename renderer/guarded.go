package renderer

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/nmxmxh/vkrcore/logx"
)

// BreakerConfig mirrors the shape of the coordinator's hand-rolled circuit
// breaker config (core/mesh/coordinator.go's CoordinatorConfig.CircuitBreaker)
// but drives a real gobreaker.CircuitBreaker underneath instead of a
// hand-rolled state machine.
type BreakerConfig struct {
	FailureThreshold uint32
	ResetTimeout     time.Duration
	HalfOpenMax      uint32
}

// DefaultBreakerConfig mirrors the teacher's DefaultCoordinatorConfig
// defaults (5 failures, 30s reset, 3 half-open probes).
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMax:      3,
	}
}

// Guarded wraps a Facade with a circuit breaker so a backend that starts
// failing (device lost, out of memory) trips open instead of being hammered
// by every subsequent compile's resource realization pass.
type Guarded struct {
	inner Facade
	cb    *gobreaker.CircuitBreaker[any]
	log   *logx.Logger
}

// NewGuarded wraps inner with a circuit breaker configured per cfg.
func NewGuarded(inner Facade, cfg BreakerConfig, log *logx.Logger) *Guarded {
	if log == nil {
		log = logx.Nop()
	}
	st := gobreaker.Settings{
		Name:        "renderer-facade",
		MaxRequests: cfg.HalfOpenMax,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("renderer circuit breaker state change",
				logx.String("name", name), logx.String("from", from.String()), logx.String("to", to.String()))
		},
	}
	return &Guarded{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[any](st),
		log:   log,
	}
}

// State reports the breaker's current state (closed/open/half-open).
func (g *Guarded) State() gobreaker.State { return g.cb.State() }

// guardedCall routes fn through the breaker. When the breaker itself denies
// the call (open state), gobreaker hands back a nil result alongside
// ErrOpenState rather than invoking fn, so the type assertion is skipped in
// favor of T's zero value.
func guardedCall[T any](g *Guarded, fn func() (T, error)) (T, error) {
	v, err := g.cb.Execute(func() (any, error) {
		return fn()
	})
	if v == nil {
		var zero T
		return zero, err
	}
	return v.(T), err
}

func (g *Guarded) WindowAttachmentCount() uint32 { return g.inner.WindowAttachmentCount() }

func (g *Guarded) WindowAttachmentGet(index uint32) TextureHandle {
	return g.inner.WindowAttachmentGet(index)
}

func (g *Guarded) DepthAttachmentGet() TextureHandle { return g.inner.DepthAttachmentGet() }

func (g *Guarded) CreateRenderTargetTexture(desc TextureDesc) (TextureHandle, error) {
	return guardedCall(g, func() (TextureHandle, error) { return g.inner.CreateRenderTargetTexture(desc) })
}

func (g *Guarded) CreateDepthAttachment(w, h uint32) (TextureHandle, error) {
	return guardedCall(g, func() (TextureHandle, error) { return g.inner.CreateDepthAttachment(w, h) })
}

func (g *Guarded) CreateSampledDepthAttachment(w, h uint32) (TextureHandle, error) {
	return guardedCall(g, func() (TextureHandle, error) { return g.inner.CreateSampledDepthAttachment(w, h) })
}

func (g *Guarded) CreateSampledDepthAttachmentArray(w, h, layers uint32) (TextureHandle, error) {
	return guardedCall(g, func() (TextureHandle, error) {
		return g.inner.CreateSampledDepthAttachmentArray(w, h, layers)
	})
}

func (g *Guarded) ResizeTexture(tex TextureHandle, w, h uint32, preserve bool) error {
	_, err := guardedCall(g, func() (struct{}, error) { return struct{}{}, g.inner.ResizeTexture(tex, w, h, preserve) })
	return err
}

func (g *Guarded) DestroyTexture(tex TextureHandle) error {
	_, err := guardedCall(g, func() (struct{}, error) { return struct{}{}, g.inner.DestroyTexture(tex) })
	return err
}

func (g *Guarded) RenderPassCreateDesc(desc RenderPassDesc) (RenderPassHandle, error) {
	return guardedCall(g, func() (RenderPassHandle, error) { return g.inner.RenderPassCreateDesc(desc) })
}

func (g *Guarded) RenderPassDestroy(rp RenderPassHandle) error {
	_, err := guardedCall(g, func() (struct{}, error) { return struct{}{}, g.inner.RenderPassDestroy(rp) })
	return err
}

func (g *Guarded) RenderTargetCreate(desc RenderTargetDesc, rp RenderPassHandle) (RenderTargetHandle, error) {
	return guardedCall(g, func() (RenderTargetHandle, error) { return g.inner.RenderTargetCreate(desc, rp) })
}

func (g *Guarded) RenderTargetDestroy(rt RenderTargetHandle) error {
	_, err := guardedCall(g, func() (struct{}, error) { return struct{}{}, g.inner.RenderTargetDestroy(rt) })
	return err
}

func (g *Guarded) BufferCreate(desc BufferDesc, initData []byte) (BufferHandle, error) {
	return guardedCall(g, func() (BufferHandle, error) { return g.inner.BufferCreate(desc, initData) })
}

func (g *Guarded) BufferDestroy(b BufferHandle) error {
	_, err := guardedCall(g, func() (struct{}, error) { return struct{}{}, g.inner.BufferDestroy(b) })
	return err
}

func (g *Guarded) BeginRenderpass(rp RenderPassHandle, target RenderTargetHandle) {
	g.inner.BeginRenderpass(rp, target)
}

func (g *Guarded) EndRenderpass() { g.inner.EndRenderpass() }

func (g *Guarded) WaitIdle() error {
	_, err := guardedCall(g, func() (struct{}, error) { return struct{}{}, g.inner.WaitIdle() })
	return err
}

func (g *Guarded) GetErrorString(code int) string { return g.inner.GetErrorString(code) }

var _ Facade = (*Guarded)(nil)
