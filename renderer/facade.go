// Package renderer defines the renderer facade (spec.md C11): the external
// resource-factory interface the render graph compiler calls into, and
// never implements. The Vulkan backend, shader compilation, and math/SIMD
// primitives behind it are deliberately out of scope (spec.md §1).
package renderer

// TextureHandle, BufferHandle, RenderPassHandle and RenderTargetHandle are
// opaque backend resource identifiers. Per spec.md §9 design notes, a
// generational index arena is reserved for the graph's own image/buffer/pass
// identity; these handles are bare ids because the backend owns their
// lifetime, not the graph.
type TextureHandle uint64
type BufferHandle uint64
type RenderPassHandle uint64
type RenderTargetHandle uint64

// NilTexture, NilBuffer, NilRenderPass and NilRenderTarget are the
// zero-value "no resource" handles.
const (
	NilTexture      TextureHandle      = 0
	NilBuffer       BufferHandle       = 0
	NilRenderPass   RenderPassHandle   = 0
	NilRenderTarget RenderTargetHandle = 0
)

// TextureDesc describes a render-target texture to create.
type TextureDesc struct {
	Format     Format
	Width      uint32
	Height     uint32
	MipLevels  uint32
	Layers     uint32
	Samples    uint32
	Array      bool
	DepthOnly  bool
	Sampled    bool
	UsageFlags uint32
}

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Size        uint64
	UsageFlags  uint32
	HostVisible bool
}

// AttachmentDesc mirrors one color or depth attachment in a RenderPassDesc.
type AttachmentDesc struct {
	Format     Format
	Samples    uint32
	LoadOp     LoadOp
	StoreOp    StoreOp
	ClearValue [4]float32
}

// RenderPassDesc is the renderpass-affecting field set the cache hashes
// (spec.md §4.14).
type RenderPassDesc struct {
	ColorAttachments []AttachmentDesc
	DepthAttachment  *AttachmentDesc
}

// RenderTargetSlice addresses one mip/layer range of a texture attachment.
type RenderTargetSlice struct {
	Mip        uint32
	BaseLayer  uint32
	LayerCount uint32
}

// RenderTargetAttachment binds one physical texture (and slice) to a
// render target.
type RenderTargetAttachment struct {
	Texture TextureHandle
	Slice   RenderTargetSlice
}

// RenderTargetDesc describes one physical framebuffer-equivalent object.
type RenderTargetDesc struct {
	Extent      [2]uint32
	Attachments []RenderTargetAttachment
}

// Format, LoadOp and StoreOp are intentionally small closed enums — the
// graph only needs them to flow through to the backend and into the
// renderpass/render-target cache hash, not to interpret them.
type Format uint32

type LoadOp uint32

const (
	LoadOpLoad LoadOp = iota
	LoadOpClear
	LoadOpDontCare
)

type StoreOp uint32

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// Facade is the resource-factory surface the render graph compiler
// consumes (spec.md §6.3). The graph calls these, never implements them.
type Facade interface {
	WindowAttachmentCount() uint32
	WindowAttachmentGet(index uint32) TextureHandle
	DepthAttachmentGet() TextureHandle

	CreateRenderTargetTexture(desc TextureDesc) (TextureHandle, error)
	CreateDepthAttachment(w, h uint32) (TextureHandle, error)
	CreateSampledDepthAttachment(w, h uint32) (TextureHandle, error)
	CreateSampledDepthAttachmentArray(w, h, layers uint32) (TextureHandle, error)
	ResizeTexture(tex TextureHandle, w, h uint32, preserve bool) error
	DestroyTexture(tex TextureHandle) error

	RenderPassCreateDesc(desc RenderPassDesc) (RenderPassHandle, error)
	RenderPassDestroy(rp RenderPassHandle) error
	RenderTargetCreate(desc RenderTargetDesc, rp RenderPassHandle) (RenderTargetHandle, error)
	RenderTargetDestroy(rt RenderTargetHandle) error

	BufferCreate(desc BufferDesc, initData []byte) (BufferHandle, error)
	BufferDestroy(b BufferHandle) error

	BeginRenderpass(rp RenderPassHandle, target RenderTargetHandle)
	EndRenderpass()

	WaitIdle() error
	GetErrorString(code int) string
}
