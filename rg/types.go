package rg

import "github.com/nmxmxh/vkrcore/renderer"

// ImageType distinguishes how a physical image array is created during
// realization (spec.md §4.13).
type ImageType int

const (
	ImageType2D ImageType = iota
	ImageTypeDepth
	ImageTypeSampledDepth
	ImageTypeSampledDepthArray
)

// ImageUsage is a bitset of the ways a pass may reference an image; it
// must be a subset of the image descriptor's UsageFlags (spec.md §4.7).
type ImageUsage uint32

const (
	UsageColorAttachment ImageUsage = 1 << iota
	UsageDepthStencilAttachment
	UsageSampled
	UsageTransferSrc
	UsageTransferDst
	UsageStorage
)

// BufferUsage mirrors ImageUsage for buffers.
type BufferUsage uint32

const (
	UsageVertexBuffer BufferUsage = 1 << iota
	UsageIndexBuffer
	UsageUniform
	UsageGlobalUniform
	UsageBufferStorage
	UsageBufferTransferSrc
	UsageBufferTransferDst
)

// ResourceFlags controls an image/buffer's lifecycle treatment.
type ResourceFlags uint32

const (
	FlagPerImage ResourceFlags = 1 << iota
	FlagPersistent
	FlagExternal
	FlagResizable
	FlagForceArray
)

func (f ResourceFlags) has(bit ResourceFlags) bool { return f&bit != 0 }

// AccessFlags is the per-use access pattern a pass declares against an
// image or buffer (spec.md §4.12 barrier synthesis keys off this).
type AccessFlags uint32

const (
	AccessNone AccessFlags = iota
	AccessColorAttachment
	AccessDepthAttachment
	AccessDepthReadOnly
	AccessSampled
	AccessStorageRead
	AccessStorageWrite
	AccessTransferSrc
	AccessTransferDst
	AccessPresent
	AccessVertexBuffer
	AccessIndexBuffer
	AccessUniform
)

// requiredImageUsage returns the image usage bit AccessFlags implies, per
// spec.md §4.7's access-to-usage table.
func (a AccessFlags) requiredImageUsage() (ImageUsage, bool) {
	switch a {
	case AccessColorAttachment:
		return UsageColorAttachment, true
	case AccessDepthAttachment, AccessDepthReadOnly:
		return UsageDepthStencilAttachment, true
	case AccessSampled:
		return UsageSampled, true
	case AccessTransferSrc:
		return UsageTransferSrc, true
	case AccessTransferDst:
		return UsageTransferDst, true
	case AccessStorageRead, AccessStorageWrite:
		return UsageStorage, true
	default:
		return 0, false
	}
}

// isWrite reports whether an access implies a write dependency edge
// (spec.md §4.8).
func (a AccessFlags) isWrite() bool {
	switch a {
	case AccessColorAttachment, AccessDepthAttachment, AccessStorageWrite, AccessTransferDst:
		return true
	default:
		return false
	}
}

// Layout mirrors the Vulkan image layout states spec.md §4.12 derives
// deterministically from access.
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutColorAttachmentOptimal
	LayoutDepthStencilAttachmentOptimal
	LayoutDepthStencilReadOnlyOptimal
	LayoutGeneral
	LayoutShaderReadOnlyOptimal
	LayoutTransferSrcOptimal
	LayoutTransferDstOptimal
	LayoutPresentSrc
)

// layoutForAccess implements spec.md §4.12's access→layout table. depth
// distinguishes a depth image's SAMPLED access (→ depth-read-only layout)
// from a color image's.
func layoutForAccess(a AccessFlags, depth bool) Layout {
	switch a {
	case AccessColorAttachment:
		return LayoutColorAttachmentOptimal
	case AccessDepthAttachment:
		return LayoutDepthStencilAttachmentOptimal
	case AccessDepthReadOnly:
		return LayoutDepthStencilReadOnlyOptimal
	case AccessStorageRead, AccessStorageWrite:
		return LayoutGeneral
	case AccessSampled:
		if depth {
			return LayoutDepthStencilReadOnlyOptimal
		}
		return LayoutShaderReadOnlyOptimal
	case AccessTransferSrc:
		return LayoutTransferSrcOptimal
	case AccessTransferDst:
		return LayoutTransferDstOptimal
	case AccessPresent:
		return LayoutPresentSrc
	default:
		return LayoutUndefined
	}
}

// PassType selects the GPU work category a pass performs.
type PassType int

const (
	PassGraphics PassType = iota
	PassCompute
	PassTransfer
)

// PassFlags modifies culling/validation treatment of a pass.
type PassFlags uint32

const (
	PassFlagDisabled PassFlags = 1 << iota
	PassFlagNoCull
)

func (f PassFlags) has(bit PassFlags) bool { return f&bit != 0 }

// ImageDesc is the immutable descriptor an image is created/re-validated
// against (spec.md §3.6).
type ImageDesc struct {
	Format    renderer.Format
	Width     uint32
	Height    uint32
	MipLevels uint32
	Layers    uint32
	Samples   uint32
	Type      ImageType
	Usage     ImageUsage
	Flags     ResourceFlags
}

// BufferDesc is the immutable descriptor for a buffer resource.
type BufferDesc struct {
	Size  uint64
	Usage BufferUsage
	Flags ResourceFlags
}

// Slice addresses one mip/layer range of an attachment.
type Slice struct {
	Mip        uint32
	BaseLayer  uint32
	LayerCount uint32
}

// Attachment is one color or depth binding of a graphics pass (spec.md
// §3.6). ReadOnly only applies to a depth attachment: spec.md §4.8 treats
// LOAD_OP == LOAD or a read-only depth attachment as a read dependency,
// any other depth attachment as a write.
type Attachment struct {
	Image      ImageHandle
	LoadOp     renderer.LoadOp
	StoreOp    renderer.StoreOp
	ClearValue [4]float32
	Slice      Slice
	ReadOnly   bool
}

// ImageUse and BufferUse pair a handle with the access a pass performs
// against it.
type ImageUse struct {
	Handle ImageHandle
	Access AccessFlags
}

type BufferUse struct {
	Handle BufferHandle
	Access AccessFlags
}
