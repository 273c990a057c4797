package rg

import "github.com/nmxmxh/vkrcore/renderer"

// importedKind distinguishes the three sources spec.md §4.13 names for a
// realized imported image: the swapchain color array, the swapchain depth
// image, or a caller-supplied external texture handle.
type importedKind int

const (
	importedNone importedKind = iota
	importedSwapchain
	importedSwapchainDepth
	importedExternal
)

// importedState carries an imported resource's externally-owned layout/
// access so barrier synthesis (spec.md §4.12) starts from the right state
// instead of UNDEFINED/NONE.
type importedState struct {
	set             bool
	kind            importedKind
	externalTexture renderer.TextureHandle
	access          AccessFlags
	layout          Layout
}

// rgImage is one entry in the image table (spec.md §3.6 RgImage).
type rgImage struct {
	name  string
	desc  ImageDesc
	flags ResourceFlags

	firstPass int
	lastPass  int

	imported importedState
	// finalLayout/finalAccess record the state barrier synthesis leaves the
	// image in at the end of each compile. They are not fed back: the next
	// compile starts from the imported values again.
	finalLayout Layout
	finalAccess AccessFlags

	textures       []renderer.TextureHandle
	allocGen       uint64
	bytesPerImage  uint64
}

// rgBuffer is one entry in the buffer table (spec.md §3.6 RgBuffer).
type rgBuffer struct {
	name  string
	desc  BufferDesc
	flags ResourceFlags

	firstPass int
	lastPass  int

	imported importedState
	finalAccess AccessFlags

	buffers      []renderer.BufferHandle
	allocGen     uint64
	bytesPerItem uint64
}

func freshLifetime() (int, int) { return int(^uint32(0) >> 1), 0 }
