package rg

import (
	"github.com/nmxmxh/vkrcore/renderer"
	"github.com/nmxmxh/vkrcore/vkrerr"
)

// realize implements spec.md §4.13: refresh imported handle arrays,
// (re)allocate owned images/buffers as needed, and credit the graph's
// byte statistics. Allocation failure releases whatever was
// partially-allocated this call and aborts compile.
func (g *Graph) realize() error {
	var failErr error
	var allocated []renderer.TextureHandle

	g.images.each(func(h Handle, img *rgImage) {
		if failErr != nil {
			return
		}
		count := g.resolveImageCount(img)
		if img.imported.set {
			g.realizeImportedImage(img, count)
			return
		}
		if err := g.realizeOwnedImage(ImageHandle{h}, img, count, &allocated); err != nil {
			failErr = err
		}
	})
	if failErr != nil {
		for _, tex := range allocated {
			_ = g.facade.DestroyTexture(tex)
		}
		return failErr
	}

	var allocatedBufs []renderer.BufferHandle
	g.buffers.each(func(h Handle, buf *rgBuffer) {
		if failErr != nil {
			return
		}
		count := g.resolveBufferCount(buf)
		if buf.imported.set {
			return
		}
		if err := g.realizeOwnedBuffer(buf, count, &allocatedBufs); err != nil {
			failErr = err
		}
	})
	if failErr != nil {
		for _, b := range allocatedBufs {
			_ = g.facade.BufferDestroy(b)
		}
		return failErr
	}
	return nil
}

func (g *Graph) resolveImageCount(img *rgImage) uint32 {
	if img.flags.has(FlagPerImage) {
		if n := g.facade.WindowAttachmentCount(); n > 0 {
			return n
		}
	}
	return 1
}

func (g *Graph) resolveBufferCount(buf *rgBuffer) uint32 {
	if buf.flags.has(FlagPerImage) {
		if n := g.facade.WindowAttachmentCount(); n > 0 {
			return n
		}
	}
	return 1
}

func (g *Graph) realizeImportedImage(img *rgImage, count uint32) {
	textures := make([]renderer.TextureHandle, count)
	switch img.imported.kind {
	case importedSwapchain:
		for i := range textures {
			textures[i] = g.facade.WindowAttachmentGet(uint32(i))
		}
	case importedSwapchainDepth:
		tex := g.facade.DepthAttachmentGet()
		for i := range textures {
			textures[i] = tex
		}
	default:
		for i := range textures {
			textures[i] = img.imported.externalTexture
		}
	}
	img.textures = textures
}

func (g *Graph) realizeOwnedImage(h ImageHandle, img *rgImage, count uint32, allocated *[]renderer.TextureHandle) error {
	if g.imageArrayReusable(img, count) {
		return nil
	}
	if img.flags.has(FlagResizable) && uint32(len(img.textures)) == count && len(img.textures) > 0 {
		for i, tex := range img.textures {
			if err := g.facade.ResizeTexture(tex, img.desc.Width, img.desc.Height, true); err != nil {
				return vkrerr.Wrap(vkrerr.BackendFailure, err, "resize_texture failed")
			}
			img.textures[i] = tex
		}
		oldBytes := img.bytesPerImage
		newBytes := bytesPerTexture(img.desc)
		img.bytesPerImage = newBytes
		if newBytes > oldBytes {
			g.stats.ImageBytes += (newBytes - oldBytes) * uint64(count)
		} else {
			g.stats.ImageBytes -= (oldBytes - newBytes) * uint64(count)
		}
		return nil
	}

	for _, tex := range img.textures {
		_ = g.facade.DestroyTexture(tex)
	}

	textures := make([]renderer.TextureHandle, count)
	for i := uint32(0); i < count; i++ {
		tex, err := g.createTexture(img.desc)
		if err != nil {
			for j := uint32(0); j < i; j++ {
				_ = g.facade.DestroyTexture(textures[j])
			}
			return err
		}
		textures[i] = tex
		*allocated = append(*allocated, tex)
	}
	img.textures = textures
	img.allocGen++
	img.bytesPerImage = bytesPerTexture(img.desc)
	g.stats.ImageBytes += img.bytesPerImage * uint64(count)
	return nil
}

// imageArrayReusable reports whether the existing physical array already
// matches the desired count (spec.md §4.13 "if the existing array matches
// the desired count and generation, reuse"). Generation tracking here is
// the allocGen bump on (re)allocation; a cache hit is simply "count
// unchanged and textures already present". RESIZABLE images are never
// reported reusable; realizeOwnedImage resizes them in place instead.
func (g *Graph) imageArrayReusable(img *rgImage, count uint32) bool {
	return !img.flags.has(FlagResizable) && uint32(len(img.textures)) == count && len(img.textures) > 0
}

func (g *Graph) createTexture(desc ImageDesc) (renderer.TextureHandle, error) {
	switch desc.Type {
	case ImageTypeSampledDepthArray:
		tex, err := g.facade.CreateSampledDepthAttachmentArray(desc.Width, desc.Height, desc.Layers)
		return tex, wrapBackend(err)
	case ImageTypeSampledDepth:
		tex, err := g.facade.CreateSampledDepthAttachment(desc.Width, desc.Height)
		return tex, wrapBackend(err)
	case ImageTypeDepth:
		tex, err := g.facade.CreateDepthAttachment(desc.Width, desc.Height)
		return tex, wrapBackend(err)
	default:
		tex, err := g.facade.CreateRenderTargetTexture(renderer.TextureDesc{
			Format:     desc.Format,
			Width:      desc.Width,
			Height:     desc.Height,
			MipLevels:  desc.MipLevels,
			Layers:     desc.Layers,
			Samples:    desc.Samples,
			Array:      desc.Flags.has(FlagForceArray) || desc.Layers > 1,
			DepthOnly:  false,
			Sampled:    desc.Usage&UsageSampled != 0,
			UsageFlags: uint32(desc.Usage),
		})
		return tex, wrapBackend(err)
	}
}

func (g *Graph) realizeOwnedBuffer(buf *rgBuffer, count uint32, allocated *[]renderer.BufferHandle) error {
	if uint32(len(buf.buffers)) == count && len(buf.buffers) > 0 {
		return nil
	}
	for _, b := range buf.buffers {
		_ = g.facade.BufferDestroy(b)
	}

	hostVisible := buf.desc.Usage&(UsageUniform|UsageGlobalUniform) != 0

	buffers := make([]renderer.BufferHandle, count)
	for i := uint32(0); i < count; i++ {
		b, err := g.facade.BufferCreate(renderer.BufferDesc{
			Size:        buf.desc.Size,
			UsageFlags:  uint32(buf.desc.Usage),
			HostVisible: hostVisible,
		}, nil)
		if err != nil {
			for j := uint32(0); j < i; j++ {
				_ = g.facade.BufferDestroy(buffers[j])
			}
			return vkrerr.Wrap(vkrerr.BackendFailure, err, "buffer_create failed")
		}
		buffers[i] = b
		*allocated = append(*allocated, b)
	}
	buf.buffers = buffers
	buf.allocGen++
	buf.bytesPerItem = buf.desc.Size
	g.stats.BufferBytes += buf.desc.Size * uint64(count)
	return nil
}

func wrapBackend(err error) error {
	if err == nil {
		return nil
	}
	return vkrerr.Wrap(vkrerr.BackendFailure, err, "renderer facade call failed")
}

// bytesPerTexture estimates a physical texture's footprint from its
// format/mip/layer/sample configuration (spec.md §4.13: "MSAA and
// cube-map multipliers applied"). Format is opaque to this module
// (renderer.Format), so bytesPerPixel uses a conservative 4-byte default;
// a real backend integration would look this up from the format table.
func bytesPerTexture(desc ImageDesc) uint64 {
	const bytesPerPixel = 4
	samples := desc.Samples
	if samples == 0 {
		samples = 1
	}
	layers := desc.Layers
	if layers == 0 {
		layers = 1
	}
	cubeMultiplier := uint64(1)
	if desc.Flags.has(FlagForceArray) && layers%6 == 0 {
		cubeMultiplier = 6
	}
	var total uint64
	w, h := uint64(desc.Width), uint64(desc.Height)
	mips := desc.MipLevels
	if mips == 0 {
		mips = 1
	}
	for mip := uint32(0); mip < mips; mip++ {
		mw, mh := w>>mip, h>>mip
		if mw == 0 {
			mw = 1
		}
		if mh == 0 {
			mh = 1
		}
		total += mw * mh * bytesPerPixel
	}
	return total * uint64(layers) * uint64(samples) * cubeMultiplier
}
