package rg

import (
	"encoding/binary"

	"github.com/nmxmxh/vkrcore/renderer"
	"github.com/nmxmxh/vkrcore/vkrerr"
)

// fnvPrime and fnvOffset implement the FNV-like 64-bit hash spec.md §4.14
// names explicitly (prime 1099511628211, the FNV-1a 64-bit prime).
const (
	fnvPrime  uint64 = 1099511628211
	fnvOffset uint64 = 14695981039346656037
)

func fnvHash(seed uint64, data ...uint64) uint64 {
	h := seed
	var buf [8]byte
	for _, v := range data {
		binary.LittleEndian.PutUint64(buf[:], v)
		for _, b := range buf {
			h ^= uint64(b)
			h *= fnvPrime
		}
	}
	return h
}

// populateRenderTargetCache implements spec.md §4.14 for every non-culled
// graphics pass in execution order.
func (g *Graph) populateRenderTargetCache(order []int) error {
	for _, passIdx := range order {
		p := g.passes[passIdx]
		if p.typ != PassGraphics {
			continue
		}
		if err := g.populatePassCache(p); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) populatePassCache(p *rgPass) error {
	entry, ok := g.rtCache[p.name]
	if !ok {
		entry = &RenderTargetCacheEntry{passName: p.name}
		g.rtCache[p.name] = entry
	}

	rpDesc, rpHash := g.buildRenderPassDesc(p)
	if entry.renderpass == renderer.NilRenderPass || entry.renderpassHash != rpHash {
		if entry.renderpass != renderer.NilRenderPass {
			_ = g.facade.WaitIdle()
			for _, t := range entry.targets {
				_ = g.facade.RenderTargetDestroy(t)
			}
			entry.targets = nil
			_ = g.facade.RenderPassDestroy(entry.renderpass)
		}
		rp, err := g.facade.RenderPassCreateDesc(rpDesc)
		if err != nil {
			return vkrerr.Wrap(vkrerr.BackendFailure, err, "renderpass_create_desc failed")
		}
		entry.renderpass = rp
		entry.renderpassHash = rpHash
	}

	targetDescs, targetHash := g.buildRenderTargetDescs(p, rpHash)
	if uint32(len(entry.targets)) != uint32(len(targetDescs)) || entry.targetHash != targetHash {
		for _, t := range entry.targets {
			_ = g.facade.RenderTargetDestroy(t)
		}
		targets := make([]renderer.RenderTargetHandle, len(targetDescs))
		for i, td := range targetDescs {
			rt, err := g.facade.RenderTargetCreate(td, entry.renderpass)
			if err != nil {
				for j := 0; j < i; j++ {
					_ = g.facade.RenderTargetDestroy(targets[j])
				}
				return vkrerr.Wrap(vkrerr.BackendFailure, err, "render_target_create failed")
			}
			targets[i] = rt
		}
		entry.targets = targets
		entry.targetHash = targetHash
		entry.targetCount = uint32(len(targets))
	}

	p.renderpass = entry.renderpass
	p.renderTargets = entry.targets
	return nil
}

func (g *Graph) buildRenderPassDesc(p *rgPass) (renderer.RenderPassDesc, uint64) {
	desc := renderer.RenderPassDesc{}
	h := fnvOffset
	for _, att := range p.colorAttachments {
		img, _ := g.images.get(att.Image.Handle)
		a := renderer.AttachmentDesc{
			Format:     img.desc.Format,
			Samples:    img.desc.Samples,
			LoadOp:     att.LoadOp,
			StoreOp:    att.StoreOp,
			ClearValue: att.ClearValue,
		}
		desc.ColorAttachments = append(desc.ColorAttachments, a)
		h = fnvHash(h, uint64(a.Format), uint64(a.Samples), uint64(a.LoadOp), uint64(a.StoreOp))
	}
	if p.depthAttachment != nil {
		img, _ := g.images.get(p.depthAttachment.Image.Handle)
		a := renderer.AttachmentDesc{
			Format:     img.desc.Format,
			Samples:    img.desc.Samples,
			LoadOp:     p.depthAttachment.LoadOp,
			StoreOp:    p.depthAttachment.StoreOp,
			ClearValue: p.depthAttachment.ClearValue,
		}
		desc.DepthAttachment = &a
		h = fnvHash(h, uint64(a.Format), uint64(a.Samples), uint64(a.LoadOp), uint64(a.StoreOp), 1)
	}
	return desc, h
}

func (g *Graph) buildRenderTargetDescs(p *rgPass, rpHash uint64) ([]renderer.RenderTargetDesc, uint64) {
	count := 1
	for _, att := range p.colorAttachments {
		if img, ok := g.images.get(att.Image.Handle); ok {
			if n := len(img.textures); n > count {
				count = n
			}
		}
	}
	if p.depthAttachment != nil {
		if img, ok := g.images.get(p.depthAttachment.Image.Handle); ok {
			if n := len(img.textures); n > count {
				count = n
			}
		}
	}

	descs := make([]renderer.RenderTargetDesc, count)
	h := fnvHash(fnvOffset, rpHash, uint64(count))

	for idx := 0; idx < count; idx++ {
		var rtd renderer.RenderTargetDesc
		for _, att := range p.colorAttachments {
			img, ok := g.images.get(att.Image.Handle)
			if !ok {
				continue
			}
			tex := pickTextureForIndex(img.textures, idx)
			rtd.Attachments = append(rtd.Attachments, renderer.RenderTargetAttachment{
				Texture: tex,
				Slice: renderer.RenderTargetSlice{
					Mip:        att.Slice.Mip,
					BaseLayer:  att.Slice.BaseLayer,
					LayerCount: att.Slice.LayerCount,
				},
			})
			rtd.Extent = [2]uint32{img.desc.Width, img.desc.Height}
			h = fnvHash(h, uint64(tex), uint64(att.Slice.Mip), uint64(att.Slice.BaseLayer), uint64(att.Slice.LayerCount))
		}
		if p.depthAttachment != nil {
			img, ok := g.images.get(p.depthAttachment.Image.Handle)
			if ok {
				tex := pickTextureForIndex(img.textures, idx)
				rtd.Attachments = append(rtd.Attachments, renderer.RenderTargetAttachment{
					Texture: tex,
					Slice: renderer.RenderTargetSlice{
						Mip:        p.depthAttachment.Slice.Mip,
						BaseLayer:  p.depthAttachment.Slice.BaseLayer,
						LayerCount: p.depthAttachment.Slice.LayerCount,
					},
				})
				rtd.Extent = [2]uint32{img.desc.Width, img.desc.Height}
				h = fnvHash(h, uint64(tex), uint64(p.depthAttachment.Slice.Mip), uint64(p.depthAttachment.Slice.BaseLayer), uint64(p.depthAttachment.Slice.LayerCount))
			}
		}
		descs[idx] = rtd
	}
	return descs, h
}

func pickTextureForIndex(textures []renderer.TextureHandle, idx int) renderer.TextureHandle {
	if len(textures) == 0 {
		return renderer.NilTexture
	}
	if idx < len(textures) {
		return textures[idx]
	}
	return textures[0]
}
