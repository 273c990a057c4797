package rg

import "github.com/nmxmxh/vkrcore/vkrerr"

// validate implements spec.md §4.7: per-pass checks run before dependency
// analysis. Disabled passes are skipped entirely.
func (g *Graph) validate() error {
	for i, p := range g.passes {
		if p.flags.has(PassFlagDisabled) {
			continue
		}
		if err := g.validatePass(i, p); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) validatePass(index int, p *rgPass) error {
	if p.typ == PassGraphics && len(p.colorAttachments) == 0 && p.depthAttachment == nil {
		return vkrerr.Newf(vkrerr.InvalidArgument,
			"pass %q: graphics pass needs at least one color attachment or a depth attachment", p.name)
	}

	for _, att := range p.colorAttachments {
		if err := g.validateImageAttachment(p.name, att, AccessColorAttachment); err != nil {
			return err
		}
	}
	if p.depthAttachment != nil {
		access := AccessDepthAttachment
		if p.depthAttachment.ReadOnly {
			access = AccessDepthReadOnly
		}
		if err := g.validateImageAttachment(p.name, *p.depthAttachment, access); err != nil {
			return err
		}
	}

	for _, use := range p.imageReads {
		if err := g.validateImageUse(p.name, use); err != nil {
			return err
		}
	}
	for _, use := range p.imageWrites {
		if err := g.validateImageUse(p.name, use); err != nil {
			return err
		}
	}
	for _, use := range p.bufferReads {
		if err := g.validateBufferUse(p.name, use); err != nil {
			return err
		}
	}
	for _, use := range p.bufferWrites {
		if err := g.validateBufferUse(p.name, use); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) validateImageAttachment(passName string, att Attachment, access AccessFlags) error {
	img, ok := g.images.get(att.Image.Handle)
	if !ok {
		return vkrerr.Newf(vkrerr.HandleInvalidGeneration, "pass %q: stale or unknown image handle", passName)
	}
	required, ok := access.requiredImageUsage()
	if ok && img.desc.Usage&required == 0 {
		return vkrerr.Newf(vkrerr.UsageMismatch,
			"pass %q: image %q missing required usage bit for access %d", passName, img.name, access)
	}
	if att.Slice.LayerCount == 0 {
		return vkrerr.Newf(vkrerr.InvalidArgument, "pass %q: image %q attachment slice has zero layer_count", passName, img.name)
	}
	if att.Slice.Mip >= img.desc.MipLevels {
		return vkrerr.Newf(vkrerr.InvalidArgument, "pass %q: image %q attachment mip out of range", passName, img.name)
	}
	if att.Slice.BaseLayer+att.Slice.LayerCount > img.desc.Layers {
		return vkrerr.Newf(vkrerr.InvalidArgument, "pass %q: image %q attachment layer range out of bounds", passName, img.name)
	}
	return nil
}

func (g *Graph) validateImageUse(passName string, use ImageUse) error {
	img, ok := g.images.get(use.Handle.Handle)
	if !ok {
		return vkrerr.Newf(vkrerr.HandleInvalidGeneration, "pass %q: stale or unknown image handle", passName)
	}
	required, ok := use.Access.requiredImageUsage()
	if ok && img.desc.Usage&required == 0 {
		return vkrerr.Newf(vkrerr.UsageMismatch,
			"pass %q: image %q missing required usage bit for access %d", passName, img.name, use.Access)
	}
	return nil
}

func (g *Graph) validateBufferUse(passName string, use BufferUse) error {
	buf, ok := g.buffers.get(use.Handle.Handle)
	if !ok {
		return vkrerr.Newf(vkrerr.HandleInvalidGeneration, "pass %q: stale or unknown buffer handle", passName)
	}
	// AccessUniform accepts either UsageUniform or UsageGlobalUniform, since
	// the two usage bits distinguish how a buffer is bound, not what a pass
	// may do with it (spec.md §4.7: "UNIFORM (or GLOBAL_UNIFORM)").
	if use.Access == AccessUniform {
		if buf.desc.Usage&(UsageUniform|UsageGlobalUniform) == 0 {
			return vkrerr.Newf(vkrerr.UsageMismatch,
				"pass %q: buffer %q missing uniform or global-uniform usage bit", passName, buf.name)
		}
		return nil
	}
	required, ok := bufferRequiredUsage(use.Access)
	if ok && buf.desc.Usage&required == 0 {
		return vkrerr.Newf(vkrerr.UsageMismatch,
			"pass %q: buffer %q missing required usage bit for access %d", passName, buf.name, use.Access)
	}
	return nil
}

// bufferRequiredUsage maps a buffer access to its required usage bit
// (spec.md §4.7: VERTEX_BUFFER, INDEX_BUFFER, UNIFORM/GLOBAL_UNIFORM,
// STORAGE, TRANSFER_SRC/DST). AccessUniform is handled separately by the
// caller since it accepts either of two usage bits.
func bufferRequiredUsage(a AccessFlags) (BufferUsage, bool) {
	switch a {
	case AccessVertexBuffer:
		return UsageVertexBuffer, true
	case AccessIndexBuffer:
		return UsageIndexBuffer, true
	case AccessStorageRead, AccessStorageWrite:
		return UsageBufferStorage, true
	case AccessTransferSrc:
		return UsageBufferTransferSrc, true
	case AccessTransferDst:
		return UsageBufferTransferDst, true
	default:
		return 0, false
	}
}
