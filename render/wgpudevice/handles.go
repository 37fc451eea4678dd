package wgpudevice

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gekko-showprepass/render"
)

type Buffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

func (b *Buffer) Size() uint64 { return b.size }
func (b *Buffer) Release()     { b.buffer.Release() }

type Texture struct {
	texture *wgpu.Texture
}

func (t *Texture) CreateView() (render.TextureView, error) {
	return t.texture.CreateView(nil)
}

func (t *Texture) Release() { t.texture.Release() }

type CommandEncoder struct {
	encoder *wgpu.CommandEncoder
}

func (e *CommandEncoder) BeginRenderPass(desc *render.RenderPassDescriptor) render.RenderPass {
	native := &wgpu.RenderPassDescriptor{Label: desc.Label}
	for _, a := range desc.ColorAttachments {
		attachment := wgpu.RenderPassColorAttachment{
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: a.ClearValue,
		}
		if view, ok := a.View.(*wgpu.TextureView); ok {
			attachment.View = view
		}
		if resolve, ok := a.ResolveTarget.(*wgpu.TextureView); ok {
			attachment.ResolveTarget = resolve
		}
		native.ColorAttachments = append(native.ColorAttachments, attachment)
	}
	if ds := desc.DepthStencilAttachment; ds != nil {
		attachment := &wgpu.RenderPassDepthStencilAttachment{
			DepthLoadOp:     ds.DepthLoadOp,
			DepthStoreOp:    ds.DepthStoreOp,
			DepthClearValue: ds.DepthClearValue,
		}
		if view, ok := ds.View.(*wgpu.TextureView); ok {
			attachment.View = view
		}
		native.DepthStencilAttachment = attachment
	}
	return &RenderPass{pass: e.encoder.BeginRenderPass(native)}
}

func (e *CommandEncoder) Finish() (render.CommandBuffer, error) {
	return e.encoder.Finish(nil)
}

func (e *CommandEncoder) Release() { e.encoder.Release() }

type RenderPass struct {
	pass *wgpu.RenderPassEncoder
}

func (p *RenderPass) SetPipeline(pipeline render.RenderPipeline) {
	p.pass.SetPipeline(pipeline.(*wgpu.RenderPipeline))
}

func (p *RenderPass) SetBindGroup(index uint32, group render.BindGroup, dynamicOffsets []uint32) {
	p.pass.SetBindGroup(index, group.(*wgpu.BindGroup), dynamicOffsets)
}

func (p *RenderPass) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	p.pass.SetViewport(x, y, width, height, minDepth, maxDepth)
}

func (p *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *RenderPass) End() error {
	err := p.pass.End()
	p.pass.Release()
	return err
}
