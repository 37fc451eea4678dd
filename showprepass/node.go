package showprepass

import (
	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/render"
	"github.com/gekko3d/gekko-showprepass/render/core3d"
)

// ShowPrepassLabel is the Core 3D graph node that draws the overlay.
const ShowPrepassLabel render.NodeLabel = "show_prepass"

type showPrepassNode struct{}

func (showPrepassNode) Run(ctx *render.RenderContext, view gekko.EntityId, cmd *gekko.Commands) error {
	if !gekko.HasComponent[ShowPrepass](cmd, view) {
		return nil
	}
	cached, ok := gekko.GetComponent[cachedShowPrepassPipeline](cmd, view)
	if !ok {
		return nil
	}
	group, ok := gekko.GetComponent[showPrepassBindGroup](cmd, view)
	if !ok {
		return nil
	}
	index, ok := gekko.GetComponent[render.DynamicUniformIndex[showPrepassUniform]](cmd, view)
	if !ok {
		return nil
	}
	target, ok := gekko.GetComponent[render.ViewTarget](cmd, view)
	if !ok {
		return nil
	}

	cache, _ := gekko.Resource[render.PipelineCache](cmd)
	pipeline, ok := cache.GetRenderPipeline(cached.ID)
	if !ok {
		return nil
	}

	post := target.PostProcessWrite()
	pass := ctx.BeginRenderPass(&render.RenderPassDescriptor{
		Label: "show_prepass",
		ColorAttachments: []render.RenderPassColorAttachment{{
			View:    post.Destination,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	camera, _ := gekko.GetComponent[render.ExtractedCamera](cmd, view)
	core3d.SetCameraViewport(pass, camera)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group.BindGroup, []uint32{index.Index})
	pass.Draw(3, 1, 0, 0)
	return pass.End()
}
