package core3d

import (
	_ "embed"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/render"
)

//go:embed shaders/upscaling.wgsl
var upscalingWGSL string

var upscalingShaderHandle = render.NewShaderHandle("core3d/upscaling.wgsl")

type upscalingPipeline struct {
	layout    render.BindGroupLayout
	pipelines *render.SpecializedRenderPipelines[wgpu.TextureFormat]
}

// ViewUpscalingPipeline is the blit pipeline for the view's surface format.
type ViewUpscalingPipeline struct {
	ID render.CachedRenderPipelineId
}

func initUpscalingPipeline(device *render.RenderDevice, upscaling *upscalingPipeline) {
	layout, err := device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "upscaling_bind_group_layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		panic(err)
	}
	upscaling.layout = layout
}

func prepareUpscalingPipelines(cmd *gekko.Commands, surface *render.RenderSurface, cache *render.PipelineCache, fullscreen *render.FullscreenShader, upscaling *upscalingPipeline) {
	format := surface.Format()
	if format == wgpu.TextureFormatUndefined {
		return
	}

	gekko.MakeQuery1[render.CameraDriver](cmd).Map(func(eid gekko.EntityId, driver *render.CameraDriver) bool {
		if driver.Graph != Graph {
			return true
		}
		id := upscaling.pipelines.Specialize(cache, format, func(format wgpu.TextureFormat) render.PipelineDescriptor {
			return render.PipelineDescriptor{
				Label:  "upscaling_pipeline",
				Layout: []render.BindGroupLayout{upscaling.layout},
				Vertex: fullscreen.VertexState(),
				Fragment: &render.FragmentDescriptor{
					ShaderStageDescriptor: render.ShaderStageDescriptor{Shader: upscalingShaderHandle, EntryPoint: "fs_main"},
					Targets:               []wgpu.ColorTargetState{{Format: format, WriteMask: wgpu.ColorWriteMaskAll}},
				},
			}
		})
		cmd.AddComponents(eid, ViewUpscalingPipeline{ID: id})
		return true
	})
}

// upscalingNode copies the view's main texture to the surface.
type upscalingNode struct {
	bindGroups map[render.TextureView]render.BindGroup
}

func newUpscalingNode() *upscalingNode {
	return &upscalingNode{bindGroups: map[render.TextureView]render.BindGroup{}}
}

func (n *upscalingNode) Run(ctx *render.RenderContext, view gekko.EntityId, cmd *gekko.Commands) error {
	surface, _ := gekko.Resource[render.RenderSurface](cmd)
	out, ok := surface.View()
	if !ok {
		return nil
	}
	target, ok := gekko.GetComponent[render.ViewTarget](cmd, view)
	if !ok {
		return nil
	}
	specialized, ok := gekko.GetComponent[ViewUpscalingPipeline](cmd, view)
	if !ok {
		return nil
	}
	cache, _ := gekko.Resource[render.PipelineCache](cmd)
	pipeline, ok := cache.GetRenderPipeline(specialized.ID)
	if !ok {
		return nil
	}

	source := target.MainTexture()
	bindGroup, ok := n.bindGroups[source]
	if !ok {
		upscaling, _ := gekko.Resource[upscalingPipeline](cmd)
		var err error
		bindGroup, err = ctx.Device().CreateBindGroup(&render.BindGroupDescriptor{
			Label:   "upscaling_bind_group",
			Layout:  upscaling.layout,
			Entries: []render.BindGroupEntry{{Binding: 0, TextureView: source}},
		})
		if err != nil {
			return fmt.Errorf("create upscaling bind group: %w", err)
		}
		n.bindGroups[source] = bindGroup
	}

	pass := ctx.BeginRenderPass(&render.RenderPassDescriptor{
		Label: "upscaling",
		ColorAttachments: []render.RenderPassColorAttachment{{
			View:    out,
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	camera, _ := gekko.GetComponent[render.ExtractedCamera](cmd, view)
	SetCameraViewport(pass, camera)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	return pass.End()
}
