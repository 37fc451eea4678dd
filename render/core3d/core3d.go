// Package core3d builds the Core 3D render graph every Camera3d renders
// through: prepass, main opaque pass, post-processing, upscaling.
package core3d

import (
	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/render"
)

const Graph render.SubGraphLabel = "core_3d"

// Node labels of the Core 3D graph, in execution order.
const (
	Prepass                   render.NodeLabel = "prepass"
	MainOpaquePass            render.NodeLabel = "main_opaque_pass"
	Tonemapping               render.NodeLabel = "tonemapping"
	EndMainPassPostProcessing render.NodeLabel = "end_main_pass_post_processing"
	Upscaling                 render.NodeLabel = "upscaling"
)

// DepthClearValue clears the prepass depth to the far plane of a
// reversed-Z projection.
const DepthClearValue = 0.0

type Module struct{}

func (Module) Install(app *gekko.App, cmd *gekko.Commands) {
	renderApp := render.MustGetRenderApp(app)
	rcmd := renderApp.Commands()

	graph := render.NewGraph()
	graph.AddNode(Prepass, render.ViewNodeRunner{Node: prepassNode{}})
	graph.AddNode(MainOpaquePass, render.ViewNodeRunner{Node: mainOpaquePassNode{}})
	graph.AddNode(Tonemapping, render.EmptyNode{})
	graph.AddNode(EndMainPassPostProcessing, render.EmptyNode{})
	graph.AddNode(Upscaling, render.ViewNodeRunner{Node: newUpscalingNode()})
	graph.AddNodeEdges(Prepass, MainOpaquePass, Tonemapping, EndMainPassPostProcessing, Upscaling)

	renderGraph, _ := gekko.Resource[render.RenderGraph](rcmd)
	renderGraph.AddSubGraph(Graph, graph)

	shaders, _ := gekko.Resource[render.Shaders](rcmd)
	shaders.Insert(upscalingShaderHandle, render.Shader{Path: "core3d/upscaling.wgsl", Source: upscalingWGSL})

	renderApp.AddResources(&upscalingPipeline{pipelines: render.NewSpecializedRenderPipelines[wgpu.TextureFormat]()})
	renderApp.UseSystem(
		gekko.System(initUpscalingPipeline).InStage(render.RenderStartup),
		gekko.System(extractCore3dCameras).InStage(render.Extract),
		gekko.System(prepareUpscalingPipelines).InStage(render.Prepare),
	)
}

// extractCore3dCameras routes every Camera3d through the Core 3D graph.
func extractCore3dCameras(cmd *gekko.Commands, main *render.MainWorld, synced *render.SyncedEntities) {
	mainCmd := main.Commands()
	synced.Each(func(mainId, renderId gekko.EntityId) {
		if gekko.HasComponent[render.Camera3d](mainCmd, mainId) {
			cmd.AddComponents(renderId, render.CameraDriver{Graph: Graph})
		} else if gekko.HasComponent[render.CameraDriver](cmd, renderId) {
			cmd.RemoveComponents(renderId, render.CameraDriver{})
		}
	})
}

// prepassNode clears the prepass attachments a view asked for.
type prepassNode struct{}

func (prepassNode) Run(ctx *render.RenderContext, view gekko.EntityId, cmd *gekko.Commands) error {
	textures, ok := gekko.GetComponent[render.ViewPrepassTextures](cmd, view)
	if !ok {
		return nil
	}

	desc := render.RenderPassDescriptor{Label: "prepass"}
	for _, texture := range []*render.CachedTexture{textures.Normal, textures.MotionVectors} {
		if texture == nil {
			continue
		}
		desc.ColorAttachments = append(desc.ColorAttachments, render.RenderPassColorAttachment{
			View:    texture.View,
			LoadOp:  wgpu.LoadOpClear,
			StoreOp: wgpu.StoreOpStore,
		})
	}
	if textures.Depth != nil {
		desc.DepthStencilAttachment = &render.RenderPassDepthStencilAttachment{
			View:            textures.Depth.View,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: DepthClearValue,
		}
	}

	return ctx.BeginRenderPass(&desc).End()
}

// mainOpaquePassNode clears the view target to the camera clear color.
type mainOpaquePassNode struct{}

func (mainOpaquePassNode) Run(ctx *render.RenderContext, view gekko.EntityId, cmd *gekko.Commands) error {
	target, ok := gekko.GetComponent[render.ViewTarget](cmd, view)
	if !ok {
		return nil
	}
	camera, ok := gekko.GetComponent[render.ExtractedCamera](cmd, view)
	if !ok {
		return nil
	}

	pass := ctx.BeginRenderPass(&render.RenderPassDescriptor{
		Label:            "main_opaque_pass",
		ColorAttachments: []render.RenderPassColorAttachment{target.ColorAttachment(wgpu.LoadOpClear, camera.ClearColor)},
	})
	return pass.End()
}

// SetCameraViewport applies the camera viewport to pass, if it has one.
func SetCameraViewport(pass render.RenderPass, camera *render.ExtractedCamera) {
	if camera == nil || camera.Viewport == nil {
		return
	}
	vp := camera.Viewport
	pass.SetViewport(
		float32(vp.PhysicalPosition[0]), float32(vp.PhysicalPosition[1]),
		float32(vp.PhysicalSize[0]), float32(vp.PhysicalSize[1]),
		vp.Depth.X(), vp.Depth.Y(),
	)
}
