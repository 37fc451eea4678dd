package main

import (
	_ "embed"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/render"
	"github.com/gekko3d/gekko-showprepass/render/core3d"
)

//go:embed shaders/scene.wgsl
var sceneWGSL string

var sceneShaderHandle = render.NewShaderHandle("cmd/showprepass/scene.wgsl")

const (
	scenePrepassLabel render.NodeLabel = "scene_prepass"
	sceneMainLabel    render.NodeLabel = "scene_main"
)

// sceneModule draws three orbiting spheres over a checker floor, ray
// traced in a fullscreen pass. It writes whichever prepass textures the
// camera asked for and then the main color.
type sceneModule struct{}

type sceneUniform struct {
	Time      float32
	DeltaTime float32
	Width     float32
	Height    float32
}

type scenePipelineKey struct {
	prepass     bool
	normal      bool
	motion      bool
	depth       bool
	hdr         bool
	sampleCount uint32
}

type scenePipelines struct {
	layout      render.BindGroupLayout
	specialized *render.SpecializedRenderPipelines[scenePipelineKey]

	buffer render.Buffer
	group  render.BindGroup
}

type cachedScenePipelines struct {
	Prepass    render.CachedRenderPipelineId
	PrepassKey scenePipelineKey
	HasPrepass bool
	Main       render.CachedRenderPipelineId
}

func (sceneModule) Install(app *gekko.App, cmd *gekko.Commands) {
	renderApp := render.MustGetRenderApp(app)
	rcmd := renderApp.Commands()

	shaders, _ := gekko.Resource[render.Shaders](rcmd)
	shaders.Insert(sceneShaderHandle, render.Shader{Path: "cmd/showprepass/scene.wgsl", Source: sceneWGSL})

	renderApp.AddResources(&scenePipelines{specialized: render.NewSpecializedRenderPipelines[scenePipelineKey]()})
	app.UseModules(render.UniformComponentModule[sceneUniform]{Label: "scene_uniforms"})
	renderApp.UseSystem(
		gekko.System(initScenePipelines).InStage(render.RenderStartup),
		gekko.System(prepareScene).InStage(render.Prepare),
		gekko.System(prepareSceneBindGroup).InStage(render.PrepareBindGroups),
	)

	graph, _ := gekko.Resource[render.RenderGraph](rcmd)
	core := graph.MustSubGraph(core3d.Graph)
	core.AddNode(scenePrepassLabel, render.ViewNodeRunner{Node: scenePrepassNode{}})
	core.AddNode(sceneMainLabel, render.ViewNodeRunner{Node: sceneMainNode{}})
	core.AddNodeEdges(core3d.Prepass, scenePrepassLabel, core3d.MainOpaquePass, sceneMainLabel, core3d.Tonemapping)
}

func initScenePipelines(device *render.RenderDevice, pipelines *scenePipelines) {
	layout, err := device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "scene_layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   render.UniformSize[sceneUniform](),
			},
		}},
	})
	if err != nil {
		panic(fmt.Sprintf("scene: create layout: %v", err))
	}
	pipelines.layout = layout
}

func (p *scenePipelines) specialize(fullscreen *render.FullscreenShader) func(scenePipelineKey) render.PipelineDescriptor {
	return func(key scenePipelineKey) render.PipelineDescriptor {
		desc := render.PipelineDescriptor{
			Label:       "scene_pipeline",
			Layout:      []render.BindGroupLayout{p.layout},
			Vertex:      fullscreen.VertexState(),
			Multisample: wgpu.MultisampleState{Count: key.sampleCount},
		}
		stage := render.ShaderStageDescriptor{Shader: sceneShaderHandle, EntryPoint: "shade"}
		if !key.prepass {
			format := render.MainTextureFormat
			if key.hdr {
				format = render.MainTextureFormatHdr
			}
			desc.Fragment = &render.FragmentDescriptor{
				ShaderStageDescriptor: stage,
				Targets:               []wgpu.ColorTargetState{{Format: format, WriteMask: wgpu.ColorWriteMaskAll}},
			}
			return desc
		}

		desc.Label = "scene_prepass_pipeline"
		stage.EntryPoint = "prepass"
		stage.ShaderDefs = []string{"PREPASS"}
		var targets []wgpu.ColorTargetState
		if key.normal {
			stage.ShaderDefs = append(stage.ShaderDefs, "NORMAL_PREPASS")
			targets = append(targets, wgpu.ColorTargetState{Format: render.NormalPrepassFormat, WriteMask: wgpu.ColorWriteMaskAll})
		}
		if key.motion {
			stage.ShaderDefs = append(stage.ShaderDefs, "MOTION_VECTOR_PREPASS")
			targets = append(targets, wgpu.ColorTargetState{Format: render.MotionVectorsFormat, WriteMask: wgpu.ColorWriteMaskAll})
		}
		if key.depth {
			stage.ShaderDefs = append(stage.ShaderDefs, "DEPTH_PREPASS")
			desc.DepthStencil = &wgpu.DepthStencilState{
				Format:            render.DepthPrepassFormat,
				DepthWriteEnabled: true,
				DepthCompare:      wgpu.CompareFunctionGreaterEqual,
				StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
				StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			}
		}
		desc.Fragment = &render.FragmentDescriptor{ShaderStageDescriptor: stage, Targets: targets}
		return desc
	}
}

func prepareScene(cmd *gekko.Commands, t *gekko.Time, cache *render.PipelineCache, fullscreen *render.FullscreenShader, pipelines *scenePipelines) {
	specialize := pipelines.specialize(fullscreen)
	gekko.MakeQuery3[render.ExtractedCamera, render.ExtractedView, render.Msaa](cmd).Map(
		func(eid gekko.EntityId, camera *render.ExtractedCamera, view *render.ExtractedView, msaa *render.Msaa) bool {
			cmd.AddComponents(eid, sceneUniform{
				Time:      float32(t.Elapsed.Seconds()),
				DeltaTime: t.DeltaSeconds(),
				Width:     float32(camera.PhysicalTargetSize[0]),
				Height:    float32(camera.PhysicalTargetSize[1]),
			})

			samples := msaa.SampleCount()
			cached := cachedScenePipelines{
				Main: pipelines.specialized.Specialize(cache, scenePipelineKey{hdr: view.Hdr, sampleCount: samples}, specialize),
			}
			cached.PrepassKey = scenePipelineKey{
				prepass:     true,
				normal:      gekko.HasComponent[render.NormalPrepass](cmd, eid),
				motion:      gekko.HasComponent[render.MotionVectorPrepass](cmd, eid),
				depth:       gekko.HasComponent[render.DepthPrepass](cmd, eid),
				sampleCount: samples,
			}
			if cached.PrepassKey.normal || cached.PrepassKey.motion || cached.PrepassKey.depth {
				cached.Prepass = pipelines.specialized.Specialize(cache, cached.PrepassKey, specialize)
				cached.HasPrepass = true
			}
			cmd.AddComponents(eid, cached)
			return true
		}, render.Msaa{})
}

// matches reports whether textures has exactly the attachments the
// prepass pipeline was built for.
func (k scenePipelineKey) matches(textures *render.ViewPrepassTextures) bool {
	return k.normal == (textures.Normal != nil) &&
		k.motion == (textures.MotionVectors != nil) &&
		k.depth == (textures.Depth != nil) &&
		k.sampleCount == textures.SampleCount
}

func prepareSceneBindGroup(cmd *gekko.Commands, device *render.RenderDevice, uniforms *render.ComponentUniforms[sceneUniform], pipelines *scenePipelines) {
	buffer, ok := uniforms.Binding()
	if !ok || buffer == pipelines.buffer {
		return
	}
	group, err := device.Device.CreateBindGroup(&render.BindGroupDescriptor{
		Label:   "scene_bind_group",
		Layout:  pipelines.layout,
		Entries: []render.BindGroupEntry{{Binding: 0, Buffer: buffer, Size: render.UniformSize[sceneUniform]()}},
	})
	if err != nil {
		cmd.Logger().Errorf("scene: create bind group: %v", err)
		return
	}
	if pipelines.group != nil {
		pipelines.group.Release()
	}
	pipelines.buffer, pipelines.group = buffer, group
}

// sceneDraw returns what both scene nodes need, or false if the view is
// not ready this frame.
func sceneDraw(cmd *gekko.Commands, view gekko.EntityId, id func(*cachedScenePipelines) (render.CachedRenderPipelineId, bool)) (render.RenderPipeline, render.BindGroup, uint32, bool) {
	cached, ok := gekko.GetComponent[cachedScenePipelines](cmd, view)
	if !ok {
		return nil, nil, 0, false
	}
	pipelineId, ok := id(cached)
	if !ok {
		return nil, nil, 0, false
	}
	index, ok := gekko.GetComponent[render.DynamicUniformIndex[sceneUniform]](cmd, view)
	if !ok {
		return nil, nil, 0, false
	}
	pipelines, _ := gekko.Resource[scenePipelines](cmd)
	cache, _ := gekko.Resource[render.PipelineCache](cmd)
	pipeline, ok := cache.GetRenderPipeline(pipelineId)
	if !ok || pipelines.group == nil {
		return nil, nil, 0, false
	}
	return pipeline, pipelines.group, index.Index, true
}

type scenePrepassNode struct{}

func (scenePrepassNode) Run(ctx *render.RenderContext, view gekko.EntityId, cmd *gekko.Commands) error {
	textures, ok := gekko.GetComponent[render.ViewPrepassTextures](cmd, view)
	if !ok {
		return nil
	}
	pipeline, group, index, ok := sceneDraw(cmd, view, func(c *cachedScenePipelines) (render.CachedRenderPipelineId, bool) {
		return c.Prepass, c.HasPrepass && c.PrepassKey.matches(textures)
	})
	if !ok {
		return nil
	}

	desc := render.RenderPassDescriptor{Label: "scene_prepass"}
	for _, texture := range []*render.CachedTexture{textures.Normal, textures.MotionVectors} {
		if texture != nil {
			desc.ColorAttachments = append(desc.ColorAttachments, render.RenderPassColorAttachment{
				View:    texture.View,
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			})
		}
	}
	if textures.Depth != nil {
		desc.DepthStencilAttachment = &render.RenderPassDepthStencilAttachment{
			View:         textures.Depth.View,
			DepthLoadOp:  wgpu.LoadOpLoad,
			DepthStoreOp: wgpu.StoreOpStore,
		}
	}
	return draw(ctx, cmd, view, &desc, pipeline, group, index)
}

type sceneMainNode struct{}

func (sceneMainNode) Run(ctx *render.RenderContext, view gekko.EntityId, cmd *gekko.Commands) error {
	target, ok := gekko.GetComponent[render.ViewTarget](cmd, view)
	if !ok {
		return nil
	}
	pipeline, group, index, ok := sceneDraw(cmd, view, func(c *cachedScenePipelines) (render.CachedRenderPipelineId, bool) {
		return c.Main, true
	})
	if !ok {
		return nil
	}
	desc := render.RenderPassDescriptor{
		Label:            "scene_main",
		ColorAttachments: []render.RenderPassColorAttachment{target.ColorAttachment(wgpu.LoadOpLoad, wgpu.Color{})},
	}
	return draw(ctx, cmd, view, &desc, pipeline, group, index)
}

func draw(ctx *render.RenderContext, cmd *gekko.Commands, view gekko.EntityId, desc *render.RenderPassDescriptor, pipeline render.RenderPipeline, group render.BindGroup, index uint32) error {
	pass := ctx.BeginRenderPass(desc)
	camera, _ := gekko.GetComponent[render.ExtractedCamera](cmd, view)
	core3d.SetCameraViewport(pass, camera)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group, []uint32{index})
	pass.Draw(3, 1, 0, 0)
	return pass.End()
}
