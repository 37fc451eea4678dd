package main

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/render"
	"github.com/gekko3d/gekko-showprepass/render/core3d"
	"github.com/gekko3d/gekko-showprepass/render/rendertest"
	"github.com/gekko3d/gekko-showprepass/showprepass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loggerModule struct {
	logger *rendertest.Logger
}

func (m loggerModule) Install(app *gekko.App, cmd *gekko.Commands) {
	cmd.AddResources(m.logger)
}

func newApp(t *testing.T, modules ...gekko.Module) (*gekko.App, *rendertest.Device) {
	t.Helper()
	device := rendertest.NewDevice()
	app := gekko.NewAppBuilder().
		UseStates(overlayOff, exampleQuit).
		UseModule(append([]gekko.Module{
			gekko.TimeModule{},
			gekko.InputModule{},
			loggerModule{logger: rendertest.NewLogger()},
			render.Module{Device: device, Surface: rendertest.NewSurface(device, 64, 48)},
			core3d.Module{},
			showprepass.Module{},
			sceneModule{},
		}, modules...)...).
		Build()
	return app, device
}

func passLabels(device *rendertest.Device) []string {
	labels := []string{}
	for _, pass := range device.LastFrame() {
		labels = append(labels, pass.Descriptor.Label)
	}
	return labels
}

func scenePipeline(t *testing.T, device *rendertest.Device, label string) (*rendertest.RenderPass, *rendertest.RenderPipeline) {
	t.Helper()
	passes := device.PassesNamed(label)
	require.Len(t, passes, 1)
	require.Len(t, passes[0].Draws, 1)
	return passes[0], passes[0].Draws[0].Pipeline
}

func TestScene_DrawsEveryPrepass(t *testing.T) {
	app, device := newApp(t)
	app.Commands().AddEntity(
		render.Camera{}, render.Camera3d{}, render.Msaa{Samples: 4},
		render.DepthPrepass{}, render.NormalPrepass{}, render.MotionVectorPrepass{},
		showprepass.ShowPrepass{Mode: showprepass.Normals},
	)
	app.Update()
	app.Update()

	assert.Equal(t, []string{"prepass", "scene_prepass", "main_opaque_pass", "scene_main", "show_prepass", "upscaling"}, passLabels(device))

	pass, pipeline := scenePipeline(t, device, "scene_prepass")
	require.Len(t, pass.Descriptor.ColorAttachments, 2)
	require.NotNil(t, pass.Descriptor.DepthStencilAttachment)
	assert.Equal(t, wgpu.LoadOpLoad, pass.Descriptor.ColorAttachments[0].LoadOp)
	assert.Equal(t, wgpu.LoadOpLoad, pass.Descriptor.DepthStencilAttachment.DepthLoadOp)

	require.NotNil(t, pipeline.Descriptor.Fragment)
	targets := pipeline.Descriptor.Fragment.Targets
	require.Len(t, targets, 2)
	assert.Equal(t, render.NormalPrepassFormat, targets[0].Format)
	assert.Equal(t, render.MotionVectorsFormat, targets[1].Format)
	require.NotNil(t, pipeline.Descriptor.DepthStencil)
	assert.True(t, pipeline.Descriptor.DepthStencil.DepthWriteEnabled)
	assert.Equal(t, wgpu.CompareFunctionGreaterEqual, pipeline.Descriptor.DepthStencil.DepthCompare)
	assert.Equal(t, uint32(4), pipeline.Descriptor.Multisample.Count)

	code := pipeline.Descriptor.Fragment.Module.(*rendertest.ShaderModule).Code
	assert.Contains(t, code, "@builtin(frag_depth)")
	assert.Contains(t, code, "@location(1) motion_vector")
	assert.NotContains(t, code, "fn shade")

	pass, pipeline = scenePipeline(t, device, "scene_main")
	assert.Equal(t, wgpu.LoadOpLoad, pass.Descriptor.ColorAttachments[0].LoadOp)
	assert.NotNil(t, pass.Descriptor.ColorAttachments[0].ResolveTarget)
	assert.Equal(t, render.MainTextureFormat, pipeline.Descriptor.Fragment.Targets[0].Format)
	assert.Equal(t, "shade", pipeline.Descriptor.Fragment.EntryPoint)
}

func TestScene_PrepassFollowsMarkers(t *testing.T) {
	app, device := newApp(t)
	cmd := app.Commands()
	camera := cmd.AddEntity(render.Camera{}, render.Camera3d{}, render.DepthPrepass{})
	app.Update()
	app.Update()

	pass, pipeline := scenePipeline(t, device, "scene_prepass")
	assert.Empty(t, pass.Descriptor.ColorAttachments)
	assert.NotNil(t, pass.Descriptor.DepthStencilAttachment)
	assert.Empty(t, pipeline.Descriptor.Fragment.Targets)
	code := pipeline.Descriptor.Fragment.Module.(*rendertest.ShaderModule).Code
	assert.NotContains(t, code, "normal: vec4<f32>")
	assert.Contains(t, code, "frag_depth")

	cmd.RemoveComponents(camera, render.DepthPrepass{})
	app.Update()
	app.Update()
	assert.Equal(t, []string{"main_opaque_pass", "scene_main", "upscaling"}, passLabels(device))
}

func TestScene_UniformPerView(t *testing.T) {
	app, _ := newApp(t)
	camera := app.Commands().AddEntity(render.Camera{}, render.Camera3d{})
	app.Update()

	rcmd := render.MustGetRenderApp(app).Commands()
	synced, ok := gekko.Resource[render.SyncedEntities](rcmd)
	require.True(t, ok)
	view, ok := synced.RenderEntity(camera)
	require.True(t, ok)

	uniform, ok := gekko.GetComponent[sceneUniform](rcmd, view)
	require.True(t, ok)
	assert.Equal(t, float32(64), uniform.Width)
	assert.Equal(t, float32(48), uniform.Height)
	assert.True(t, gekko.HasComponent[render.DynamicUniformIndex[sceneUniform]](rcmd, view))
	assert.Equal(t, uint64(16), render.UniformSize[sceneUniform]())
}

func TestExample_Keys(t *testing.T) {
	app, device := newApp(t, exampleModule{depthPower: 0.5})
	app.Update()

	state, ok := gekko.GetResource[exampleState](app)
	require.True(t, ok)
	input, ok := gekko.GetResource[gekko.Input](app)
	require.True(t, ok)
	cmd := app.Commands()

	press := func(key int) {
		input.JustPressed[key] = true
		app.Update()
		input.JustPressed[key] = false
	}

	assert.Equal(t, overlayDepth, app.State())
	show, ok := gekko.GetComponent[showprepass.ShowPrepass](cmd, state.camera)
	require.True(t, ok)
	assert.Equal(t, showprepass.Depth, show.Mode)
	power, ok := gekko.GetComponent[showprepass.DepthPower](cmd, state.camera)
	require.True(t, ok)
	assert.Equal(t, float32(0.5), power.Power)

	press(gekko.Key4)
	assert.Equal(t, overlayMotionVectors, app.State())
	show, ok = gekko.GetComponent[showprepass.ShowPrepass](cmd, state.camera)
	require.True(t, ok)
	assert.Equal(t, showprepass.MotionVectors, show.Mode)

	press(gekko.Key1)
	assert.Equal(t, overlayOff, app.State())
	assert.False(t, gekko.HasComponent[showprepass.ShowPrepass](cmd, state.camera))
	app.Update()
	assert.Empty(t, device.PassesNamed("show_prepass"))

	press(gekko.KeyM)
	msaa, ok := gekko.GetComponent[render.Msaa](cmd, state.camera)
	require.True(t, ok)
	assert.Equal(t, uint32(1), msaa.Samples)
	_, pipeline := scenePipeline(t, device, "scene_main")
	assert.Equal(t, uint32(1), pipeline.Descriptor.Multisample.Count)

	press(gekko.KeyH)
	camera, ok := gekko.GetComponent[render.Camera](cmd, state.camera)
	require.True(t, ok)
	assert.True(t, camera.Hdr)
	_, pipeline = scenePipeline(t, device, "scene_main")
	assert.Equal(t, render.MainTextureFormatHdr, pipeline.Descriptor.Fragment.Targets[0].Format)

	press(gekko.KeyEscape)
	assert.Equal(t, exampleQuit, app.State())
}
