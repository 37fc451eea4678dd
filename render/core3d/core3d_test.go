package core3d_test

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/render"
	"github.com/gekko3d/gekko-showprepass/render/core3d"
	"github.com/gekko3d/gekko-showprepass/render/rendertest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCore3dApp(t *testing.T, withSurface bool) (*gekko.App, *rendertest.Device) {
	t.Helper()
	device := rendertest.NewDevice()
	module := render.Module{Device: device}
	if withSurface {
		module.Surface = rendertest.NewSurface(device, 64, 64)
	}
	app := gekko.NewAppBuilder().
		UseModule(module, core3d.Module{}).
		Build()
	return app, device
}

func passLabels(passes []*rendertest.RenderPass) []string {
	labels := make([]string, 0, len(passes))
	for _, pass := range passes {
		labels = append(labels, pass.Descriptor.Label)
	}
	return labels
}

func TestCore3d_PassOrder(t *testing.T) {
	app, device := newCore3dApp(t, true)
	app.Commands().AddEntity(render.Camera{}, render.Camera3d{}, render.DepthPrepass{}, render.NormalPrepass{})

	app.Update()

	assert.Equal(t, []string{"prepass", "main_opaque_pass", "upscaling"}, passLabels(device.LastFrame()))

	prepass := device.PassesNamed("prepass")[0]
	require.Len(t, prepass.Descriptor.ColorAttachments, 1)
	require.NotNil(t, prepass.Descriptor.DepthStencilAttachment)
	assert.Equal(t, wgpu.LoadOpClear, prepass.Descriptor.DepthStencilAttachment.DepthLoadOp)
	assert.Equal(t, float32(core3d.DepthClearValue), prepass.Descriptor.DepthStencilAttachment.DepthClearValue)
}

func TestCore3d_MainPassClearsToCameraColor(t *testing.T) {
	app, device := newCore3dApp(t, false)
	clear := wgpu.Color{R: 0.1, G: 0.2, B: 0.3, A: 1}
	app.Commands().AddEntity(render.Camera{TargetSize: [2]uint32{16, 16}, ClearColor: clear}, render.Camera3d{})

	app.Update()

	main := device.PassesNamed("main_opaque_pass")
	require.Len(t, main, 1)
	require.Len(t, main[0].Descriptor.ColorAttachments, 1)
	assert.Equal(t, wgpu.LoadOpClear, main[0].Descriptor.ColorAttachments[0].LoadOp)
	assert.Equal(t, clear, main[0].Descriptor.ColorAttachments[0].ClearValue)

	// Headless views are never upscaled.
	assert.Empty(t, device.PassesNamed("upscaling"))
	assert.Empty(t, device.PassesNamed("prepass"))
}

func TestCore3d_UpscalingBlitsMainTexture(t *testing.T) {
	app, device := newCore3dApp(t, true)
	camera := app.Commands().AddEntity(render.Camera{
		Viewport: &render.Viewport{PhysicalPosition: [2]uint32{4, 8}, PhysicalSize: [2]uint32{32, 16}, Depth: mgl32.Vec2{0, 1}},
	}, render.Camera3d{})

	app.Update()

	upscaling := device.PassesNamed("upscaling")
	require.Len(t, upscaling, 1)
	pass := upscaling[0]
	require.Len(t, pass.Draws, 1)
	draw := pass.Draws[0]
	assert.Equal(t, uint32(3), draw.VertexCount)
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb, draw.Pipeline.Descriptor.Fragment.Targets[0].Format)
	assert.Equal(t, &[6]float32{4, 8, 32, 16, 0, 1}, pass.Viewport)

	rcmd := render.MustGetRenderApp(app).Commands()
	synced, _ := gekko.Resource[render.SyncedEntities](rcmd)
	view, ok := synced.RenderEntity(camera)
	require.True(t, ok)
	target, ok := gekko.GetComponent[render.ViewTarget](rcmd, view)
	require.True(t, ok)
	assert.Same(t, target.MainTexture(), draw.BindGroups[0].Descriptor.Entries[0].TextureView)

	// The bind group for an unchanged main texture is reused.
	groups := len(device.BindGroups)
	app.Update()
	assert.Len(t, device.BindGroups, groups)
}

func TestCore3d_DriverFollowsCamera3d(t *testing.T) {
	app, _ := newCore3dApp(t, false)
	cmd := app.Commands()
	camera := cmd.AddEntity(render.Camera{TargetSize: [2]uint32{8, 8}}, render.Camera3d{})
	app.Update()

	rcmd := render.MustGetRenderApp(app).Commands()
	synced, _ := gekko.Resource[render.SyncedEntities](rcmd)
	view, ok := synced.RenderEntity(camera)
	require.True(t, ok)
	driver, ok := gekko.GetComponent[render.CameraDriver](rcmd, view)
	require.True(t, ok)
	assert.Equal(t, core3d.Graph, driver.Graph)

	cmd.RemoveComponents(camera, render.Camera3d{})
	app.Update()
	assert.False(t, gekko.HasComponent[render.CameraDriver](rcmd, view))
}

func TestCore3d_GraphOrder(t *testing.T) {
	app, _ := newCore3dApp(t, false)
	graph, ok := gekko.Resource[render.RenderGraph](render.MustGetRenderApp(app).Commands())
	require.True(t, ok)

	order, err := graph.MustSubGraph(core3d.Graph).Order()
	require.NoError(t, err)
	assert.Equal(t, []render.NodeLabel{
		core3d.Prepass,
		core3d.MainOpaquePass,
		core3d.Tonemapping,
		core3d.EndMainPassPostProcessing,
		core3d.Upscaling,
	}, order)
}
