package showprepass

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/render"
	"github.com/gekko3d/gekko-showprepass/render/core3d"
	"github.com/gekko3d/gekko-showprepass/render/rendertest"
	"github.com/gogpu/naga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loggerModule struct {
	logger *rendertest.Logger
}

func (m loggerModule) Install(app *gekko.App, cmd *gekko.Commands) {
	cmd.AddResources(m.logger)
}

type testHarness struct {
	app     *gekko.App
	device  *rendertest.Device
	surface *rendertest.Surface
	logger  *rendertest.Logger
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	device := rendertest.NewDevice()
	surface := rendertest.NewSurface(device, 64, 48)
	logger := rendertest.NewLogger()
	app := gekko.NewAppBuilder().
		UseModule(
			gekko.TimeModule{},
			loggerModule{logger: logger},
			render.Module{Device: device, Surface: surface},
			core3d.Module{},
			Module{},
		).
		Build()
	return &testHarness{app: app, device: device, surface: surface, logger: logger}
}

func (h *testHarness) update(frames int) {
	for i := 0; i < frames; i++ {
		h.app.Update()
	}
}

func (h *testHarness) renderCommands() *gekko.Commands {
	return render.MustGetRenderApp(h.app).Commands()
}

func (h *testHarness) view(t *testing.T, camera gekko.EntityId) gekko.EntityId {
	t.Helper()
	synced, ok := gekko.Resource[render.SyncedEntities](h.renderCommands())
	require.True(t, ok)
	view, ok := synced.RenderEntity(camera)
	require.True(t, ok)
	return view
}

func (h *testHarness) pipelines(t *testing.T) *showPrepassPipelines {
	t.Helper()
	pipelines, ok := gekko.Resource[showPrepassPipelines](h.renderCommands())
	require.True(t, ok)
	return pipelines
}

func fragmentCode(t *testing.T, draw rendertest.Draw) string {
	t.Helper()
	require.NotNil(t, draw.Pipeline)
	require.NotNil(t, draw.Pipeline.Descriptor.Fragment)
	module, ok := draw.Pipeline.Descriptor.Fragment.Module.(*rendertest.ShaderModule)
	require.True(t, ok)
	return module.Code
}

func TestModule_LayoutsBuiltOnce(t *testing.T) {
	h := newHarness(t)
	h.app.Commands().AddEntity(render.Camera{}, render.Camera3d{}, render.DepthPrepass{}, ShowPrepass{Mode: Depth})
	h.update(3)

	pipelines := h.pipelines(t)
	require.Len(t, pipelines.layouts, 6)
	for _, key := range allLayoutKeys() {
		assert.Contains(t, pipelines.layouts, key)
	}

	created := 0
	for _, layout := range h.device.BindGroupLayouts {
		if strings.HasPrefix(layout.Descriptor.Label, "show_prepass_") {
			created++
		}
	}
	assert.Equal(t, 6, created)

	layout := pipelines.layouts[layoutKey{mode: Depth, multisampled: true}].(*rendertest.BindGroupLayout)
	entries := layout.Descriptor.Entries
	require.Len(t, entries, 2)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.True(t, entries[0].Buffer.HasDynamicOffset)
	assert.Equal(t, uint64(8), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.ShaderStageFragment, entries[0].Visibility)
	assert.Equal(t, wgpu.TextureSampleTypeDepth, entries[1].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, entries[1].Texture.ViewDimension)
	assert.True(t, entries[1].Texture.Multisampled)

	normals := layoutDescriptor(layoutKey{mode: Normals})
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, normals.Entries[1].Texture.SampleType)
	assert.False(t, normals.Entries[1].Texture.Multisampled)
}

func TestModule_SpecializationIsCachedPerKey(t *testing.T) {
	h := newHarness(t)
	cmd := h.app.Commands()
	a := cmd.AddEntity(render.Camera{}, render.Camera3d{}, render.NormalPrepass{}, ShowPrepass{Mode: Normals})
	b := cmd.AddEntity(render.Camera{Order: 1}, render.Camera3d{}, render.NormalPrepass{}, ShowPrepass{Mode: Normals})
	h.update(3)

	pipelines := h.pipelines(t)
	assert.Equal(t, 1, pipelines.specialized.Len())

	rcmd := h.renderCommands()
	pa, ok := gekko.GetComponent[cachedShowPrepassPipeline](rcmd, h.view(t, a))
	require.True(t, ok)
	pb, ok := gekko.GetComponent[cachedShowPrepassPipeline](rcmd, h.view(t, b))
	require.True(t, ok)
	assert.Equal(t, pa.ID, pb.ID)

	cmd.AddComponents(b, render.Camera{Order: 1, Hdr: true})
	h.update(2)
	assert.Equal(t, 2, pipelines.specialized.Len())
}

func TestModule_RemovingModeStopsDrawing(t *testing.T) {
	h := newHarness(t)
	cmd := h.app.Commands()
	camera := cmd.AddEntity(render.Camera{}, render.Camera3d{}, render.NormalPrepass{}, ShowPrepass{Mode: Normals})
	h.update(1)
	require.Len(t, h.device.PassesNamed("show_prepass"), 1)

	view := h.view(t, camera)
	rcmd := h.renderCommands()
	group, ok := gekko.GetComponent[showPrepassBindGroup](rcmd, view)
	require.True(t, ok)
	last := group.BindGroup

	cmd.RemoveComponents(camera, ShowPrepass{})
	h.update(1)

	assert.Empty(t, h.device.PassesNamed("show_prepass"))
	assert.Len(t, h.device.PassesNamed("upscaling"), 1)
	assert.False(t, gekko.HasComponent[ShowPrepass](rcmd, view))
	assert.False(t, gekko.HasComponent[showPrepassUniform](rcmd, view))
	assert.False(t, gekko.HasComponent[cachedShowPrepassPipeline](rcmd, view))
	assert.False(t, gekko.HasComponent[showPrepassBindGroup](rcmd, view))
	assert.False(t, gekko.HasComponent[render.DynamicUniformIndex[showPrepassUniform]](rcmd, view))
	assert.True(t, rendertest.Released(last))
}

func TestModule_DespawnReleasesBindGroup(t *testing.T) {
	h := newHarness(t)
	cmd := h.app.Commands()
	camera := cmd.AddEntity(render.Camera{}, render.Camera3d{}, render.NormalPrepass{}, ShowPrepass{Mode: Normals})
	h.update(1)

	view := h.view(t, camera)
	group, ok := gekko.GetComponent[showPrepassBindGroup](h.renderCommands(), view)
	require.True(t, ok)
	last := group.BindGroup
	require.False(t, rendertest.Released(last))

	cmd.RemoveEntity(camera)
	h.update(3)

	assert.True(t, rendertest.Released(last))
	assert.False(t, h.renderCommands().HasEntity(view))
	assert.Empty(t, h.device.PassesNamed("show_prepass"))
}

func TestModule_MissingTextureWarnsOncePerEvent(t *testing.T) {
	h := newHarness(t)
	cmd := h.app.Commands()
	camera := cmd.AddEntity(render.Camera{}, render.Camera3d{}, render.DepthPrepass{}, ShowPrepass{Mode: Normals})
	h.update(3)

	view := h.view(t, camera)
	rcmd := h.renderCommands()
	assert.Equal(t, 1, h.logger.Count("WARN", "no normals prepass texture"))
	assert.False(t, gekko.HasComponent[showPrepassBindGroup](rcmd, view))
	assert.Empty(t, h.device.PassesNamed("show_prepass"))

	// A new mode is a new event.
	cmd.AddComponents(camera, ShowPrepass{Mode: MotionVectors})
	h.update(2)
	assert.Equal(t, 1, h.logger.Count("WARN", "no motion_vectors prepass texture"))

	// Resolving the texture re-arms the warning.
	cmd.AddComponents(camera, ShowPrepass{Mode: Normals}, render.NormalPrepass{})
	h.update(1)
	assert.True(t, gekko.HasComponent[showPrepassBindGroup](rcmd, view))
	assert.Len(t, h.device.PassesNamed("show_prepass"), 1)

	cmd.RemoveComponents(camera, render.NormalPrepass{})
	h.update(2)
	assert.Equal(t, 2, h.logger.Count("WARN", "no normals prepass texture"))
	assert.False(t, gekko.HasComponent[showPrepassBindGroup](rcmd, view))
	assert.Empty(t, h.device.PassesNamed("show_prepass"))
	assert.Equal(t, 3, h.logger.Count("WARN", "show prepass"))
}

func TestModule_ZeroSizedTargetWarns(t *testing.T) {
	h := newHarness(t)
	h.surface.Width, h.surface.Height = 0, 0
	camera := h.app.Commands().AddEntity(render.Camera{}, render.Camera3d{}, render.DepthPrepass{}, ShowPrepass{Mode: Depth})
	h.update(2)

	assert.Equal(t, 1, h.logger.Count("WARN", "no depth prepass texture this frame"))
	assert.Equal(t, 1, h.logger.Count("WARN", "non-empty render target"))
	assert.False(t, gekko.HasComponent[showPrepassBindGroup](h.renderCommands(), h.view(t, camera)))
	assert.Empty(t, h.device.PassesNamed("show_prepass"))

	h.surface.Width, h.surface.Height = 64, 48
	h.update(1)
	assert.Len(t, h.device.PassesNamed("show_prepass"), 1)
	assert.Equal(t, 1, h.logger.Count("WARN", "show prepass"))
}

func TestModule_DepthPowerDefaultsToOne(t *testing.T) {
	h := newHarness(t)
	cmd := h.app.Commands()
	plain := cmd.AddEntity(render.Camera{}, render.Camera3d{}, render.DepthPrepass{}, ShowPrepass{Mode: Depth})
	tuned := cmd.AddEntity(render.Camera{Order: 1}, render.Camera3d{}, render.DepthPrepass{}, ShowPrepass{Mode: Depth}, DepthPower{Power: 0.75})
	h.update(2)

	rcmd := h.renderCommands()
	renderTime, ok := gekko.Resource[gekko.Time](rcmd)
	require.True(t, ok)

	uniform, ok := gekko.GetComponent[showPrepassUniform](rcmd, h.view(t, plain))
	require.True(t, ok)
	assert.Equal(t, float32(1), uniform.DepthPower)
	assert.Equal(t, renderTime.DeltaSeconds(), uniform.DeltaTime)

	uniform, ok = gekko.GetComponent[showPrepassUniform](rcmd, h.view(t, tuned))
	require.True(t, ok)
	assert.Equal(t, float32(0.75), uniform.DepthPower)

	index, ok := gekko.GetComponent[render.DynamicUniformIndex[showPrepassUniform]](rcmd, h.view(t, tuned))
	require.True(t, ok)
	var uploaded *rendertest.Buffer
	for _, buffer := range h.device.Buffers {
		if buffer.Descriptor.Label == "show_prepass_uniforms" && !rendertest.Released(buffer) {
			uploaded = buffer
		}
	}
	require.NotNil(t, uploaded)
	bits := binary.LittleEndian.Uint32(uploaded.Data[index.Index:])
	assert.Equal(t, float32(0.75), math.Float32frombits(bits))
}

func TestModule_NormalsEndToEnd(t *testing.T) {
	h := newHarness(t)
	camera := h.app.Commands().AddEntity(render.Camera{}, render.Camera3d{}, render.NormalPrepass{}, ShowPrepass{Mode: Normals})

	for frame := 0; frame < 3; frame++ {
		h.update(1)

		labels := []string{}
		for _, pass := range h.device.LastFrame() {
			labels = append(labels, pass.Descriptor.Label)
		}
		assert.Equal(t, []string{"prepass", "main_opaque_pass", "show_prepass", "upscaling"}, labels)

		passes := h.device.PassesNamed("show_prepass")
		require.Len(t, passes, 1)
		pass := passes[0]
		require.Len(t, pass.Draws, 1)
		draw := pass.Draws[0]
		assert.Equal(t, uint32(3), draw.VertexCount)
		assert.Equal(t, uint32(1), draw.InstanceCount)
		assert.Equal(t, wgpu.TextureFormatRGBA8UnormSrgb, draw.Pipeline.Descriptor.Fragment.Targets[0].Format)
		assert.Equal(t, wgpu.LoadOpLoad, pass.Descriptor.ColorAttachments[0].LoadOp)

		code := fragmentCode(t, draw)
		assert.Contains(t, code, "let normal")
		assert.Contains(t, code, "texture_2d<f32>")
		assert.NotContains(t, code, "pow(depth")
		assert.NotContains(t, code, "motion_vector")

		rcmd := h.renderCommands()
		view := h.view(t, camera)
		prepass, ok := gekko.GetComponent[render.ViewPrepassTextures](rcmd, view)
		require.True(t, ok)
		normal, ok := prepass.NormalView()
		require.True(t, ok)
		group := draw.BindGroups[0]
		require.NotNil(t, group)
		assert.Same(t, normal, group.Descriptor.Entries[1].TextureView)

		index, ok := gekko.GetComponent[render.DynamicUniformIndex[showPrepassUniform]](rcmd, view)
		require.True(t, ok)
		assert.Equal(t, []uint32{index.Index}, draw.DynamicOffsets[0])

		// Upscaling reads what the overlay wrote.
		target, ok := gekko.GetComponent[render.ViewTarget](rcmd, view)
		require.True(t, ok)
		assert.Same(t, target.MainTexture(), pass.Descriptor.ColorAttachments[0].View)
		upscale := h.device.PassesNamed("upscaling")[0].Draws[0]
		assert.Same(t, target.MainTexture(), upscale.BindGroups[0].Descriptor.Entries[0].TextureView)
	}
}

func TestModule_HdrMultisampledDepth(t *testing.T) {
	h := newHarness(t)
	h.app.Commands().AddEntity(
		render.Camera{Hdr: true},
		render.Camera3d{},
		render.Msaa{Samples: 4},
		render.DepthPrepass{},
		ShowPrepass{Mode: Depth},
	)
	h.update(1)

	passes := h.device.PassesNamed("show_prepass")
	require.Len(t, passes, 1)
	draw := passes[0].Draws[0]
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, draw.Pipeline.Descriptor.Fragment.Targets[0].Format)
	assert.Equal(t, uint32(1), draw.Pipeline.Descriptor.Multisample.Count)

	layout := h.pipelines(t).layouts[layoutKey{mode: Depth, multisampled: true}]
	assert.Same(t, layout, draw.Pipeline.Descriptor.Layout[0])
	assert.Same(t, layout, draw.BindGroups[0].Descriptor.Layout)

	code := fragmentCode(t, draw)
	assert.Contains(t, code, "texture_depth_multisampled_2d")
	assert.Contains(t, code, "pow(depth, settings.depth_power)")
}

func TestModule_FailedPipelineSkipsView(t *testing.T) {
	h := newHarness(t)
	h.device.FailPipelines = true
	h.app.Commands().AddEntity(render.Camera{}, render.Camera3d{}, render.NormalPrepass{}, ShowPrepass{Mode: Normals})
	h.update(2)

	assert.Empty(t, h.device.PassesNamed("show_prepass"))
	assert.Len(t, h.device.Submitted, 2)
}

func TestModule_GraphOrder(t *testing.T) {
	h := newHarness(t)
	graph, ok := gekko.Resource[render.RenderGraph](h.renderCommands())
	require.True(t, ok)

	order, err := graph.MustSubGraph(core3d.Graph).Order()
	require.NoError(t, err)
	assert.Equal(t, []render.NodeLabel{
		core3d.Prepass,
		core3d.MainOpaquePass,
		core3d.Tonemapping,
		ShowPrepassLabel,
		core3d.EndMainPassPostProcessing,
		core3d.Upscaling,
	}, order)
}

func TestShader_Variants(t *testing.T) {
	cases := []struct {
		key     pipelineKey
		binding string
		body    string
	}{
		{pipelineKey{mode: Depth}, "texture_depth_2d", "pow(depth"},
		{pipelineKey{mode: Depth, multisampled: true}, "texture_depth_multisampled_2d", "pow(depth"},
		{pipelineKey{mode: Normals}, "texture_2d<f32>", "let normal"},
		{pipelineKey{mode: Normals, multisampled: true}, "texture_multisampled_2d<f32>", "let normal"},
		{pipelineKey{mode: MotionVectors}, "texture_2d<f32>", "motion_vector / settings.delta_time"},
		{pipelineKey{mode: MotionVectors, multisampled: true}, "texture_multisampled_2d<f32>", "motion_vector / settings.delta_time"},
	}
	for _, tc := range cases {
		t.Run(tc.key.mode.String(), func(t *testing.T) {
			defs := []string{tc.key.mode.shaderDef()}
			if tc.key.multisampled {
				defs = append(defs, "MULTISAMPLED")
			}
			code, err := render.ProcessShader(showPrepassWGSL, defs)
			require.NoError(t, err)
			assert.Contains(t, code, tc.binding)
			assert.Contains(t, code, tc.body)
			assert.Equal(t, 1, strings.Count(code, "@binding(1)"))
			assert.Equal(t, 1, strings.Count(code, "return "))

			_, err = naga.Compile(code)
			require.NoError(t, err)
		})
	}
}

func TestMode(t *testing.T) {
	assert.Equal(t, "depth", Depth.String())
	assert.Equal(t, "motion_vectors", MotionVectors.String())
	assert.Equal(t, "Mode(7)", Mode(7).String())
	assert.Equal(t, "SHOW_NORMALS", Normals.shaderDef())
	assert.Panics(t, func() { Mode(7).shaderDef() })

	key := pipelineKey{mode: Normals, hdr: true, multisampled: true}
	assert.Equal(t, layoutKey{mode: Normals, multisampled: true}, key.layoutKey())
}
