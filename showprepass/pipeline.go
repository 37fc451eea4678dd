package showprepass

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/render"
)

// showPrepassPipelines owns the bind group layouts for every layout key
// and the pipelines specialized from them.
type showPrepassPipelines struct {
	layouts     map[layoutKey]render.BindGroupLayout
	specialized *render.SpecializedRenderPipelines[pipelineKey]
	shader      render.ShaderHandle
}

func newShowPrepassPipelines() *showPrepassPipelines {
	return &showPrepassPipelines{
		specialized: render.NewSpecializedRenderPipelines[pipelineKey](),
		shader:      ShaderHandle,
	}
}

func initShowPrepassPipelines(device *render.RenderDevice, pipelines *showPrepassPipelines) {
	if pipelines.layouts != nil {
		return
	}
	layouts := make(map[layoutKey]render.BindGroupLayout, 6)
	for _, key := range allLayoutKeys() {
		layout, err := device.Device.CreateBindGroupLayout(layoutDescriptor(key))
		if err != nil {
			panic(fmt.Sprintf("show prepass: create %s layout: %v", key.label(), err))
		}
		layouts[key] = layout
	}
	pipelines.layouts = layouts
}

func (k layoutKey) label() string {
	if k.multisampled {
		return fmt.Sprintf("show_prepass_%s_multisampled_layout", k.mode)
	}
	return fmt.Sprintf("show_prepass_%s_layout", k.mode)
}

func layoutDescriptor(key layoutKey) *wgpu.BindGroupLayoutDescriptor {
	sampleType := wgpu.TextureSampleTypeUnfilterableFloat
	if key.mode == Depth {
		sampleType = wgpu.TextureSampleTypeDepth
	}
	return &wgpu.BindGroupLayoutDescriptor{
		Label: key.label(),
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					HasDynamicOffset: true,
					MinBindingSize:   render.UniformSize[showPrepassUniform](),
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    sampleType,
					ViewDimension: wgpu.TextureViewDimension2D,
					Multisampled:  key.multisampled,
				},
			},
		},
	}
}

// specialize returns the pipeline descriptor for key.
func (p *showPrepassPipelines) specialize(fullscreen *render.FullscreenShader) func(pipelineKey) render.PipelineDescriptor {
	return func(key pipelineKey) render.PipelineDescriptor {
		defs := []string{key.mode.shaderDef()}
		if key.multisampled {
			defs = append(defs, "MULTISAMPLED")
		}
		format := render.MainTextureFormat
		if key.hdr {
			format = render.MainTextureFormatHdr
		}
		return render.PipelineDescriptor{
			Label:  "show_prepass_pipeline",
			Layout: []render.BindGroupLayout{p.layouts[key.layoutKey()]},
			Vertex: fullscreen.VertexState(),
			Fragment: &render.FragmentDescriptor{
				ShaderStageDescriptor: render.ShaderStageDescriptor{
					Shader:     p.shader,
					EntryPoint: "fragment",
					ShaderDefs: defs,
				},
				Targets: []wgpu.ColorTargetState{{Format: format, WriteMask: wgpu.ColorWriteMaskAll}},
			},
		}
	}
}

func prepareShowPrepassPipelines(cmd *gekko.Commands, cache *render.PipelineCache, fullscreen *render.FullscreenShader, pipelines *showPrepassPipelines) {
	specialize := pipelines.specialize(fullscreen)
	gekko.MakeQuery3[ShowPrepass, render.ExtractedView, render.Msaa](cmd).Map(
		func(eid gekko.EntityId, show *ShowPrepass, view *render.ExtractedView, msaa *render.Msaa) bool {
			key := pipelineKey{mode: show.Mode, hdr: view.Hdr, multisampled: msaa.IsMultisampled()}
			id := pipelines.specialized.Specialize(cache, key, specialize)
			cmd.AddComponents(eid, cachedShowPrepassPipeline{ID: id})
			return true
		}, render.Msaa{})

	gekko.MakeQuery2[cachedShowPrepassPipeline, ShowPrepass](cmd).Map(
		func(eid gekko.EntityId, _ *cachedShowPrepassPipeline, show *ShowPrepass) bool {
			if show == nil {
				cmd.RemoveComponents(eid, cachedShowPrepassPipeline{})
			}
			return true
		}, ShowPrepass{})
}
