// Package showprepass draws a camera's depth, normal or motion vector
// prepass over its final image.
//
// Add ShowPrepass{Mode} to a camera that also carries the matching prepass
// marker (render.DepthPrepass, render.NormalPrepass or
// render.MotionVectorPrepass). Removing the component turns the overlay
// off.
package showprepass

import (
	_ "embed"

	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/render"
	"github.com/gekko3d/gekko-showprepass/render/core3d"
)

//go:embed shaders/show_prepass.wgsl
var showPrepassWGSL string

var ShaderHandle = render.NewShaderHandle("showprepass/show_prepass.wgsl")

// Module requires render.Module and core3d.Module to be installed first.
type Module struct{}

func (Module) Install(app *gekko.App, cmd *gekko.Commands) {
	renderApp := render.MustGetRenderApp(app)
	rcmd := renderApp.Commands()

	shaders, _ := gekko.Resource[render.Shaders](rcmd)
	shaders.Insert(ShaderHandle, render.Shader{Path: "showprepass/show_prepass.wgsl", Source: showPrepassWGSL})

	renderApp.AddResources(
		newShowPrepassPipelines(),
		&missingTextures{warned: map[gekko.EntityId]Mode{}},
	)

	app.UseModules(
		render.ExtractComponentModule[ShowPrepass]{},
		render.ExtractComponentModule[DepthPower]{},
		render.UniformComponentModule[showPrepassUniform]{Label: "show_prepass_uniforms"},
	)

	renderApp.UseSystem(
		gekko.System(initShowPrepassPipelines).InStage(render.RenderStartup),
		gekko.System(prepareShowPrepassUniforms).InStage(render.Prepare),
		gekko.System(prepareShowPrepassPipelines).InStage(render.Prepare),
		gekko.System(prepareShowPrepassBindGroups).InStage(render.PrepareBindGroups),
	)

	graph, _ := gekko.Resource[render.RenderGraph](rcmd)
	core := graph.MustSubGraph(core3d.Graph)
	core.AddNode(ShowPrepassLabel, render.ViewNodeRunner{Node: showPrepassNode{}})
	core.AddNodeEdges(core3d.Tonemapping, ShowPrepassLabel, core3d.EndMainPassPostProcessing)
}
