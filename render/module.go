package render

import (
	gekko "github.com/gekko3d/gekko-showprepass"
)

// Module installs the render sub-app. Device is required; Surface may be
// nil to render headless.
type Module struct {
	Device  Device
	Surface Surface
	// AsyncPipelineCompilation compiles pipelines on PipelineWorkers
	// goroutines instead of inline in the Render stage.
	AsyncPipelineCompilation bool
	PipelineWorkers          int
	// ValidateShaders runs pre-processed WGSL through naga before the
	// device sees it.
	ValidateShaders bool
}

func (m Module) Install(app *gekko.App, cmd *gekko.Commands) {
	if m.Device == nil {
		panic("render.Module requires a Device")
	}
	gekko.EnsureSingleRenderer(app, "render")

	logger := app.Logger()
	renderApp := newRenderApp()

	shaders := NewShaders()
	shaders.Insert(FullscreenShaderHandle, Shader{Path: "render/fullscreen.wgsl", Source: fullscreenWGSL})

	workers := 0
	if m.AsyncPipelineCompilation {
		workers = max(m.PipelineWorkers, 1)
	}

	renderApp.AddResources(
		logger,
		&RenderDevice{Device: m.Device},
		&RenderSurface{Surface: m.Surface},
		shaders,
		&FullscreenShader{handle: FullscreenShaderHandle},
		NewPipelineCache(m.Device, shaders, logger, PipelineCacheOptions{Workers: workers, Validate: m.ValidateShaders}),
		NewRenderGraph(),
		NewTextureCache(),
		&gekko.Time{},
	)

	renderApp.UseSystem(
		gekko.System(syncCameraEntities).InStage(Extract),
		gekko.System(extractCameras).InStage(Extract),
		gekko.System(extractTime).InStage(Extract),
		gekko.System(acquireSurfaceTexture).InStage(PrepareResources),
		gekko.System(prepareViewTargets).InStage(PrepareResources),
		gekko.System(preparePrepassTextures).InStage(PrepareResources),
		gekko.System(runRenderGraph).InStage(Render),
		gekko.System(releaseSurfaceTexture).InStage(Cleanup),
		gekko.System(cleanupTextureCache).InStage(Cleanup),
	)

	cmd.AddResources(renderApp)

	app.UseModules(
		ExtractComponentModule[Msaa]{},
		ExtractComponentModule[DepthPrepass]{},
		ExtractComponentModule[NormalPrepass]{},
		ExtractComponentModule[MotionVectorPrepass]{},
	)

	app.UseSystem(
		gekko.System(updateRenderApp).
			InStage(gekko.Render).
			RunAlways(),
	)
}

func updateRenderApp(cmd *gekko.Commands, renderApp *RenderApp) {
	renderApp.Update(cmd)
}
