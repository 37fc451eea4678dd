// Command showprepass renders a small scene with every prepass enabled
// and lets the prepass overlay be switched from the keyboard.
//
//	1  overlay off
//	2  depth
//	3  normals
//	4  motion vectors
//	M  toggle MSAA
//	H  toggle HDR
//	Esc quit
package main

import (
	"flag"

	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/platform"
	"github.com/gekko3d/gekko-showprepass/render"
	"github.com/gekko3d/gekko-showprepass/render/core3d"
	"github.com/gekko3d/gekko-showprepass/showprepass"
)

func main() {
	var (
		debug    = flag.Bool("debug", false, "enable debug logging")
		validate = flag.Bool("validate", false, "validate shaders with naga before compiling")
		workers  = flag.Int("workers", 2, "pipeline compilation workers, 0 compiles inline")
		power    = flag.Float64("depth-power", 0.75, "exponent applied to depth in the overlay")
	)
	flag.Parse()

	app := gekko.NewAppBuilder().
		UseStates(overlayOff, exampleQuit).
		UseModule(
			gekko.LoggingModule{Prefix: "showprepass", Debug: *debug},
			gekko.TimeModule{},
			platform.WindowModule{
				Title:       "show prepass",
				PresentMode: wgpu.PresentModeFifo,
				Render: render.Module{
					AsyncPipelineCompilation: *workers > 0,
					PipelineWorkers:          *workers,
					ValidateShaders:          *validate,
				},
			},
			core3d.Module{},
			showprepass.Module{},
			sceneModule{},
			exampleModule{depthPower: float32(*power)},
		).
		Build()

	window, _ := gekko.GetResource[platform.Window](app)
	defer window.Close()

	app.Run()
}

const defaultSamples = 4

// App states, one per overlay. exampleQuit is the final state.
const (
	overlayOff gekko.State = iota + 1
	overlayDepth
	overlayNormals
	overlayMotionVectors
	exampleQuit
)

var overlayKeys = map[int]gekko.State{
	gekko.Key1: overlayOff,
	gekko.Key2: overlayDepth,
	gekko.Key3: overlayNormals,
	gekko.Key4: overlayMotionVectors,
}

type exampleModule struct {
	depthPower float32
}

type exampleState struct {
	camera  gekko.EntityId
	spawned bool
}

func (m exampleModule) Install(app *gekko.App, cmd *gekko.Commands) {
	cmd.AddResources(&exampleState{})
	app.UseSystem(gekko.System(m.spawnCamera).InStage(gekko.Startup))
	app.UseSystem(gekko.System(handleKeys).InStage(gekko.Update))

	app.UseSystem(gekko.System(hideOverlay).InStage(gekko.Update).InState(gekko.OnEnter(overlayOff)))
	app.UseSystem(gekko.System(showOverlay(showprepass.Depth)).InStage(gekko.Update).InState(gekko.OnEnter(overlayDepth)))
	app.UseSystem(gekko.System(showOverlay(showprepass.Normals)).InStage(gekko.Update).InState(gekko.OnEnter(overlayNormals)))
	app.UseSystem(gekko.System(showOverlay(showprepass.MotionVectors)).InStage(gekko.Update).InState(gekko.OnEnter(overlayMotionVectors)))
}

func (m exampleModule) spawnCamera(cmd *gekko.Commands, state *exampleState) {
	state.camera = cmd.AddEntity(
		render.Camera{ClearColor: wgpu.Color{R: 0.05, G: 0.05, B: 0.08, A: 1}},
		render.Camera3d{},
		render.Msaa{Samples: defaultSamples},
		render.DepthPrepass{},
		render.NormalPrepass{},
		render.MotionVectorPrepass{},
		showprepass.DepthPower{Power: m.depthPower},
	)
	state.spawned = true
	cmd.ChangeState(overlayDepth)
	cmd.Logger().Infof("keys: 1 off, 2 depth, 3 normals, 4 motion vectors, M msaa, H hdr, Esc quit")
}

func hideOverlay(cmd *gekko.Commands, state *exampleState) {
	if !state.spawned {
		return
	}
	cmd.RemoveComponents(state.camera, showprepass.ShowPrepass{})
	cmd.Logger().Infof("overlay off")
}

func showOverlay(mode showprepass.Mode) func(*gekko.Commands, *exampleState) {
	return func(cmd *gekko.Commands, state *exampleState) {
		cmd.AddComponents(state.camera, showprepass.ShowPrepass{Mode: mode})
		cmd.Logger().Infof("overlay %s", mode)
	}
}

func handleKeys(cmd *gekko.Commands, input *gekko.Input, state *exampleState) {
	pressed := func(key int) bool { return input.JustPressed[key] }

	if pressed(gekko.KeyEscape) {
		cmd.ChangeState(exampleQuit)
		return
	}
	for key, next := range overlayKeys {
		if pressed(key) {
			cmd.ChangeState(next)
		}
	}

	if pressed(gekko.KeyM) {
		if msaa, ok := gekko.GetComponent[render.Msaa](cmd, state.camera); ok {
			if msaa.IsMultisampled() {
				msaa.Samples = 1
			} else {
				msaa.Samples = defaultSamples
			}
			cmd.Logger().Infof("msaa %dx", msaa.Samples)
		}
	}
	if pressed(gekko.KeyH) {
		if camera, ok := gekko.GetComponent[render.Camera](cmd, state.camera); ok {
			camera.Hdr = !camera.Hdr
			cmd.Logger().Infof("hdr %t", camera.Hdr)
		}
	}
}
