package render

import (
	gekko "github.com/gekko3d/gekko-showprepass"
)

// Render sub-app stages, in execution order.
var (
	RenderStartup     = gekko.Stage{Name: "RenderStartup", UpdateType: gekko.StartupUpdate}
	Extract           = gekko.Stage{Name: "Extract", UpdateType: gekko.DynamicUpdate}
	Prepare           = gekko.Stage{Name: "Prepare", UpdateType: gekko.DynamicUpdate}
	PrepareResources  = gekko.Stage{Name: "PrepareResources", UpdateType: gekko.DynamicUpdate}
	PrepareBindGroups = gekko.Stage{Name: "PrepareBindGroups", UpdateType: gekko.DynamicUpdate}
	Render            = gekko.Stage{Name: "Render", UpdateType: gekko.DynamicUpdate}
	Cleanup           = gekko.Stage{Name: "Cleanup", UpdateType: gekko.DynamicUpdate}
)

func renderStages() []gekko.Stage {
	return []gekko.Stage{RenderStartup, Extract, Prepare, PrepareResources, PrepareBindGroups, Render, Cleanup}
}

// RenderApp is the render world. It is a separate gekko.App updated once
// per main-app frame from the main Render stage.
type RenderApp struct {
	app       *gekko.App
	mainWorld *MainWorld
}

func newRenderApp() *RenderApp {
	app := gekko.NewAppBuilder().UseStages(renderStages()...).Build()
	mainWorld := &MainWorld{}
	app.Commands().AddResources(mainWorld, &SyncedEntities{toRender: map[gekko.EntityId]gekko.EntityId{}})
	return &RenderApp{app: app, mainWorld: mainWorld}
}

func (r *RenderApp) App() *gekko.App {
	return r.app
}

func (r *RenderApp) Commands() *gekko.Commands {
	return r.app.Commands()
}

func (r *RenderApp) UseSystem(system ...gekko.SystemSchedule) *RenderApp {
	for _, s := range system {
		r.app.UseSystem(s)
	}
	return r
}

func (r *RenderApp) AddResources(resources ...any) *RenderApp {
	r.app.Commands().AddResources(resources...)
	return r
}

// Update runs one render frame against the given main world.
func (r *RenderApp) Update(main *gekko.Commands) {
	r.mainWorld.cmd = main
	r.app.Update()
	r.mainWorld.cmd = nil
}

// MustGetRenderApp returns the render sub-app installed by Module.
func MustGetRenderApp(app *gekko.App) *RenderApp {
	renderApp, ok := gekko.GetResource[RenderApp](app)
	if !ok {
		panic("render.Module must be installed before render plugins")
	}
	return renderApp
}

// MainWorld gives render systems read access to the main app during Extract.
type MainWorld struct {
	cmd *gekko.Commands
}

// Commands is only valid while the render app is updating.
func (w *MainWorld) Commands() *gekko.Commands {
	return w.cmd
}

// MainEntity links a render entity to the main-world entity it mirrors.
type MainEntity struct {
	ID gekko.EntityId
}

// SyncedEntities maps main-world cameras to their render entities.
type SyncedEntities struct {
	toRender map[gekko.EntityId]gekko.EntityId
}

func (s *SyncedEntities) RenderEntity(main gekko.EntityId) (gekko.EntityId, bool) {
	id, ok := s.toRender[main]
	return id, ok
}

// Each calls fn for every synced pair.
func (s *SyncedEntities) Each(fn func(main, render gekko.EntityId)) {
	for main, render := range s.toRender {
		fn(main, render)
	}
}

// syncCameraEntities spawns a render entity for every new main-world camera
// and despawns those whose camera went away, releasing the GPU objects
// their components own.
func syncCameraEntities(cmd *gekko.Commands, main *MainWorld, synced *SyncedEntities) {
	alive := make(map[gekko.EntityId]struct{}, len(synced.toRender))
	gekko.MakeQuery1[Camera](main.Commands()).Map(func(eid gekko.EntityId, _ *Camera) bool {
		alive[eid] = struct{}{}
		if _, ok := synced.toRender[eid]; !ok {
			synced.toRender[eid] = cmd.AddEntity(MainEntity{ID: eid})
		}
		return true
	})

	for mainId, renderId := range synced.toRender {
		if _, ok := alive[mainId]; !ok {
			releaseComponents(cmd, renderId)
			cmd.RemoveEntity(renderId)
			delete(synced.toRender, mainId)
		}
	}
}

func releaseComponents(cmd *gekko.Commands, eid gekko.EntityId) {
	for _, component := range cmd.GetAllComponents(eid) {
		if r, ok := component.(Releaser); ok {
			r.Release()
		}
	}
}
