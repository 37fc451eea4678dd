package gekko

type AppBuilder struct {
	app     *App
	stages  []Stage
	modules []Module
}

func NewAppBuilder() *AppBuilder {
	return &AppBuilder{stages: DefaultStages()}
}

func (b *AppBuilder) UseStates(initialState State, finalState State) *AppBuilder {
	b.ensureApp()
	b.app.stateful = true
	b.app.initialState = initialState
	b.app.finalState = finalState

	return b
}

// UseStages replaces the default stage order. Sub-apps use this to run
// their own schedule.
func (b *AppBuilder) UseStages(stages ...Stage) *AppBuilder {
	b.stages = stages
	return b
}

func (b *AppBuilder) UseModule(modules ...Module) *AppBuilder {
	b.modules = append(b.modules, modules...)

	return b
}

func (b *AppBuilder) ensureApp() {
	if b.app == nil {
		b.app = newApp(nil)
	}
}

func (b *AppBuilder) Build() *App {
	b.ensureApp()
	app := b.app
	// Stages are laid out last so stateful stage maps cover the final state range.
	app.setStages(b.stages)

	commands := &Commands{app: app}
	for _, module := range b.modules {
		module.Install(app, commands)
	}

	return app
}
