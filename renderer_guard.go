package gekko

import (
	"fmt"
	"reflect"
)

// RendererTag marks that a renderer has been installed into the App.
// Only one renderer should be installed at a time.
type RendererTag struct {
	Name string
}

// EnsureSingleRenderer panics when a renderer with a different name is
// already installed. Installing the same renderer twice is a no-op.
func EnsureSingleRenderer(app *App, name string) {
	if app == nil {
		panic("EnsureSingleRenderer: app is nil")
	}
	t := reflect.TypeFor[RendererTag]()
	if res, ok := app.resources[t]; ok {
		tag := res.(*RendererTag)
		if tag.Name != name {
			app.Logger().Errorf("Multiple renderers installed: %s and %s", tag.Name, name)
			panic(fmt.Sprintf("Multiple renderers installed: %s and %s", tag.Name, name))
		}
		return
	}
	app.addResources(&RendererTag{Name: name})
}

// HasResource reports whether a resource of type T is registered.
func HasResource[T any](app *App) bool {
	_, ok := app.resources[reflect.TypeFor[T]()]
	return ok
}

// GetResource is Resource for code holding an *App rather than Commands.
func GetResource[T any](app *App) (*T, bool) {
	return Resource[T](app.Commands())
}
