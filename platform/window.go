// Package platform opens a GLFW window, creates the GPU device for it and
// feeds keyboard and mouse state into gekko.Input.
package platform

import (
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/gekko3d/gekko-showprepass/render"
	"github.com/gekko3d/gekko-showprepass/render/wgpudevice"
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	defaultWidth  = 1280
	defaultHeight = 720
	defaultTitle  = "Gekko"
)

// WindowModule creates the window and installs render.Module on its
// surface. Render carries the renderer options; its Device and Surface
// are filled in here.
type WindowModule struct {
	Width       int
	Height      int
	Title       string
	PresentMode wgpu.PresentMode
	Render      render.Module
}

// Window is the main window resource.
type Window struct {
	window  *glfw.Window
	device  *wgpudevice.Device
	surface *wgpudevice.Surface
	width   int
	height  int
}

func (m WindowModule) withDefaults() WindowModule {
	if m.Width <= 0 {
		m.Width = defaultWidth
	}
	if m.Height <= 0 {
		m.Height = defaultHeight
	}
	if m.Title == "" {
		m.Title = defaultTitle
	}
	return m
}

func (m WindowModule) Install(app *gekko.App, cmd *gekko.Commands) {
	m = m.withDefaults()

	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		panic(err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(m.Width, m.Height, m.Title, nil, nil)
	if err != nil {
		panic(err)
	}

	width, height := win.GetFramebufferSize()
	device, surface, err := wgpudevice.New(wgpuglfw.GetSurfaceDescriptor(win), uint32(width), uint32(height), wgpudevice.Options{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
		PresentMode:     m.PresentMode,
	})
	if err != nil {
		win.Destroy()
		panic(err)
	}
	app.Logger().Infof("window %q: %dx%d, surface format %s", m.Title, width, height, surface.Format())

	if !gekko.HasResource[gekko.Input](app) {
		app.UseModules(gekko.InputModule{})
	}
	cmd.AddResources(&Window{
		window:  win,
		device:  device,
		surface: surface,
		width:   width,
		height:  height,
	})

	renderModule := m.Render
	renderModule.Device = device
	renderModule.Surface = surface
	app.UseModules(renderModule)

	app.UseSystem(
		gekko.System(pollWindowEvents).
			InStage(gekko.Prelude).
			RunAlways(),
	)
}

// Size returns the framebuffer size in pixels.
func (w *Window) Size() (int, int) {
	return w.width, w.height
}

// Close releases the GPU objects and destroys the window.
func (w *Window) Close() {
	w.surface.Release()
	w.device.Release()
	w.window.Destroy()
	glfw.Terminate()
}

func pollWindowEvents(cmd *gekko.Commands, window *Window, input *gekko.Input) {
	glfw.PollEvents()
	if window.window.ShouldClose() {
		cmd.Exit()
		return
	}

	width, height := window.window.GetFramebufferSize()
	if width != window.width || height != window.height {
		if err := window.surface.Configure(uint32(width), uint32(height)); err != nil {
			cmd.Logger().Errorf("resize surface to %dx%d: %v", width, height, err)
		}
		window.width, window.height = width, height
	}
	input.WindowWidth, input.WindowHeight = width, height

	for _, b := range keyBindings {
		input.SetKey(b.key, window.window.GetKey(b.glfwKey) == glfw.Press)
	}
	for _, b := range mouseBindings {
		input.SetKey(b.key, window.window.GetMouseButton(b.button) == glfw.Press)
	}
	input.MouseX, input.MouseY = window.window.GetCursorPos()
}
