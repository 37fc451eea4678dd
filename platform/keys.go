package platform

import (
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/go-gl/glfw/v3.3/glfw"
)

type keyBinding struct {
	key     int
	glfwKey glfw.Key
}

type mouseBinding struct {
	key    int
	button glfw.MouseButton
}

var keyBindings = buildKeyBindings()

var mouseBindings = []mouseBinding{
	{gekko.MouseButtonLeft, glfw.MouseButtonLeft},
	{gekko.MouseButtonRight, glfw.MouseButtonRight},
	{gekko.MouseButtonMiddle, glfw.MouseButtonMiddle},
}

func buildKeyBindings() []keyBinding {
	var bindings []keyBinding
	for i := 0; i < 26; i++ {
		bindings = append(bindings, keyBinding{gekko.KeyA + i, glfw.KeyA + glfw.Key(i)})
	}
	for i := 0; i < 10; i++ {
		bindings = append(bindings, keyBinding{gekko.Key0 + i, glfw.Key0 + glfw.Key(i)})
	}
	return append(bindings,
		keyBinding{gekko.KeySpace, glfw.KeySpace},
		keyBinding{gekko.KeyEnter, glfw.KeyEnter},
		keyBinding{gekko.KeyEscape, glfw.KeyEscape},
		keyBinding{gekko.KeyTab, glfw.KeyTab},
		keyBinding{gekko.KeyRight, glfw.KeyRight},
		keyBinding{gekko.KeyLeft, glfw.KeyLeft},
		keyBinding{gekko.KeyDown, glfw.KeyDown},
		keyBinding{gekko.KeyUp, glfw.KeyUp},
		keyBinding{gekko.KeyShift, glfw.KeyLeftShift},
		keyBinding{gekko.KeyControl, glfw.KeyLeftControl},
	)
}
