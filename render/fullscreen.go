package render

import (
	_ "embed"
)

//go:embed shaders/fullscreen.wgsl
var fullscreenWGSL string

var FullscreenShaderHandle = NewShaderHandle("render/fullscreen.wgsl")

// FullscreenShader is the vertex stage for passes that draw one
// triangle over the whole target with Draw(3, 1, 0, 0).
type FullscreenShader struct {
	handle ShaderHandle
}

func (f *FullscreenShader) VertexState() ShaderStageDescriptor {
	return ShaderStageDescriptor{Shader: f.handle, EntryPoint: "fullscreen_vertex_shader"}
}
