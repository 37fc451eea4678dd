package render

import "github.com/cogentcore/webgpu/wgpu"

// Device is the GPU surface the renderer is written against. Descriptors
// carry wgpu values; handles are opaque and each backend (wgpudevice,
// rendertest) hands out its own types.
type Device interface {
	CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (BindGroupLayout, error)
	CreateBindGroup(desc *BindGroupDescriptor) (BindGroup, error)
	CreateBuffer(desc *wgpu.BufferDescriptor) (Buffer, error)
	WriteBuffer(buffer Buffer, offset uint64, data []byte) error
	CreateTexture(desc *wgpu.TextureDescriptor) (Texture, error)
	CreateShaderModule(desc *wgpu.ShaderModuleDescriptor) (ShaderModule, error)
	CreateRenderPipeline(desc *RenderPipelineDescriptor) (RenderPipeline, error)
	CreateCommandEncoder(label string) (CommandEncoder, error)
	Submit(buffers ...CommandBuffer)
	Limits() Limits
}

// Surface is the presentable target of a window.
type Surface interface {
	Format() wgpu.TextureFormat
	Size() (width, height uint32)
	Configure(width, height uint32) error
	// Acquire returns a view of the next swapchain image.
	Acquire() (TextureView, error)
	Present()
}

type Limits struct {
	MinUniformBufferOffsetAlignment uint32
	MaxBindGroups                   uint32
}

func DefaultLimits() Limits {
	return Limits{
		MinUniformBufferOffsetAlignment: 256,
		MaxBindGroups:                   4,
	}
}

// Releaser frees a GPU object. Render world components that own one
// implement it and are released when their view is despawned.
type Releaser interface {
	Release()
}

type (
	BindGroupLayout interface{ Releaser }
	BindGroup       interface{ Releaser }
	ShaderModule    interface{ Releaser }
	RenderPipeline  interface{ Releaser }
	TextureView     interface{ Releaser }
	CommandBuffer   interface{ Releaser }
)

type Buffer interface {
	Releaser
	Size() uint64
}

type Texture interface {
	Releaser
	CreateView() (TextureView, error)
}

type CommandEncoder interface {
	Releaser
	BeginRenderPass(desc *RenderPassDescriptor) RenderPass
	Finish() (CommandBuffer, error)
}

type RenderPass interface {
	SetPipeline(pipeline RenderPipeline)
	SetBindGroup(index uint32, group BindGroup, dynamicOffsets []uint32)
	SetViewport(x, y, width, height, minDepth, maxDepth float32)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	End() error
}

type BindGroupEntry struct {
	Binding     uint32
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	TextureView TextureView
}

type BindGroupDescriptor struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

type VertexState struct {
	Module     ShaderModule
	EntryPoint string
}

type FragmentState struct {
	Module     ShaderModule
	EntryPoint string
	Targets    []wgpu.ColorTargetState
}

// RenderPipelineDescriptor is the backend-level pipeline description, with
// compiled shader modules.
type RenderPipelineDescriptor struct {
	Label        string
	Layout       []BindGroupLayout
	Vertex       VertexState
	Fragment     *FragmentState
	DepthStencil *wgpu.DepthStencilState
	Multisample  wgpu.MultisampleState
}

type RenderPassColorAttachment struct {
	View          TextureView
	ResolveTarget TextureView
	LoadOp        wgpu.LoadOp
	StoreOp       wgpu.StoreOp
	ClearValue    wgpu.Color
}

type RenderPassDepthStencilAttachment struct {
	View            TextureView
	DepthLoadOp     wgpu.LoadOp
	DepthStoreOp    wgpu.StoreOp
	DepthClearValue float32
}

type RenderPassDescriptor struct {
	Label                  string
	ColorAttachments       []RenderPassColorAttachment
	DepthStencilAttachment *RenderPassDepthStencilAttachment
}

// RenderDevice is the render world resource holding the device.
type RenderDevice struct {
	Device Device
}

// RenderSurface is the render world resource for the window surface.
// Surface is nil when rendering headless.
type RenderSurface struct {
	Surface Surface
	view    TextureView
}

// View returns the swapchain image acquired this frame.
func (s *RenderSurface) View() (TextureView, bool) {
	return s.view, s.view != nil
}

func (s *RenderSurface) Format() wgpu.TextureFormat {
	if s.Surface == nil {
		return wgpu.TextureFormatUndefined
	}
	return s.Surface.Format()
}
