// Package rendertest provides an in-memory render.Device that records
// every call, for tests that run the renderer without a GPU.
package rendertest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gekko-showprepass/render"
)

type handle struct {
	id       int
	label    string
	released bool
}

func (h *handle) Release() { h.released = true }

type BindGroupLayout struct {
	handle
	Descriptor wgpu.BindGroupLayoutDescriptor
}

type BindGroup struct {
	handle
	Descriptor render.BindGroupDescriptor
}

type Buffer struct {
	handle
	Descriptor wgpu.BufferDescriptor
	Data       []byte
}

func (b *Buffer) Size() uint64 { return b.Descriptor.Size }

type Texture struct {
	handle
	Descriptor wgpu.TextureDescriptor
}

func (t *Texture) CreateView() (render.TextureView, error) {
	return &TextureView{handle: handle{id: t.id, label: t.label}, Texture: t}, nil
}

type TextureView struct {
	handle
	Texture *Texture
}

type ShaderModule struct {
	handle
	Code string
}

type RenderPipeline struct {
	handle
	Descriptor render.RenderPipelineDescriptor
}

type CommandBuffer struct {
	handle
	Passes []*RenderPass
}

// Draw is one recorded draw call with the state bound at the time.
type Draw struct {
	Pipeline       *RenderPipeline
	BindGroups     map[uint32]*BindGroup
	DynamicOffsets map[uint32][]uint32
	VertexCount    uint32
	InstanceCount  uint32
}

type RenderPass struct {
	Descriptor render.RenderPassDescriptor
	Viewport   *[6]float32
	Draws      []Draw
	Ended      bool

	pipeline       *RenderPipeline
	bindGroups     map[uint32]*BindGroup
	dynamicOffsets map[uint32][]uint32
}

func (p *RenderPass) SetPipeline(pipeline render.RenderPipeline) {
	p.pipeline = pipeline.(*RenderPipeline)
}

func (p *RenderPass) SetBindGroup(index uint32, group render.BindGroup, dynamicOffsets []uint32) {
	p.bindGroups[index] = group.(*BindGroup)
	p.dynamicOffsets[index] = append([]uint32(nil), dynamicOffsets...)
}

func (p *RenderPass) SetViewport(x, y, width, height, minDepth, maxDepth float32) {
	p.Viewport = &[6]float32{x, y, width, height, minDepth, maxDepth}
}

func (p *RenderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	groups := make(map[uint32]*BindGroup, len(p.bindGroups))
	offsets := make(map[uint32][]uint32, len(p.dynamicOffsets))
	for k, v := range p.bindGroups {
		groups[k] = v
	}
	for k, v := range p.dynamicOffsets {
		offsets[k] = v
	}
	p.Draws = append(p.Draws, Draw{
		Pipeline:       p.pipeline,
		BindGroups:     groups,
		DynamicOffsets: offsets,
		VertexCount:    vertexCount,
		InstanceCount:  instanceCount,
	})
}

func (p *RenderPass) End() error {
	if p.Ended {
		return errors.New("render pass already ended")
	}
	p.Ended = true
	return nil
}

type CommandEncoder struct {
	handle
	device *Device
	passes []*RenderPass
}

func (e *CommandEncoder) BeginRenderPass(desc *render.RenderPassDescriptor) render.RenderPass {
	pass := &RenderPass{
		Descriptor:     *desc,
		bindGroups:     map[uint32]*BindGroup{},
		dynamicOffsets: map[uint32][]uint32{},
	}
	e.passes = append(e.passes, pass)
	return pass
}

func (e *CommandEncoder) Finish() (render.CommandBuffer, error) {
	for _, pass := range e.passes {
		if !pass.Ended {
			return nil, fmt.Errorf("render pass %q was not ended", pass.Descriptor.Label)
		}
	}
	e.device.mu.Lock()
	id := e.device.nextId()
	e.device.mu.Unlock()
	return &CommandBuffer{handle: handle{id: id, label: e.label}, Passes: e.passes}, nil
}

// Device records everything created through it. Set the Fail* fields to
// make the matching calls return errors.
type Device struct {
	mu     sync.Mutex
	lastId int

	FailPipelines bool
	FailShaders   bool

	BindGroupLayouts []*BindGroupLayout
	BindGroups       []*BindGroup
	Buffers          []*Buffer
	Textures         []*Texture
	ShaderModules    []*ShaderModule
	Pipelines        []*RenderPipeline
	Submitted        []*CommandBuffer
}

var _ render.Device = (*Device)(nil)

func NewDevice() *Device {
	return &Device{}
}

func (d *Device) nextId() int {
	d.lastId++
	return d.lastId
}

func (d *Device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (render.BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	layout := &BindGroupLayout{handle: handle{id: d.nextId(), label: desc.Label}, Descriptor: *desc}
	d.BindGroupLayouts = append(d.BindGroupLayouts, layout)
	return layout, nil
}

func (d *Device) CreateBindGroup(desc *render.BindGroupDescriptor) (render.BindGroup, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := desc.Layout.(*BindGroupLayout); !ok {
		return nil, fmt.Errorf("bind group %q: layout is not from this device", desc.Label)
	}
	group := &BindGroup{handle: handle{id: d.nextId(), label: desc.Label}, Descriptor: *desc}
	d.BindGroups = append(d.BindGroups, group)
	return group, nil
}

func (d *Device) CreateBuffer(desc *wgpu.BufferDescriptor) (render.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buffer := &Buffer{handle: handle{id: d.nextId(), label: desc.Label}, Descriptor: *desc, Data: make([]byte, desc.Size)}
	d.Buffers = append(d.Buffers, buffer)
	return buffer, nil
}

func (d *Device) WriteBuffer(buffer render.Buffer, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := buffer.(*Buffer)
	if offset+uint64(len(data)) > uint64(len(b.Data)) {
		return fmt.Errorf("write of %d bytes at %d overflows buffer %q", len(data), offset, b.label)
	}
	copy(b.Data[offset:], data)
	return nil
}

func (d *Device) CreateTexture(desc *wgpu.TextureDescriptor) (render.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	texture := &Texture{handle: handle{id: d.nextId(), label: desc.Label}, Descriptor: *desc}
	d.Textures = append(d.Textures, texture)
	return texture, nil
}

func (d *Device) CreateShaderModule(desc *wgpu.ShaderModuleDescriptor) (render.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailShaders {
		return nil, fmt.Errorf("shader %q rejected", desc.Label)
	}
	if desc.WGSLDescriptor == nil {
		return nil, fmt.Errorf("shader %q has no WGSL source", desc.Label)
	}
	module := &ShaderModule{handle: handle{id: d.nextId(), label: desc.Label}, Code: desc.WGSLDescriptor.Code}
	d.ShaderModules = append(d.ShaderModules, module)
	return module, nil
}

func (d *Device) CreateRenderPipeline(desc *render.RenderPipelineDescriptor) (render.RenderPipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailPipelines {
		return nil, fmt.Errorf("pipeline %q rejected", desc.Label)
	}
	pipeline := &RenderPipeline{handle: handle{id: d.nextId(), label: desc.Label}, Descriptor: *desc}
	d.Pipelines = append(d.Pipelines, pipeline)
	return pipeline, nil
}

func (d *Device) CreateCommandEncoder(label string) (render.CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &CommandEncoder{handle: handle{id: d.nextId(), label: label}, device: d}, nil
}

func (d *Device) Submit(buffers ...render.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range buffers {
		d.Submitted = append(d.Submitted, b.(*CommandBuffer))
	}
}

func (d *Device) Limits() render.Limits {
	return render.DefaultLimits()
}

// LastFrame returns the passes of the latest submission.
func (d *Device) LastFrame() []*RenderPass {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Submitted) == 0 {
		return nil
	}
	return d.Submitted[len(d.Submitted)-1].Passes
}

// PassesNamed returns the passes of the latest submission with label.
func (d *Device) PassesNamed(label string) []*RenderPass {
	var res []*RenderPass
	for _, pass := range d.LastFrame() {
		if pass.Descriptor.Label == label {
			res = append(res, pass)
		}
	}
	return res
}

// Released reports whether a handle created by this device was released.
func Released(h render.Releaser) bool {
	switch v := h.(type) {
	case *Buffer:
		return v.released
	case *Texture:
		return v.released
	case *TextureView:
		return v.released
	case *BindGroup:
		return v.released
	case *BindGroupLayout:
		return v.released
	case *RenderPipeline:
		return v.released
	case *ShaderModule:
		return v.released
	}
	return false
}

// Label returns the label a handle was created with.
func Label(h render.Releaser) string {
	if l, ok := h.(interface{ handleLabel() string }); ok {
		return l.handleLabel()
	}
	return ""
}

func (h *handle) handleLabel() string { return h.label }

// Surface is a fixed-size presentable target.
type Surface struct {
	Width, Height uint32
	TextureFormat wgpu.TextureFormat
	Presented     int
	Acquired      []*TextureView
	device        *Device
}

var _ render.Surface = (*Surface)(nil)

func NewSurface(device *Device, width, height uint32) *Surface {
	return &Surface{Width: width, Height: height, TextureFormat: wgpu.TextureFormatBGRA8UnormSrgb, device: device}
}

func (s *Surface) Format() wgpu.TextureFormat { return s.TextureFormat }

func (s *Surface) Size() (uint32, uint32) { return s.Width, s.Height }

func (s *Surface) Configure(width, height uint32) error {
	s.Width, s.Height = width, height
	return nil
}

func (s *Surface) Acquire() (render.TextureView, error) {
	texture, err := s.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "surface",
		Usage:         wgpu.TextureUsageRenderAttachment,
		Dimension:     wgpu.TextureDimension2D,
		Size:          wgpu.Extent3D{Width: s.Width, Height: s.Height, DepthOrArrayLayers: 1},
		Format:        s.TextureFormat,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, err
	}
	view, err := texture.CreateView()
	if err != nil {
		return nil, err
	}
	s.Acquired = append(s.Acquired, view.(*TextureView))
	return view, nil
}

func (s *Surface) Present() { s.Presented++ }
