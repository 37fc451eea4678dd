// Package wgpudevice implements render.Device and render.Surface on
// cogentcore/webgpu.
package wgpudevice

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gekko-showprepass/render"
)

type Options struct {
	Label           string
	PowerPreference wgpu.PowerPreference
	// PresentMode is passed to the swapchain unchanged.
	PresentMode wgpu.PresentMode
	// ForceFallbackAdapter selects a software adapter when one exists.
	ForceFallbackAdapter bool
}

// Device owns the adapter, device and queue. Methods are safe to call
// from pipeline compilation workers.
type Device struct {
	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	limits   wgpu.Limits
}

var _ render.Device = (*Device)(nil)

// New requests a device able to present to the surface described by desc.
// A nil desc creates a headless device and a nil Surface.
func New(desc *wgpu.SurfaceDescriptor, width, height uint32, opts Options) (*Device, *Surface, error) {
	instance := wgpu.CreateInstance(nil)

	var surface *wgpu.Surface
	if desc != nil {
		surface = instance.CreateSurface(desc)
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface:    surface,
		PowerPreference:      opts.PowerPreference,
		ForceFallbackAdapter: opts.ForceFallbackAdapter,
	})
	if err != nil {
		instance.Release()
		return nil, nil, fmt.Errorf("request adapter: %w", err)
	}

	label := opts.Label
	if label == "" {
		label = "Main Device"
	}
	limits := wgpu.DefaultLimits()
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          label,
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, nil, fmt.Errorf("request device: %w", err)
	}

	d := &Device{
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
		limits:   limits,
	}
	if surface == nil {
		return d, nil, nil
	}

	s := &Surface{device: d, surface: surface, presentMode: opts.PresentMode}
	if err := s.Configure(width, height); err != nil {
		d.Release()
		return nil, nil, err
	}
	return d, s, nil
}

func (d *Device) Release() {
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
}

func (d *Device) Limits() render.Limits {
	return render.Limits{
		MinUniformBufferOffsetAlignment: d.limits.MinUniformBufferOffsetAlignment,
		MaxBindGroups:                   d.limits.MaxBindGroups,
	}
}

func (d *Device) CreateBindGroupLayout(desc *wgpu.BindGroupLayoutDescriptor) (render.BindGroupLayout, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device.CreateBindGroupLayout(desc)
}

func (d *Device) CreateBindGroup(desc *render.BindGroupDescriptor) (render.BindGroup, error) {
	layout, ok := desc.Layout.(*wgpu.BindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("bind group %s: layout not created by this device", desc.Label)
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(desc.Entries))
	for _, e := range desc.Entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer != nil:
			buffer, ok := e.Buffer.(*Buffer)
			if !ok {
				return nil, fmt.Errorf("bind group %s: binding %d: buffer not created by this device", desc.Label, e.Binding)
			}
			entry.Buffer = buffer.buffer
			entry.Offset = e.Offset
			entry.Size = e.Size
			if entry.Size == 0 {
				entry.Size = wgpu.WholeSize
			}
		case e.TextureView != nil:
			view, ok := e.TextureView.(*wgpu.TextureView)
			if !ok {
				return nil, fmt.Errorf("bind group %s: binding %d: texture view not created by this device", desc.Label, e.Binding)
			}
			entry.TextureView = view
		default:
			return nil, fmt.Errorf("bind group %s: binding %d has no resource", desc.Label, e.Binding)
		}
		entries = append(entries, entry)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Entries: entries,
	})
}

func (d *Device) CreateBuffer(desc *wgpu.BufferDescriptor) (render.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buffer, err := d.device.CreateBuffer(desc)
	if err != nil {
		return nil, err
	}
	return &Buffer{buffer: buffer, size: desc.Size}, nil
}

func (d *Device) WriteBuffer(buffer render.Buffer, offset uint64, data []byte) error {
	b, ok := buffer.(*Buffer)
	if !ok {
		return errors.New("write buffer: buffer not created by this device")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.WriteBuffer(b.buffer, offset, data)
}

func (d *Device) CreateTexture(desc *wgpu.TextureDescriptor) (render.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	texture, err := d.device.CreateTexture(desc)
	if err != nil {
		return nil, err
	}
	return &Texture{texture: texture}, nil
}

func (d *Device) CreateShaderModule(desc *wgpu.ShaderModuleDescriptor) (render.ShaderModule, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.device.CreateShaderModule(desc)
}

func (d *Device) CreateRenderPipeline(desc *render.RenderPipelineDescriptor) (render.RenderPipeline, error) {
	layouts := make([]*wgpu.BindGroupLayout, 0, len(desc.Layout))
	for i, l := range desc.Layout {
		layout, ok := l.(*wgpu.BindGroupLayout)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: layout %d not created by this device", desc.Label, i)
		}
		layouts = append(layouts, layout)
	}
	vertex, ok := desc.Vertex.Module.(*wgpu.ShaderModule)
	if !ok {
		return nil, fmt.Errorf("pipeline %s: vertex module not created by this device", desc.Label)
	}

	pipeline := &wgpu.RenderPipelineDescriptor{
		Label: desc.Label,
		Vertex: wgpu.VertexState{
			Module:     vertex,
			EntryPoint: desc.Vertex.EntryPoint,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample:  desc.Multisample,
		DepthStencil: desc.DepthStencil,
	}

	if desc.Fragment != nil {
		fragment, ok := desc.Fragment.Module.(*wgpu.ShaderModule)
		if !ok {
			return nil, fmt.Errorf("pipeline %s: fragment module not created by this device", desc.Label)
		}
		pipeline.Fragment = &wgpu.FragmentState{
			Module:     fragment,
			EntryPoint: desc.Fragment.EntryPoint,
			Targets:    desc.Fragment.Targets,
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline %s: create layout: %w", desc.Label, err)
	}
	defer layout.Release()
	pipeline.Layout = layout

	return d.device.CreateRenderPipeline(pipeline)
}

func (d *Device) CreateCommandEncoder(label string) (render.CommandEncoder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	encoder, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, err
	}
	return &CommandEncoder{encoder: encoder}, nil
}

func (d *Device) Submit(buffers ...render.CommandBuffer) {
	native := make([]*wgpu.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		if cb, ok := b.(*wgpu.CommandBuffer); ok {
			native = append(native, cb)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue.Submit(native...)
}
