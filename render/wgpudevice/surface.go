package wgpudevice

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gekko-showprepass/render"
)

var ErrSurfaceFormat = errors.New("surface has no supported format")

// Surface is the swapchain of a window.
type Surface struct {
	device      *Device
	surface     *wgpu.Surface
	presentMode wgpu.PresentMode
	format      wgpu.TextureFormat
	width       uint32
	height      uint32
	current     *wgpu.Texture
}

var _ render.Surface = (*Surface)(nil)

func (s *Surface) Format() wgpu.TextureFormat {
	return s.format
}

func (s *Surface) Size() (uint32, uint32) {
	return s.width, s.height
}

// Configure (re)creates the swapchain in the adapter's preferred format.
func (s *Surface) Configure(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	caps := s.surface.GetCapabilities(s.device.adapter)
	if len(caps.Formats) == 0 {
		return ErrSurfaceFormat
	}
	format := caps.Formats[0]
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.surface.Configure(s.device.adapter, s.device.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       width,
		Height:      height,
		PresentMode: s.presentMode,
		AlphaMode:   caps.AlphaModes[0],
	})
	s.format, s.width, s.height = format, width, height
	return nil
}

// Acquire returns a view of this frame's swapchain image. Present must be
// called before the next Acquire.
func (s *Surface) Acquire() (render.TextureView, error) {
	if s.current != nil {
		return nil, errors.New("previous surface texture not yet presented")
	}
	texture, err := s.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("get current texture: %w", err)
	}
	view, err := texture.CreateView(nil)
	if err != nil {
		texture.Release()
		return nil, fmt.Errorf("create surface view: %w", err)
	}
	s.current = texture
	return view, nil
}

func (s *Surface) Present() {
	if s.current == nil {
		return
	}
	s.surface.Present()
	s.current.Release()
	s.current = nil
}

func (s *Surface) Release() {
	s.surface.Release()
}
