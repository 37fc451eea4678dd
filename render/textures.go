package render

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
)

const (
	MainTextureFormatHdr  = wgpu.TextureFormatRGBA16Float
	MainTextureFormat     = wgpu.TextureFormatRGBA8UnormSrgb
	DepthPrepassFormat    = wgpu.TextureFormatDepth32Float
	NormalPrepassFormat   = wgpu.TextureFormatRGB10A2Unorm
	MotionVectorsFormat   = wgpu.TextureFormatRG16Float
	textureCacheRetention = 3
)

// CachedTexture is a texture and its default view.
type CachedTexture struct {
	Texture Texture
	View    TextureView
}

type textureCacheEntry struct {
	texture   CachedTexture
	taken     bool
	idleCount int
}

// TextureCache hands out textures by descriptor, reusing the ones not yet
// taken this frame. Textures unused for a few frames are released.
type TextureCache struct {
	entries map[wgpu.TextureDescriptor][]*textureCacheEntry
}

func NewTextureCache() *TextureCache {
	return &TextureCache{entries: map[wgpu.TextureDescriptor][]*textureCacheEntry{}}
}

func (c *TextureCache) Get(device Device, desc wgpu.TextureDescriptor) (CachedTexture, error) {
	for _, entry := range c.entries[desc] {
		if !entry.taken {
			entry.taken = true
			entry.idleCount = 0
			return entry.texture, nil
		}
	}

	texture, err := device.CreateTexture(&desc)
	if err != nil {
		return CachedTexture{}, fmt.Errorf("create texture %s: %w", desc.Label, err)
	}
	view, err := texture.CreateView()
	if err != nil {
		texture.Release()
		return CachedTexture{}, fmt.Errorf("create view of %s: %w", desc.Label, err)
	}
	cached := CachedTexture{Texture: texture, View: view}
	c.entries[desc] = append(c.entries[desc], &textureCacheEntry{texture: cached, taken: true})
	return cached, nil
}

// Len returns the number of live textures.
func (c *TextureCache) Len() int {
	n := 0
	for _, entries := range c.entries {
		n += len(entries)
	}
	return n
}

// Update ends the frame: every texture becomes available again and the
// ones idle for too long are released.
func (c *TextureCache) Update() {
	for desc, entries := range c.entries {
		kept := entries[:0]
		for _, entry := range entries {
			if !entry.taken {
				entry.idleCount++
			}
			entry.taken = false
			if entry.idleCount >= textureCacheRetention {
				entry.texture.View.Release()
				entry.texture.Texture.Release()
				continue
			}
			kept = append(kept, entry)
		}
		if len(kept) == 0 {
			delete(c.entries, desc)
		} else {
			c.entries[desc] = kept
		}
	}
}

// ViewTarget holds a view's main color textures. Post-processing passes
// ping-pong between A and B through PostProcessWrite.
type ViewTarget struct {
	mainA, mainB CachedTexture
	current      int
	sampled      *CachedTexture
	format       wgpu.TextureFormat
	size         [2]uint32
}

// PostProcessWrite is a source to read and a destination to write.
type PostProcessWrite struct {
	Source      TextureView
	Destination TextureView
}

func (t *ViewTarget) main(index int) CachedTexture {
	if index == 0 {
		return t.mainA
	}
	return t.mainB
}

// MainTexture returns the texture holding the latest color.
func (t *ViewTarget) MainTexture() TextureView {
	return t.main(t.current).View
}

func (t *ViewTarget) MainTextureFormat() wgpu.TextureFormat {
	return t.format
}

func (t *ViewTarget) Size() [2]uint32 {
	return t.size
}

func (t *ViewTarget) IsHdr() bool {
	return t.format == MainTextureFormatHdr
}

// SampledTexture is the multisampled attachment, if the view uses MSAA.
func (t *ViewTarget) SampledTexture() (TextureView, bool) {
	if t.sampled == nil {
		return nil, false
	}
	return t.sampled.View, true
}

// ColorAttachment renders to the main texture, through the sampled
// texture when multisampled.
func (t *ViewTarget) ColorAttachment(load wgpu.LoadOp, clear wgpu.Color) RenderPassColorAttachment {
	if t.sampled != nil {
		return RenderPassColorAttachment{
			View:          t.sampled.View,
			ResolveTarget: t.MainTexture(),
			LoadOp:        load,
			StoreOp:       wgpu.StoreOpStore,
			ClearValue:    clear,
		}
	}
	return RenderPassColorAttachment{View: t.MainTexture(), LoadOp: load, StoreOp: wgpu.StoreOpStore, ClearValue: clear}
}

// PostProcessWrite flips the main texture. Each call must be followed by
// a pass writing Destination.
func (t *ViewTarget) PostProcessWrite() PostProcessWrite {
	source := t.main(t.current).View
	t.current = 1 - t.current
	return PostProcessWrite{Source: source, Destination: t.main(t.current).View}
}

// ViewPrepassTextures holds the prepass outputs a view asked for. Fields
// are nil for prepasses the camera did not enable.
type ViewPrepassTextures struct {
	Depth         *CachedTexture
	Normal        *CachedTexture
	MotionVectors *CachedTexture
	Size          [2]uint32
	SampleCount   uint32
}

func viewOf(t *CachedTexture) (TextureView, bool) {
	if t == nil {
		return nil, false
	}
	return t.View, true
}

func (p *ViewPrepassTextures) DepthView() (TextureView, bool) {
	return viewOf(p.Depth)
}

func (p *ViewPrepassTextures) NormalView() (TextureView, bool) {
	return viewOf(p.Normal)
}

func (p *ViewPrepassTextures) MotionVectorsView() (TextureView, bool) {
	return viewOf(p.MotionVectors)
}

func extent(size [2]uint32) wgpu.Extent3D {
	return wgpu.Extent3D{Width: size[0], Height: size[1], DepthOrArrayLayers: 1}
}

func prepareViewTargets(cmd *gekko.Commands, device *RenderDevice, cache *TextureCache) {
	gekko.MakeQuery3[ExtractedCamera, ExtractedView, Msaa](cmd).Map(
		func(eid gekko.EntityId, camera *ExtractedCamera, view *ExtractedView, msaa *Msaa) bool {
			size := camera.PhysicalTargetSize
			if size[0] == 0 || size[1] == 0 {
				return true
			}
			format := MainTextureFormat
			if view.Hdr {
				format = MainTextureFormatHdr
			}
			desc := wgpu.TextureDescriptor{
				Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
				Dimension:     wgpu.TextureDimension2D,
				Size:          extent(size),
				Format:        format,
				MipLevelCount: 1,
				SampleCount:   1,
			}

			target := ViewTarget{format: format, size: size}
			var err error
			desc.Label = "main_texture_a"
			if target.mainA, err = cache.Get(device.Device, desc); err != nil {
				cmd.Logger().Errorf("%v", err)
				return true
			}
			desc.Label = "main_texture_b"
			if target.mainB, err = cache.Get(device.Device, desc); err != nil {
				cmd.Logger().Errorf("%v", err)
				return true
			}
			if msaa.IsMultisampled() {
				desc.Label = "main_texture_sampled"
				desc.SampleCount = msaa.SampleCount()
				desc.Usage = wgpu.TextureUsageRenderAttachment
				sampled, err := cache.Get(device.Device, desc)
				if err != nil {
					cmd.Logger().Errorf("%v", err)
					return true
				}
				target.sampled = &sampled
			}

			cmd.AddComponents(eid, target)
			return true
		}, Msaa{})
}

func preparePrepassTextures(cmd *gekko.Commands, device *RenderDevice, cache *TextureCache) {
	gekko.MakeQuery5[ExtractedCamera, Msaa, DepthPrepass, NormalPrepass, MotionVectorPrepass](cmd).Map(
		func(eid gekko.EntityId, camera *ExtractedCamera, msaa *Msaa, depth *DepthPrepass, normal *NormalPrepass, motion *MotionVectorPrepass) bool {
			hasPrepass := depth != nil || normal != nil || motion != nil
			size := camera.PhysicalTargetSize
			if !hasPrepass || size[0] == 0 || size[1] == 0 {
				if gekko.HasComponent[ViewPrepassTextures](cmd, eid) {
					cmd.RemoveComponents(eid, ViewPrepassTextures{})
				}
				return true
			}

			textures := ViewPrepassTextures{Size: size, SampleCount: msaa.SampleCount()}
			get := func(label string, format wgpu.TextureFormat) *CachedTexture {
				texture, err := cache.Get(device.Device, wgpu.TextureDescriptor{
					Label:         label,
					Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
					Dimension:     wgpu.TextureDimension2D,
					Size:          extent(size),
					Format:        format,
					MipLevelCount: 1,
					SampleCount:   textures.SampleCount,
				})
				if err != nil {
					cmd.Logger().Errorf("%v", err)
					return nil
				}
				return &texture
			}
			if depth != nil {
				textures.Depth = get("prepass_depth_texture", DepthPrepassFormat)
			}
			if normal != nil {
				textures.Normal = get("prepass_normal_texture", NormalPrepassFormat)
			}
			if motion != nil {
				textures.MotionVectors = get("prepass_motion_vectors_texture", MotionVectorsFormat)
			}

			cmd.AddComponents(eid, textures)
			return true
		}, Msaa{}, DepthPrepass{}, NormalPrepass{}, MotionVectorPrepass{})
}

func cleanupTextureCache(cache *TextureCache) {
	cache.Update()
}
