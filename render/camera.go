package render

import (
	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
	"github.com/go-gl/mathgl/mgl32"
)

// Camera marks a main-world entity as a view the renderer draws.
type Camera struct {
	// Order sorts views when several cameras render in one frame.
	Order int
	Hdr   bool
	// TargetSize is the render target size in pixels. Zero means the
	// window surface size.
	TargetSize [2]uint32
	Viewport   *Viewport
	ClearColor wgpu.Color
}

// Viewport restricts drawing to a sub-rectangle of the target.
type Viewport struct {
	PhysicalPosition [2]uint32
	PhysicalSize     [2]uint32
	Depth            mgl32.Vec2
}

func DefaultViewport(width, height uint32) Viewport {
	return Viewport{PhysicalSize: [2]uint32{width, height}, Depth: mgl32.Vec2{0, 1}}
}

// Camera3d selects the Core 3D graph for a camera.
type Camera3d struct{}

// Msaa is the per-camera sample count. Absent means single sampled.
type Msaa struct {
	Samples uint32
}

func (m *Msaa) IsMultisampled() bool {
	return m != nil && m.Samples > 1
}

// SampleCount returns the sample count, treating a missing component as 1.
func (m *Msaa) SampleCount() uint32 {
	if m == nil || m.Samples == 0 {
		return 1
	}
	return m.Samples
}

// Prepass markers request the matching texture in ViewPrepassTextures.
type (
	DepthPrepass        struct{}
	NormalPrepass       struct{}
	MotionVectorPrepass struct{}
)

// ExtractedCamera is the render world copy of Camera.
type ExtractedCamera struct {
	Order              int
	PhysicalTargetSize [2]uint32
	Viewport           *Viewport
	ClearColor         wgpu.Color
}

// ExtractedView carries what pipelines specialize on.
type ExtractedView struct {
	Hdr      bool
	Viewport [4]uint32
}

func extractCameras(cmd *gekko.Commands, main *MainWorld, synced *SyncedEntities, surface *RenderSurface) {
	var surfaceWidth, surfaceHeight uint32
	if surface.Surface != nil {
		surfaceWidth, surfaceHeight = surface.Surface.Size()
	}

	mainCmd := main.Commands()
	gekko.MakeQuery2[Camera, Camera3d](mainCmd).Map(func(eid gekko.EntityId, camera *Camera, _ *Camera3d) bool {
		renderId, ok := synced.RenderEntity(eid)
		if !ok {
			return true
		}

		size := camera.TargetSize
		if size[0] == 0 || size[1] == 0 {
			size = [2]uint32{surfaceWidth, surfaceHeight}
		}

		viewport := [4]uint32{0, 0, size[0], size[1]}
		var vp *Viewport
		if camera.Viewport != nil {
			copied := *camera.Viewport
			vp = &copied
			viewport = [4]uint32{copied.PhysicalPosition[0], copied.PhysicalPosition[1], copied.PhysicalSize[0], copied.PhysicalSize[1]}
		}

		cmd.AddComponents(renderId,
			ExtractedCamera{
				Order:              camera.Order,
				PhysicalTargetSize: size,
				Viewport:           vp,
				ClearColor:         camera.ClearColor,
			},
			ExtractedView{Hdr: camera.Hdr, Viewport: viewport},
		)
		return true
	})
}

// extractTime copies the main-world clock into the render world.
func extractTime(main *MainWorld, renderTime *gekko.Time) {
	mainTime, ok := gekko.Resource[gekko.Time](main.Commands())
	if !ok {
		return
	}
	*renderTime = *mainTime
}

// ExtractComponentModule mirrors component T from main-world cameras onto
// their render entities every frame, removing it once the main entity
// drops it.
type ExtractComponentModule[T any] struct{}

func (ExtractComponentModule[T]) Install(app *gekko.App, cmd *gekko.Commands) {
	MustGetRenderApp(app).UseSystem(
		gekko.System(extractComponent[T]).InStage(Extract),
	)
}

func extractComponent[T any](cmd *gekko.Commands, main *MainWorld, synced *SyncedEntities) {
	mainCmd := main.Commands()
	synced.Each(func(mainId, renderId gekko.EntityId) {
		if value, ok := gekko.GetComponent[T](mainCmd, mainId); ok {
			cmd.AddComponents(renderId, *value)
			return
		}
		if gekko.HasComponent[T](cmd, renderId) {
			var zero T
			cmd.RemoveComponents(renderId, zero)
		}
	})
}
