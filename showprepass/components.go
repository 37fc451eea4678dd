package showprepass

import (
	"fmt"

	"github.com/gekko3d/gekko-showprepass/render"
)

// Mode selects the prepass buffer drawn over a camera's output.
type Mode int

const (
	Depth Mode = iota
	Normals
	MotionVectors
)

var modeNames = map[Mode]string{
	Depth:         "depth",
	Normals:       "normals",
	MotionVectors: "motion_vectors",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) shaderDef() string {
	switch m {
	case Depth:
		return "SHOW_DEPTH"
	case Normals:
		return "SHOW_NORMALS"
	case MotionVectors:
		return "SHOW_MOTION_VECTORS"
	}
	panic(fmt.Sprintf("unknown show prepass mode %d", int(m)))
}

// ShowPrepass enables the overlay on a camera. Remove it to turn the
// overlay off.
type ShowPrepass struct {
	Mode Mode
}

// DepthPower remaps depth as depth^Power before display. Cameras without
// it use a power of 1.
type DepthPower struct {
	Power float32
}

const defaultDepthPower float32 = 1.0

// showPrepassUniform matches ShowPrepassUniform in show_prepass.wgsl.
type showPrepassUniform struct {
	DepthPower float32
	DeltaTime  float32
}

type layoutKey struct {
	mode         Mode
	multisampled bool
}

type pipelineKey struct {
	mode         Mode
	hdr          bool
	multisampled bool
}

func (k pipelineKey) layoutKey() layoutKey {
	return layoutKey{mode: k.mode, multisampled: k.multisampled}
}

func allLayoutKeys() []layoutKey {
	keys := make([]layoutKey, 0, 6)
	for _, mode := range []Mode{Depth, Normals, MotionVectors} {
		for _, multisampled := range []bool{false, true} {
			keys = append(keys, layoutKey{mode: mode, multisampled: multisampled})
		}
	}
	return keys
}

type cachedShowPrepassPipeline struct {
	ID render.CachedRenderPipelineId
}

type showPrepassBindGroup struct {
	BindGroup render.BindGroup
}

func (g showPrepassBindGroup) Release() {
	g.BindGroup.Release()
}
