package render_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gekko-showprepass/render"
	"github.com/gekko3d/gekko-showprepass/render/rendertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pair struct {
	A, B float32
}

func TestComponentUniforms(t *testing.T) {
	device := rendertest.NewDevice()
	uniforms := render.NewComponentUniforms[pair]("pairs", 256)

	_, ok := uniforms.Binding()
	assert.False(t, ok)
	require.NoError(t, uniforms.Upload(device))
	assert.Empty(t, device.Buffers)

	assert.Equal(t, uint32(0), uniforms.Push(pair{A: 1, B: 2}))
	assert.Equal(t, uint32(256), uniforms.Push(pair{A: 3, B: 4}))
	require.NoError(t, uniforms.Upload(device))

	buffer, ok := uniforms.Binding()
	require.True(t, ok)
	require.Len(t, device.Buffers, 1)
	assert.Equal(t, uint64(512), buffer.Size())
	assert.Equal(t, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, device.Buffers[0].Descriptor.Usage)

	data := device.Buffers[0].Data
	assert.Equal(t, float32(3), math.Float32frombits(binary.LittleEndian.Uint32(data[256:])))
	assert.Equal(t, float32(4), math.Float32frombits(binary.LittleEndian.Uint32(data[260:])))

	// Same size next frame reuses the buffer.
	uniforms.Clear()
	uniforms.Push(pair{A: 5})
	require.NoError(t, uniforms.Upload(device))
	assert.Len(t, device.Buffers, 1)

	// Growing replaces it.
	for i := 0; i < 3; i++ {
		uniforms.Push(pair{})
	}
	require.NoError(t, uniforms.Upload(device))
	assert.Len(t, device.Buffers, 2)
	assert.True(t, rendertest.Released(device.Buffers[0]))
	assert.Equal(t, uint64(8), render.UniformSize[pair]())
}
