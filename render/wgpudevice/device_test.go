package wgpudevice

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/gekko-showprepass/render"
	"github.com/gekko3d/gekko-showprepass/render/rendertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Handles from another device are rejected before any GPU call is made.
func TestDevice_RejectsForeignHandles(t *testing.T) {
	d := &Device{}
	fake := rendertest.NewDevice()

	foreignLayout, err := fake.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{Label: "view_layout"})
	require.NoError(t, err)
	_, err = d.CreateBindGroup(&render.BindGroupDescriptor{Label: "view", Layout: foreignLayout})
	assert.ErrorContains(t, err, "layout not created by this device")

	_, err = d.CreateRenderPipeline(&render.RenderPipelineDescriptor{
		Label:  "show_prepass_pipeline",
		Layout: []render.BindGroupLayout{foreignLayout},
	})
	assert.ErrorContains(t, err, "layout 0 not created by this device")

	foreignBuffer, err := fake.CreateBuffer(&wgpu.BufferDescriptor{Label: "uniforms", Usage: wgpu.BufferUsageUniform, Size: 16})
	require.NoError(t, err)
	assert.ErrorContains(t, d.WriteBuffer(foreignBuffer, 0, []byte{1}), "buffer not created by this device")
}
