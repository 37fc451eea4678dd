package render

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	gekko "github.com/gekko3d/gekko-showprepass"
)

// UniformSize is the byte size of T as laid out in a uniform buffer.
// T must be a fixed-size struct of 32-bit scalars.
func UniformSize[T any]() uint64 {
	var zero T
	return uint64(binary.Size(zero))
}

// ComponentUniforms packs one T per entity into a single buffer bound with
// a dynamic offset.
type ComponentUniforms[T any] struct {
	label     string
	alignment uint64
	data      []byte
	buffer    Buffer
}

func NewComponentUniforms[T any](label string, alignment uint32) *ComponentUniforms[T] {
	if alignment == 0 {
		alignment = DefaultLimits().MinUniformBufferOffsetAlignment
	}
	return &ComponentUniforms[T]{label: label, alignment: uint64(alignment)}
}

// Push appends value and returns its dynamic offset.
func (u *ComponentUniforms[T]) Push(value T) uint32 {
	offset := alignUp(uint64(len(u.data)), u.alignment)
	padded := make([]byte, offset-uint64(len(u.data)))
	u.data = append(u.data, padded...)

	buf := bytes.NewBuffer(make([]byte, 0, UniformSize[T]()))
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		panic(fmt.Sprintf("uniform %s is not fixed size: %v", u.label, err))
	}
	u.data = append(u.data, buf.Bytes()...)
	return uint32(offset)
}

func (u *ComponentUniforms[T]) Clear() {
	u.data = u.data[:0]
}

// Len returns the packed size in bytes.
func (u *ComponentUniforms[T]) Len() int {
	return len(u.data)
}

// Binding returns the GPU buffer once something has been uploaded.
func (u *ComponentUniforms[T]) Binding() (Buffer, bool) {
	return u.buffer, u.buffer != nil
}

// Upload writes the packed values, growing the buffer when needed.
// Nothing is uploaded when no value was pushed.
func (u *ComponentUniforms[T]) Upload(device Device) error {
	if len(u.data) == 0 {
		return nil
	}
	size := alignUp(uint64(len(u.data)), u.alignment)
	if u.buffer == nil || u.buffer.Size() < size {
		if u.buffer != nil {
			u.buffer.Release()
		}
		buffer, err := device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: u.label,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			Size:  size,
		})
		if err != nil {
			u.buffer = nil
			return fmt.Errorf("create uniform buffer %s: %w", u.label, err)
		}
		u.buffer = buffer
	}
	if err := device.WriteBuffer(u.buffer, 0, u.data); err != nil {
		return fmt.Errorf("write uniform buffer %s: %w", u.label, err)
	}
	return nil
}

func alignUp(n, alignment uint64) uint64 {
	if alignment == 0 {
		return n
	}
	return (n + alignment - 1) / alignment * alignment
}

// DynamicUniformIndex is the offset of an entity's T in ComponentUniforms[T].
type DynamicUniformIndex[T any] struct {
	Index uint32
}

// UniformComponentModule uploads every render entity's T into a
// ComponentUniforms[T] during PrepareResources and tags the entity with
// its DynamicUniformIndex.
type UniformComponentModule[T any] struct {
	Label string
}

func (m UniformComponentModule[T]) Install(app *gekko.App, cmd *gekko.Commands) {
	renderApp := MustGetRenderApp(app)
	device, _ := gekko.Resource[RenderDevice](renderApp.Commands())
	label := m.Label
	if label == "" {
		label = fmt.Sprintf("%T", *new(T))
	}
	renderApp.AddResources(NewComponentUniforms[T](label, device.Device.Limits().MinUniformBufferOffsetAlignment))
	renderApp.UseSystem(
		gekko.System(prepareComponentUniforms[T]).InStage(PrepareResources),
	)
}

func prepareComponentUniforms[T any](cmd *gekko.Commands, device *RenderDevice, uniforms *ComponentUniforms[T]) {
	uniforms.Clear()

	gekko.MakeQuery1[T](cmd).Map(func(eid gekko.EntityId, value *T) bool {
		cmd.AddComponents(eid, DynamicUniformIndex[T]{Index: uniforms.Push(*value)})
		return true
	})

	gekko.MakeQuery2[DynamicUniformIndex[T], T](cmd).Map(func(eid gekko.EntityId, _ *DynamicUniformIndex[T], value *T) bool {
		if value == nil {
			cmd.RemoveComponents(eid, DynamicUniformIndex[T]{})
		}
		return true
	}, *new(T))

	if err := uniforms.Upload(device.Device); err != nil {
		cmd.Logger().Errorf("%v", err)
	}
}
