package boid

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	boids := []Boid{
		{Position: mgl32.Vec2{1, 2}, Velocity: mgl32.Vec2{3, 4}},
		{Position: mgl32.Vec2{-0.5, 0.25}, Velocity: mgl32.Vec2{0.01, -0.01}},
	}

	data := Encode(boids)
	require.Len(t, data, 2*Size)

	// 1.0f little-endian at offset 0, 3.0f (0x40400000) at offset 8.
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, data[0:4])
	assert.Equal(t, []byte{0x00, 0x00, 0x40, 0x40}, data[8:12])

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, boids, decoded)
}

func TestEncodeEmpty(t *testing.T) {
	data := Encode(nil)
	assert.NotNil(t, data)
	assert.Empty(t, data)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeRejectsPartialRecord(t *testing.T) {
	_, err := Decode(make([]byte, Size+3))
	assert.Error(t, err)
}

func TestMeshBytes(t *testing.T) {
	data := MeshBytes()
	require.Len(t, data, len(Mesh)*VertexSize)

	decoded, err := Decode(append(data, make([]byte, Size-len(data)%Size)...))
	require.NoError(t, err)
	assert.Equal(t, Mesh[0], decoded[0].Position)
	assert.Equal(t, Mesh[1], decoded[0].Velocity)
}

func TestVertexLayouts(t *testing.T) {
	instance := InstanceLayout()
	assert.Equal(t, uint64(Size), instance.ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeInstance, instance.StepMode)
	require.Len(t, instance.Attributes, 2)
	assert.Equal(t, uint32(0), instance.Attributes[0].ShaderLocation)
	assert.Equal(t, uint64(PositionOffset), instance.Attributes[0].Offset)
	assert.Equal(t, uint32(1), instance.Attributes[1].ShaderLocation)
	assert.Equal(t, uint64(VelocityOffset), instance.Attributes[1].Offset)

	mesh := MeshLayout()
	assert.Equal(t, uint64(VertexSize), mesh.ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeVertex, mesh.StepMode)
	require.Len(t, mesh.Attributes, 1)
	assert.Equal(t, uint32(2), mesh.Attributes[0].ShaderLocation)
	assert.Equal(t, wgpu.VertexFormatFloat32x2, mesh.Attributes[0].Format)
}
