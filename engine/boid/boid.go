package boid

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-boids/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Size is the byte size of one Boid in GPU memory. There is no padding.
	Size = 16

	// PositionOffset is the byte offset of the position inside a Boid record.
	PositionOffset = 0

	// VelocityOffset is the byte offset of the velocity inside a Boid record.
	VelocityOffset = 8

	// VertexSize is the byte size of one Mesh vertex.
	VertexSize = 8
)

// Boid is a single simulated agent. Units are clip space; velocity is in units per frame.
//
// The byte layout is a contract with the compute and render shaders: position at offset 0,
// velocity at offset 8, each as two little-endian f32 values. After upload the host never
// reads or writes a Boid again; the compute shader owns all mutation.
type Boid struct {
	Position mgl32.Vec2
	Velocity mgl32.Vec2
}

// Mesh is the triangle drawn once per boid, pointing along +Y before it is rotated to the heading.
var Mesh = [3]mgl32.Vec2{
	{0.0, 0.0075},
	{-0.00375, -0.005},
	{0.00375, -0.005},
}

// Encode serializes boids into the GPU byte layout.
//
// Parameters:
//   - boids: the boids to encode
//
// Returns:
//   - []byte: len(boids)*Size bytes, never nil
func Encode(boids []Boid) []byte {
	out := make([]byte, 0, len(boids)*Size)
	for _, b := range boids {
		out = common.AppendFloat32s(out, b.Position[0], b.Position[1], b.Velocity[0], b.Velocity[1])
	}
	return out
}

// Decode parses the GPU byte layout back into boids.
// It exists for tests and diagnostics; the simulation itself never reads agents back.
//
// Parameters:
//   - data: bytes in the layout produced by Encode
//
// Returns:
//   - []Boid: the decoded boids
//   - error: an error if len(data) is not a multiple of Size
func Decode(data []byte) ([]Boid, error) {
	if len(data)%Size != 0 {
		return nil, fmt.Errorf("boid data length %d is not a multiple of %d", len(data), Size)
	}
	out := make([]Boid, len(data)/Size)
	for i := range out {
		off := i * Size
		out[i] = Boid{
			Position: mgl32.Vec2{common.Float32At(data, off+PositionOffset), common.Float32At(data, off+PositionOffset+4)},
			Velocity: mgl32.Vec2{common.Float32At(data, off+VelocityOffset), common.Float32At(data, off+VelocityOffset+4)},
		}
	}
	return out, nil
}

// MeshBytes returns the Mesh in its vertex buffer layout, VertexSize bytes per vertex.
func MeshBytes() []byte {
	out := make([]byte, 0, len(Mesh)*VertexSize)
	for _, v := range Mesh {
		out = common.AppendFloat32s(out, v[0], v[1])
	}
	return out
}

// InstanceLayout describes the per-instance vertex stream: one Boid per instance,
// position at @location(0) and velocity at @location(1).
func InstanceLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: Size,
		StepMode:    wgpu.VertexStepModeInstance,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x2, Offset: PositionOffset, ShaderLocation: 0},
			{Format: wgpu.VertexFormatFloat32x2, Offset: VelocityOffset, ShaderLocation: 1},
		},
	}
}

// MeshLayout describes the per-vertex stream of the shared Mesh at @location(2).
func MeshLayout() wgpu.VertexBufferLayout {
	return wgpu.VertexBufferLayout{
		ArrayStride: VertexSize,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes: []wgpu.VertexAttribute{
			{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 2},
		},
	}
}
