package renderer

import (
	"github.com/Carmen-Shannon/oxy-boids/engine/boid"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

const (
	meshBufferLabel = "vertex buffer"
	agentBufferA    = "instance buffer A"
	agentBufferB    = "instance buffer B"

	// agentBufferUsage lets one buffer be a storage binding for the compute pass and an
	// instance vertex stream for the render pass.
	agentBufferUsage = wgpu.BufferUsageVertex | wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	meshBufferUsage  = wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
)

// AgentBytes is the byte size of n boids in GPU memory.
func AgentBytes(n uint32) uint64 {
	return uint64(n) * boid.Size
}

// resources are the buffers created once at startup and never reallocated.
type resources struct {
	// agentBytes is the exact size of the agent array; the compute layout advertises it as MinBindingSize.
	agentBytes uint64
	mesh       gpu.Buffer
	agents     *DoubleBuffer[gpu.Buffer]
}

// allocateResources uploads the mesh and two identical copies of the agent array.
// An empty population still gets one stride of storage so both bindings stay valid.
func allocateResources(backend RendererBackend, boids []boid.Boid) (*resources, error) {
	meshBytes := boid.MeshBytes()
	mesh, err := backend.CreateBuffer(meshBufferLabel, meshBufferUsage, uint64(len(meshBytes)), meshBytes)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create mesh buffer")
	}

	data := boid.Encode(boids)
	agentBytes := uint64(len(data))
	physical := max(agentBytes, boid.Size)

	a, err := backend.CreateBuffer(agentBufferA, agentBufferUsage, physical, data)
	if err != nil {
		mesh.Release()
		return nil, errors.Wrapf(err, "failed to create %s", agentBufferA)
	}
	b, err := backend.CreateBuffer(agentBufferB, agentBufferUsage, physical, data)
	if err != nil {
		mesh.Release()
		a.Release()
		return nil, errors.Wrapf(err, "failed to create %s", agentBufferB)
	}

	return &resources{
		agentBytes: agentBytes,
		mesh:       mesh,
		agents:     NewDoubleBuffer(a, b),
	}, nil
}

func (r *resources) release() {
	r.agents.Release()
	r.mesh.Release()
}
