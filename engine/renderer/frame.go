package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-boids/common"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/gpu"
)

// MeshVertexCount is the number of vertices drawn per boid.
const MeshVertexCount = 3

// FrameState is the position of the renderer within the recording of a frame.
type FrameState int

const (
	// FrameStateIdle is the state between frames.
	FrameStateIdle FrameState = iota

	// FrameStateComputeDispatched means the compute pass has been recorded.
	FrameStateComputeDispatched

	// FrameStateRenderDispatched means the render pass has been recorded.
	FrameStateRenderDispatched

	// FrameStateSubmitted means the frame's command buffer has been submitted.
	FrameStateSubmitted
)

func (s FrameState) String() string {
	switch s {
	case FrameStateIdle:
		return "idle"
	case FrameStateComputeDispatched:
		return "compute dispatched"
	case FrameStateRenderDispatched:
		return "render dispatched"
	case FrameStateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("FrameState(%d)", int(s))
	}
}

// FramePlan is everything a frame needs to know about which buffer is read and written.
type FramePlan struct {
	Frame uint64

	// Pair is the bind group pair used by the compute pass.
	Pair int
	// Read is the agent buffer slot the compute pass reads.
	Read int
	// Write is the agent buffer slot the compute pass writes.
	Write int
	// InstanceSource is the agent buffer slot bound as the render instance stream.
	// It is always the slot the compute pass reads, i.e. the previous frame's output.
	InstanceSource int

	Workgroups    uint32
	VertexCount   uint32
	InstanceCount uint32
}

// PlanFrame computes the plan for a frame. It has no side effects.
//
// Parameters:
//   - frame: the frame counter value
//   - count: the number of boids
//
// Returns:
//   - FramePlan: the plan
func PlanFrame(frame uint64, count uint32) FramePlan {
	pair := int(frame % 2)
	return FramePlan{
		Frame:          frame,
		Pair:           pair,
		Read:           pair,
		Write:          1 - pair,
		InstanceSource: pair,
		Workgroups:     common.CeilDiv(count, WorkgroupSize),
		VertexCount:    MeshVertexCount,
		InstanceCount:  count,
	}
}

func (r *renderer) RenderFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrRendererReleased
	}

	// nothing is touched when the surface cannot provide a texture
	if err := r.backend.AcquireSurfaceTexture(); err != nil {
		return ClassifySurfaceError(err)
	}

	if err := r.recordAndSubmit(PlanFrame(r.frame, r.agentCount)); err != nil {
		r.backend.AbortFrame()
		r.state = FrameStateIdle
		return err
	}

	r.backend.Present()
	r.frame++
	r.state = FrameStateIdle

	if r.profiler != nil {
		r.profiler.Tick()
	}
	return nil
}

// recordAndSubmit records the compute pass and the render pass of one frame into a single
// encoder and submits it.
func (r *renderer) recordAndSubmit(plan FramePlan) error {
	if err := r.backend.BeginFrame(); err != nil {
		return fmt.Errorf("frame %d: begin: %w", plan.Frame, err)
	}

	pair := r.pairs.Read(plan.Frame)
	if err := r.backend.DispatchCompute(r.pipelineCache[computePipelineKey], pair, [3]uint32{plan.Workgroups, 1, 1}); err != nil {
		return fmt.Errorf("frame %d: compute pass: %w", plan.Frame, err)
	}
	r.state = FrameStateComputeDispatched

	vertexBuffers := []gpu.Buffer{r.resources.agents.Read(plan.Frame), r.resources.mesh}
	if err := r.backend.Draw(r.pipelineCache[renderPipelineKey], vertexBuffers, plan.VertexCount, plan.InstanceCount); err != nil {
		return fmt.Errorf("frame %d: render pass: %w", plan.Frame, err)
	}
	r.state = FrameStateRenderDispatched

	if err := r.backend.EndFrame(); err != nil {
		return fmt.Errorf("frame %d: submit: %w", plan.Frame, err)
	}
	r.state = FrameStateSubmitted
	return nil
}
