package renderer

import (
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// WorkgroupSize is the compute workgroup width every compute shader must declare.
	WorkgroupSize = 64

	// MaxFramesInFlight is the surface frame latency. Frame N+2 waits on the presentation of frame N,
	// which is what keeps a buffer from being written while a pending frame still reads it.
	MaxFramesInFlight = 2
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// RendererBackend is the GPU API surface the Renderer drives. The wgpu backend is the production
// implementation; anything else (a CPU fake, a recording backend) only needs to honour the call order
// AcquireSurfaceTexture, BeginFrame, DispatchCompute, Draw, EndFrame, Present within one frame.
//
// Resources cross this boundary as gpu handles; each backend type asserts them back to its own types.
type RendererBackend interface {
	// ConfigureSurface (re)configures the presentation surface for the given size.
	// It is also the recovery path for a lost or outdated surface.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode. Takes effect on the next ConfigureSurface.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// SetClearColor sets the color the render pass clears the surface texture to.
	//
	// Parameters:
	//   - color: the clear color
	SetClearColor(color wgpu.Color)

	// CreateBuffer allocates a GPU buffer and uploads contents into it when contents is non-empty.
	//
	// Parameters:
	//   - label: the debug label
	//   - usage: the buffer usage flags
	//   - size: the allocation size in bytes, at least len(contents)
	//   - contents: the initial data, may be nil
	//
	// Returns:
	//   - gpu.Buffer: the created buffer
	//   - error: an error if the buffer could not be created
	CreateBuffer(label string, usage wgpu.BufferUsage, size uint64, contents []byte) (gpu.Buffer, error)

	// CreateBindGroupLayout creates a bind group layout from its entries.
	//
	// Parameters:
	//   - label: the debug label
	//   - entries: the layout entries
	//
	// Returns:
	//   - gpu.Resource: the created layout
	//   - error: an error if the layout could not be created
	CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (gpu.Resource, error)

	// CreateBindGroup creates the bind group for a provider from the provider's layout and buffers,
	// binding each buffer whole, and stores it back with SetBindGroup.
	//
	// Parameters:
	//   - provider: the BindGroupProvider describing the layout and buffers
	//
	// Returns:
	//   - error: an error if the bind group could not be created
	CreateBindGroup(provider bind_group_provider.BindGroupProvider) error

	// RegisterComputePipeline creates the shader module, pipeline layout and compute pipeline
	// described by p and stores the result with p.SetHandle.
	//
	// Parameters:
	//   - p: the compute pipeline description
	//
	// Returns:
	//   - error: an error if the pipeline could not be created
	RegisterComputePipeline(p pipeline.Pipeline) error

	// RegisterRenderPipeline creates the shader modules, pipeline layout and render pipeline
	// described by p and stores the result with p.SetHandle.
	//
	// Parameters:
	//   - p: the render pipeline description
	//
	// Returns:
	//   - error: an error if the pipeline could not be created
	RegisterRenderPipeline(p pipeline.Pipeline) error

	// AcquireSurfaceTexture acquires the next surface texture for this frame.
	// Errors are returned unclassified; the Renderer classifies them into a SurfaceFault.
	//
	// Returns:
	//   - error: an error if no texture could be acquired
	AcquireSurfaceTexture() error

	// BeginFrame creates the single command encoder every pass of the frame is recorded into.
	//
	// Returns:
	//   - error: an error if the encoder could not be created
	BeginFrame() error

	// DispatchCompute records one compute pass binding the provider's bind group at group 0.
	//
	// Parameters:
	//   - p: the registered compute pipeline
	//   - provider: the bind group pair for this frame
	//   - workGroupCount: the number of workgroups in x, y and z
	//
	// Returns:
	//   - error: an error if no frame is being recorded
	DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// Draw records one render pass that clears the surface texture and issues a single
	// non-indexed instanced draw with vertexBuffers bound to slots 0..n-1.
	//
	// Parameters:
	//   - p: the registered render pipeline
	//   - vertexBuffers: the vertex buffers in slot order
	//   - vertexCount: vertices per instance
	//   - instanceCount: number of instances
	//
	// Returns:
	//   - error: an error if no frame is being recorded
	Draw(p pipeline.Pipeline, vertexBuffers []gpu.Buffer, vertexCount, instanceCount uint32) error

	// EndFrame finishes the encoder and submits exactly one command buffer.
	//
	// Returns:
	//   - error: an error if the encoder could not be finished
	EndFrame() error

	// Present presents the acquired surface texture and releases it.
	Present()

	// AbortFrame drops any encoder and surface texture held by an unfinished frame without submitting.
	AbortFrame()

	// Release releases every GPU object the backend still owns, then the device itself.
	Release()
}
