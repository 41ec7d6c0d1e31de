package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-boids/common"
	"github.com/Carmen-Shannon/oxy-boids/engine/boid"
	"github.com/Carmen-Shannon/oxy-boids/engine/profiler"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-boids/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// DefaultClearColor is the color the surface is cleared to before boids are drawn.
var DefaultClearColor = wgpu.Color{R: 0.3, G: 0.0, B: 0.075, A: 1.0}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline
	backend       RendererBackend

	logger   common.Logger
	profiler *profiler.Profiler

	resources *resources
	layout    gpu.Resource
	pairs     *DoubleBuffer[bind_group_provider.BindGroupProvider]

	// frame counts completed frames; its parity selects the bind group pair.
	frame      uint64
	state      FrameState
	agentCount uint32
	released   bool

	// Pre-creation config collected from builder options
	computeSource        string
	clearColor           wgpu.Color
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	surfaceWidth         int
	surfaceHeight        int
}

// Renderer runs the boids simulation on the GPU and draws it.
//
// Every frame records a compute pass that advances the simulation from one agent buffer into the
// other and a render pass that draws the buffer the compute pass read, then submits both in one
// command buffer. The two agent buffers swap roles each frame; the host never touches agent data
// after the initial upload.
type Renderer interface {
	// Pipeline retrieves the registered Pipeline associated with the given key, nil if not found.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Resize reconfigures the surface for a new size. Zero or negative sizes (a minimized window)
	// are ignored. Buffers, bind groups and pipelines are never touched.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode sets the surface present mode. A call to Resize is required for the new mode
	// to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// RenderFrame records, submits and presents one frame.
	// A surface texture that cannot be acquired is reported as a *SurfaceFault before any GPU work
	// is recorded; the frame counter only advances when the frame was submitted.
	//
	// Returns:
	//   - error: a *SurfaceFault, or an error from recording or submission
	RenderFrame() error

	// FrameCounter returns the number of frames submitted so far.
	//
	// Returns:
	//   - uint64: the frame counter
	FrameCounter() uint64

	// AgentCount returns the number of simulated boids.
	//
	// Returns:
	//   - uint32: the number of boids
	AgentCount() uint32

	// FrameState returns where the renderer is in recording a frame. Always FrameStateIdle between frames.
	//
	// Returns:
	//   - FrameState: the current state
	FrameState() FrameState

	// Release releases every GPU resource. The Renderer cannot be used afterwards.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer on the wgpu backend for the given window and uploads the boids.
// It panics if any GPU resource, shader or pipeline cannot be created.
//
// Parameters:
//   - window: the window providing the surface descriptor and initial size
//   - boids: the initial population, uploaded once
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the initialized renderer
func NewRenderer(window window.Window, boids []boid.Boid, options ...RendererBuilderOption) Renderer {
	cfg := newRendererConfig(options...)

	backend, err := newWGPURendererBackend(window.SurfaceDescriptor(), cfg.forceFallbackAdapter, cfg.logger)
	if err != nil {
		panic(errors.Wrap(err, "failed to create wgpu backend"))
	}

	options = append([]RendererBuilderOption{WithSurfaceSize(window.Width(), window.Height())}, options...)
	r, err := NewRendererWithBackend(backend, boids, options...)
	if err != nil {
		backend.Release()
		panic(err)
	}
	return r
}

// NewRendererWithBackend creates a Renderer on an arbitrary backend.
// Initialization order: surface configuration, buffer upload, bind group pairs, pipelines.
//
// Parameters:
//   - backend: the GPU backend to drive
//   - boids: the initial population, uploaded once
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the initialized renderer
//   - error: a fatal initialization error
func NewRendererWithBackend(backend RendererBackend, boids []boid.Boid, options ...RendererBuilderOption) (Renderer, error) {
	r := newRendererConfig(options...)
	r.backend = backend
	r.agentCount = uint32(len(boids))

	if r.pendingPresentMode != nil {
		backend.SetPresentMode(*r.pendingPresentMode)
	}
	backend.SetClearColor(r.clearColor)
	if r.surfaceWidth > 0 && r.surfaceHeight > 0 {
		backend.ConfigureSurface(r.surfaceWidth, r.surfaceHeight)
	}

	res, err := allocateResources(backend, boids)
	if err != nil {
		return nil, err
	}
	r.resources = res

	r.layout, r.pairs, err = buildPairs(backend, res)
	if err != nil {
		res.release()
		return nil, err
	}

	compute, render, err := describePipelines(r.computeSource, r.layout)
	if err == nil {
		err = r.registerPipelines(compute, render)
	}
	if err != nil {
		r.pairs.Release()
		r.layout.Release()
		res.release()
		return nil, err
	}

	r.logger.Infof("Renderer ready: %d boids, %d bytes per agent buffer", r.agentCount, res.agentBytes)
	return r, nil
}

// newRendererConfig applies options over the defaults without touching any backend.
func newRendererConfig(options ...RendererBuilderOption) *renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		logger:        common.NewNopLogger(),
		computeSource: shader.BoidsComputeSource,
		clearColor:    DefaultClearColor,
		state:         FrameStateIdle,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) FrameCounter() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

func (r *renderer) AgentCount() uint32 {
	return r.agentCount
}

func (r *renderer) FrameState() FrameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return
	}
	r.released = true

	r.pairs.Release()
	r.layout.Release()
	r.resources.release()
	r.backend.Release()
}
