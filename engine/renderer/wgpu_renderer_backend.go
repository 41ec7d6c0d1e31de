package renderer

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-boids/common"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

var errNoFrame = errors.New("no frame is being recorded")

type releaser interface {
	Release()
}

// wgpuHandle adapts a wgpu object to gpu.Resource.
type wgpuHandle[T releaser] struct {
	label    string
	obj      T
	released bool
}

func (h *wgpuHandle[T]) Label() string {
	return h.label
}

func (h *wgpuHandle[T]) Release() {
	if h.released {
		return
	}
	h.released = true
	h.obj.Release()
}

// wgpuBuffer adapts a *wgpu.Buffer to gpu.Buffer.
type wgpuBuffer struct {
	wgpuHandle[*wgpu.Buffer]
	size uint64
}

func (b *wgpuBuffer) Size() uint64 {
	return b.size
}

// unwrap type asserts a handle created by this backend back to its wgpu object.
func unwrap[T releaser](r gpu.Resource) (T, error) {
	var zero T
	switch h := r.(type) {
	case *wgpuHandle[T]:
		return h.obj, nil
	case *wgpuBuffer:
		if obj, ok := any(h.obj).(T); ok {
			return obj, nil
		}
	}
	if r == nil {
		return zero, errors.New("nil gpu resource")
	}
	return zero, fmt.Errorf("gpu resource %q was not created by the wgpu backend", r.Label())
}

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	logger common.Logger

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat wgpu.TextureFormat
	alphaMode     wgpu.CompositeAlphaMode
	presentMode   wgpu.PresentMode
	clearColor    wgpu.Color

	// owned holds pipelines, layouts and shader modules created on behalf of a Pipeline;
	// they are released with the backend.
	owned []releaser

	// Frame state. One encoder records every pass of the frame.
	frameEncoder *wgpu.CommandEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, logger common.Logger) (*wgpuRendererBackendImpl, error) {
	runtime.LockOSThread()
	if surfaceDescriptor == nil {
		return nil, errors.New("window has no surface descriptor")
	}

	b := &wgpuRendererBackendImpl{
		mu:          &sync.Mutex{},
		logger:      logger,
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeFifo,
		clearColor:  DefaultClearColor,
	}
	b.surface = b.instance.CreateSurface(surfaceDescriptor)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.surface.Release()
		b.instance.Release()
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		a.Release()
		b.surface.Release()
		b.instance.Release()
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	b.device = d
	b.queue = d.GetQueue()

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = preferredSurfaceFormat(capabilities.Formats)
	if len(capabilities.AlphaModes) > 0 {
		b.alphaMode = capabilities.AlphaModes[0]
	}
	logger.Debugf("Surface format %v, %d formats supported", b.surfaceFormat, len(capabilities.Formats))

	return b, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// wgpu-native keeps its default desired frame latency of MaxFramesInFlight
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   b.alphaMode,
	})
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch mode {
	case PresentModeUncapped:
		b.presentMode = wgpu.PresentModeImmediate
	case PresentModeVSync:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *wgpuRendererBackendImpl) SetClearColor(color wgpu.Color) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearColor = color
}

func (b *wgpuRendererBackendImpl) CreateBuffer(label string, usage wgpu.BufferUsage, size uint64, contents []byte) (gpu.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if uint64(len(contents)) > size {
		return nil, fmt.Errorf("buffer %s: %d bytes of contents exceed size %d", label, len(contents), size)
	}

	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	if len(contents) > 0 {
		b.queue.WriteBuffer(buf, 0, contents)
	}
	return &wgpuBuffer{wgpuHandle: wgpuHandle[*wgpu.Buffer]{label: label, obj: buf}, size: size}, nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (gpu.Resource, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	layout, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	return &wgpuHandle[*wgpu.BindGroupLayout]{label: label, obj: layout}, nil
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(provider bind_group_provider.BindGroupProvider) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	layout, err := unwrap[*wgpu.BindGroupLayout](provider.BindGroupLayout())
	if err != nil {
		return fmt.Errorf("%s: %w", provider.Label(), err)
	}

	buffers := provider.Buffers()
	entries := make([]wgpu.BindGroupEntry, 0, len(buffers))
	for binding := range len(buffers) {
		buf, err := unwrap[*wgpu.Buffer](provider.Buffer(binding))
		if err != nil {
			return fmt.Errorf("%s binding %d: %w", provider.Label(), binding, err)
		}
		entries = append(entries, wgpu.BindGroupEntry{
			Binding: uint32(binding),
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		})
	}

	label := provider.Label()
	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return err
	}
	provider.SetBindGroup(&wgpuHandle[*wgpu.BindGroup]{label: label, obj: bindGroup})
	return nil
}

// pipelineLayout creates the pipeline layout for p from its bind group layouts.
func (b *wgpuRendererBackendImpl) pipelineLayout(p pipeline.Pipeline) (*wgpu.PipelineLayout, error) {
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, 0, len(p.BindGroupLayouts()))
	for g, r := range p.BindGroupLayouts() {
		layout, err := unwrap[*wgpu.BindGroupLayout](r)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", g, err)
		}
		bindGroupLayouts = append(bindGroupLayouts, layout)
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return nil, err
	}
	b.owned = append(b.owned, layout)
	return layout, nil
}

func (b *wgpuRendererBackendImpl) shaderModule(s shader.Shader) (*wgpu.ShaderModule, error) {
	module, err := b.device.CreateShaderModule(s.Module())
	if err != nil {
		return nil, fmt.Errorf("shader %s: %w", s.Key(), err)
	}
	b.owned = append(b.owned, module)
	return module, nil
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	computeShader := p.Shader(shader.ShaderTypeCompute)
	if computeShader == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	module, err := b.shaderModule(computeShader)
	if err != nil {
		return err
	}
	layout, err := b.pipelineLayout(p)
	if err != nil {
		return err
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}
	b.owned = append(b.owned, created)

	p.SetHandle(created)
	return nil
}

func (b *wgpuRendererBackendImpl) RegisterRenderPipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	vertexShader := p.Shader(shader.ShaderTypeVertex)
	fragmentShader := p.Shader(shader.ShaderTypeFragment)
	if vertexShader == nil || fragmentShader == nil {
		return errors.New("both vertex and fragment shaders must be set to create a render pipeline")
	}

	vs, err := b.shaderModule(vertexShader)
	if err != nil {
		return err
	}
	fs, err := b.shaderModule(fragmentShader)
	if err != nil {
		return err
	}
	layout, err := b.pipelineLayout(p)
	if err != nil {
		return err
	}

	target := wgpu.ColorTargetState{
		Format:    b.surfaceFormat,
		WriteMask: p.WriteMask(),
	}
	if p.BlendEnabled() {
		target.Blend = p.BlendState()
	}

	created, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  p.PipelineKey() + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: vertexShader.EntryPoint(),
			Buffers:    p.VertexLayouts(),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: fragmentShader.EntryPoint(),
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  p.Topology(),
			FrontFace: p.FrontFace(),
			CullMode:  p.CullMode(),
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return err
	}
	b.owned = append(b.owned, created)

	p.SetHandle(created)
	return nil
}

func (b *wgpuRendererBackendImpl) AcquireSurfaceTexture() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// a texture still held means the previous frame was never presented
	if b.frameSurface != nil {
		return errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}

	b.frameSurface = surfaceTexture
	b.frameView = view
	return nil
}

func (b *wgpuRendererBackendImpl) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameView == nil {
		return errNoFrame
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.frameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackendImpl) DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return errNoFrame
	}
	computePipeline, ok := p.Handle().(*wgpu.ComputePipeline)
	if !ok {
		return fmt.Errorf("pipeline %s is not a registered compute pipeline", p.PipelineKey())
	}
	bindGroup, err := unwrap[*wgpu.BindGroup](provider.BindGroup())
	if err != nil {
		return fmt.Errorf("%s: %w", provider.Label(), err)
	}

	pass := b.frameEncoder.BeginComputePass(nil)
	pass.SetPipeline(computePipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()
	return nil
}

func (b *wgpuRendererBackendImpl) Draw(p pipeline.Pipeline, vertexBuffers []gpu.Buffer, vertexCount, instanceCount uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil || b.frameView == nil {
		return errNoFrame
	}
	renderPipeline, ok := p.Handle().(*wgpu.RenderPipeline)
	if !ok {
		return fmt.Errorf("pipeline %s is not a registered render pipeline", p.PipelineKey())
	}

	buffers := make([]*wgpu.Buffer, len(vertexBuffers))
	for slot, vb := range vertexBuffers {
		buf, err := unwrap[*wgpu.Buffer](vb)
		if err != nil {
			return fmt.Errorf("vertex slot %d: %w", slot, err)
		}
		buffers[slot] = buf
	}

	pass := b.frameEncoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       b.frameView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: b.clearColor,
			},
		},
	})
	pass.SetPipeline(renderPipeline)
	for slot, buf := range buffers {
		pass.SetVertexBuffer(uint32(slot), buf, 0, wgpu.WholeSize)
	}
	pass.Draw(vertexCount, instanceCount, 0, 0)
	pass.End()
	return nil
}

func (b *wgpuRendererBackendImpl) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder == nil {
		return errNoFrame
	}

	commandBuffer, err := b.frameEncoder.Finish(nil)
	b.frameEncoder.Release()
	b.frameEncoder = nil
	if err != nil {
		return err
	}

	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) Present() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return
	}
	b.surface.Present()
	b.releaseFrameTexture()
}

func (b *wgpuRendererBackendImpl) AbortFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	b.releaseFrameTexture()
}

func (b *wgpuRendererBackendImpl) releaseFrameTexture() {
	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *wgpuRendererBackendImpl) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameEncoder != nil {
		b.frameEncoder.Release()
		b.frameEncoder = nil
	}
	b.releaseFrameTexture()

	for i := len(b.owned) - 1; i >= 0; i-- {
		b.owned[i].Release()
	}
	b.owned = nil

	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}
