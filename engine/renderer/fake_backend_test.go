package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-boids/engine/boid"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

type fakeResource struct {
	label    string
	released int
}

func (r *fakeResource) Label() string { return r.label }
func (r *fakeResource) Release()      { r.released++ }

type fakeBuffer struct {
	fakeResource
	usage wgpu.BufferUsage
	data  []byte
}

func (b *fakeBuffer) Size() uint64 { return uint64(len(b.data)) }

// kernelFunc is a CPU stand-in for the compute shader, run once per invocation.
type kernelFunc func(id uint32, src, dst []byte)

// copyKernel is the identity kernel, bounds checked like the WGSL kernel.
func copyKernel(id uint32, src, dst []byte) {
	if id >= uint32(len(src)/boid.Size) {
		return
	}
	off := id * boid.Size
	copy(dst[off:off+boid.Size], src[off:off+boid.Size])
}

type fakeDispatch struct {
	pair        string
	read, write string
	workgroups  [3]uint32
}

type fakeDraw struct {
	slots         []string
	vertexCount   uint32
	instanceCount uint32
	clear         wgpu.Color
}

// fakeBackend executes compute dispatches with a Go kernel and records everything else.
type fakeBackend struct {
	calls       []string
	configured  [][2]int
	presentMode *PresentMode
	clearColor  wgpu.Color

	buffers       []*fakeBuffer
	layouts       []*fakeResource
	layoutEntries []wgpu.BindGroupLayoutEntry
	bindGroups    []*fakeResource
	pipelines     []pipeline.Pipeline

	dispatches  []fakeDispatch
	draws       []fakeDraw
	submissions int
	presents    int
	aborts      int
	released    int

	acquireErr  error
	endFrameErr error
	createErr   error
	kernel      kernelFunc

	acquired bool
	encoding bool
}

var _ RendererBackend = &fakeBackend{}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{kernel: copyKernel}
}

func (f *fakeBackend) ConfigureSurface(width, height int) {
	f.configured = append(f.configured, [2]int{width, height})
}

func (f *fakeBackend) SetPresentMode(mode PresentMode) {
	f.presentMode = &mode
}

func (f *fakeBackend) SetClearColor(color wgpu.Color) {
	f.clearColor = color
}

func (f *fakeBackend) CreateBuffer(label string, usage wgpu.BufferUsage, size uint64, contents []byte) (gpu.Buffer, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	data := make([]byte, size)
	copy(data, contents)
	buf := &fakeBuffer{fakeResource: fakeResource{label: label}, usage: usage, data: data}
	f.buffers = append(f.buffers, buf)
	return buf, nil
}

func (f *fakeBackend) CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (gpu.Resource, error) {
	layout := &fakeResource{label: label}
	f.layouts = append(f.layouts, layout)
	f.layoutEntries = entries
	return layout, nil
}

func (f *fakeBackend) CreateBindGroup(provider bind_group_provider.BindGroupProvider) error {
	bg := &fakeResource{label: provider.Label()}
	f.bindGroups = append(f.bindGroups, bg)
	provider.SetBindGroup(bg)
	return nil
}

func (f *fakeBackend) RegisterComputePipeline(p pipeline.Pipeline) error {
	p.SetHandle("compute")
	f.pipelines = append(f.pipelines, p)
	return nil
}

func (f *fakeBackend) RegisterRenderPipeline(p pipeline.Pipeline) error {
	p.SetHandle("render")
	f.pipelines = append(f.pipelines, p)
	return nil
}

func (f *fakeBackend) AcquireSurfaceTexture() error {
	f.calls = append(f.calls, "acquire")
	if f.acquireErr != nil {
		return f.acquireErr
	}
	f.acquired = true
	return nil
}

func (f *fakeBackend) BeginFrame() error {
	f.calls = append(f.calls, "begin")
	if !f.acquired {
		return errors.New("no surface texture")
	}
	f.encoding = true
	return nil
}

func (f *fakeBackend) DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	f.calls = append(f.calls, "compute")
	if !f.encoding {
		return errors.New("no encoder")
	}
	if p.Handle() != "compute" {
		return errors.New("not a compute pipeline")
	}

	src := provider.Buffer(0).(*fakeBuffer)
	dst := provider.Buffer(1).(*fakeBuffer)
	f.dispatches = append(f.dispatches, fakeDispatch{
		pair:       provider.Label(),
		read:       src.label,
		write:      dst.label,
		workgroups: workGroupCount,
	})

	invocations := workGroupCount[0] * workGroupCount[1] * workGroupCount[2] * WorkgroupSize
	for id := range invocations {
		f.kernel(id, src.data, dst.data)
	}
	return nil
}

func (f *fakeBackend) Draw(p pipeline.Pipeline, vertexBuffers []gpu.Buffer, vertexCount, instanceCount uint32) error {
	f.calls = append(f.calls, "draw")
	if !f.encoding {
		return errors.New("no encoder")
	}
	if p.Handle() != "render" {
		return errors.New("not a render pipeline")
	}

	slots := make([]string, len(vertexBuffers))
	for i, vb := range vertexBuffers {
		slots[i] = vb.Label()
	}
	f.draws = append(f.draws, fakeDraw{
		slots:         slots,
		vertexCount:   vertexCount,
		instanceCount: instanceCount,
		clear:         f.clearColor,
	})
	return nil
}

func (f *fakeBackend) EndFrame() error {
	f.calls = append(f.calls, "submit")
	if f.endFrameErr != nil {
		return f.endFrameErr
	}
	f.encoding = false
	f.submissions++
	return nil
}

func (f *fakeBackend) Present() {
	f.calls = append(f.calls, "present")
	f.acquired = false
	f.presents++
}

func (f *fakeBackend) AbortFrame() {
	f.calls = append(f.calls, "abort")
	f.acquired = false
	f.encoding = false
	f.aborts++
}

func (f *fakeBackend) Release() {
	f.released++
}

func (f *fakeBackend) buffer(label string) *fakeBuffer {
	for _, b := range f.buffers {
		if b.label == label {
			return b
		}
	}
	return nil
}

func (f *fakeBackend) resetCalls() {
	f.calls = nil
}
