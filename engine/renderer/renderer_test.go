package renderer

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-boids/engine/boid"
	"github.com/Carmen-Shannon/oxy-boids/engine/profiler"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testBoids(n int) []boid.Boid {
	return boid.NewGenerator(boid.WithSeed(42)).Generate(uint32(n))
}

func newTestRenderer(t *testing.T, backend *fakeBackend, boids []boid.Boid, options ...RendererBuilderOption) Renderer {
	t.Helper()
	r, err := NewRendererWithBackend(backend, boids, options...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func TestPlanFrame(t *testing.T) {
	tests := []struct {
		frame          uint64
		pair, read     int
		write          int
		instanceSource int
	}{
		{0, 0, 0, 1, 0},
		{1, 1, 1, 0, 1},
		{2, 0, 0, 1, 0},
		{3, 1, 1, 0, 1},
		{^uint64(0), 1, 1, 0, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("frame %d", tt.frame), func(t *testing.T) {
			plan := PlanFrame(tt.frame, 100)
			assert.Equal(t, tt.frame, plan.Frame)
			assert.Equal(t, tt.pair, plan.Pair)
			assert.Equal(t, tt.read, plan.Read)
			assert.Equal(t, tt.write, plan.Write)
			assert.Equal(t, tt.instanceSource, plan.InstanceSource)
			assert.Equal(t, uint32(2), plan.Workgroups)
			assert.Equal(t, uint32(3), plan.VertexCount)
			assert.Equal(t, uint32(100), plan.InstanceCount)
		})
	}
}

func TestPlanFrameWorkgroups(t *testing.T) {
	for n, want := range map[uint32]uint32{0: 0, 1: 1, 63: 1, 64: 1, 65: 2, 4000: 63} {
		assert.Equal(t, want, PlanFrame(7, n).Workgroups, "count %d", n)
	}
}

func TestBufferPairSequence(t *testing.T) {
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, testBoids(10))

	for range 4 {
		require.NoError(t, r.RenderFrame())
	}
	assert.Equal(t, uint64(4), r.FrameCounter())

	require.Len(t, backend.dispatches, 4)
	require.Len(t, backend.draws, 4)
	want := [][2]string{
		{agentBufferA, agentBufferB},
		{agentBufferB, agentBufferA},
		{agentBufferA, agentBufferB},
		{agentBufferB, agentBufferA},
	}
	for i, w := range want {
		d := backend.dispatches[i]
		assert.Equal(t, w, [2]string{d.read, d.write}, "frame %d", i)
		assert.Equal(t, fmt.Sprintf("boids bind group %d", i%2), d.pair)
		assert.Equal(t, []string{w[0], meshBufferLabel}, backend.draws[i].slots, "frame %d draws the buffer it read", i)
	}

	// pairs are built once
	assert.Len(t, backend.bindGroups, 2)
}

func TestOneSubmissionPerFrame(t *testing.T) {
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, testBoids(5))
	backend.resetCalls()

	require.NoError(t, r.RenderFrame())
	assert.Equal(t, []string{"acquire", "begin", "compute", "draw", "submit", "present"}, backend.calls)
	assert.Equal(t, 1, backend.submissions)
	assert.Equal(t, 1, backend.presents)
	assert.Equal(t, FrameStateIdle, r.FrameState())

	d := backend.draws[0]
	assert.Equal(t, uint32(3), d.vertexCount)
	assert.Equal(t, uint32(5), d.instanceCount)
}

func TestWorkgroupCoverage(t *testing.T) {
	for _, n := range []int{1, 63, 64, 65, 4000} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			hits := make([]int, n)
			var invocations uint32
			backend := newFakeBackend()
			backend.kernel = func(id uint32, src, dst []byte) {
				invocations++
				if id >= uint32(len(dst)/boid.Size) {
					return
				}
				hits[id]++
			}

			r := newTestRenderer(t, backend, testBoids(n))
			require.NoError(t, r.RenderFrame())

			for i, h := range hits {
				require.Equal(t, 1, h, "agent %d", i)
			}
			assert.GreaterOrEqual(t, invocations, uint32(n))
			assert.Less(t, invocations-uint32(n), uint32(WorkgroupSize))
			assert.Equal(t, [3]uint32{uint32((n + 63) / 64), 1, 1}, backend.dispatches[0].workgroups)
		})
	}
}

func TestIdentityKernelEndToEnd(t *testing.T) {
	boids := []boid.Boid{
		{Position: mgl32.Vec2{0.25, -0.5}, Velocity: mgl32.Vec2{0.01, 0}},
		{Position: mgl32.Vec2{-0.75, 0.125}, Velocity: mgl32.Vec2{0, -0.02}},
	}
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, boids)

	require.NoError(t, r.RenderFrame())
	got, err := boid.Decode(backend.buffer(agentBufferB).data)
	require.NoError(t, err)
	assert.Equal(t, boids, got)

	require.NoError(t, r.RenderFrame())
	got, err = boid.Decode(backend.buffer(agentBufferA).data)
	require.NoError(t, err)
	assert.Equal(t, boids, got)

	assert.Equal(t, agentBufferB, backend.draws[1].slots[0])
}

func TestEmptyPopulation(t *testing.T) {
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, []boid.Boid{})

	assert.Equal(t, uint32(0), r.AgentCount())
	assert.Equal(t, uint64(boid.Size), backend.buffer(agentBufferA).Size())
	for _, e := range backend.layoutEntries {
		assert.Zero(t, e.Buffer.MinBindingSize)
	}

	require.NoError(t, r.RenderFrame())
	assert.Equal(t, [3]uint32{0, 1, 1}, backend.dispatches[0].workgroups)
	assert.Zero(t, backend.draws[0].instanceCount)
	assert.Equal(t, uint64(1), r.FrameCounter())
}

func TestResourceLayout(t *testing.T) {
	boids := testBoids(3)
	backend := newFakeBackend()
	newTestRenderer(t, backend, boids)

	require.Len(t, backend.buffers, 3)
	mesh := backend.buffer(meshBufferLabel)
	require.NotNil(t, mesh)
	assert.Equal(t, boid.MeshBytes(), mesh.data)

	for _, label := range []string{agentBufferA, agentBufferB} {
		buf := backend.buffer(label)
		require.NotNil(t, buf, label)
		assert.Equal(t, boid.Encode(boids), buf.data)
		assert.Equal(t, agentBufferUsage, buf.usage)
	}

	require.Len(t, backend.layoutEntries, 2)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, backend.layoutEntries[0].Buffer.Type)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, backend.layoutEntries[1].Buffer.Type)
	for _, e := range backend.layoutEntries {
		assert.Equal(t, uint64(48), e.Buffer.MinBindingSize)
		assert.Equal(t, wgpu.ShaderStageCompute, e.Visibility)
	}
}

func TestPipelinesRegistered(t *testing.T) {
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, testBoids(1))

	compute := r.Pipeline(computePipelineKey)
	require.NotNil(t, compute)
	assert.Equal(t, "compute", compute.Handle())
	assert.Len(t, compute.BindGroupLayouts(), 1)

	render := r.Pipeline(renderPipelineKey)
	require.NotNil(t, render)
	require.Len(t, render.VertexLayouts(), 2)
	assert.Equal(t, wgpu.VertexStepModeInstance, render.VertexLayouts()[0].StepMode)
	assert.Equal(t, uint64(boid.Size), render.VertexLayouts()[0].ArrayStride)
	assert.Equal(t, wgpu.VertexStepModeVertex, render.VertexLayouts()[1].StepMode)
	assert.Equal(t, wgpu.CullModeNone, render.CullMode())
	assert.True(t, render.BlendEnabled())
	assert.Equal(t, wgpu.BlendStateReplace, *render.BlendState())
	assert.Equal(t, wgpu.ColorWriteMaskAll, render.WriteMask())

	assert.Nil(t, r.Pipeline("missing"))
}

func TestResize(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, testBoids(8),
		WithSurfaceSize(640, 480),
		WithLogger(zap.New(core).Sugar()),
	)
	require.NoError(t, r.RenderFrame())
	buffers, bindGroups := len(backend.buffers), len(backend.bindGroups)
	firstGroup := backend.bindGroups[0]
	dataA := append([]byte(nil), backend.buffer(agentBufferA).data...)
	dataB := append([]byte(nil), backend.buffer(agentBufferB).data...)

	r.Resize(0, 600)
	r.Resize(800, -1)
	assert.Equal(t, [][2]int{{640, 480}}, backend.configured)

	r.Resize(800, 600)
	r.Resize(800, 600)
	assert.Equal(t, [][2]int{{640, 480}, {800, 600}, {800, 600}}, backend.configured)
	assert.Equal(t, 2, logs.FilterMessage("Resizing to 800x600").Len())

	assert.Len(t, backend.buffers, buffers)
	assert.Len(t, backend.bindGroups, bindGroups)
	assert.Same(t, firstGroup, backend.bindGroups[0])
	assert.Equal(t, dataA, backend.buffer(agentBufferA).data)
	assert.Equal(t, dataB, backend.buffer(agentBufferB).data)
	assert.Equal(t, uint64(1), r.FrameCounter())

	require.NoError(t, r.RenderFrame())
	assert.Equal(t, agentBufferB, backend.dispatches[1].read)
}

func TestSurfaceFaultDoesNotAdvance(t *testing.T) {
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, testBoids(4))
	backend.resetCalls()

	backend.acquireErr = fmt.Errorf("acquire: %w", ErrSurfaceOutdated)
	err := r.RenderFrame()

	var fault *SurfaceFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, SurfaceFaultOutdated, fault.Kind)
	assert.True(t, fault.Recoverable())
	assert.ErrorIs(t, err, ErrSurfaceOutdated)
	assert.Equal(t, []string{"acquire"}, backend.calls)
	assert.Zero(t, r.FrameCounter())
	assert.Empty(t, backend.dispatches)

	backend.acquireErr = nil
	r.Resize(800, 600)
	require.NoError(t, r.RenderFrame())
	assert.Equal(t, uint64(1), r.FrameCounter())
	assert.Equal(t, agentBufferA, backend.dispatches[0].read)
}

func TestSubmitFailureAbortsFrame(t *testing.T) {
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, testBoids(4))

	backend.endFrameErr = errors.New("device lost during submit")
	err := r.RenderFrame()
	require.Error(t, err)

	var fault *SurfaceFault
	assert.False(t, errors.As(err, &fault))
	assert.Equal(t, 1, backend.aborts)
	assert.Zero(t, backend.presents)
	assert.Zero(t, r.FrameCounter())
	assert.Equal(t, FrameStateIdle, r.FrameState())
}

func TestClassifySurfaceError(t *testing.T) {
	existing := &SurfaceFault{Kind: SurfaceFaultLost, Err: errors.New("x")}
	tests := []struct {
		name string
		err  error
		want SurfaceFaultKind
	}{
		{"lost sentinel", ErrSurfaceLost, SurfaceFaultLost},
		{"wrapped outdated", fmt.Errorf("frame: %w", ErrSurfaceOutdated), SurfaceFaultOutdated},
		{"oom sentinel", ErrSurfaceOutOfMemory, SurfaceFaultOutOfMemory},
		{"wgpu outdated", errors.New("Outdated"), SurfaceFaultOutdated},
		{"wgpu lost", errors.New("Lost"), SurfaceFaultLost},
		{"wgpu oom", errors.New("OutOfMemory"), SurfaceFaultOutOfMemory},
		{"wgpu timeout", errors.New("Timeout"), SurfaceFaultOther},
		{"status outdated", errors.New("wgpu.(*Surface).GetCurrentTexture(): surface status outdated"), SurfaceFaultOutdated},
		{"status lost", errors.New("wgpu.(*Surface).GetCurrentTexture(): surface status lost"), SurfaceFaultLost},
		{"status oom", errors.New("wgpu.(*Surface).GetCurrentTexture(): surface status out-of-memory"), SurfaceFaultOutOfMemory},
		{"status timeout", errors.New("wgpu.(*Surface).GetCurrentTexture(): surface status timeout"), SurfaceFaultOther},
		{"status device lost", errors.New("wgpu.(*Surface).GetCurrentTexture(): surface status device-lost"), SurfaceFaultOther},
		{"device lost", errors.New("device-lost"), SurfaceFaultOther},
		{"device lost camel", errors.New("DeviceLost"), SurfaceFaultOther},
		{"parent device lost", errors.New("wgpu.(*Surface).GetCurrentTexture(): Validation Error: Parent device is lost"), SurfaceFaultOther},
		{"unknown", errors.New("something else"), SurfaceFaultOther},
		{"already classified", fmt.Errorf("wrap: %w", existing), SurfaceFaultLost},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fault := ClassifySurfaceError(tt.err)
			require.NotNil(t, fault)
			assert.Equal(t, tt.want, fault.Kind)
			assert.Equal(t, tt.want == SurfaceFaultLost || tt.want == SurfaceFaultOutdated, fault.Recoverable())
		})
	}

	assert.Nil(t, ClassifySurfaceError(nil))
	assert.Same(t, existing, ClassifySurfaceError(existing))
}

func TestInvalidComputeShaderIsFatal(t *testing.T) {
	tests := map[string]string{
		"workgroup size": strings.Replace(shader.BoidsComputeSource, "@workgroup_size(64)", "@workgroup_size(32)", 1),
		"writable input": strings.Replace(shader.BoidsComputeSource, "var<storage, read> boidsSrc", "var<storage, read_write> boidsSrc", 1),
		"no entry point": "struct Boid { p: vec2<f32> };",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			backend := newFakeBackend()
			_, err := NewRendererWithBackend(backend, testBoids(2), WithComputeShaderSource(src))
			require.Error(t, err)
			for _, b := range backend.buffers {
				assert.Equal(t, 1, b.released, b.label)
			}
			for _, bg := range backend.bindGroups {
				assert.Equal(t, 1, bg.released, bg.label)
			}
		})
	}
}

func TestValidateComputeShaderStage(t *testing.T) {
	vs, err := shader.NewShader("boids render", shader.ShaderTypeVertex, shader.BoidsRenderSource)
	require.NoError(t, err)
	err = validateComputeShader(vs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage vertex, want compute")

	cs, err := shader.NewShader("boids compute", shader.ShaderTypeCompute, shader.BoidsComputeSource)
	require.NoError(t, err)
	assert.NoError(t, validateComputeShader(cs))
}

func TestAllocationFailureIsFatal(t *testing.T) {
	backend := newFakeBackend()
	backend.createErr = errors.New("out of device memory")
	_, err := NewRendererWithBackend(backend, testBoids(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mesh buffer")
}

func TestRendererOptions(t *testing.T) {
	backend := newFakeBackend()
	newTestRenderer(t, backend, testBoids(1))
	assert.Equal(t, DefaultClearColor, backend.clearColor)
	assert.Nil(t, backend.presentMode)
	assert.Empty(t, backend.configured)

	backend = newFakeBackend()
	black := wgpu.Color{R: 0, G: 0, B: 0, A: 1}
	r := newTestRenderer(t, backend, testBoids(1), WithClearColor(black), WithPresentMode(PresentModeUncapped))
	require.NotNil(t, backend.presentMode)
	assert.Equal(t, PresentModeUncapped, *backend.presentMode)

	require.NoError(t, r.RenderFrame())
	assert.Equal(t, black, backend.draws[0].clear)
}

func TestProfilerTickedPerFrame(t *testing.T) {
	reg := prometheus.NewRegistry()
	backend := newFakeBackend()
	r := newTestRenderer(t, backend, testBoids(1), WithProfiler(profiler.NewProfiler(profiler.WithRegisterer(reg))))

	for range 3 {
		require.NoError(t, r.RenderFrame())
	}
	backend.acquireErr = ErrSurfaceLost
	require.Error(t, r.RenderFrame())

	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() == "boids_frames_total" {
			total = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.Equal(t, 3.0, total)
}

func TestRelease(t *testing.T) {
	backend := newFakeBackend()
	r, err := NewRendererWithBackend(backend, testBoids(4))
	require.NoError(t, err)

	r.Release()
	r.Release()

	assert.Equal(t, 1, backend.released)
	for _, b := range backend.buffers {
		assert.Equal(t, 1, b.released, b.label)
	}
	for _, bg := range backend.bindGroups {
		assert.Equal(t, 1, bg.released, bg.label)
	}
	require.Len(t, backend.layouts, 1)
	assert.Equal(t, 1, backend.layouts[0].released)

	assert.ErrorIs(t, r.RenderFrame(), ErrRendererReleased)
	r.Resize(10, 10)
	assert.Empty(t, backend.configured)
}

func TestPreferredSurfaceFormat(t *testing.T) {
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb,
		preferredSurfaceFormat([]wgpu.TextureFormat{wgpu.TextureFormatBGRA8Unorm, wgpu.TextureFormatBGRA8UnormSrgb}))
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm,
		preferredSurfaceFormat([]wgpu.TextureFormat{wgpu.TextureFormatRGBA8Unorm}))
	assert.Equal(t, wgpu.TextureFormatBGRA8UnormSrgb, preferredSurfaceFormat(nil))
}

func TestDoubleBuffer(t *testing.T) {
	a, b := &fakeResource{label: "a"}, &fakeResource{label: "b"}
	d := NewDoubleBuffer(a, b)

	assert.Same(t, a, d.Read(0))
	assert.Same(t, b, d.Write(0))
	assert.Same(t, b, d.Read(1))
	assert.Same(t, a, d.Write(1))
	assert.Same(t, b, d.Read(^uint64(0)))
	assert.Same(t, a, d.Write(^uint64(0)))

	d.Release()
	assert.Equal(t, 1, a.released)
	assert.Equal(t, 1, b.released)
}
