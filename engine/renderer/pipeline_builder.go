package renderer

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-boids/engine/boid"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

const (
	computePipelineKey = "boids compute"
	renderPipelineKey  = "boids render"

	computeLayoutLabel = "boids compute bind group layout"
)

// validateComputeShader checks a compute shader against the binding contract:
// workgroup size (64, 1, 1), binding 0 read-only storage, binding 1 read-write storage.
func validateComputeShader(s shader.Shader) error {
	if s.ShaderType() != shader.ShaderTypeCompute {
		return fmt.Errorf("shader %s: stage %s, want %s", s.Key(), s.ShaderType(), shader.ShaderTypeCompute)
	}
	if ws := s.WorkgroupSize(); ws != [3]uint32{WorkgroupSize, 1, 1} {
		return fmt.Errorf("compute shader %s: workgroup size %v, want [%d 1 1]", s.Key(), ws, WorkgroupSize)
	}

	read, ok := s.StorageBinding(0, 0)
	if !ok || read.ReadWrite {
		return fmt.Errorf("compute shader %s: @group(0) @binding(0) must be var<storage, read>", s.Key())
	}
	write, ok := s.StorageBinding(0, 1)
	if !ok || !write.ReadWrite {
		return fmt.Errorf("compute shader %s: @group(0) @binding(1) must be var<storage, read_write>", s.Key())
	}
	return nil
}

// computeLayoutEntries describes group 0 of the compute pass. A zero minBindingSize means no minimum.
func computeLayoutEntries(minBindingSize uint64) []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeReadOnlyStorage,
				MinBindingSize: minBindingSize,
			},
		},
		{
			Binding:    1,
			Visibility: wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type:           wgpu.BufferBindingTypeStorage,
				MinBindingSize: minBindingSize,
			},
		},
	}
}

// buildPairs creates the compute bind group layout and the two bind group pairs. Pair p binds the
// agent buffers read and written on frames of parity p: pair 0 reads A and writes B, pair 1 reads B
// and writes A.
func buildPairs(backend RendererBackend, res *resources) (gpu.Resource, *DoubleBuffer[bind_group_provider.BindGroupProvider], error) {
	layout, err := backend.CreateBindGroupLayout(computeLayoutLabel, computeLayoutEntries(res.agentBytes))
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create compute bind group layout")
	}

	var pairs [2]bind_group_provider.BindGroupProvider
	for p := range pairs {
		parity := uint64(p)
		pairs[p] = bind_group_provider.NewBindGroupProvider(
			fmt.Sprintf("boids bind group %d", p),
			bind_group_provider.WithBindGroupLayout(layout),
			bind_group_provider.WithBuffer(0, res.agents.Read(parity)),
			bind_group_provider.WithBuffer(1, res.agents.Write(parity)),
		)
		if err := backend.CreateBindGroup(pairs[p]); err != nil {
			for _, built := range pairs[:p] {
				built.Release()
			}
			layout.Release()
			return nil, nil, errors.Wrapf(err, "failed to create bind group pair %d", p)
		}
	}
	return layout, NewDoubleBuffer(pairs[0], pairs[1]), nil
}

// describePipelines parses and validates the shaders and returns the compute and render
// pipeline descriptions, not yet registered with a backend.
func describePipelines(computeSource string, layout gpu.Resource) (pipeline.Pipeline, pipeline.Pipeline, error) {
	cs, err := shader.NewShader(computePipelineKey, shader.ShaderTypeCompute, computeSource)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load compute shader")
	}
	if err := validateComputeShader(cs); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	vs, err := shader.NewShader(renderPipelineKey+" vertex", shader.ShaderTypeVertex, shader.BoidsRenderSource)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load vertex shader")
	}
	fs, err := shader.NewShader(renderPipelineKey+" fragment", shader.ShaderTypeFragment, shader.BoidsRenderSource)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load fragment shader")
	}

	compute := pipeline.NewPipeline(computePipelineKey, pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(cs),
		pipeline.WithBindGroupLayouts(layout),
	)
	render := pipeline.NewPipeline(renderPipelineKey, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(vs),
		pipeline.WithFragmentShader(fs),
		pipeline.WithVertexLayouts(boid.InstanceLayout(), boid.MeshLayout()),
		pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleList),
		pipeline.WithFrontFace(wgpu.FrontFaceCCW),
		pipeline.WithCullMode(wgpu.CullModeNone),
		pipeline.WithBlendEnabled(true),
		pipeline.WithBlendState(&wgpu.BlendStateReplace),
		pipeline.WithWriteMask(wgpu.ColorWriteMaskAll),
	)
	return compute, render, nil
}

// registerPipelines creates the GPU pipeline objects and caches them by key.
// Keys that are already cached are skipped.
func (r *renderer) registerPipelines(pipelines ...pipeline.Pipeline) error {
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		switch p.Type() {
		case pipeline.PipelineTypeCompute:
			if err := r.backend.RegisterComputePipeline(p); err != nil {
				return errors.Wrapf(err, "failed to register %s", key)
			}
		case pipeline.PipelineTypeRender:
			if err := r.backend.RegisterRenderPipeline(p); err != nil {
				return errors.Wrapf(err, "failed to register %s", key)
			}
		}
		r.pipelineCache[key] = p
	}
	return nil
}
