package bind_group_provider

import (
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/gpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// bindGroup is the GPU bind group created for this provider, or nil until the renderer builds it.
	// It is the only resource the provider owns.
	bindGroup gpu.Resource

	// bindGroupLayout is the layout the bind group was created against. Borrowed; several providers share one layout.
	bindGroupLayout gpu.Resource

	// buffers holds the buffers bound at each binding index. Borrowed from the renderer's allocator.
	buffers map[int]gpu.Buffer
}

// BindGroupProvider ties one GPU bind group to the buffers bound inside it.
//
// The ping-pong cycle uses two providers built once at startup: pair 0 binds buffer A at
// binding 0 and buffer B at binding 1, pair 1 binds them the other way round. The renderer reads
// Buffer(0) of the active pair to know which physical buffer the compute pass reads this frame.
type BindGroupProvider interface {
	// Release releases the bind group. Buffers and the layout are borrowed and left to their owner.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created bind group for shader binding.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - gpu.Resource: the bind group or nil
	BindGroup() gpu.Resource

	// BindGroupLayout returns the layout the bind group was created against.
	//
	// Returns:
	//   - gpu.Resource: the bind group layout or nil
	BindGroupLayout() gpu.Resource

	// Buffer returns the buffer bound at the given binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - gpu.Buffer: the buffer or nil
	Buffer(binding int) gpu.Buffer

	// Buffers returns all bound buffers keyed by binding index.
	//
	// Returns:
	//   - map[int]gpu.Buffer: a map of buffers keyed by binding index
	Buffers() map[int]gpu.Buffer

	// SetBindGroup stores the bind group after the backend has created it.
	//
	// Parameters:
	//   - bg: the created bind group
	SetBindGroup(bg gpu.Resource)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: the debug label, also used to label the bind group the backend creates
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:   label,
		buffers: make(map[int]gpu.Buffer),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() gpu.Resource {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() gpu.Resource {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) gpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) Buffers() map[int]gpu.Buffer {
	return p.buffers
}

func (p *bindGroupProvider) SetBindGroup(bg gpu.Resource) {
	p.bindGroup = bg
}

func (p *bindGroupProvider) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
}
