package shader

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
)

// BoidsComputeSource is the default compute kernel: one invocation per boid, workgroup size 64,
// binding 0 read-only source array and binding 1 read-write destination array.
//
//go:embed assets/boids_compute.wgsl
var BoidsComputeSource string

// BoidsRenderSource holds the vertex and fragment entry points drawing one triangle per boid.
//
//go:embed assets/boids_render.wgsl
var BoidsRenderSource string

// ShaderType identifies whether a shader is a render shader or a compute shader.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// StorageBinding is a storage buffer declaration parsed from WGSL source.
type StorageBinding struct {
	Group     uint32
	Binding   uint32
	Name      string
	ReadWrite bool
}

// shader is the implementation of the Shader interface.
type shader struct {
	key             string
	source          string
	shaderType      ShaderType
	entryPoint      string
	workGroupSize   [3]uint32
	storageBindings []StorageBinding
	module          *wgpu.ShaderModuleDescriptor
}

// Shader is a loaded and parsed WGSL shader stage. It exposes what the pipeline builder needs to
// validate the stage against the binding contract and to create the GPU shader module.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used as the shader module label.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the stage this shader was loaded for.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader's stage.
	//
	// Returns:
	//   - string: the entry point name (e.g. "cs_main")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size dimensions for compute shaders.
	// Returns [0, 0, 0] for non-compute shaders and [1, 1, 1] when @workgroup_size is not specified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// StorageBindings returns every var<storage> declaration in source order.
	//
	// Returns:
	//   - []StorageBinding: the parsed storage bindings
	StorageBindings() []StorageBinding

	// StorageBinding looks up the storage declaration at a group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - StorageBinding: the declaration
	//   - bool: false if no storage buffer is declared there
	StorageBinding(group, binding uint32) (StorageBinding, bool)

	// Module returns the wgpu.ShaderModuleDescriptor for this shader.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// NewShader parses WGSL source for the given stage.
//
// Parameters:
//   - key: a unique identifier for the shader, used for labels and error messages
//   - shaderType: the stage whose entry point is looked up
//   - source: the WGSL source code
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if the source is empty or has no entry point for the stage
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	if source == "" {
		return nil, fmt.Errorf("shader %s: empty source", key)
	}

	s := &shader{
		key:             key,
		source:          source,
		shaderType:      shaderType,
		entryPoint:      parseEntryPoint(source, shaderType),
		storageBindings: parseStorageBindings(source),
		module: &wgpu.ShaderModuleDescriptor{
			Label:          key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
		},
	}
	if s.entryPoint == "" {
		return nil, fmt.Errorf("shader %s: no @%s entry point", key, shaderType)
	}
	if shaderType == ShaderTypeCompute {
		s.workGroupSize = parseWorkgroupSize(source)
	}
	return s, nil
}

// NewShaderFromPath reads WGSL source from disk and parses it with NewShader.
//
// Parameters:
//   - key: a unique identifier for the shader
//   - shaderType: the stage whose entry point is looked up
//   - path: the file path to read WGSL source from
//
// Returns:
//   - Shader: the parsed shader
//   - error: an error if the file cannot be read or parsed
func NewShaderFromPath(key string, shaderType ShaderType, path string) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("shader %s: failed to read %s: %w", key, path, err)
	}
	return NewShader(key, shaderType, string(data))
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) StorageBindings() []StorageBinding {
	return s.storageBindings
}

func (s *shader) StorageBinding(group, binding uint32) (StorageBinding, bool) {
	for _, b := range s.storageBindings {
		if b.Group == group && b.Binding == binding {
			return b, true
		}
	}
	return StorageBinding{}, false
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}
