package shader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedComputeShader(t *testing.T) {
	s, err := NewShader("boids compute", ShaderTypeCompute, BoidsComputeSource)
	require.NoError(t, err)

	assert.Equal(t, "cs_main", s.EntryPoint())
	assert.Equal(t, [3]uint32{64, 1, 1}, s.WorkgroupSize())

	read, ok := s.StorageBinding(0, 0)
	require.True(t, ok)
	assert.False(t, read.ReadWrite)
	assert.Equal(t, "boidsSrc", read.Name)

	write, ok := s.StorageBinding(0, 1)
	require.True(t, ok)
	assert.True(t, write.ReadWrite)
	assert.Equal(t, "boidsDst", write.Name)

	_, ok = s.StorageBinding(0, 2)
	assert.False(t, ok)

	require.NotNil(t, s.Module())
	assert.Equal(t, "boids compute", s.Module().Label)
	assert.Equal(t, BoidsComputeSource, s.Module().WGSLDescriptor.Code)
}

func TestEmbeddedRenderShader(t *testing.T) {
	vs, err := NewShader("boids vertex", ShaderTypeVertex, BoidsRenderSource)
	require.NoError(t, err)
	assert.Equal(t, "vs_main", vs.EntryPoint())
	assert.Equal(t, [3]uint32{0, 0, 0}, vs.WorkgroupSize())
	assert.Empty(t, vs.StorageBindings())

	fs, err := NewShader("boids fragment", ShaderTypeFragment, BoidsRenderSource)
	require.NoError(t, err)
	assert.Equal(t, "fs_main", fs.EntryPoint())
}

func TestNewShaderErrors(t *testing.T) {
	_, err := NewShader("empty", ShaderTypeCompute, "")
	assert.Error(t, err)

	_, err = NewShader("no compute", ShaderTypeCompute, BoidsRenderSource)
	assert.ErrorContains(t, err, "@compute")
}

func TestParseWorkgroupSize(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   [3]uint32
	}{
		{"one dim", "@compute @workgroup_size(64) fn main() {}", [3]uint32{64, 1, 1}},
		{"two dims", "@compute @workgroup_size(8, 8) fn main() {}", [3]uint32{8, 8, 1}},
		{"three dims", "@compute @workgroup_size( 4 , 4 , 2 ) fn main() {}", [3]uint32{4, 4, 2}},
		{"missing", "@compute fn main() {}", [3]uint32{1, 1, 1}},
		{"commented out", "// @workgroup_size(32)\n@compute @workgroup_size(16) fn main() {}", [3]uint32{16, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseWorkgroupSize(tt.source))
		})
	}
}

func TestParseStorageBindingsDefaultAccess(t *testing.T) {
	src := `
/* @group(0) @binding(5) var<storage, read_write> hidden: array<f32>; /* nested */ */
@group(1) @binding(3) var<storage> plain: array<u32>;
@group(0) @binding(0) var<uniform> params: Params;
`
	bindings := parseStorageBindings(src)
	require.Len(t, bindings, 1)
	assert.Equal(t, StorageBinding{Group: 1, Binding: 3, Name: "plain", ReadWrite: false}, bindings[0])
}

func TestStripComments(t *testing.T) {
	src := "a // line\nb /* block /* nested */ still */ c\n// tail"
	assert.Equal(t, "a \nb  c\n", stripComments(src))
}

func TestNewShaderFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.wgsl")
	require.NoError(t, os.WriteFile(path, []byte(BoidsComputeSource), 0o600))

	s, err := NewShaderFromPath("file kernel", ShaderTypeCompute, path)
	require.NoError(t, err)
	assert.Equal(t, "cs_main", s.EntryPoint())

	_, err = NewShaderFromPath("missing", ShaderTypeCompute, filepath.Join(t.TempDir(), "nope.wgsl"))
	assert.Error(t, err)
}
