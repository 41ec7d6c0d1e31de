package common

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCeilDiv(t *testing.T) {
	tests := []struct {
		name string
		n, d uint32
		want uint32
	}{
		{"zero", 0, 64, 0},
		{"one", 1, 64, 1},
		{"just under", 63, 64, 1},
		{"exact", 64, 64, 1},
		{"just over", 65, 64, 2},
		{"many", 4000, 64, 63},
		{"max", math.MaxUint32, 64, 67108864},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CeilDiv(tt.n, tt.d))
		})
	}
}

func TestAppendFloat32sIsLittleEndian(t *testing.T) {
	b := AppendFloat32s(nil, 1.0, -2.5)
	require.Len(t, b, 8)

	// 1.0 = 0x3f800000
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, b[:4])
	assert.Equal(t, float32(1.0), Float32At(b, 0))
	assert.Equal(t, float32(-2.5), Float32At(b, 4))
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, 5, Coalesce(0, 5, 7))
	assert.Equal(t, "", Coalesce("", ""))
	assert.Equal(t, float32(0.5), Coalesce(float32(0), float32(0.5)))
}
