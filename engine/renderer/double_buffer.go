package renderer

import (
	"github.com/Carmen-Shannon/oxy-boids/engine/renderer/gpu"
)

// DoubleBuffer holds two GPU resources that alternate by frame parity.
// On frame f, Read returns slot f%2 and Write returns the other slot, so the sequence of
// (read, write) pairs is (0,1), (1,0), (0,1), ...
type DoubleBuffer[T gpu.Resource] struct {
	slots [2]T
}

// NewDoubleBuffer creates a DoubleBuffer with a in slot 0 and b in slot 1.
//
// Parameters:
//   - a: the slot 0 resource
//   - b: the slot 1 resource
//
// Returns:
//   - *DoubleBuffer[T]: the double buffer
func NewDoubleBuffer[T gpu.Resource](a, b T) *DoubleBuffer[T] {
	return &DoubleBuffer[T]{slots: [2]T{a, b}}
}

// Read returns the resource read on the given frame.
func (d *DoubleBuffer[T]) Read(frame uint64) T {
	return d.slots[frame%2]
}

// Write returns the resource written on the given frame.
func (d *DoubleBuffer[T]) Write(frame uint64) T {
	return d.slots[1-frame%2]
}

// Release releases both slots.
func (d *DoubleBuffer[T]) Release() {
	for _, s := range d.slots {
		s.Release()
	}
}
