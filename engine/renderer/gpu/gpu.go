// Package gpu holds the backend-neutral handles the renderer passes between its components.
// A backend hands these out and type asserts them back to its own concrete types.
package gpu

// Resource is any GPU object created by a renderer backend.
type Resource interface {
	// Label returns the debug label the resource was created with.
	Label() string

	// Release frees the GPU object. Calling Release more than once is a no-op.
	Release()
}

// Buffer is a GPU buffer.
type Buffer interface {
	Resource

	// Size returns the allocated size in bytes.
	Size() uint64
}
