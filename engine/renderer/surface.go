package renderer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrSurfaceLost reports that the surface was lost and must be reconfigured.
	ErrSurfaceLost = errors.New("surface lost")

	// ErrSurfaceOutdated reports that the surface no longer matches the window and must be reconfigured.
	ErrSurfaceOutdated = errors.New("surface outdated")

	// ErrSurfaceOutOfMemory reports that the GPU ran out of memory acquiring a surface texture.
	ErrSurfaceOutOfMemory = errors.New("surface out of memory")

	// ErrRendererReleased is returned by RenderFrame after Release.
	ErrRendererReleased = errors.New("renderer released")
)

// SurfaceFaultKind classifies why a surface texture could not be acquired.
type SurfaceFaultKind int

const (
	// SurfaceFaultLost means the surface must be reconfigured before the next frame.
	SurfaceFaultLost SurfaceFaultKind = iota

	// SurfaceFaultOutdated means the surface size no longer matches; reconfigure and continue.
	SurfaceFaultOutdated

	// SurfaceFaultOutOfMemory is fatal.
	SurfaceFaultOutOfMemory

	// SurfaceFaultOther covers timeouts and anything unrecognised. Fatal.
	SurfaceFaultOther
)

func (k SurfaceFaultKind) String() string {
	switch k {
	case SurfaceFaultLost:
		return "lost"
	case SurfaceFaultOutdated:
		return "outdated"
	case SurfaceFaultOutOfMemory:
		return "out of memory"
	default:
		return "other"
	}
}

// SurfaceFault is returned by RenderFrame when the surface could not provide a texture.
// No GPU work was recorded and the frame counter did not advance.
type SurfaceFault struct {
	Kind SurfaceFaultKind
	Err  error
}

func (f *SurfaceFault) Error() string {
	return fmt.Sprintf("surface fault (%s): %v", f.Kind, f.Err)
}

func (f *SurfaceFault) Unwrap() error {
	return f.Err
}

// Recoverable reports whether reconfiguring the surface is expected to clear the fault.
func (f *SurfaceFault) Recoverable() bool {
	return f.Kind == SurfaceFaultLost || f.Kind == SurfaceFaultOutdated
}

// ClassifySurfaceError turns a surface acquisition error into a SurfaceFault.
// The sentinel errors are checked first; otherwise the backend's message text decides,
// and anything unrecognised is SurfaceFaultOther.
//
// Parameters:
//   - err: the acquisition error
//
// Returns:
//   - *SurfaceFault: the classified fault, nil if err is nil
func ClassifySurfaceError(err error) *SurfaceFault {
	if err == nil {
		return nil
	}

	var fault *SurfaceFault
	if errors.As(err, &fault) {
		return fault
	}

	switch {
	case errors.Is(err, ErrSurfaceLost):
		return &SurfaceFault{Kind: SurfaceFaultLost, Err: err}
	case errors.Is(err, ErrSurfaceOutdated):
		return &SurfaceFault{Kind: SurfaceFaultOutdated, Err: err}
	case errors.Is(err, ErrSurfaceOutOfMemory):
		return &SurfaceFault{Kind: SurfaceFaultOutOfMemory, Err: err}
	}

	// wgpu reports the acquisition status by name, e.g. "surface status outdated" or
	// "surface status out-of-memory". A lost device is never recoverable by reconfiguring.
	msg := strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(err.Error()))
	switch {
	case strings.Contains(msg, "devicelost"), strings.Contains(msg, "deviceislost"):
		return &SurfaceFault{Kind: SurfaceFaultOther, Err: err}
	case strings.Contains(msg, "outofmemory"):
		return &SurfaceFault{Kind: SurfaceFaultOutOfMemory, Err: err}
	case strings.Contains(msg, "outdated"):
		return &SurfaceFault{Kind: SurfaceFaultOutdated, Err: err}
	case strings.Contains(msg, "lost"):
		return &SurfaceFault{Kind: SurfaceFaultLost, Err: err}
	default:
		return &SurfaceFault{Kind: SurfaceFaultOther, Err: err}
	}
}

func (r *renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}

	r.logger.Debugf("Resizing to %dx%d", width, height)
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backend.SetPresentMode(mode)
}

// preferredSurfaceFormat picks the first sRGB format the surface supports, else the first format.
func preferredSurfaceFormat(formats []wgpu.TextureFormat) wgpu.TextureFormat {
	for _, f := range formats {
		switch f {
		case wgpu.TextureFormatBGRA8UnormSrgb, wgpu.TextureFormatRGBA8UnormSrgb:
			return f
		}
	}
	if len(formats) == 0 {
		return wgpu.TextureFormatBGRA8UnormSrgb
	}
	return formats[0]
}
