package common

// Key codes handled by the engine.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyR   = 82  // R key (ASCII), reconfigures the surface
	KeyV   = 86  // V key (ASCII), toggles vsync
	KeyEsc = 256 // Escape key (GLFW), handled by the window
)
