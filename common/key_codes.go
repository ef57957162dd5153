package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyD   = 68  // D key (ASCII), toggles depth estimation
	KeyR   = 82  // R key (ASCII), resets zoom and pan
	KeyEsc = 256 // Escape key (GLFW)

	Key1 = 49 // 1 key (ASCII), shader mode
	Key2 = 50 // 2 key (ASCII), image mode
	Key3 = 51 // 3 key (ASCII), video mode
	Key4 = 52 // 4 key (ASCII), depth merge mode
)

// Arrow keys (GLFW), used for panning.
const (
	KeyRight = 262
	KeyLeft  = 263
	KeyDown  = 264
	KeyUp    = 265
)
