// Package assets embeds the default WGSL programs so the canvas runs without any files on disk.
package assets

import _ "embed"

// GalaxyWGSL is the procedural galaxy program drawn in shader mode.
//
//go:embed shaders/galaxy.wgsl
var GalaxyWGSL string

// PassthroughWGSL is the letterboxing passthrough and depth composite program shared by the image,
// video and depth merge modes.
//
//go:embed shaders/passthrough.wgsl
var PassthroughWGSL string
