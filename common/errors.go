package common

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAdapterAvailable is the InitError reason reported when no compatible GPU adapter exists.
	ErrNoAdapterAvailable = errors.New("no compatible GPU adapter available")

	// ErrDeviceRequestDenied is the InitError reason reported when the adapter refuses a logical device.
	ErrDeviceRequestDenied = errors.New("GPU device request denied")

	// ErrNotReady marks a transient condition: media with no displayable frame yet, or a depth model
	// that has not finished initializing. The affected draw path is skipped for the current tick.
	ErrNotReady = errors.New("not ready")
)

// InitError is the fatal error returned when the GPU context cannot be bootstrapped.
// A renderer that produced an InitError is unusable and is never retried.
type InitError struct {
	// Reason is one of ErrNoAdapterAvailable or ErrDeviceRequestDenied.
	Reason error
	// Err is the underlying backend error, if any.
	Err error
}

func (e *InitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gpu init: %v: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("gpu init: %v", e.Reason)
}

// Unwrap exposes both the reason sentinel and the backend error to errors.Is / errors.As.
func (e *InitError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Reason, e.Err}
	}
	return []error{e.Reason}
}

// AssetLoadError reports an image or shader that could not be read or decoded.
// Only the mode depending on the asset degrades.
type AssetLoadError struct {
	Asset string
	Err   error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("asset %q: %v", e.Asset, e.Err)
}

func (e *AssetLoadError) Unwrap() error {
	return e.Err
}

// ShaderCompileError reports WGSL source that failed validation or pipeline linking.
// It is always fatal to pipeline construction.
type ShaderCompileError struct {
	Shader string
	Err    error
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("shader %q: %v", e.Shader, e.Err)
}

func (e *ShaderCompileError) Unwrap() error {
	return e.Err
}

// SubmissionError wraps a backend failure while finishing or submitting a frame's command buffer.
// The frame is dropped and rendering continues.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("frame submission: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
