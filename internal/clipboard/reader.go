// Package clipboard provides platform clipboard access and a generic polling
// monitor. Build constraints select the reader implementation:
//
//	reader_linux.go   — Wayland/X11 via CLI tools, golang.design/x/clipboard fallback
//	reader_windows.go — native Win32 clipboard API with open retries
//	reader_darwin.go  — macOS general pasteboard via darwinkit
//	reader_stub.go    — unsupported platforms
package clipboard

import (
	"errors"

	"clipvault/pkg/types"
)

// ErrUnsupportedPlatform is returned by NewReader on platforms without a
// clipboard backend. Monitoring is disabled but the rest of the application
// keeps working.
var ErrUnsupportedPlatform = errors.New("clipboard access not supported on this platform")

// Content is a raw clipboard payload with its coarse type tag. For text and
// link content Data holds UTF-8 bytes; for images it holds encoded image
// bytes (PNG or BMP depending on the platform source).
type Content struct {
	Data []byte
	Type types.ContentType
}

// Reader is the platform clipboard accessor. Implementations degrade to
// (nil, nil) / an error rather than panicking: the monitor's fault isolation
// depends on this.
type Reader interface {
	// Name returns a human-readable backend name.
	Name() string

	// Read returns the current clipboard content, or (nil, nil) when the
	// clipboard is empty or holds only unsupported formats.
	Read() (*Content, error)

	// Write sets the system clipboard to the given content.
	Write(c *Content) error
}

// NewReader returns the clipboard reader for the current platform.
func NewReader() (Reader, error) {
	return newPlatformReader()
}
