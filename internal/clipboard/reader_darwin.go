//go:build darwin

package clipboard

import (
	"fmt"
	"runtime"

	"github.com/progrium/darwinkit/macos/appkit"

	"clipvault/pkg/types"
)

const (
	pasteboardTypePNG  = appkit.PasteboardType("public.png")
	pasteboardTypeText = appkit.PasteboardType("public.utf8-plain-text")
)

// darwinReader reads the general pasteboard. NSPasteboard itself is
// thread-safe; the construction thread is locked only so AppKit class
// initialization runs on a stable thread. Read and Write may be called from
// any goroutine.
type darwinReader struct {
	pasteboard appkit.Pasteboard
}

func newPlatformReader() (Reader, error) {
	runtime.LockOSThread()
	return &darwinReader{
		pasteboard: appkit.Pasteboard_GeneralPasteboard(),
	}, nil
}

func (r *darwinReader) Name() string { return "macOS pasteboard" }

func (r *darwinReader) Read() (*Content, error) {
	if data := r.pasteboard.DataForType(pasteboardTypePNG); len(data) > 0 {
		return &Content{Data: data, Type: types.TypeImage}, nil
	}

	if text := r.pasteboard.StringForType(pasteboardTypeText); text != "" {
		return &Content{Data: []byte(text), Type: DetectTextType(text)}, nil
	}

	return nil, nil
}

func (r *darwinReader) Write(c *Content) error {
	if c == nil {
		return fmt.Errorf("nil content")
	}

	r.pasteboard.ClearContents()
	switch c.Type {
	case types.TypeText, types.TypeLink:
		if !r.pasteboard.SetStringForType(string(c.Data), pasteboardTypeText) {
			return fmt.Errorf("pasteboard rejected text content")
		}
	case types.TypeImage:
		if !r.pasteboard.SetDataForType(c.Data, pasteboardTypePNG) {
			return fmt.Errorf("pasteboard rejected image content")
		}
	default:
		return fmt.Errorf("unsupported content type: %s", c.Type)
	}
	return nil
}
