//go:build linux

package clipboard

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	goclip "golang.design/x/clipboard"

	"clipvault/pkg/types"
)

// displayProtocol is the Linux display server family, detected once at
// construction from environment markers.
type displayProtocol string

const (
	protocolWayland displayProtocol = "wayland"
	protocolX11     displayProtocol = "x11"
	protocolUnknown displayProtocol = "unknown"
)

const (
	textReadTimeout  = 1 * time.Second
	imageReadTimeout = 2 * time.Second
)

// linuxReader shells out to the first available clipboard tool for the
// detected protocol. Tool availability is probed once at construction, not
// on every poll. When no tool matches, golang.design/x/clipboard serves as a
// generic fallback (text and PNG images).
type linuxReader struct {
	protocol displayProtocol

	hasWlPaste bool
	hasWlCopy  bool
	hasXclip   bool
	hasXsel    bool

	fallbackOK bool
}

func newPlatformReader() (Reader, error) {
	r := &linuxReader{protocol: detectDisplayProtocol()}

	r.hasWlPaste = commandExists("wl-paste")
	r.hasWlCopy = commandExists("wl-copy")
	r.hasXclip = commandExists("xclip")
	r.hasXsel = commandExists("xsel")

	if !r.hasAnyTool() {
		if err := goclip.Init(); err != nil {
			slog.Warn("no clipboard tool found and fallback unavailable", "err", err)
		} else {
			r.fallbackOK = true
		}
	}

	slog.Debug("linux clipboard reader initialized",
		"protocol", r.protocol,
		"wl-paste", r.hasWlPaste, "wl-copy", r.hasWlCopy,
		"xclip", r.hasXclip, "xsel", r.hasXsel,
		"fallback", r.fallbackOK)

	return r, nil
}

func detectDisplayProtocol() displayProtocol {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		return protocolWayland
	}
	if os.Getenv("DISPLAY") != "" {
		return protocolX11
	}
	return protocolUnknown
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (r *linuxReader) hasAnyTool() bool {
	return r.hasWlPaste || r.hasWlCopy || r.hasXclip || r.hasXsel
}

func (r *linuxReader) Name() string {
	return fmt.Sprintf("Linux clipboard (%s)", r.protocol)
}

// Read prefers image content over text, matching the capture pipeline's
// classification order.
func (r *linuxReader) Read() (*Content, error) {
	if img := r.readImage(); len(img) > 0 {
		return &Content{Data: img, Type: types.TypeImage}, nil
	}

	text := r.readText()
	if text == "" {
		return nil, nil
	}
	return &Content{Data: []byte(text), Type: DetectTextType(text)}, nil
}

func (r *linuxReader) Write(c *Content) error {
	if c == nil {
		return fmt.Errorf("nil content")
	}
	switch c.Type {
	case types.TypeText, types.TypeLink:
		return r.writeText(c.Data)
	case types.TypeImage:
		return r.writeImage(c.Data)
	}
	return fmt.Errorf("unsupported content type: %s", c.Type)
}

func (r *linuxReader) readText() string {
	switch {
	case r.protocol == protocolWayland && r.hasWlPaste:
		return runOutput(textReadTimeout, "wl-paste", "-n")
	case r.protocol == protocolX11 && r.hasXclip:
		return runOutput(textReadTimeout, "xclip", "-selection", "clipboard", "-o")
	case r.protocol == protocolX11 && r.hasXsel:
		return runOutput(textReadTimeout, "xsel", "--clipboard", "--output")
	case r.fallbackOK:
		return string(goclip.Read(goclip.FmtText))
	}
	return ""
}

func (r *linuxReader) readImage() []byte {
	switch {
	case r.protocol == protocolWayland && r.hasWlPaste:
		return runOutputRaw(imageReadTimeout, "wl-paste", "-t", "image/png")
	case r.protocol == protocolX11 && r.hasXclip:
		return runOutputRaw(imageReadTimeout, "xclip", "-selection", "clipboard", "-t", "image/png", "-o")
	case r.fallbackOK:
		return goclip.Read(goclip.FmtImage)
	}
	return nil
}

func (r *linuxReader) writeText(data []byte) error {
	switch {
	case r.protocol == protocolWayland && r.hasWlCopy:
		return runInput(textReadTimeout, data, "wl-copy")
	case r.protocol == protocolX11 && r.hasXclip:
		return runInput(textReadTimeout, data, "xclip", "-selection", "clipboard")
	case r.protocol == protocolX11 && r.hasXsel:
		return runInput(textReadTimeout, data, "xsel", "--clipboard", "--input")
	case r.fallbackOK:
		goclip.Write(goclip.FmtText, data)
		return nil
	}
	return fmt.Errorf("no clipboard write method available")
}

func (r *linuxReader) writeImage(data []byte) error {
	switch {
	case r.protocol == protocolWayland && r.hasWlCopy:
		return runInput(imageReadTimeout, data, "wl-copy", "-t", "image/png")
	case r.protocol == protocolX11 && r.hasXclip:
		return runInput(imageReadTimeout, data, "xclip", "-selection", "clipboard", "-t", "image/png")
	case r.fallbackOK:
		goclip.Write(goclip.FmtImage, data)
		return nil
	}
	return fmt.Errorf("no clipboard write method available")
}

// runOutput runs a tool and returns its stdout as a string, empty on any
// failure. The timeout keeps a hung tool from stalling the poll loop.
func runOutput(timeout time.Duration, name string, args ...string) string {
	return string(runOutputRaw(timeout, name, args...))
}

func runOutputRaw(timeout time.Duration, name string, args ...string) []byte {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		slog.Debug("clipboard tool failed", "tool", name, "err", err)
		return nil
	}
	return out
}

func runInput(timeout time.Duration, input []byte, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(input)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
