//go:build windows

package clipboard

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/png"
	"runtime"
	"time"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/image/bmp"
	"golang.org/x/sys/windows"

	"clipvault/pkg/types"
)

// Win32 clipboard formats.
const (
	cfText        = 1
	cfDIB         = 8
	cfUnicodeText = 13
)

const (
	gmemMoveable = 0x0002

	// bmpFileHeaderSize is the BITMAPFILEHEADER the clipboard DIB payload
	// omits; bmpPixelOffset assumes the common 40-byte BITMAPINFOHEADER.
	bmpFileHeaderSize = 14
	bmpPixelOffset    = 54

	openMaxRetries = 3
	openRetryDelay = 100 * time.Millisecond
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procOpenClipboard              = user32.NewProc("OpenClipboard")
	procCloseClipboard             = user32.NewProc("CloseClipboard")
	procEmptyClipboard             = user32.NewProc("EmptyClipboard")
	procGetClipboardData           = user32.NewProc("GetClipboardData")
	procSetClipboardData           = user32.NewProc("SetClipboardData")
	procIsClipboardFormatAvailable = user32.NewProc("IsClipboardFormatAvailable")

	procGlobalAlloc  = kernel32.NewProc("GlobalAlloc")
	procGlobalFree   = kernel32.NewProc("GlobalFree")
	procGlobalLock   = kernel32.NewProc("GlobalLock")
	procGlobalUnlock = kernel32.NewProc("GlobalUnlock")
	procGlobalSize   = kernel32.NewProc("GlobalSize")
)

// windowsReader uses the native clipboard API directly. Opening the
// clipboard is retried with a short backoff to tolerate transient lock
// contention from other applications.
type windowsReader struct{}

func newPlatformReader() (Reader, error) {
	return &windowsReader{}, nil
}

func (r *windowsReader) Name() string { return "Windows clipboard" }

// Read prefers the DIB image format, then Unicode text, then legacy text.
// OpenClipboard binds the open state to the calling OS thread, so the whole
// open/read/close sequence must not migrate threads.
func (r *windowsReader) Read() (*Content, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := openClipboardRetry(); err != nil {
		return nil, err
	}
	defer procCloseClipboard.Call()

	if formatAvailable(cfDIB) {
		if data := readDIB(); len(data) > 0 {
			return &Content{Data: data, Type: types.TypeImage}, nil
		}
	}

	if formatAvailable(cfUnicodeText) {
		if text := readUnicodeText(); text != "" {
			return &Content{Data: []byte(text), Type: DetectTextType(text)}, nil
		}
	}

	if formatAvailable(cfText) {
		if text := readLegacyText(); text != "" {
			return &Content{Data: []byte(text), Type: DetectTextType(text)}, nil
		}
	}

	return nil, nil
}

func (r *windowsReader) Write(c *Content) error {
	if c == nil {
		return fmt.Errorf("nil content")
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := openClipboardRetry(); err != nil {
		return err
	}
	defer procCloseClipboard.Call()

	if ret, _, _ := procEmptyClipboard.Call(); ret == 0 {
		return fmt.Errorf("EmptyClipboard failed")
	}

	switch c.Type {
	case types.TypeText, types.TypeLink:
		return writeUnicodeText(string(c.Data))
	case types.TypeImage:
		return writeImage(c.Data)
	}
	return fmt.Errorf("unsupported content type: %s", c.Type)
}

func openClipboardRetry() error {
	for attempt := 0; attempt < openMaxRetries; attempt++ {
		if ret, _, _ := procOpenClipboard.Call(0); ret != 0 {
			return nil
		}
		if attempt < openMaxRetries-1 {
			time.Sleep(openRetryDelay)
		}
	}
	return fmt.Errorf("could not open clipboard after %d attempts", openMaxRetries)
}

func formatAvailable(format uintptr) bool {
	ret, _, _ := procIsClipboardFormatAvailable.Call(format)
	return ret != 0
}

// globalData copies the bytes of a global memory handle holding the given
// clipboard format. The clipboard must be open.
func globalData(format uintptr) []byte {
	h, _, _ := procGetClipboardData.Call(format)
	if h == 0 {
		return nil
	}

	size, _, _ := procGlobalSize.Call(h)
	if size == 0 {
		return nil
	}

	ptr, _, _ := procGlobalLock.Call(h)
	if ptr == 0 {
		return nil
	}
	defer procGlobalUnlock.Call(h)

	return bytes.Clone(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size))
}

func readDIB() []byte {
	return bmpFromDIB(globalData(cfDIB))
}

// bmpFromDIB reconstructs a standalone BMP container from a clipboard
// device-independent-bitmap payload, which omits the file header.
func bmpFromDIB(dib []byte) []byte {
	if len(dib) == 0 {
		return nil
	}

	header := make([]byte, bmpFileHeaderSize)
	header[0] = 'B'
	header[1] = 'M'
	binary.LittleEndian.PutUint32(header[2:6], uint32(bmpFileHeaderSize+len(dib)))
	binary.LittleEndian.PutUint32(header[10:14], bmpPixelOffset)

	return append(header, dib...)
}

func readUnicodeText() string {
	return decodeUTF16LE(globalData(cfUnicodeText))
}

// decodeUTF16LE converts NUL-terminated little-endian UTF-16 bytes to a
// string, stopping at the first NUL.
func decodeUTF16LE(data []byte) string {
	if len(data) < 2 {
		return ""
	}

	u16 := make([]uint16, 0, len(data)/2)
	for i := 0; i+1 < len(data); i += 2 {
		v := binary.LittleEndian.Uint16(data[i : i+2])
		if v == 0 {
			break
		}
		u16 = append(u16, v)
	}
	return string(utf16.Decode(u16))
}

func readLegacyText() string {
	data := globalData(cfText)
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}

func writeUnicodeText(text string) error {
	return setClipboardData(cfUnicodeText, encodeUTF16LE(text))
}

// encodeUTF16LE converts a string to NUL-terminated little-endian UTF-16
// bytes, the CF_UNICODETEXT wire form.
func encodeUTF16LE(text string) []byte {
	u16 := utf16.Encode([]rune(text))
	u16 = append(u16, 0)

	buf := make([]byte, len(u16)*2)
	for i, v := range u16 {
		binary.LittleEndian.PutUint16(buf[i*2:], v)
	}
	return buf
}

// writeImage converts encoded image bytes (PNG from the blob store) to a DIB
// by encoding a BMP and stripping its file header.
func writeImage(data []byte) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding image for clipboard: %w", err)
	}

	var out bytes.Buffer
	if err := bmp.Encode(&out, img); err != nil {
		return fmt.Errorf("encoding bitmap: %w", err)
	}

	bmpData := out.Bytes()
	if len(bmpData) <= bmpFileHeaderSize {
		return fmt.Errorf("bitmap payload too small")
	}
	return setClipboardData(cfDIB, bmpData[bmpFileHeaderSize:])
}

func setClipboardData(format uintptr, data []byte) error {
	h, _, _ := procGlobalAlloc.Call(gmemMoveable, uintptr(len(data)))
	if h == 0 {
		return fmt.Errorf("GlobalAlloc failed")
	}

	ptr, _, _ := procGlobalLock.Call(h)
	if ptr == 0 {
		procGlobalFree.Call(h)
		return fmt.Errorf("GlobalLock failed")
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), len(data)), data)
	procGlobalUnlock.Call(h)

	if ret, _, _ := procSetClipboardData.Call(format, h); ret == 0 {
		procGlobalFree.Call(h)
		return fmt.Errorf("SetClipboardData failed")
	}
	// Ownership of the handle passed to the system.
	return nil
}
