// Package imagestore persists clipboard image blobs as PNG files in a
// dedicated directory. Rows in the item store reference blobs by path only;
// CleanupOrphans reconciles the directory against the store.
package imagestore

import (
	"bytes"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"image/png"

	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
)

// ImageStore manages the images directory.
type ImageStore struct {
	dir string
}

// New creates the images directory if needed.
func New(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &ImageStore{dir: dir}, nil
}

// Dir returns the storage directory.
func (s *ImageStore) Dir() string { return s.dir }

// Save decodes data (PNG, JPEG or BMP — the latter arriving from the Windows
// clipboard), re-encodes it as PNG and writes it to a timestamp-named file.
// Returns the path of the written file.
func (s *ImageStore) Save(data []byte, itemID int64) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	path := filepath.Join(s.dir, blobFilename(time.Now(), itemID))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return path, nil
}

func blobFilename(t time.Time, itemID int64) string {
	stamp := fmt.Sprintf("%s_%06d", t.Format("20060102_150405"), t.Nanosecond()/1000)
	if itemID > 0 {
		return fmt.Sprintf("%s_%d.png", stamp, itemID)
	}
	return stamp + ".png"
}

// Load reads the raw bytes of a stored blob.
func (s *ImageStore) Load(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", path, err)
	}
	return data, nil
}

// Delete removes a blob file. Missing files are not an error.
func (s *ImageStore) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete image %s: %w", path, err)
	}
	return nil
}

// CleanupOrphans removes image files not present in validPaths and returns
// the number deleted. This is the only reconciliation mechanism between the
// item store and the blob directory.
func (s *ImageStore) CleanupOrphans(validPaths []string) int {
	valid := make(map[string]struct{}, len(validPaths))
	for _, p := range validPaths {
		valid[p] = struct{}{}
	}

	deleted := 0
	for _, path := range s.imageFiles() {
		if _, ok := valid[path]; ok {
			continue
		}
		if err := os.Remove(path); err != nil {
			slog.Warn("failed to remove orphaned image", "path", path, "err", err)
			continue
		}
		deleted++
	}
	return deleted
}

// TotalSize returns the combined size of all stored blobs in bytes.
func (s *ImageStore) TotalSize() int64 {
	var total int64
	for _, path := range s.imageFiles() {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	return total
}

// ClearAll deletes every blob in the directory.
func (s *ImageStore) ClearAll() error {
	var firstErr error
	for _, path := range s.imageFiles() {
		if err := os.Remove(path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *ImageStore) imageFiles() []string {
	var files []string
	for _, pattern := range []string{"*.png", "*.jpg", "*.jpeg"} {
		matches, err := filepath.Glob(filepath.Join(s.dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	return files
}
