package imagestore

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 60), G: uint8(y * 60), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestImageStore_SaveAndLoad(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	path, err := store.Save(encodePNG(t), 0)
	if err != nil {
		t.Fatalf("failed to save image: %v", err)
	}
	if !strings.HasSuffix(path, ".png") {
		t.Errorf("expected .png filename, got %s", path)
	}

	data, err := store.Load(path)
	if err != nil {
		t.Fatalf("failed to load image: %v", err)
	}

	// The round trip re-encodes, so verify it decodes to the same bounds.
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("stored blob is not valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 4 {
		t.Errorf("unexpected bounds: %v", img.Bounds())
	}
}

func TestImageStore_SaveWithItemID(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatal(err)
	}

	path, err := store.Save(encodePNG(t), 42)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, "_42.png") {
		t.Errorf("expected item id in filename, got %s", path)
	}
}

func TestImageStore_SaveRejectsGarbage(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Save([]byte("not an image"), 0); err == nil {
		t.Error("expected error for undecodable data")
	}
}

func TestImageStore_Delete(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatal(err)
	}

	path, err := store.Save(encodePNG(t), 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(path); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be gone after delete")
	}

	// Deleting again is not an error.
	if err := store.Delete(path); err != nil {
		t.Errorf("double delete should be a no-op: %v", err)
	}
}

func TestImageStore_CleanupOrphans(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatal(err)
	}

	kept, err := store.Save(encodePNG(t), 1)
	if err != nil {
		t.Fatal(err)
	}
	orphan, err := store.Save(encodePNG(t), 2)
	if err != nil {
		t.Fatal(err)
	}

	deleted := store.CleanupOrphans([]string{kept})
	if deleted != 1 {
		t.Fatalf("expected 1 orphan deleted, got %d", deleted)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Error("referenced blob should survive cleanup")
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Error("orphaned blob should be removed")
	}
}

func TestImageStore_TotalSizeAndClearAll(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "images"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Save(encodePNG(t), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(encodePNG(t), 0); err != nil {
		t.Fatal(err)
	}

	if store.TotalSize() == 0 {
		t.Error("expected non-zero total size")
	}

	if err := store.ClearAll(); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	if store.TotalSize() != 0 {
		t.Error("expected empty store after ClearAll")
	}
}
