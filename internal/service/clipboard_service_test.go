package service

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/image/bmp"

	"clipvault/internal/clipboard"
	"clipvault/internal/storage"
	"clipvault/internal/storage/imagestore"
	"clipvault/internal/storage/sqlite"
	"clipvault/pkg/types"
)

func setupService(t *testing.T, opts Options) (*ClipboardService, storage.Store) {
	t.Helper()

	dir := t.TempDir()
	store, err := sqlite.New(storage.Config{DBPath: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	images, err := imagestore.New(filepath.Join(dir, "images"))
	if err != nil {
		t.Fatalf("failed to create image store: %v", err)
	}

	svc := New(nil, nil, store, images, opts)
	return svc, store
}

func allCaptures(max int) Options {
	return Options{MaxItems: max, CaptureText: true, CaptureImages: true, CaptureLinks: true}
}

func textEvent(s string) clipboard.Event {
	return clipboard.Event{Content: &clipboard.Content{Data: []byte(s), Type: types.TypeText}}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// opaqueImage returns a fully opaque test picture so its pixels survive any
// encoding that drops the alpha channel.
func opaqueImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for x := 0; x < 3; x++ {
		for y := 0; y < 3; y++ {
			img.Set(x, y, color.RGBA{R: uint8(40 * x), G: uint8(40 * y), B: 200, A: 255})
		}
	}
	return img
}

func encodePNGImage(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func encodeBMPImage(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestService_DuplicateTextStoredOnce(t *testing.T) {
	svc, store := setupService(t, allCaptures(100))

	svc.process(textEvent("hello"))
	svc.process(textEvent("hello"))

	count, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 item after duplicate capture, got %d", count)
	}
}

func TestService_RecopyAfterOtherContentIsStored(t *testing.T) {
	svc, store := setupService(t, allCaptures(100))

	svc.process(textEvent("alpha"))
	svc.process(textEvent("beta"))
	svc.process(textEvent("alpha"))

	count, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("only immediate repeats should be deduplicated, got %d items", count)
	}
}

func TestService_EnforcesMaxItems(t *testing.T) {
	svc, store := setupService(t, allCaptures(2))

	for i, s := range []string{"first", "second", "third"} {
		svc.process(textEvent(s))
		// Distinct timestamps so eviction order is deterministic.
		time.Sleep(time.Duration(i+1) * 2 * time.Millisecond)
	}

	items, err := store.GetAll(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items after limit enforcement, got %d", len(items))
	}
	if items[0].Content != "third" || items[1].Content != "second" {
		t.Errorf("expected newest two items, got %q, %q", items[0].Content, items[1].Content)
	}
}

func TestService_CaptureFilterStillMovesBaseline(t *testing.T) {
	svc, store := setupService(t, Options{
		MaxItems: 100, CaptureText: true, CaptureImages: false, CaptureLinks: true,
	})

	data := pngBytes(t)
	imgEvent := clipboard.Event{Content: &clipboard.Content{Data: data, Type: types.TypeImage}}

	svc.process(imgEvent)

	count, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("image should have been filtered out, got %d items", count)
	}

	// The filtered capture still advanced the dedup baseline, so the same
	// content is dropped even after images are enabled.
	enable := true
	svc.SetCaptureSettings(nil, &enable, nil)
	svc.process(imgEvent)

	count, err = store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("unchanged clipboard content should stay deduplicated, got %d items", count)
	}
}

func TestService_LinkClassificationOverridesReader(t *testing.T) {
	svc, store := setupService(t, allCaptures(100))

	// The reader pre-classifies everything textual as text; the pipeline
	// refines it.
	svc.process(textEvent("https://example.com/page"))

	items, err := store.GetAll(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].ContentType != types.TypeLink {
		t.Errorf("expected link classification, got %s", items[0].ContentType)
	}
}

func TestService_LinksFilteredIndependentlyOfText(t *testing.T) {
	svc, store := setupService(t, Options{
		MaxItems: 100, CaptureText: true, CaptureImages: true, CaptureLinks: false,
	})

	svc.process(textEvent("https://example.com"))
	svc.process(textEvent("plain text"))

	items, err := store.GetAll(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected only the text item, got %d items", len(items))
	}
	if items[0].Content != "plain text" {
		t.Errorf("unexpected surviving item: %q", items[0].Content)
	}
}

func TestService_ImageCaptureWritesBlob(t *testing.T) {
	svc, store := setupService(t, allCaptures(100))

	svc.process(clipboard.Event{Content: &clipboard.Content{Data: pngBytes(t), Type: types.TypeImage}})

	items, err := store.GetAll(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].ContentType != types.TypeImage {
		t.Fatalf("expected image item, got %s", items[0].ContentType)
	}
	if _, err := os.Stat(items[0].ImagePath); err != nil {
		t.Errorf("expected blob file at %s: %v", items[0].ImagePath, err)
	}
}

func TestService_DeleteItemRemovesBlob(t *testing.T) {
	svc, store := setupService(t, allCaptures(100))

	svc.process(clipboard.Event{Content: &clipboard.Content{Data: pngBytes(t), Type: types.TypeImage}})

	items, err := store.GetAll(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	if err := svc.DeleteItem(items[0].ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	if _, err := store.Get(items[0].ID); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound for deleted row, got %v", err)
	}
	if _, err := os.Stat(items[0].ImagePath); !os.IsNotExist(err) {
		t.Error("blob should be removed together with the row")
	}
}

func TestService_DeleteMissingItem(t *testing.T) {
	svc, _ := setupService(t, allCaptures(100))

	err := svc.DeleteItem(9999)
	if err == nil {
		t.Fatal("expected error for missing item")
	}
	var serr *ServiceError
	if !errors.As(err, &serr) {
		t.Fatalf("expected ServiceError, got %T", err)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected wrapped ErrNotFound, got %v", err)
	}
}

func TestService_ClearAllRemovesRowsAndBlobs(t *testing.T) {
	svc, store := setupService(t, allCaptures(100))

	svc.process(textEvent("some text"))
	svc.process(clipboard.Event{Content: &clipboard.Content{Data: pngBytes(t), Type: types.TypeImage}})

	items, err := store.GetAll(0)
	if err != nil {
		t.Fatal(err)
	}
	var blobPath string
	for _, item := range items {
		if item.ContentType == types.TypeImage {
			blobPath = item.ImagePath
		}
	}

	if err := svc.ClearAll(); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}

	count, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("expected empty store, got %d items", count)
	}
	if _, err := os.Stat(blobPath); !os.IsNotExist(err) {
		t.Error("blobs should be removed by ClearAll")
	}
}

func TestService_CleanupOrphans(t *testing.T) {
	svc, store := setupService(t, allCaptures(100))

	svc.process(clipboard.Event{Content: &clipboard.Content{Data: pngBytes(t), Type: types.TypeImage}})

	// Write an unreferenced blob directly, then reconcile.
	orphan := filepath.Join(svc.images.Dir(), "20200101_000000_000000.png")
	if err := os.WriteFile(orphan, pngBytes(t), 0644); err != nil {
		t.Fatal(err)
	}

	deleted, err := svc.CleanupOrphans()
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 orphan removed, got %d", deleted)
	}

	items, err := store.GetAll(0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(items[0].ImagePath); err != nil {
		t.Error("referenced blob should survive cleanup")
	}
}

func TestService_SetMaxItemsValidatesAndEnforces(t *testing.T) {
	svc, store := setupService(t, allCaptures(100))

	if err := svc.SetMaxItems(0); err == nil {
		t.Error("expected error for max items below minimum")
	}
	if err := svc.SetMaxItems(10001); err == nil {
		t.Error("expected error for max items above maximum")
	}

	for i, s := range []string{"one", "two", "three"} {
		svc.process(textEvent(s))
		time.Sleep(time.Duration(i+1) * 2 * time.Millisecond)
	}

	if err := svc.SetMaxItems(1); err != nil {
		t.Fatalf("valid max rejected: %v", err)
	}

	items, err := store.GetAll(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Content != "three" {
		t.Errorf("lowering the limit should evict down to the newest item, got %v", items)
	}
}

func TestService_CopyItemSuppressesRecapture(t *testing.T) {
	svc, store := setupService(t, allCaptures(100))

	reader := &recordingReader{}
	svc.reader = reader

	svc.process(textEvent("older entry"))
	svc.process(textEvent("current"))
	items, err := store.GetAll(0)
	if err != nil {
		t.Fatal(err)
	}

	// Copy the older item back to the clipboard.
	target := items[1]
	if err := svc.CopyItem(target.ID); err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	if reader.written == nil || string(reader.written.Data) != "older entry" {
		t.Errorf("expected clipboard write of %q, got %v", "older entry", reader.written)
	}

	// The monitor will observe the written content on its next poll; the
	// refreshed baseline keeps it from becoming a new history row.
	svc.process(textEvent("older entry"))

	count, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("copied item should not be re-captured, got %d items", count)
	}
}

func TestService_ImageDedupSurvivesContainerChange(t *testing.T) {
	svc, store := setupService(t, allCaptures(100))

	img := opaqueImage()
	svc.process(clipboard.Event{Content: &clipboard.Content{Data: encodePNGImage(t, img), Type: types.TypeImage}})

	// The same picture arriving in a different container (BMP, as the
	// Windows clipboard serves it) is still the same clipboard content.
	svc.process(clipboard.Event{Content: &clipboard.Content{Data: encodeBMPImage(t, img), Type: types.TypeImage}})

	count, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("re-encoded image should be deduplicated, got %d items", count)
	}
}

func TestService_CopyImageSuppressesRecaptureAcrossFormats(t *testing.T) {
	svc, store := setupService(t, allCaptures(100))
	svc.reader = &recordingReader{}

	img := opaqueImage()
	svc.process(clipboard.Event{Content: &clipboard.Content{Data: encodePNGImage(t, img), Type: types.TypeImage}})
	svc.process(textEvent("something else"))

	items, err := store.GetAll(0)
	if err != nil {
		t.Fatal(err)
	}
	var imageID int64
	for _, item := range items {
		if item.ContentType == types.TypeImage {
			imageID = item.ID
		}
	}
	if imageID == 0 {
		t.Fatal("image item not stored")
	}

	if err := svc.CopyItem(imageID); err != nil {
		t.Fatalf("copy failed: %v", err)
	}

	// The next poll may observe the copied image as BMP bytes; the pixel
	// based baseline still recognizes it.
	svc.process(clipboard.Event{Content: &clipboard.Content{Data: encodeBMPImage(t, img), Type: types.TypeImage}})

	count, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("copied image should not be re-captured, got %d items", count)
	}
}

func TestService_StartWithoutMonitorFails(t *testing.T) {
	svc, _ := setupService(t, allCaptures(100))

	err := svc.Start()
	if err == nil {
		t.Fatal("expected error when no monitor is available")
	}
	if svc.IsMonitoring() {
		t.Error("service should not report monitoring after failed start")
	}
}

func TestService_EndToEndWithMonitor(t *testing.T) {
	dir := t.TempDir()
	store, err := sqlite.New(storage.Config{DBPath: filepath.Join(dir, "test.db")})
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	images, err := imagestore.New(filepath.Join(dir, "images"))
	if err != nil {
		t.Fatal(err)
	}

	reader := &recordingReader{queue: []string{"one", "one", "two"}}
	monitor := clipboard.NewMonitor(reader, 5*time.Millisecond)
	svc := New(monitor, reader, store, images, allCaptures(100))

	if err := svc.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if !svc.IsMonitoring() {
		t.Error("expected monitoring to be active")
	}

	deadline := time.After(2 * time.Second)
	for {
		count, err := store.Count()
		if err != nil {
			t.Fatal(err)
		}
		if count >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for captures, have %d", count)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := svc.Stop(); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}
	if svc.IsMonitoring() {
		t.Error("expected monitoring to be stopped")
	}
}

// recordingReader serves a scripted sequence of text values (repeating the
// last one) and records the most recent Write.
type recordingReader struct {
	queue   []string
	idx     int
	written *clipboard.Content
}

func (r *recordingReader) Name() string { return "recording" }

func (r *recordingReader) Read() (*clipboard.Content, error) {
	if len(r.queue) == 0 {
		return nil, nil
	}
	i := r.idx
	if i >= len(r.queue) {
		i = len(r.queue) - 1
	} else {
		r.idx++
	}
	return &clipboard.Content{Data: []byte(r.queue[i]), Type: types.TypeText}, nil
}

func (r *recordingReader) Write(c *clipboard.Content) error {
	r.written = c
	return nil
}
