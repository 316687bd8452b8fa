package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"log/slog"
	"sync"

	_ "image/png"

	_ "golang.org/x/image/bmp"

	"clipvault/internal/clipboard"
	"clipvault/internal/storage"
	"clipvault/internal/storage/imagestore"
	"clipvault/pkg/types"
)

const (
	MinItems = 1
	MaxItems = 10000
)

// ServiceError tags a failure with the operation that produced it.
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Options are the capture settings the service starts with.
type Options struct {
	MaxItems      int
	CaptureText   bool
	CaptureImages bool
	CaptureLinks  bool
}

// ClipboardService bridges the polling monitor to persistent storage with
// deduplication, capture filtering and retention enforcement. All content
// processing happens on a single consumer goroutine fed by the monitor's
// event channel, so the pipeline is serialized by construction.
type ClipboardService struct {
	monitor *clipboard.PollingMonitor
	reader  clipboard.Reader
	store   storage.Store
	images  *imagestore.ImageStore

	mu   sync.RWMutex
	opts Options

	handlerMu sync.RWMutex
	handlers  []ChangeHandler

	// lastHash is the single-slot dedup baseline. Only immediate repeats
	// are filtered; a re-copy after other content is history-worthy.
	hashMu   sync.Mutex
	lastHash string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a clipboard service. monitor and reader may be nil on
// unsupported platforms; Start then fails but the query surface keeps
// working.
func New(monitor *clipboard.PollingMonitor, reader clipboard.Reader, store storage.Store, images *imagestore.ImageStore, opts Options) *ClipboardService {
	if opts.MaxItems < MinItems || opts.MaxItems > MaxItems {
		opts.MaxItems = 1000
	}
	return &ClipboardService{
		monitor: monitor,
		reader:  reader,
		store:   store,
		images:  images,
		opts:    opts,
	}
}

// RegisterHandler adds a handler notified after each persisted item.
func (s *ClipboardService) RegisterHandler(h ChangeHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Start begins monitoring and storing clipboard changes.
func (s *ClipboardService) Start() error {
	if s.monitor == nil {
		return &ServiceError{
			Op:      "Start",
			Message: "no clipboard monitor available for this platform",
			Err:     clipboard.ErrUnsupportedPlatform,
		}
	}

	if err := s.monitor.Start(); err != nil {
		return &ServiceError{
			Op:      "Start",
			Message: "failed to start clipboard monitor",
			Err:     err,
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-s.monitor.Events():
				s.process(ev)
			}
		}
	}()

	return nil
}

// Stop shuts down the monitor and waits for in-flight processing.
func (s *ClipboardService) Stop() error {
	if s.monitor == nil {
		return nil
	}

	if err := s.monitor.Stop(); err != nil {
		return &ServiceError{
			Op:      "Stop",
			Message: "failed to stop clipboard monitor",
			Err:     err,
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

// IsMonitoring reports whether the capture pipeline is active.
func (s *ClipboardService) IsMonitoring() bool {
	return s.monitor != nil && s.monitor.IsRunning()
}

// process runs the capture pipeline for one clipboard event. Every step is
// fault-isolated: an error drops the event and never reaches the poll loop.
func (s *ClipboardService) process(ev clipboard.Event) {
	content := ev.Content
	if content == nil || len(content.Data) == 0 {
		return
	}

	// Duplicate check against the previous event. The baseline moves even
	// when the capture filter later drops the event, so a disabled-type
	// capture is not seen as new after a re-enable within the same run.
	if s.isDuplicate(content.Data, content.Type) {
		slog.Debug("duplicate clipboard content, skipping")
		return
	}

	// Classification refinement is authoritative and may override the
	// reader's pre-classification.
	refined := content.Type
	if refined != types.TypeImage {
		refined = clipboard.DetectTextType(string(content.Data))
	}

	if !s.shouldCapture(refined) {
		slog.Debug("capture disabled for content type, skipping", "type", refined)
		return
	}

	item, err := s.buildItem(content.Data, refined)
	if err != nil {
		slog.Error("failed to build clipboard item", "type", refined, "err", err)
		return
	}

	if err := s.store.Save(item); err != nil {
		slog.Error("failed to save clipboard item", "err", err)
		return
	}
	slog.Info("saved clipboard item", "id", item.ID, "type", item.ContentType, "size", item.Size)

	s.enforceLimit()
	s.notifyHandlers(item)
}

func (s *ClipboardService) isDuplicate(data []byte, contentType types.ContentType) bool {
	h := contentHash(data, contentType)

	s.hashMu.Lock()
	defer s.hashMu.Unlock()
	if h == s.lastHash {
		return true
	}
	s.lastHash = h
	return false
}

func (s *ClipboardService) shouldCapture(contentType types.ContentType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch contentType {
	case types.TypeText:
		return s.opts.CaptureText
	case types.TypeLink:
		return s.opts.CaptureLinks
	case types.TypeImage:
		return s.opts.CaptureImages
	}
	return true
}

func (s *ClipboardService) buildItem(data []byte, contentType types.ContentType) (*types.Item, error) {
	switch contentType {
	case types.TypeText:
		return types.NewTextItem(string(data)), nil
	case types.TypeLink:
		return types.NewLinkItem(string(data)), nil
	case types.TypeImage:
		if s.images == nil {
			return nil, fmt.Errorf("no image store configured")
		}
		path, err := s.images.Save(data, 0)
		if err != nil {
			return nil, fmt.Errorf("persisting image blob: %w", err)
		}
		return types.NewImageItem(path), nil
	}
	return nil, fmt.Errorf("unknown content type: %s", contentType)
}

func (s *ClipboardService) enforceLimit() {
	s.mu.RLock()
	max := s.opts.MaxItems
	s.mu.RUnlock()

	count, err := s.store.Count()
	if err != nil {
		slog.Error("failed to count items for retention", "err", err)
		return
	}
	if count <= int64(max) {
		return
	}

	slog.Info("storage limit exceeded, evicting oldest items", "count", count, "max", max)
	if err := s.store.EnforceLimit(max); err != nil {
		slog.Error("failed to enforce item limit", "err", err)
	}
}

func (s *ClipboardService) notifyHandlers(item *types.Item) {
	s.handlerMu.RLock()
	handlers := s.handlers
	s.handlerMu.RUnlock()

	for _, h := range handlers {
		h.HandleItemSaved(item)
	}
}

// SetCaptureSettings updates per-type capture toggles; nil fields leave the
// current value unchanged. Safe to call from any goroutine.
func (s *ClipboardService) SetCaptureSettings(text, images, links *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if text != nil {
		s.opts.CaptureText = *text
		slog.Info("capture setting updated", "text", *text)
	}
	if images != nil {
		s.opts.CaptureImages = *images
		slog.Info("capture setting updated", "images", *images)
	}
	if links != nil {
		s.opts.CaptureLinks = *links
		slog.Info("capture setting updated", "links", *links)
	}
}

// SetMaxItems updates the retention cap and immediately re-evaluates it.
func (s *ClipboardService) SetMaxItems(n int) error {
	if n < MinItems || n > MaxItems {
		return &ServiceError{
			Op:      "SetMaxItems",
			Message: fmt.Sprintf("max items must be between %d and %d", MinItems, MaxItems),
		}
	}

	s.mu.Lock()
	s.opts.MaxItems = n
	s.mu.Unlock()

	s.enforceLimit()
	return nil
}

// GetItems returns stored items, newest first.
func (s *ClipboardService) GetItems(limit int) ([]*types.Item, error) {
	items, err := s.store.GetAll(limit)
	if err != nil {
		return nil, &ServiceError{Op: "GetItems", Message: "failed to list items", Err: err}
	}
	return items, nil
}

// SearchItems returns stored items matching the query, newest first.
func (s *ClipboardService) SearchItems(query string, limit int) ([]*types.Item, error) {
	items, err := s.store.Search(query, limit)
	if err != nil {
		return nil, &ServiceError{Op: "SearchItems", Message: "failed to search items", Err: err}
	}
	return items, nil
}

// GetItem returns a single item by ID.
func (s *ClipboardService) GetItem(id int64) (*types.Item, error) {
	item, err := s.store.Get(id)
	if err != nil {
		return nil, &ServiceError{Op: "GetItem", Message: "failed to load item", Err: err}
	}
	return item, nil
}

// Count returns the number of stored items.
func (s *ClipboardService) Count() (int64, error) {
	count, err := s.store.Count()
	if err != nil {
		return 0, &ServiceError{Op: "Count", Message: "failed to count items", Err: err}
	}
	return count, nil
}

// DeleteItem removes an item and, for images, its blob file as one logical
// operation.
func (s *ClipboardService) DeleteItem(id int64) error {
	item, err := s.store.Get(id)
	if err != nil {
		return &ServiceError{Op: "DeleteItem", Message: "failed to load item", Err: err}
	}

	if err := s.store.Delete(id); err != nil {
		return &ServiceError{Op: "DeleteItem", Message: "failed to delete item", Err: err}
	}

	if item.ContentType == types.TypeImage && item.ImagePath != "" && s.images != nil {
		if err := s.images.Delete(item.ImagePath); err != nil {
			slog.Warn("deleted item row but not its blob", "id", id, "path", item.ImagePath, "err", err)
		}
	}
	return nil
}

// ClearAll removes every stored item and every image blob.
func (s *ClipboardService) ClearAll() error {
	if err := s.store.ClearAll(); err != nil {
		return &ServiceError{Op: "ClearAll", Message: "failed to clear items", Err: err}
	}
	if s.images != nil {
		if err := s.images.ClearAll(); err != nil {
			slog.Warn("failed to clear image blobs", "err", err)
		}
	}
	return nil
}

// CleanupOrphans deletes image blobs no longer referenced by any item.
func (s *ClipboardService) CleanupOrphans() (int, error) {
	if s.images == nil {
		return 0, nil
	}

	paths, err := s.store.ImagePaths()
	if err != nil {
		return 0, &ServiceError{Op: "CleanupOrphans", Message: "failed to list image paths", Err: err}
	}
	return s.images.CleanupOrphans(paths), nil
}

// CopyItem writes a stored item back to the system clipboard and refreshes
// the dedup baseline so the write is not re-captured as a new item.
func (s *ClipboardService) CopyItem(id int64) error {
	if s.reader == nil {
		return &ServiceError{
			Op:      "CopyItem",
			Message: "no clipboard access on this platform",
			Err:     clipboard.ErrUnsupportedPlatform,
		}
	}

	item, err := s.store.Get(id)
	if err != nil {
		return &ServiceError{Op: "CopyItem", Message: "failed to load item", Err: err}
	}

	var content *clipboard.Content
	switch item.ContentType {
	case types.TypeText, types.TypeLink:
		content = &clipboard.Content{Data: []byte(item.Content), Type: item.ContentType}
	case types.TypeImage:
		data, err := s.images.Load(item.ImagePath)
		if err != nil {
			return &ServiceError{Op: "CopyItem", Message: "failed to load image blob", Err: err}
		}
		content = &clipboard.Content{Data: data, Type: types.TypeImage}
	default:
		return &ServiceError{Op: "CopyItem", Message: "unsupported content type: " + string(item.ContentType)}
	}

	if err := s.reader.Write(content); err != nil {
		return &ServiceError{Op: "CopyItem", Message: "failed to write clipboard", Err: err}
	}

	s.hashMu.Lock()
	s.lastHash = contentHash(content.Data, item.ContentType)
	s.hashMu.Unlock()

	return nil
}

// contentHash is the dedup fingerprint. Text hashes its raw bytes. Images
// hash their decoded pixels: the same picture can come back from the OS in a
// different container (the stored blob is PNG, a Windows re-read is BMP), and
// the baseline must survive that round trip.
func contentHash(data []byte, contentType types.ContentType) string {
	if contentType == types.TypeImage {
		if h, ok := imagePixelHash(data); ok {
			return h
		}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func imagePixelHash(data []byte) (string, bool) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false
	}

	h := sha256.New()
	b := img.Bounds()

	var px [8]byte
	binary.BigEndian.PutUint32(px[0:4], uint32(b.Dx()))
	binary.BigEndian.PutUint32(px[4:8], uint32(b.Dy()))
	h.Write(px[:])

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			binary.BigEndian.PutUint16(px[0:2], uint16(r))
			binary.BigEndian.PutUint16(px[2:4], uint16(g))
			binary.BigEndian.PutUint16(px[4:6], uint16(bl))
			binary.BigEndian.PutUint16(px[6:8], uint16(a))
			h.Write(px[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil)), true
}
