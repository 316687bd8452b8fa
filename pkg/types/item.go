package types

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ContentType classifies a captured clipboard entry.
type ContentType string

const (
	TypeText  ContentType = "text"
	TypeLink  ContentType = "link"
	TypeImage ContentType = "image"
)

// previewLimit is the maximum number of characters kept in a preview.
const previewLimit = 100

// Item is a single clipboard history entry. Exactly one of Content or
// ImagePath is populated, matching ContentType. Preview and Size are derived
// from the other fields at construction time and never mutated independently.
type Item struct {
	ID          int64       `json:"id"`
	ContentType ContentType `json:"content_type"`
	Content     string      `json:"content,omitempty"`
	ImagePath   string      `json:"image_path,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Preview     string      `json:"preview"`
	Size        int64       `json:"size"`
}

// NewTextItem creates a text item with derived preview and size.
func NewTextItem(content string) *Item {
	return newItem(TypeText, content, "", 0, time.Time{})
}

// NewLinkItem creates a link item with derived preview and size.
func NewLinkItem(content string) *Item {
	return newItem(TypeLink, content, "", 0, time.Time{})
}

// NewImageItem creates an image item referencing a persisted blob file.
func NewImageItem(imagePath string) *Item {
	return newItem(TypeImage, "", imagePath, 0, time.Time{})
}

// Restore rebuilds an item from stored fields, recomputing preview and size.
// Used when loading rows from the database.
func Restore(id int64, contentType ContentType, content, imagePath string, timestamp time.Time) *Item {
	return newItem(contentType, content, imagePath, id, timestamp)
}

func newItem(contentType ContentType, content, imagePath string, id int64, ts time.Time) *Item {
	if ts.IsZero() {
		ts = time.Now()
	}
	it := &Item{
		ID:          id,
		ContentType: contentType,
		Content:     content,
		ImagePath:   imagePath,
		Timestamp:   ts,
	}
	it.Size = it.calculateSize()
	it.Preview = it.generatePreview()
	return it
}

func (it *Item) generatePreview() string {
	switch it.ContentType {
	case TypeText, TypeLink:
		runes := []rune(it.Content)
		if len(runes) > previewLimit {
			return string(runes[:previewLimit]) + "..."
		}
		return it.Content
	case TypeImage:
		return fmt.Sprintf("Image (%d bytes)", it.Size)
	}
	return ""
}

func (it *Item) calculateSize() int64 {
	if it.Content != "" {
		return int64(len(it.Content))
	}
	if it.ImagePath != "" {
		if info, err := os.Stat(it.ImagePath); err == nil {
			return info.Size()
		}
	}
	return 0
}

// IsLink reports whether the item holds a URL.
func (it *Item) IsLink() bool {
	return it.ContentType == TypeLink
}

// UnmarshalJSON restores an item from its serialized form, recomputing the
// derived preview and size fields.
func (it *Item) UnmarshalJSON(data []byte) error {
	type wire struct {
		ID          int64       `json:"id"`
		ContentType ContentType `json:"content_type"`
		Content     string      `json:"content"`
		ImagePath   string      `json:"image_path"`
		Timestamp   time.Time   `json:"timestamp"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*it = *newItem(w.ContentType, w.Content, w.ImagePath, w.ID, w.Timestamp)
	return nil
}
