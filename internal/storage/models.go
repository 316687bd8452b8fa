package storage

import (
	"time"

	"clipvault/pkg/types"
)

// ItemModel is the database row for a clipboard item. Preview and size are
// stored for search and display but recomputed on load, so items always
// reflect the current state of their backing blob file.
type ItemModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	ContentType string    `gorm:"type:text;not null;index:idx_clipboard_items_content_type"`
	Content     string    `gorm:"type:text;index:idx_clipboard_items_content"`
	ImagePath   string    `gorm:"type:text"`
	Timestamp   time.Time `gorm:"index:idx_clipboard_items_timestamp,sort:desc"`
	Preview     string    `gorm:"type:text;index:idx_clipboard_items_preview"`
	Size        int64
}

func (ItemModel) TableName() string { return "clipboard_items" }

func (m *ItemModel) ToItem() *types.Item {
	return types.Restore(m.ID, types.ContentType(m.ContentType), m.Content, m.ImagePath, m.Timestamp)
}

func FromItem(it *types.Item) *ItemModel {
	return &ItemModel{
		ID:          it.ID,
		ContentType: string(it.ContentType),
		Content:     it.Content,
		ImagePath:   it.ImagePath,
		Timestamp:   it.Timestamp,
		Preview:     it.Preview,
		Size:        it.Size,
	}
}
