package sqlite

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"clipvault/internal/storage"
	"clipvault/pkg/types"
)

// SQLiteStore persists clipboard items in a single-table SQLite database.
// SQLite serializes writers internally, so one shared handle is safe for the
// capture pipeline and the API surface.
type SQLiteStore struct {
	db *gorm.DB
}

// New opens (or creates) the database and migrates the schema.
func New(config storage.Config) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(config.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&storage.ItemModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Sensible pragmas for a desktop app with one writer.
	if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	db.Exec("PRAGMA synchronous=NORMAL")

	return &SQLiteStore{db: db}, nil
}

// Save implements storage.Store.
func (s *SQLiteStore) Save(item *types.Item) error {
	model := storage.FromItem(item)
	if err := s.db.Create(model).Error; err != nil {
		return fmt.Errorf("failed to save clipboard item: %w", err)
	}
	item.ID = model.ID
	return nil
}

// GetAll implements storage.Store.
func (s *SQLiteStore) GetAll(limit int) ([]*types.Item, error) {
	if limit <= 0 {
		limit = 1000
	}

	var models []storage.ItemModel
	err := s.db.Order("timestamp DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clipboard items: %w", err)
	}
	return toItems(models), nil
}

// Search implements storage.Store. Matching is a plain substring scan over
// content and preview; SQLite's default LIKE folds ASCII case.
func (s *SQLiteStore) Search(query string, limit int) ([]*types.Item, error) {
	if limit <= 0 {
		limit = 1000
	}

	pattern := "%" + query + "%"
	var models []storage.ItemModel
	err := s.db.
		Where("content LIKE ? OR preview LIKE ?", pattern, pattern).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search clipboard items: %w", err)
	}
	return toItems(models), nil
}

// Get returns a single item by ID.
func (s *SQLiteStore) Get(id int64) (*types.Item, error) {
	var model storage.ItemModel
	if err := s.db.First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get clipboard item: %w", err)
	}
	return model.ToItem(), nil
}

// Delete implements storage.Store.
func (s *SQLiteStore) Delete(id int64) error {
	result := s.db.Delete(&storage.ItemModel{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete clipboard item %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ClearAll implements storage.Store.
func (s *SQLiteStore) ClearAll() error {
	err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&storage.ItemModel{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear clipboard items: %w", err)
	}
	return nil
}

// Count implements storage.Store.
func (s *SQLiteStore) Count() (int64, error) {
	var count int64
	if err := s.db.Model(&storage.ItemModel{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count clipboard items: %w", err)
	}
	return count, nil
}

// EnforceLimit implements storage.Store: one statement deletes everything
// except the maxItems most recent rows by timestamp.
func (s *SQLiteStore) EnforceLimit(maxItems int) error {
	if maxItems <= 0 {
		return fmt.Errorf("invalid item limit: %d", maxItems)
	}

	count, err := s.Count()
	if err != nil {
		return err
	}
	if count <= int64(maxItems) {
		return nil
	}

	err = s.db.Exec(`
		DELETE FROM clipboard_items
		WHERE id IN (
			SELECT id FROM clipboard_items
			ORDER BY timestamp DESC
			LIMIT -1 OFFSET ?
		)`, maxItems).Error
	if err != nil {
		return fmt.Errorf("failed to enforce item limit: %w", err)
	}
	return nil
}

// ImagePaths implements storage.Store.
func (s *SQLiteStore) ImagePaths() ([]string, error) {
	var paths []string
	err := s.db.Model(&storage.ItemModel{}).
		Where("content_type = ? AND image_path <> ''", string(types.TypeImage)).
		Pluck("image_path", &paths).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list image paths: %w", err)
	}
	return paths, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toItems(models []storage.ItemModel) []*types.Item {
	items := make([]*types.Item, len(models))
	for i := range models {
		items[i] = models[i].ToItem()
	}
	return items
}
