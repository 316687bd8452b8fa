package sqlite

import (
	"fmt"
	"path/filepath"
	"testing"

	"clipvault/internal/storage"
	"clipvault/pkg/types"
)

func setupBenchmarkDB(b *testing.B) *SQLiteStore {
	b.Helper()

	store, err := New(storage.Config{
		DBPath: filepath.Join(b.TempDir(), "bench.db"),
	})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { store.Close() })

	return store
}

func BenchmarkSave(b *testing.B) {
	store := setupBenchmarkDB(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		item := types.NewTextItem(fmt.Sprintf("benchmark content %d", i))
		if err := store.Save(item); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetAll(b *testing.B) {
	store := setupBenchmarkDB(b)

	for i := 0; i < 1000; i++ {
		if err := store.Save(types.NewTextItem(fmt.Sprintf("item %d", i))); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.GetAll(100); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearch(b *testing.B) {
	store := setupBenchmarkDB(b)

	for i := 0; i < 1000; i++ {
		if err := store.Save(types.NewTextItem(fmt.Sprintf("searchable item %d", i))); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.Search("item 5", 100); err != nil {
			b.Fatal(err)
		}
	}
}
