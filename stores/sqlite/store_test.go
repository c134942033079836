package sqlite

import (
	"birthday-templates/core"
	"birthday-templates/stores/storetest"
	"os"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *sqliteStore {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := NewStore(dbPath)
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("NewStore() did not create database file")
	}

	var tableName string
	err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='templates'").Scan(&tableName)
	if err != nil {
		t.Fatalf("templates table not created: %v", err)
	}
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.TemplateStore { return setupTestDB(t) })
}

func TestReopenKeepsTemplates(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store := NewStore(dbPath)
	id, err := store.Create(t.Context(), &core.Template{OriginalFilename: "card.jpg", Image: []byte("jpeg")})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	store.Close()

	reopened := NewStore(dbPath)
	defer reopened.Close()
	got, err := reopened.FindID(t.Context(), id)
	if err != nil {
		t.Fatalf("FindID() after reopen failed: %v", err)
	}
	if got.OriginalFilename != "card.jpg" || string(got.Image) != "jpeg" {
		t.Errorf("FindID() after reopen = %+v", got)
	}
}
