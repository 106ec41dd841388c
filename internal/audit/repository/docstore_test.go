package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"academia-identity/backend/internal/audit/domain"
	"academia-identity/backend/internal/db"
	"academia-identity/backend/internal/db/migrate"
	"academia-identity/backend/internal/docstore"
)

func openStore(t *testing.T) *docstore.SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	url, err := db.MigrateURL(db.DriverSQLite, path)
	if err != nil {
		t.Fatalf("MigrateURL: %v", err)
	}
	if err := migrate.Run(url, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(db.DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return docstore.New(conn, docstore.SQLite)
}

func TestDocStoreRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewDocStoreRepository(openStore(t), "")
	before := time.Now().Add(-time.Second)

	err := repo.Create(ctx, &domain.AuditLog{
		ID:         "log-1",
		AcademiaID: "acad-1",
		UserID:     "user-1",
		Action:     domain.ActionIdentityLinked,
		Metadata:   map[string]string{"provider": "google"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(ctx, "log-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil {
		t.Fatal("GetByID returned nil")
	}
	if got.AcademiaID != "acad-1" || got.UserID != "user-1" || got.Action != domain.ActionIdentityLinked {
		t.Errorf("entry = %+v", got)
	}
	if got.Metadata["provider"] != "google" {
		t.Errorf("metadata = %v", got.Metadata)
	}
	if got.CreatedAt.Before(before) {
		t.Errorf("CreatedAt = %v, want store time", got.CreatedAt)
	}
}

func TestDocStoreRepository_GetMissing(t *testing.T) {
	got, err := NewDocStoreRepository(openStore(t), "").GetByID(context.Background(), "nope")
	if err != nil || got != nil {
		t.Fatalf("GetByID = %v, %v; want nil, nil", got, err)
	}
}
