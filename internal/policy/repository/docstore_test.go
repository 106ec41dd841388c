package repository

import (
	"context"
	"path/filepath"
	"testing"

	"academia-identity/backend/internal/db"
	"academia-identity/backend/internal/db/migrate"
	"academia-identity/backend/internal/docstore"
	"academia-identity/backend/internal/policy/domain"
)

func openStore(t *testing.T) *docstore.SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.db")
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

func TestDocStoreRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewDocStoreRepository(openStore(t), DefaultCollection)

	if p, err := repo.GetByAcademia(ctx, "acad-1"); err != nil || p != nil {
		t.Fatalf("GetByAcademia before Save = %v, %v; want nil, nil", p, err)
	}
	rules := "package academia.authz\n\npermissions contains \"classes:read\" if { true }\n"
	if err := repo.Save(ctx, &domain.Policy{AcademiaID: "acad-1", Rules: rules, Enabled: true}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	p, err := repo.GetByAcademia(ctx, "acad-1")
	if err != nil {
		t.Fatalf("GetByAcademia: %v", err)
	}
	if p == nil || p.Rules != rules || !p.Enabled || p.AcademiaID != "acad-1" {
		t.Fatalf("policy = %+v", p)
	}
	if p.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should come from the store clock")
	}
}
