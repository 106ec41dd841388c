package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"academia-identity/backend/internal/db"
	"academia-identity/backend/internal/db/migrate"
	"academia-identity/backend/internal/identity/provider"
)

func openTestStore(t *testing.T, now time.Time) *SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs.db")
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
	return New(conn, SQLite, WithClock(func() time.Time { return now }))
}

func TestSQLStore_GetMissing(t *testing.T) {
	s := openTestStore(t, time.Now())
	doc, err := s.GetDoc(context.Background(), "users", "nobody")
	if err != nil {
		t.Fatalf("GetDoc: %v", err)
	}
	if doc != nil {
		t.Fatalf("GetDoc = %v, want nil", doc)
	}
}

func TestSQLStore_SetAndGet(t *testing.T) {
	s := openTestStore(t, time.Now())
	ctx := context.Background()
	err := s.SetDoc(ctx, "users", "u1", provider.Record{
		"name": "Ana", "isActive": true, "graduations": []string{"white"}, "phone": nil,
	})
	if err != nil {
		t.Fatalf("SetDoc: %v", err)
	}
	doc, err := s.GetDoc(ctx, "users", "u1")
	if err != nil {
		t.Fatalf("GetDoc: %v", err)
	}
	if doc["name"] != "Ana" || doc["isActive"] != true {
		t.Errorf("doc = %v", doc)
	}
	if g, ok := doc["graduations"].([]any); !ok || len(g) != 1 || g[0] != "white" {
		t.Errorf("graduations = %#v", doc["graduations"])
	}
	if v, ok := doc["phone"]; !ok || v != nil {
		t.Errorf("phone = %#v, want explicit null", v)
	}

	if _, err := s.GetDoc(ctx, "academias", "u1"); err != nil {
		t.Fatalf("GetDoc other collection: %v", err)
	}
}

func TestSQLStore_SetReplaces(t *testing.T) {
	s := openTestStore(t, time.Now())
	ctx := context.Background()
	if err := s.SetDoc(ctx, "users", "u1", provider.Record{"name": "A", "phone": "1"}); err != nil {
		t.Fatalf("SetDoc: %v", err)
	}
	if err := s.SetDoc(ctx, "users", "u1", provider.Record{"name": "B"}); err != nil {
		t.Fatalf("SetDoc: %v", err)
	}
	doc, _ := s.GetDoc(ctx, "users", "u1")
	if doc["name"] != "B" {
		t.Errorf("name = %v", doc["name"])
	}
	if _, ok := doc["phone"]; ok {
		t.Error("SetDoc should replace, not merge")
	}
}

func TestSQLStore_ServerTimestamp(t *testing.T) {
	now := time.Date(2026, 2, 3, 4, 5, 6, 700, time.UTC)
	s := openTestStore(t, now)
	ctx := context.Background()
	err := s.SetDoc(ctx, "users", "u1", provider.Record{
		"createdAt": provider.ServerTimestamp,
		"meta":      map[string]any{"seenAt": provider.ServerTimestamp},
	})
	if err != nil {
		t.Fatalf("SetDoc: %v", err)
	}
	doc, _ := s.GetDoc(ctx, "users", "u1")
	ts, ok := doc["createdAt"].(map[string]any)
	if !ok {
		t.Fatalf("createdAt = %#v", doc["createdAt"])
	}
	if ts["seconds"] != json.Number("1770091506") || ts["nanoseconds"] != json.Number("700") {
		t.Errorf("createdAt = %v", ts)
	}
	meta := doc["meta"].(map[string]any)
	if _, ok := meta["seenAt"].(map[string]any); !ok {
		t.Errorf("nested server timestamp = %#v", meta["seenAt"])
	}
}

func TestSQLStore_UpdateMerges(t *testing.T) {
	s := openTestStore(t, time.Now())
	ctx := context.Background()
	if err := s.SetDoc(ctx, "users", "u1", provider.Record{"name": "A", "email": "a@x.com"}); err != nil {
		t.Fatalf("SetDoc: %v", err)
	}
	if err := s.UpdateDoc(ctx, "users", "u1", provider.Record{"phone": "555-0100"}); err != nil {
		t.Fatalf("UpdateDoc: %v", err)
	}
	doc, _ := s.GetDoc(ctx, "users", "u1")
	if doc["name"] != "A" || doc["email"] != "a@x.com" || doc["phone"] != "555-0100" {
		t.Errorf("doc = %v", doc)
	}
}

func TestSQLStore_UpdateMissing(t *testing.T) {
	s := openTestStore(t, time.Now())
	err := s.UpdateDoc(context.Background(), "users", "ghost", provider.Record{"phone": "1"})
	var pe *provider.Error
	if !errors.As(err, &pe) || pe.Code != provider.CodeNotFound {
		t.Fatalf("UpdateDoc error = %v, want %s", err, provider.CodeNotFound)
	}
}

func TestSQLStore_CreateAndDelete(t *testing.T) {
	s := openTestStore(t, time.Now())
	ctx := context.Background()
	if err := s.CreateDoc(ctx, "account_emails", "a@x.com", provider.Record{"uid": "u1"}); err != nil {
		t.Fatalf("CreateDoc: %v", err)
	}
	if err := s.CreateDoc(ctx, "account_emails", "a@x.com", provider.Record{"uid": "u2"}); !errors.Is(err, ErrExists) {
		t.Fatalf("second CreateDoc error = %v, want ErrExists", err)
	}
	doc, _ := s.GetDoc(ctx, "account_emails", "a@x.com")
	if doc["uid"] != "u1" {
		t.Errorf("uid = %v, want the first writer", doc["uid"])
	}
	if err := s.DeleteDoc(ctx, "account_emails", "a@x.com"); err != nil {
		t.Fatalf("DeleteDoc: %v", err)
	}
	if err := s.DeleteDoc(ctx, "account_emails", "a@x.com"); err != nil {
		t.Fatalf("DeleteDoc missing: %v", err)
	}
	if doc, _ := s.GetDoc(ctx, "account_emails", "a@x.com"); doc != nil {
		t.Errorf("doc after delete = %v", doc)
	}
}

func TestSQLStore_CanceledContext(t *testing.T) {
	s := openTestStore(t, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.GetDoc(ctx, "users", "u1"); err == nil {
		t.Fatal("GetDoc with canceled context should fail")
	}
}

func TestRebind(t *testing.T) {
	pg := New(nil, Postgres)
	if got := pg.rebind("a = $1 AND b = $12"); got != "a = $1 AND b = $12" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := New(nil, SQLite)
	if got := lite.rebind("a = $1 AND b = $12"); got != "a = ?1 AND b = ?12" {
		t.Errorf("sqlite rebind = %q", got)
	}
}

func TestTranslate(t *testing.T) {
	if translate(nil) != nil {
		t.Error("nil should stay nil")
	}
	if err := translate(context.DeadlineExceeded); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("deadline = %v", err)
	}
	tests := map[string]string{
		"53300": provider.CodeResourceExhausted,
		"08006": provider.CodeUnavailable,
		"57014": provider.CodeDeadlineExceeded,
		"23505": provider.CodeInternal,
	}
	for state, want := range tests {
		if got := postgresCode(state); got != want {
			t.Errorf("postgresCode(%s) = %s, want %s", state, got, want)
		}
	}
	if got := sqliteCode(5); got != provider.CodeUnavailable {
		t.Errorf("sqliteCode(BUSY) = %s", got)
	}
	if got := sqliteCode(5 | 1<<8); got != provider.CodeUnavailable {
		t.Errorf("sqliteCode(BUSY_RECOVERY) = %s", got)
	}
}
