package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/gluk-w/bothive/internal/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	var err error
	database.DB, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test DB: %v", err)
	}
	if err := database.DB.AutoMigrate(&database.Bot{}, &database.CredentialBlob{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := database.DB.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})
}

func testRegistryContract(t *testing.T, r Registry) {
	t.Helper()

	if _, err := r.Get("alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown bot, got %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	rec := Record{
		BotName:        "alice",
		OwnerNumber:    "+254700000001",
		SessionSeed:    "c2VlZA==",
		Status:         StatusConnecting,
		LastActivityAt: now,
	}
	if err := r.Upsert(rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := r.Get("alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OwnerNumber != rec.OwnerNumber || got.Status != StatusConnecting || got.SessionSeed != rec.SessionSeed {
		t.Errorf("unexpected record: %+v", got)
	}

	later := now.Add(time.Minute)
	if err := r.SetStatus("alice", StatusConnected, later); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	got, err = r.Get("alice")
	if err != nil {
		t.Fatalf("Get after SetStatus: %v", err)
	}
	if got.Status != StatusConnected {
		t.Errorf("status = %s, want connected", got.Status)
	}
	if !got.LastActivityAt.Equal(later) {
		t.Errorf("lastActivityAt = %v, want %v", got.LastActivityAt, later)
	}

	// Upsert for an existing bot updates in place, no duplicate.
	rec.Status = StatusDisconnected
	if err := r.Upsert(rec); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	recs, err := r.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record after re-upsert, got %d", len(recs))
	}

	if err := r.Upsert(Record{BotName: "bob", OwnerNumber: "+254700000002", Status: StatusConnecting, LastActivityAt: now}); err != nil {
		t.Fatalf("Upsert bob: %v", err)
	}
	recs, err = r.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 || recs[0].BotName != "alice" || recs[1].BotName != "bob" {
		t.Fatalf("unexpected listing: %+v", recs)
	}

	if err := r.Remove("alice"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := r.Get("alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	// Remove is idempotent
	if err := r.Remove("alice"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}

	if err := r.SetStatus("alice", StatusError, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound setting status on removed bot, got %v", err)
	}

	// Create is insert-only: the second claim on a name must lose.
	carol := Record{BotName: "carol", OwnerNumber: "+254700000003", Status: StatusConnecting, LastActivityAt: now}
	if err := r.Create(carol); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := r.Create(carol); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists on second Create, got %v", err)
	}
	got, err = r.Get("carol")
	if err != nil {
		t.Fatalf("Get carol: %v", err)
	}
	if got.OwnerNumber != carol.OwnerNumber {
		t.Errorf("unexpected record after Create: %+v", got)
	}
}

func TestDBRegistry_Contract(t *testing.T) {
	setupTestDB(t)
	testRegistryContract(t, NewDB())
}

func TestFSRegistry_Contract(t *testing.T) {
	r, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	testRegistryContract(t, r)
}

func TestFSRegistry_UpsertPreservesCreatedAt(t *testing.T) {
	r, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	rec := Record{BotName: "alice", OwnerNumber: "+254700000001", Status: StatusConnecting, LastActivityAt: time.Now()}
	if err := r.Upsert(rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	first, err := r.Get("alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := r.Upsert(rec); err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}
	second, err := r.Get("alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on re-upsert: %v → %v", first.CreatedAt, second.CreatedAt)
	}
}
