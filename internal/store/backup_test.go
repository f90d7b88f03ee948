package store

import (
	"testing"
	"time"

	"github.com/dukerupert/habitflow/internal/model"
)

func TestBackupLifecycle(t *testing.T) {
	bs := NewBackupStore(openTestDB(t))

	b, err := bs.Create("backups/backup-1.db.enc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Status != model.BackupStatusPending {
		t.Errorf("status = %q, want %q", b.Status, model.BackupStatusPending)
	}

	if err := bs.UpdateStatus(b.ID, model.BackupStatusUploading, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := bs.MarkCompleted(b.ID, 2048, time.Now()); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	got, err := bs.GetByID(b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, model.BackupStatusCompleted)
	}
	if got.SizeBytes != 2048 {
		t.Errorf("size = %d, want 2048", got.SizeBytes)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
}

func TestBackupFailedKeepsMessage(t *testing.T) {
	bs := NewBackupStore(openTestDB(t))

	b, err := bs.Create("backups/backup-2.db.enc")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := bs.UpdateStatus(b.ID, model.BackupStatusFailed, "bucket missing"); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, err := bs.GetByID(b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ErrorMessage != "bucket missing" {
		t.Errorf("error message = %q, want %q", got.ErrorMessage, "bucket missing")
	}

	missing, err := bs.GetByID(999)
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing backup")
	}
}

func TestBackupDeleteOlderThan(t *testing.T) {
	db := openTestDB(t)
	bs := NewBackupStore(db)

	if _, err := db.Exec(`INSERT INTO backups (object_key, created_at) VALUES ('old', '2020-01-01 00:00:00')`); err != nil {
		t.Fatalf("insert old backup: %v", err)
	}
	if _, err := bs.Create("new"); err != nil {
		t.Fatalf("create: %v", err)
	}

	keys, err := bs.DeleteOlderThan(time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if len(keys) != 1 || keys[0] != "old" {
		t.Errorf("keys = %v, want [old]", keys)
	}

	list, err := bs.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ObjectKey != "new" {
		t.Errorf("remaining = %v, want only new", list)
	}
}
