package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/habitflow/internal/database"
	"github.com/dukerupert/habitflow/internal/model"
	"github.com/dukerupert/habitflow/internal/store"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func testConfig() Config {
	return Config{
		S3:            S3Config{Bucket: "habitflow", Region: "us-east-1", AccessKey: "key", SecretKey: "secret"},
		Passphrase:    "correct horse",
		RetentionDays: 30,
	}
}

func setup(t *testing.T) (*sql.DB, *Manager, *fakeS3) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := NewManager(testConfig(), db, store.NewBackupStore(db), slog.New(slog.NewTextHandler(io.Discard, nil)))
	fake := newFakeS3()
	m.client = fake
	m.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return db, m, fake
}

func TestNewManagerDisabled(t *testing.T) {
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer db.Close()

	cfg := testConfig()
	cfg.Passphrase = ""
	m := NewManager(cfg, db, store.NewBackupStore(db), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if m.Enabled() {
		t.Error("manager without passphrase should be disabled")
	}
	if _, err := m.Run(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("Run err = %v, want ErrDisabled", err)
	}
	if n, err := m.Prune(context.Background()); n != 0 || err != nil {
		t.Errorf("Prune = %d, %v, want 0, nil", n, err)
	}
}

func TestRunAndRestore(t *testing.T) {
	db, m, fake := setup(t)
	if _, err := store.NewUserStore(db).Create("Alice", "alice@example.com", "hash"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	b, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if b.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", b.Status)
	}
	if b.ObjectKey != "habitflow/backup-2026-03-10T120000Z.db.enc" {
		t.Errorf("object key = %q", b.ObjectKey)
	}
	obj, ok := fake.objects[b.ObjectKey]
	if !ok {
		t.Fatal("object was not uploaded")
	}
	if int64(len(obj)) != b.SizeBytes {
		t.Errorf("size = %d, want %d", b.SizeBytes, len(obj))
	}
	if bytes.HasPrefix(obj, []byte("SQLite format 3")) {
		t.Error("uploaded object is not encrypted")
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(context.Background(), b.ID, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := sql.Open("sqlite", dst)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()
	var email string
	if err := restored.QueryRow("SELECT email FROM users").Scan(&email); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if email != "alice@example.com" {
		t.Errorf("email = %q, want alice@example.com", email)
	}
}

func TestRunUploadFailure(t *testing.T) {
	_, m, fake := setup(t)
	fake.putErr = errors.New("bucket unreachable")

	if _, err := m.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}

	list, err := m.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed {
		t.Fatalf("backups = %+v, want one failed", list)
	}
	if list[0].ErrorMessage == "" {
		t.Error("expected an error message on the failed record")
	}
}

func TestRestoreWrongPassphrase(t *testing.T) {
	_, m, _ := setup(t)
	b, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	m.cfg.Passphrase = "wrong"
	if err := m.Restore(context.Background(), b.ID, filepath.Join(t.TempDir(), "restored.db")); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestRestoreUnknownBackup(t *testing.T) {
	_, m, _ := setup(t)
	if err := m.Restore(context.Background(), 999, filepath.Join(t.TempDir(), "x.db")); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPrune(t *testing.T) {
	db, m, fake := setup(t)
	if _, err := db.Exec(
		`INSERT INTO backups (object_key, status, created_at) VALUES ('habitflow/old.db.enc', 'completed', '2020-01-01 00:00:00')`,
	); err != nil {
		t.Fatalf("insert old backup: %v", err)
	}
	fake.objects["habitflow/old.db.enc"] = []byte("old")

	recent, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	m.now = time.Now
	n, err := m.Prune(context.Background())
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}
	if _, ok := fake.objects["habitflow/old.db.enc"]; ok {
		t.Error("old object should be deleted")
	}
	if _, ok := fake.objects[recent.ObjectKey]; !ok {
		t.Error("recent object should be kept")
	}
}
