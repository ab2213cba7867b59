package db

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/buildmatch-client/pkg/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := open(context.Background(), sqlite.Open("file::memory:"), nil)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSnapshotUpsertAndDelete(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if _, err := client.Load(ctx, "buildmatch-store"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := client.Save(ctx, "buildmatch-store", []byte(`{"version":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := client.Save(ctx, "buildmatch-store", []byte(`{"version":2}`)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var count int64
	if err := client.DB().Model(&Snapshot{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row after upsert, got %d", count)
	}

	blob, err := client.Load(ctx, "buildmatch-store")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(blob) != `{"version":2}` {
		t.Fatalf("unexpected blob %s", blob)
	}

	if err := client.Delete(ctx, "buildmatch-store"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.Load(ctx, "buildmatch-store"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestWithTx_Rollback(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&Snapshot{Key: "rolled", Blob: []byte("x")}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if _, err := client.Load(ctx, "rolled"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected rollback to discard the row, got %v", err)
	}
}

func TestNewCreatesDatabaseFile(t *testing.T) {
	client, err := New(context.Background(), t.TempDir(), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = client.Close() }()
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}
