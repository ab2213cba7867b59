package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/buildmatch-client/pkg/config"
	"github.com/angelmondragon/buildmatch-client/pkg/storage"
	"github.com/redis/go-redis/v9"
)

func TestSnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock, deviceID: "dev-1"}

	if _, err := client.Load(ctx, "buildmatch-store"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := client.Save(ctx, "buildmatch-store", []byte(`{"version":1}`)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, ok := mock.data["bm:snapshot:dev-1:buildmatch-store"]; !ok {
		t.Fatalf("expected namespaced key, have %v", mock.data)
	}

	blob, err := client.Load(ctx, "buildmatch-store")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if string(blob) != `{"version":1}` {
		t.Fatalf("unexpected blob %s", blob)
	}

	if err := client.Delete(ctx, "buildmatch-store"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := client.Load(ctx, "buildmatch-store"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSnapshotKeySkipsEmptyParts(t *testing.T) {
	client := &Client{}
	if got := client.SnapshotKey("buildmatch-store"); got != "bm:snapshot:buildmatch-store" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Save(context.Background(), "k", nil); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without raw client should be a no-op: %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/0", DB: 3, DialTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 3 || opts.DialTimeout != 2*time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
