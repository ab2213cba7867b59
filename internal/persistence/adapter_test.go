package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/angelmondragon/buildmatch-client/internal/bom"
	"github.com/angelmondragon/buildmatch-client/internal/comparison"
	"github.com/angelmondragon/buildmatch-client/internal/notifications"
	"github.com/angelmondragon/buildmatch-client/internal/preferences"
	"github.com/angelmondragon/buildmatch-client/internal/session"
	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	"github.com/angelmondragon/buildmatch-client/pkg/metrics"
	"github.com/angelmondragon/buildmatch-client/pkg/storage/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func newFileAdapter(t *testing.T) (*Adapter, string, *prometheus.Registry) {
	t.Helper()
	dir := t.TempDir()
	backend, err := file.New(dir)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	m := metrics.NewClientMetrics(reg)
	adapter, err := NewAdapter(backend, Options{
		Key:     "buildmatch-store",
		Metrics: m,
		Now:     func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return adapter, dir, reg
}

func savesWithOutcome(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "buildmatch_persistence_saves_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestLoadMissingReturnsNil(t *testing.T) {
	adapter, _, _ := newFileAdapter(t)
	snap, err := adapter.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestSaveThenLoad(t *testing.T) {
	adapter, _, reg := newFileAdapter(t)
	ctx := context.Background()
	in := Snapshot{
		Session: session.Persisted{
			CurrentUser:     &apiclient.User{ID: "u-1", Email: "ana@example.com"},
			AuthToken:       "tok",
			IsAuthenticated: true,
		},
		BOM:           bom.Draft{ID: "bom-1", Title: "Deck", Items: []apiclient.BOMItem{}},
		Comparison:    comparison.Set{ProductIDs: []string{"a"}, Quantity: 3},
		Preferences:   preferences.Defaults(),
		Notifications: notifications.Counts{UnreadCount: 2, PriceAlerts: 2},
	}
	require.NoError(t, adapter.Save(ctx, in))

	out, err := adapter.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, "tok", out.Session.AuthToken)
	require.Equal(t, "bom-1", out.BOM.ID)
	require.Equal(t, []string{"a"}, out.Comparison.ProductIDs)
	require.Equal(t, in.Notifications, out.Notifications)
	require.Equal(t, in.Preferences, out.Preferences)
	require.Equal(t, 1.0, savesWithOutcome(t, reg, "success"))
}

func TestCorruptOrUnknownVersionTreatedAsEmpty(t *testing.T) {
	adapter, dir, _ := newFileAdapter(t)
	ctx := context.Background()
	path := filepath.Join(dir, "buildmatch-store.json")

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	snap, err := adapter.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, snap)

	require.NoError(t, os.WriteFile(path, []byte(`{"version":99,"data":{}}`), 0o600))
	snap, err = adapter.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, snap)
}

func TestClearRemovesSnapshot(t *testing.T) {
	adapter, _, _ := newFileAdapter(t)
	ctx := context.Background()
	require.NoError(t, adapter.Save(ctx, Snapshot{}))
	require.NoError(t, adapter.Clear(ctx))
	require.NoError(t, adapter.Clear(ctx))
	snap, err := adapter.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, snap)
	require.NoError(t, adapter.Close())
}

func TestNewAdapterRequiresBackendAndKey(t *testing.T) {
	_, err := NewAdapter(nil, Options{Key: "k"})
	require.Error(t, err)
	backend, err := file.New(t.TempDir())
	require.NoError(t, err)
	_, err = NewAdapter(backend, Options{})
	require.Error(t, err)
}
