package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
	"github.com/angelmondragon/buildmatch-client/pkg/logger"
	"github.com/angelmondragon/buildmatch-client/pkg/metrics"
	"github.com/angelmondragon/buildmatch-client/pkg/storage"
)

// Adapter reads and writes the store snapshot as one named blob.
type Adapter struct {
	backend storage.BlobStore
	key     string
	logg    *logger.Logger
	metrics *metrics.ClientMetrics
	now     func() time.Time
}

type Options struct {
	Key     string
	Logger  *logger.Logger
	Metrics *metrics.ClientMetrics
	Now     func() time.Time
}

func NewAdapter(backend storage.BlobStore, opts Options) (*Adapter, error) {
	if backend == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "storage backend required")
	}
	if opts.Key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "storage key required")
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Adapter{backend: backend, key: opts.Key, logg: logg, metrics: opts.Metrics, now: now}, nil
}

// Load returns the stored snapshot. A missing, corrupt or unknown-version
// blob yields (nil, nil) so the store starts from defaults.
func (a *Adapter) Load(ctx context.Context) (*Snapshot, error) {
	raw, err := a.backend.Load(ctx, a.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load snapshot")
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "discarding corrupt snapshot")
		return nil, nil
	}
	if env.Version != CurrentVersion || env.Data == nil {
		a.logg.Warn(a.logg.WithField(ctx, "version", env.Version), "discarding snapshot with unsupported version")
		return nil, nil
	}
	return env.Data, nil
}

func (a *Adapter) Save(ctx context.Context, snap Snapshot) (err error) {
	defer func() { a.metrics.ObserveSave(err) }()

	raw, err := json.Marshal(envelope{Version: CurrentVersion, SavedAt: a.now().UTC(), Data: &snap})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode snapshot")
	}
	if err := a.backend.Save(ctx, a.key, raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save snapshot")
	}
	return nil
}

func (a *Adapter) Clear(ctx context.Context) error {
	if err := a.backend.Delete(ctx, a.key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete snapshot")
	}
	return nil
}

func (a *Adapter) Close() error {
	return a.backend.Close()
}
