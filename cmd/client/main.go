package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/angelmondragon/buildmatch-client/internal/persistence"
	"github.com/angelmondragon/buildmatch-client/internal/store"
	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	"github.com/angelmondragon/buildmatch-client/pkg/config"
	"github.com/angelmondragon/buildmatch-client/pkg/db"
	"github.com/angelmondragon/buildmatch-client/pkg/instance"
	"github.com/angelmondragon/buildmatch-client/pkg/logger"
	"github.com/angelmondragon/buildmatch-client/pkg/metrics"
	"github.com/angelmondragon/buildmatch-client/pkg/realtime"
	"github.com/angelmondragon/buildmatch-client/pkg/redis"
	"github.com/angelmondragon/buildmatch-client/pkg/storage"
	"github.com/angelmondragon/buildmatch-client/pkg/storage/file"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 5 * time.Second
	healthTimeout   = 5 * time.Second
)

func main() {
	failed := false
	defer func() {
		if failed {
			os.Exit(1)
		}
	}()

	logg := logger.New(logger.Options{ServiceName: "buildmatch-client"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "buildmatch-client",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"device":  instance.GetID(),
		"api":     cfg.API.BaseURL,
		"storage": cfg.Storage.Driver,
	})

	backend, err := openStorage(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to open storage", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	clientMetrics := metrics.NewClientMetrics(registry)

	adapter, err := persistence.NewAdapter(backend, persistence.Options{
		Key:     cfg.Storage.Key,
		Logger:  logg,
		Metrics: clientMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create persistence adapter", err)
		os.Exit(1)
	}

	var newRealtime func(realtime.Handler) (store.RealtimeChannel, error)
	if cfg.Realtime.Enabled {
		newRealtime = func(h realtime.Handler) (store.RealtimeChannel, error) {
			return realtime.New(realtime.Options{
				BaseURL:           cfg.API.BaseURL,
				Path:              cfg.Realtime.Path,
				Reconnect:         cfg.Realtime.Reconnect,
				ReconnectAttempts: cfg.Realtime.ReconnectAttempts,
				ReconnectDelay:    cfg.Realtime.ReconnectDelay,
				HandshakeTimeout:  cfg.Realtime.HandshakeTimeout,
				Handler:           h,
				Logger:            logg,
				Metrics:           clientMetrics,
			})
		}
	}

	var api *apiclient.Client
	st, err := store.New(ctx, store.Params{
		NewAPI: func(tokens apiclient.TokenSource) (store.API, error) {
			client, err := apiclient.NewClient(cfg.API.BaseURL,
				apiclient.WithTimeout(cfg.API.Timeout),
				apiclient.WithTokenSource(tokens),
				apiclient.WithDeviceID(instance.GetID()),
				apiclient.WithMetrics(clientMetrics),
				apiclient.WithLogger(logg),
			)
			if err != nil {
				return nil, err
			}
			api = client
			return client, nil
		},
		NewRealtime:   newRealtime,
		Persistence:   adapter,
		Logger:        logg,
		ComparisonCap: cfg.Comparison.MaxItems,
	})
	if err != nil {
		logg.Error(ctx, "failed to build store", err)
		_ = adapter.Close()
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			logg.Error(closeCtx, "error closing store", err)
		}
	}()

	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	if err := api.Health(healthCtx); err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "api health check failed")
	}
	cancel()

	if !st.Restore(ctx) && cfg.Login.Present() {
		if err := st.Session().Login(ctx, cfg.Login.Email, cfg.Login.Password); err != nil {
			logg.Error(ctx, "login from environment failed", err)
		}
	}

	server := &http.Server{
		Addr:              cfg.Status.Addr,
		Handler:           newStatusRouter(st, registry, logg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logg.Info(logg.WithField(ctx, "addr", cfg.Status.Addr), "starting buildmatch client")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "buildmatch client stopped unexpectedly", err)
		failed = true
		return
	}
	logg.Info(ctx, "buildmatch client shutting down gracefully")
}

func openStorage(ctx context.Context, cfg *config.Config, logg *logger.Logger) (storage.BlobStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverSQLite:
		client, err := db.New(ctx, cfg.Storage.Path, logg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.StorageDriverRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		fs, err := file.New(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
}
