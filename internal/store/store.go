package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/angelmondragon/buildmatch-client/internal/bom"
	"github.com/angelmondragon/buildmatch-client/internal/comparison"
	"github.com/angelmondragon/buildmatch-client/internal/location"
	"github.com/angelmondragon/buildmatch-client/internal/notifications"
	"github.com/angelmondragon/buildmatch-client/internal/persistence"
	"github.com/angelmondragon/buildmatch-client/internal/preferences"
	"github.com/angelmondragon/buildmatch-client/internal/rfq"
	"github.com/angelmondragon/buildmatch-client/internal/session"
	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
	"github.com/angelmondragon/buildmatch-client/pkg/logger"
	"github.com/angelmondragon/buildmatch-client/pkg/realtime"
	"go.uber.org/multierr"
)

// API is the REST surface the store's components call.
type API interface {
	session.AuthAPI
	bom.API
	preferences.ProfileAPI
	rfq.API
}

// RealtimeChannel is the push connection owned by the store.
type RealtimeChannel interface {
	Connect(ctx context.Context, token string) error
	Disconnect()
	State() realtime.ConnectionState
}

// Params wires the store. NewAPI receives a token source bound to the
// session; NewRealtime receives the store's event handler and may be nil to
// run without push updates.
type Params struct {
	NewAPI        func(tokens apiclient.TokenSource) (API, error)
	NewRealtime   func(handler realtime.Handler) (RealtimeChannel, error)
	Persistence   *persistence.Adapter
	Logger        *logger.Logger
	ComparisonCap int
	Now           func() time.Time
}

// Store is the client state root. Each component is reachable through an
// accessor and every mutation is persisted.
type Store struct {
	logg        *logger.Logger
	api         API
	realtime    RealtimeChannel
	persistence *persistence.Adapter

	session       session.Service
	bom           bom.Service
	comparison    comparison.Service
	preferences   preferences.Service
	notifications notifications.Service
	location      location.Service
	rfq           rfq.Service

	// rtToken is the token the realtime loop was started with.
	rtMu    sync.Mutex
	rtToken string

	persistMu sync.Mutex
	// batching suppresses per-change saves while a multi-component reset runs.
	batching atomic.Int32
	closed   atomic.Bool

	subMu   sync.RWMutex
	subs    map[uint64]func(ctx context.Context, event realtime.Event)
	nextSub uint64
}

func New(ctx context.Context, params Params) (*Store, error) {
	if params.NewAPI == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "api factory required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	s := &Store{
		logg:        logg,
		persistence: params.Persistence,
		subs:        map[uint64]func(context.Context, realtime.Event){},
	}

	api, err := params.NewAPI(s.token)
	if err != nil {
		return nil, err
	}
	s.api = api

	if s.session, err = session.NewService(session.ServiceParams{
		API:    api,
		Logger: logg,
		Now:    params.Now,
		Hooks: session.Hooks{
			OnAuthenticated: s.onAuthenticated,
			OnSignedOut:     s.onSignedOut,
			OnChange:        s.onChange,
		},
	}); err != nil {
		return nil, err
	}
	if s.bom, err = bom.NewService(bom.ServiceParams{
		API:      api,
		Session:  s.session,
		Logger:   logg,
		OnChange: s.onChange,
	}); err != nil {
		return nil, err
	}
	if s.comparison, err = comparison.NewService(comparison.ServiceParams{
		MaxItems: params.ComparisonCap,
		OnChange: s.onChange,
	}); err != nil {
		return nil, err
	}
	if s.preferences, err = preferences.NewService(preferences.ServiceParams{
		API:      api,
		Session:  s.session,
		Logger:   logg,
		OnChange: s.onChange,
		OnSynced: s.onPreferencesSynced,
	}); err != nil {
		return nil, err
	}
	s.notifications = notifications.NewService(s.onChange)
	s.location = location.NewService(s.onChange)
	if s.rfq, err = rfq.NewService(rfq.ServiceParams{
		API:     api,
		Session: s.session,
		Logger:  logg,
		Now:     params.Now,
	}); err != nil {
		return nil, err
	}

	if params.NewRealtime != nil {
		ch, err := params.NewRealtime(realtime.HandlerFunc(s.HandleEvent))
		if err != nil {
			return nil, err
		}
		s.realtime = ch
	}

	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Session() session.Service             { return s.session }
func (s *Store) BOM() bom.Service                     { return s.bom }
func (s *Store) Comparison() comparison.Service       { return s.comparison }
func (s *Store) Preferences() preferences.Service     { return s.preferences }
func (s *Store) Notifications() notifications.Service { return s.notifications }
func (s *Store) Location() location.Service           { return s.location }
func (s *Store) RFQ() rfq.Service                     { return s.rfq }

// ConnectionState reports the realtime status. It is zero when realtime is disabled.
func (s *Store) ConnectionState() realtime.ConnectionState {
	if s.realtime == nil {
		return realtime.ConnectionState{}
	}
	return s.realtime.State()
}

// Restore validates the persisted session, connecting realtime on success.
func (s *Store) Restore(ctx context.Context) bool {
	return s.session.RestoreSession(ctx)
}

// Snapshot returns the durable state as it would be persisted.
func (s *Store) Snapshot() persistence.Snapshot {
	return persistence.Snapshot{
		Session:       s.session.Persisted(),
		BOM:           s.bom.Draft(),
		Comparison:    s.comparison.Set(),
		Location:      s.location.Location(),
		Preferences:   s.preferences.Preferences(),
		Notifications: s.notifications.Counts(),
	}
}

// Close stops realtime, waits for pending profile syncs, writes a final
// snapshot and releases storage.
func (s *Store) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.stopRealtime()
	err := s.preferences.Wait(ctx)
	if s.persistence == nil {
		return err
	}
	err = multierr.Append(err, s.save(ctx))
	err = multierr.Append(err, s.persistence.Close())
	return err
}

func (s *Store) token() string {
	if s.session == nil {
		return ""
	}
	return s.session.Token()
}

func (s *Store) hydrate(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}
	snap, err := s.persistence.Load(ctx)
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}
	s.session.Hydrate(snap.Session)
	s.bom.Hydrate(snap.BOM)
	s.comparison.Hydrate(snap.Comparison)
	s.location.Hydrate(snap.Location)
	s.preferences.Hydrate(snap.Preferences)
	s.notifications.Hydrate(snap.Notifications)
	s.logg.Debug(ctx, "store hydrated from snapshot")
	return nil
}

func (s *Store) onChange(ctx context.Context) {
	if s.batching.Load() > 0 || s.closed.Load() {
		return
	}
	if err := s.save(ctx); err != nil {
		s.logg.Error(ctx, "persist snapshot", err)
	}
}

func (s *Store) save(ctx context.Context) error {
	if s.persistence == nil {
		return nil
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	return s.persistence.Save(ctx, s.Snapshot())
}

// batch runs fn with per-change saves suppressed, then saves once.
func (s *Store) batch(ctx context.Context, fn func()) {
	s.batching.Add(1)
	fn()
	s.batching.Add(-1)
	s.onChange(ctx)
}

// onAuthenticated starts realtime for the session token. A loop still running
// under a different token is stopped first.
func (s *Store) onAuthenticated(ctx context.Context, token string) {
	if s.realtime == nil {
		return
	}
	s.rtMu.Lock()
	defer s.rtMu.Unlock()
	if s.rtToken != "" && s.rtToken != token {
		s.realtime.Disconnect()
	}
	s.rtToken = token
	if err := s.realtime.Connect(ctx, token); err != nil {
		s.logg.Error(ctx, "start realtime", err)
	}
}

func (s *Store) stopRealtime() {
	if s.realtime == nil {
		return
	}
	s.rtMu.Lock()
	defer s.rtMu.Unlock()
	s.rtToken = ""
	s.realtime.Disconnect()
}

// onSignedOut tears down account-scoped state. Preferences and location are
// device-level and survive.
func (s *Store) onSignedOut(ctx context.Context) {
	s.stopRealtime()
	s.batch(ctx, func() {
		s.bom.Clear(ctx)
		s.comparison.Clear(ctx)
		s.notifications.Reset(ctx)
	})
}

func (s *Store) onPreferencesSynced(ctx context.Context, user *apiclient.User) {
	if user.Preferences == nil {
		return
	}
	prefs := *user.Preferences
	s.session.PatchProfile(ctx, apiclient.ProfileUpdate{Preferences: &prefs})
}
