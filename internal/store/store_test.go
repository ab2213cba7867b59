package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/buildmatch-client/internal/comparison"
	"github.com/angelmondragon/buildmatch-client/internal/notifications"
	"github.com/angelmondragon/buildmatch-client/internal/persistence"
	"github.com/angelmondragon/buildmatch-client/internal/preferences"
	"github.com/angelmondragon/buildmatch-client/internal/session"
	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	"github.com/angelmondragon/buildmatch-client/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmatch-client/pkg/errors"
	"github.com/angelmondragon/buildmatch-client/pkg/realtime"
	"github.com/angelmondragon/buildmatch-client/pkg/storage/file"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeRealtime struct {
	mu          sync.Mutex
	handler     realtime.Handler
	tokens      []string
	disconnects int
	connected   bool
}

func (f *fakeRealtime) Connect(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
	f.connected = true
	return nil
}

func (f *fakeRealtime) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
}

func (f *fakeRealtime) State() realtime.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return realtime.ConnectionState{IsConnected: f.connected}
}

func (f *fakeRealtime) emit(ctx context.Context, event realtime.Event) {
	f.handler.HandleEvent(ctx, event)
}

type fakeServer struct {
	srv         *httptest.Server
	bomHits     atomic.Int32
	logoutHit   atomic.Int32
	holdProfile atomic.Bool
	profileGate chan struct{}
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{profileGate: make(chan struct{})}
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		var body apiclient.LoginRequest
		_ = json.NewDecoder(req.Body).Decode(&body)
		if body.Password != "secret1" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		token := "tok-1"
		if body.Email == "bo@example.com" {
			token = "tok-2"
		}
		writeData(w, map[string]any{
			"token": token,
			"user":  map[string]any{"id": "u-1", "email": body.Email, "name": "Ana", "user_type": "buyer"},
		})
	})
	r.Post("/api/auth/logout", func(w http.ResponseWriter, req *http.Request) {
		fs.logoutHit.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/auth/verify", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeData(w, map[string]any{"user": map[string]any{"id": "u-1", "email": "ana@example.com", "name": "Ana"}})
	})
	r.Post("/api/boms", func(w http.ResponseWriter, req *http.Request) {
		fs.bomHits.Add(1)
		writeData(w, map[string]any{"id": "bom-1", "title": "Kitchen Remodel", "total_cost": "0", "updated_at": "2026-03-01T10:00:00Z"})
	})
	r.Post("/api/boms/{bomID}/items", func(w http.ResponseWriter, req *http.Request) {
		writeData(w, map[string]any{"id": "item-1", "bom_id": chi.URLParam(req, "bomID"), "variant_id": "var-1", "quantity": "3", "unit": "bag", "updated_at": "2026-03-01T11:00:00Z"})
	})
	r.Patch("/api/users/profile", func(w http.ResponseWriter, req *http.Request) {
		if fs.holdProfile.Load() {
			<-fs.profileGate
		}
		var body apiclient.ProfileUpdate
		_ = json.NewDecoder(req.Body).Decode(&body)
		writeData(w, map[string]any{"id": "u-1", "preferences": body.Preferences})
	})
	fs.srv = httptest.NewServer(r)
	t.Cleanup(fs.srv.Close)
	return fs
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func newTestStore(t *testing.T, baseURL, dir string, rt *fakeRealtime) *Store {
	t.Helper()
	backend, err := file.New(dir)
	require.NoError(t, err)
	adapter, err := persistence.NewAdapter(backend, persistence.Options{Key: "buildmatch-store"})
	require.NoError(t, err)

	s, err := New(context.Background(), Params{
		NewAPI: func(tokens apiclient.TokenSource) (API, error) {
			return apiclient.NewClient(baseURL, apiclient.WithTokenSource(tokens))
		},
		NewRealtime: func(h realtime.Handler) (RealtimeChannel, error) {
			rt.handler = h
			return rt, nil
		},
		Persistence: adapter,
	})
	require.NoError(t, err)
	return s
}

func TestLoginThenLogoutRestoresDefaults(t *testing.T) {
	fs := newFakeServer(t)
	rt := &fakeRealtime{}
	s := newTestStore(t, fs.srv.URL, t.TempDir(), rt)
	ctx := context.Background()

	initialSession := s.Session().State()
	initialBOM := s.BOM().Draft()
	initialSet := s.Comparison().Set()
	initialCounts := s.Notifications().Counts()

	require.NoError(t, s.Session().Login(ctx, "ana@example.com", "secret1"))
	require.Equal(t, []string{"tok-1"}, rt.tokens)
	require.True(t, s.ConnectionState().IsConnected)

	_, err := s.BOM().Create(ctx, apiclient.CreateBOMRequest{Title: "Kitchen Remodel"})
	require.NoError(t, err)
	_, err = s.BOM().AddItem(ctx, apiclient.AddBOMItemRequest{VariantID: "var-1", Quantity: decimal.NewFromInt(3), Unit: "bag"})
	require.NoError(t, err)
	require.NoError(t, s.Comparison().Add(ctx, "var-1"))
	rt.emit(ctx, realtime.PriceAlertTriggered{VariantID: "var-1"})
	require.NoError(t, s.Preferences().SetTheme(ctx, enums.ThemeDark))

	s.Session().Logout(ctx)

	require.Equal(t, int32(1), fs.logoutHit.Load())
	require.Equal(t, 1, rt.disconnects)
	require.Equal(t, initialSession, s.Session().State())
	require.Equal(t, initialBOM, s.BOM().Draft())
	require.Equal(t, initialSet, s.Comparison().Set())
	require.Equal(t, initialCounts, s.Notifications().Counts())
	require.Equal(t, enums.ThemeDark, s.Preferences().Preferences().Theme, "preferences survive logout")
}

func TestCreateWithoutSessionNeverHitsServer(t *testing.T) {
	fs := newFakeServer(t)
	s := newTestStore(t, fs.srv.URL, t.TempDir(), &fakeRealtime{})

	_, err := s.BOM().Create(context.Background(), apiclient.CreateBOMRequest{Title: "Kitchen Remodel"})
	require.Error(t, err)
	require.Equal(t, "Authentication required", pkgerrors.As(err).Message())
	require.Equal(t, int32(0), fs.bomHits.Load())
	require.False(t, s.BOM().Draft().Active())
}

func TestLoginFailureSurfacesServerMessage(t *testing.T) {
	fs := newFakeServer(t)
	rt := &fakeRealtime{}
	s := newTestStore(t, fs.srv.URL, t.TempDir(), rt)

	err := s.Session().Login(context.Background(), "ana@example.com", "wrong")
	require.Error(t, err)
	st := s.Session().State()
	require.Equal(t, "Invalid credentials", st.ErrorMessage)
	require.False(t, st.IsAuthenticated)
	require.Empty(t, rt.tokens)
}

func TestSnapshotSurvivesRestart(t *testing.T) {
	fs := newFakeServer(t)
	dir := t.TempDir()
	ctx := context.Background()

	first := newTestStore(t, fs.srv.URL, dir, &fakeRealtime{})
	require.NoError(t, first.Session().Login(ctx, "ana@example.com", "secret1"))
	require.NoError(t, first.Comparison().Add(ctx, "var-9"))
	require.NoError(t, first.Preferences().SetCurrency(ctx, "MXN"))
	require.NoError(t, first.Notifications().UpdateCounts(ctx, notifications.CountsPatch{UnreadCount: intPtr(4)}))
	require.NoError(t, first.Close(ctx))

	rt := &fakeRealtime{}
	second := newTestStore(t, fs.srv.URL, dir, rt)
	require.Equal(t, "tok-1", second.Session().Token())
	require.Equal(t, []string{"var-9"}, second.Comparison().Set().ProductIDs)
	require.Equal(t, "MXN", second.Preferences().Preferences().Currency)
	require.Equal(t, 4, second.Notifications().Counts().UnreadCount)
	require.False(t, second.ConnectionState().IsConnected, "realtime state is never persisted")

	require.True(t, second.Restore(ctx))
	require.Equal(t, []string{"tok-1"}, rt.tokens)
	require.True(t, second.Session().Authenticated())
	require.Equal(t, "u-1", second.Session().State().CurrentUser.ID)
}

func TestRealtimeEventsUpdateCountersAndSubscribers(t *testing.T) {
	fs := newFakeServer(t)
	rt := &fakeRealtime{}
	s := newTestStore(t, fs.srv.URL, t.TempDir(), rt)
	ctx := context.Background()

	var got []enums.RealtimeEvent
	unsubscribe := s.Subscribe(func(_ context.Context, ev realtime.Event) { got = append(got, ev.Name()) })

	rt.emit(ctx, realtime.Connected{})
	rt.emit(ctx, realtime.PriceAlertTriggered{VariantID: "v"})
	rt.emit(ctx, realtime.MessageSent{RFQID: "r", MessageID: "m"})
	rt.emit(ctx, realtime.MessageSent{RFQID: "r", MessageID: "m2"})
	unsubscribe()
	unsubscribe()
	rt.emit(ctx, realtime.RFQStatusChanged{RFQID: "r", Status: "quoted"})

	require.Equal(t, notifications.Counts{UnreadCount: 3, PriceAlerts: 1, RFQMessages: 2}, s.Notifications().Counts())
	require.Equal(t, []enums.RealtimeEvent{
		enums.RealtimeEventConnect,
		enums.RealtimeEventPriceAlertTriggered,
		enums.RealtimeEventMessageSent,
		enums.RealtimeEventMessageSent,
	}, got)
}

func TestStockEventsUpdateComparisonOffers(t *testing.T) {
	fs := newFakeServer(t)
	rt := &fakeRealtime{}
	s := newTestStore(t, fs.srv.URL, t.TempDir(), rt)
	ctx := context.Background()

	require.NoError(t, s.Comparison().Add(ctx, "var-1"))
	require.NoError(t, s.Comparison().SetData(ctx, "var-1", []comparison.ShopOffer{{ShopID: "s1", StockStatus: "in_stock"}}))
	rt.emit(ctx, realtime.StockStatusChanged{VariantID: "var-1", ShopID: "s1", Status: "low_stock"})

	require.Equal(t, "low_stock", s.Comparison().Set().Data["var-1"][0].StockStatus)
}

func TestComparisonCapComesFromParams(t *testing.T) {
	s, err := New(context.Background(), Params{
		NewAPI: func(tokens apiclient.TokenSource) (API, error) {
			return apiclient.NewClient("http://localhost:1", apiclient.WithTokenSource(tokens))
		},
		ComparisonCap: 2,
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Comparison().Add(ctx, "a"))
	require.NoError(t, s.Comparison().Add(ctx, "b"))
	require.True(t, pkgerrors.Is(s.Comparison().Add(ctx, "c"), pkgerrors.CodeConflict))
	require.Equal(t, realtime.ConnectionState{}, s.ConnectionState())
	require.Equal(t, preferences.Defaults(), s.Preferences().Preferences())
	require.Equal(t, session.State{}, s.Session().State())
	require.NoError(t, s.Close(ctx))
}

func TestNewRequiresAPIFactory(t *testing.T) {
	_, err := New(context.Background(), Params{})
	require.Error(t, err)
}

func TestSetLanguageDoesNotWaitForProfileSync(t *testing.T) {
	fs := newFakeServer(t)
	s := newTestStore(t, fs.srv.URL, t.TempDir(), &fakeRealtime{})
	ctx := context.Background()

	require.NoError(t, s.Session().Login(ctx, "ana@example.com", "secret1"))
	fs.holdProfile.Store(true)
	release := sync.OnceFunc(func() { close(fs.profileGate) })
	t.Cleanup(release)

	start := time.Now()
	require.NoError(t, s.Preferences().SetLanguage(ctx, "es"))
	require.Less(t, time.Since(start), time.Second)
	require.Equal(t, "es", s.Preferences().Preferences().Language)
	require.Nil(t, s.Session().State().CurrentUser.Preferences, "profile is patched only after the server replies")

	release()
	require.Eventually(t, func() bool {
		u := s.Session().State().CurrentUser
		return u != nil && u.Preferences != nil && u.Preferences.Language == "es"
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Close(ctx))
}

func TestMarkReadDropsUnreadByCategoryCount(t *testing.T) {
	fs := newFakeServer(t)
	rt := &fakeRealtime{}
	s := newTestStore(t, fs.srv.URL, t.TempDir(), rt)
	ctx := context.Background()

	require.NoError(t, s.Notifications().UpdateCounts(ctx, notifications.CountsPatch{UnreadCount: intPtr(2)}))
	for i := 0; i < 3; i++ {
		rt.emit(ctx, realtime.PriceAlertTriggered{})
	}
	rt.emit(ctx, realtime.MessageSent{})
	require.Equal(t, 6, s.Notifications().Counts().UnreadCount)

	require.NoError(t, s.Notifications().MarkRead(ctx, enums.NotificationCategoryPriceAlerts))
	got := s.Notifications().Counts()
	require.Equal(t, 3, got.UnreadCount)
	require.Equal(t, 0, got.PriceAlerts)
	require.Equal(t, 1, got.RFQMessages)
}

func TestNewSessionTokenRestartsRealtime(t *testing.T) {
	fs := newFakeServer(t)
	rt := &fakeRealtime{}
	s := newTestStore(t, fs.srv.URL, t.TempDir(), rt)
	ctx := context.Background()

	require.NoError(t, s.Session().Login(ctx, "ana@example.com", "secret1"))
	require.NoError(t, s.Session().Login(ctx, "ana@example.com", "secret1"))
	require.Equal(t, 0, rt.disconnects, "same token keeps the running loop")

	require.NoError(t, s.Session().Login(ctx, "bo@example.com", "secret1"))
	require.Equal(t, 1, rt.disconnects)
	require.Equal(t, []string{"tok-1", "tok-1", "tok-2"}, rt.tokens)
	require.True(t, s.ConnectionState().IsConnected)
}

func intPtr(v int) *int { return &v }
