package main

import (
	"encoding/json"
	"net/http"

	"github.com/angelmondragon/buildmatch-client/internal/persistence"
	"github.com/angelmondragon/buildmatch-client/pkg/logger"
	"github.com/angelmondragon/buildmatch-client/pkg/realtime"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type statusSource interface {
	Snapshot() persistence.Snapshot
	ConnectionState() realtime.ConnectionState
}

type statusView struct {
	Authenticated   bool                     `json:"authenticated"`
	UserID          string                   `json:"user_id,omitempty"`
	BOMID           string                   `json:"bom_id,omitempty"`
	BOMItemCount    int                      `json:"bom_item_count"`
	ComparisonCount int                      `json:"comparison_count"`
	UnreadCount     int                      `json:"unread_count"`
	Realtime        realtime.ConnectionState `json:"realtime"`
}

func newStatusRouter(src statusSource, gatherer prometheus.Gatherer, logg *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		snap := src.Snapshot()
		view := statusView{
			Authenticated:   snap.Session.IsAuthenticated,
			BOMID:           snap.BOM.ID,
			BOMItemCount:    snap.BOM.ItemCount,
			ComparisonCount: len(snap.Comparison.ProductIDs),
			UnreadCount:     snap.Notifications.UnreadCount,
			Realtime:        src.ConnectionState(),
		}
		if snap.Session.CurrentUser != nil {
			view.UserID = snap.Session.CurrentUser.ID
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(view); err != nil {
			logg.Error(req.Context(), "encode status", err)
		}
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
