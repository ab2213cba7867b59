package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/buildmatch-client/internal/bom"
	"github.com/angelmondragon/buildmatch-client/internal/comparison"
	"github.com/angelmondragon/buildmatch-client/internal/notifications"
	"github.com/angelmondragon/buildmatch-client/internal/persistence"
	"github.com/angelmondragon/buildmatch-client/internal/session"
	"github.com/angelmondragon/buildmatch-client/pkg/apiclient"
	"github.com/angelmondragon/buildmatch-client/pkg/logger"
	"github.com/angelmondragon/buildmatch-client/pkg/metrics"
	"github.com/angelmondragon/buildmatch-client/pkg/realtime"
	"github.com/prometheus/client_golang/prometheus"
)

type stubStatus struct{}

func (stubStatus) Snapshot() persistence.Snapshot {
	return persistence.Snapshot{
		Session:       session.Persisted{CurrentUser: &apiclient.User{ID: "u-1"}, AuthToken: "tok", IsAuthenticated: true},
		BOM:           bom.Draft{ID: "bom-1", ItemCount: 2},
		Comparison:    comparison.Set{ProductIDs: []string{"a", "b", "c"}},
		Notifications: notifications.Counts{UnreadCount: 5},
	}
}

func (stubStatus) ConnectionState() realtime.ConnectionState {
	return realtime.ConnectionState{IsConnected: true}
}

func TestStatusRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewClientMetrics(reg).IncReconnect()
	srv := httptest.NewServer(newStatusRouter(stubStatus{}, reg, logger.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var view statusView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	resp.Body.Close()
	if !view.Authenticated || view.UserID != "u-1" || view.BOMID != "bom-1" || view.BOMItemCount != 2 ||
		view.ComparisonCount != 3 || view.UnreadCount != 5 || !view.Realtime.IsConnected {
		t.Fatalf("unexpected status %+v", view)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(buf.String(), "buildmatch_realtime_reconnect_attempts_total 1") {
		t.Fatalf("expected reconnect counter in metrics output")
	}
}
