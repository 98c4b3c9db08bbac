package system

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"norelock.dev/osmcremote/internal/utils"
)

func TestHealthAggregatesComponents(t *testing.T) {
	s := NewHealthService(utils.NewNopLogger(), HealthServiceConfig{Version: "test", Environment: "test"})

	status := StatusUp
	s.Register("mediacenter", func(ctx context.Context) (HealthStatus, string, map[string]any) {
		return status, "media center", map[string]any{"failures": 0}
	})
	s.Register("pages", func(ctx context.Context) (HealthStatus, string, map[string]any) {
		return StatusUp, "", nil
	})

	s.CheckHealth(context.Background())
	h := s.GetHealth(context.Background())
	if h.Status != StatusUp {
		t.Fatalf("status = %s", h.Status)
	}
	if len(h.Components) != 2 || h.Components[0].Name != "mediacenter" {
		t.Fatalf("components = %+v", h.Components)
	}

	status = StatusDegraded
	s.CheckHealth(context.Background())
	if h := s.GetHealth(context.Background()); h.Status != StatusDegraded {
		t.Fatalf("status = %s, want degraded", h.Status)
	}

	status = StatusDown
	s.CheckHealth(context.Background())
	if h := s.GetHealth(context.Background()); h.Status != StatusDown {
		t.Fatalf("status = %s, want down", h.Status)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetricsService(utils.NewNopLogger())
	m.ObserveCall("websocket", "Player.PlayPause", nil, 10*time.Millisecond)
	m.ObserveCall("http", "Input.Up", errors.New("timeout"), 2*time.Second)
	m.ObserveNotification("Player.OnPlay")
	m.ObserveConnection("websocket", true)
	m.IncGestures("navigate")

	// A second service must not collide with the first.
	_ = NewMetricsService(utils.NewNopLogger())

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)

	for _, want := range []string{
		`osmcremote_mediacenter_calls_total{method="Player.PlayPause",outcome="ok",transport="websocket"} 1`,
		`osmcremote_mediacenter_calls_total{method="Input.Up",outcome="error",transport="http"} 1`,
		`osmcremote_mediacenter_notifications_total{method="Player.OnPlay"} 1`,
		`osmcremote_mediacenter_connection_up{transport="websocket"} 1`,
		`osmcremote_gestures_total{kind="navigate"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output is missing %s", want)
		}
	}
}
