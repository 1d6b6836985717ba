package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/pool-dashboard/internal/dashboard"
	"github.com/example/pool-dashboard/internal/hub"
	"github.com/example/pool-dashboard/internal/models"
	"github.com/example/pool-dashboard/internal/stream"
)

type fakeUpstream struct {
	mu        sync.Mutex
	healthErr error
	cabs      []models.Cab
	rides     []models.Ride
	cancels   []string
}

func (f *fakeUpstream) PassengerDashboard(ctx context.Context, id string) (*models.PassengerDashboard, error) {
	return &models.PassengerDashboard{ActiveRide: &models.Ride{ID: "ride-" + id}}, nil
}

func (f *fakeUpstream) DriverDashboard(ctx context.Context, id string) (*models.DriverDashboard, error) {
	return &models.DriverDashboard{}, nil
}

func (f *fakeUpstream) AllCabs(ctx context.Context) ([]models.Cab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cabs, nil
}

func (f *fakeUpstream) AllRides(ctx context.Context) ([]models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rides, nil
}

func (f *fakeUpstream) CancelRide(ctx context.Context, rideID, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, rideID+":"+reason)
	return nil
}

func (f *fakeUpstream) Health(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthErr
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeUpstream, *hub.Hub) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	upstream := &fakeUpstream{}
	h := hub.New(logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	noStream := func(ctx context.Context, subjectID string, onEvent func(stream.Event)) dashboard.Subscription {
		return nopSub{}
	}
	passenger := dashboard.New(dashboard.Options{
		Role: dashboard.RolePassenger, Facade: upstream, OpenStream: noStream,
		Publish: h.Broadcast, Logger: logger,
	})
	driver := dashboard.New(dashboard.Options{
		Role: dashboard.RoleDriver, Facade: upstream, OpenStream: noStream,
		Publish: h.Broadcast, Logger: logger,
	})
	go passenger.Run(ctx)
	go driver.Run(ctx)

	srv := httptest.NewServer(NewServer(logger, upstream, passenger, driver, h))
	t.Cleanup(srv.Close)
	return srv, upstream, h
}

type nopSub struct{}

func (nopSub) Close() {}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestHealthReportsUpstreamButStaysOK(t *testing.T) {
	srv, upstream, _ := newTestServer(t)

	var body map[string]string
	if code := getJSON(t, srv.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["upstream"] != "ok" {
		t.Fatalf("expected upstream ok, got %q", body["upstream"])
	}

	upstream.mu.Lock()
	upstream.healthErr = errors.New("down")
	upstream.mu.Unlock()

	if code := getJSON(t, srv.URL+"/healthz", &body); code != http.StatusOK {
		t.Fatalf("probe must not fail on upstream outage, got %d", code)
	}
	if body["upstream"] != "unreachable" {
		t.Fatalf("expected unreachable, got %q", body["upstream"])
	}
}

func TestUnknownRoleIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if code := getJSON(t, srv.URL+"/api/v1/ghost/state", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestSelectSubjectThenState(t *testing.T) {
	srv, _, _ := newTestServer(t)

	if code := postJSON(t, srv.URL+"/api/v1/passenger/subject", `{"id":"p7"}`); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		var m dashboard.RenderModel
		getJSON(t, srv.URL+"/api/v1/passenger/state", &m)
		if m.State == dashboard.StateReady {
			if m.ActiveRide == nil || m.ActiveRide.ID != "ride-p7" {
				t.Fatalf("unexpected snapshot: %+v", m.ActiveRide)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("state never reached READY, last: %+v", m)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCancelRideForwarded(t *testing.T) {
	srv, upstream, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/v1/passenger/subject", `{"id":"p1"}`)

	if code := postJSON(t, srv.URL+"/api/v1/rides/r42/cancel", `{"reason":"missed it"}`); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		upstream.mu.Lock()
		n := len(upstream.cancels)
		var last string
		if n > 0 {
			last = upstream.cancels[n-1]
		}
		upstream.mu.Unlock()
		if n == 1 {
			if last != "r42:missed it" {
				t.Fatalf("cancel not forwarded verbatim: %q", last)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("cancel never reached upstream")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestListCabsProxied(t *testing.T) {
	srv, upstream, _ := newTestServer(t)
	upstream.mu.Lock()
	upstream.cabs = []models.Cab{{ID: "cab1", Status: models.CabAvailable}}
	upstream.mu.Unlock()

	var cabs []models.Cab
	if code := getJSON(t, srv.URL+"/api/v1/cabs", &cabs); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(cabs) != 1 || cabs[0].ID != "cab1" {
		t.Fatalf("unexpected cabs: %+v", cabs)
	}
}

func TestWebSocketConnectDuringBroadcastStorm(t *testing.T) {
	srv, _, h := newTestServer(t)

	// Broadcast continuously while clients connect; the seed write and the
	// hub's writes must never overlap on one connection.
	stop := make(chan struct{})
	broadcastDone := make(chan struct{})
	go func() {
		defer close(broadcastDone)
		for {
			select {
			case <-stop:
				return
			default:
				h.Broadcast(dashboard.RenderModel{Role: dashboard.RolePassenger, SubjectID: "p1", State: dashboard.StateReady})
			}
		}
	}()
	t.Cleanup(func() { close(stop); <-broadcastDone })

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/passenger"
	for i := 0; i < 30; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))

		// The first frame must be an intact render model, whether it is the
		// seed or an already-flowing broadcast.
		var m dashboard.RenderModel
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("first read %d: %v", i, err)
		}
		if m.Role != dashboard.RolePassenger {
			t.Fatalf("corrupt first frame %d: %+v", i, m)
		}
		conn.Close()
	}
}

func TestWebSocketSeedsAndPushes(t *testing.T) {
	srv, _, h := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/passenger"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var seeded dashboard.RenderModel
	if err := conn.ReadJSON(&seeded); err != nil {
		t.Fatalf("seed read: %v", err)
	}
	if seeded.Role != dashboard.RolePassenger || seeded.State != dashboard.StateIdle {
		t.Fatalf("unexpected seed model: %+v", seeded)
	}

	h.Broadcast(dashboard.RenderModel{Role: dashboard.RolePassenger, State: dashboard.StateReady, SubjectID: "p1"})

	var pushed dashboard.RenderModel
	if err := conn.ReadJSON(&pushed); err != nil {
		t.Fatalf("push read: %v", err)
	}
	if pushed.State != dashboard.StateReady || pushed.SubjectID != "p1" {
		t.Fatalf("unexpected pushed model: %+v", pushed)
	}
}
