package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/pool-dashboard/internal/dashboard"
	"github.com/example/pool-dashboard/internal/hub"
	"github.com/example/pool-dashboard/internal/models"
)

// Upstream is the slice of facade operations the HTTP surface proxies
// directly, without going through a reconciler.
type Upstream interface {
	AllRides(ctx context.Context) ([]models.Ride, error)
	AllCabs(ctx context.Context) ([]models.Cab, error)
	Health(ctx context.Context) error
}

type Server struct {
	logger      *slog.Logger
	upstream    Upstream
	reconcilers map[dashboard.Role]*dashboard.Reconciler
	hub         *hub.Hub
	mux         *mux.Router
}

func NewServer(logger *slog.Logger, upstream Upstream, passenger, driver *dashboard.Reconciler, h *hub.Hub) *Server {
	s := &Server{
		logger:   logger,
		upstream: upstream,
		reconcilers: map[dashboard.Role]*dashboard.Reconciler{
			dashboard.RolePassenger: passenger,
			dashboard.RoleDriver:    driver,
		},
		hub: h,
		mux: mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())

	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/{role}/subject", s.handleSelectSubject).Methods("POST")
	api.HandleFunc("/{role}/state", s.handleState).Methods("GET")
	api.HandleFunc("/{role}/pickup-reference", s.handlePickupReference).Methods("POST")
	api.HandleFunc("/rides/{ride_id}/cancel", s.handleCancelRide).Methods("POST")
	api.HandleFunc("/rides", s.handleListRides).Methods("GET")
	api.HandleFunc("/cabs", s.handleListCabs).Methods("GET")

	s.mux.HandleFunc("/ws/{role}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// The gateway is healthy as long as it runs; upstream reachability is
	// reported but does not fail the probe, the reconcilers ride out outages.
	status := map[string]string{"status": "ok", "upstream": "ok"}
	if err := s.upstream.Health(r.Context()); err != nil {
		status["upstream"] = "unreachable"
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) reconcilerFor(w http.ResponseWriter, r *http.Request) (*dashboard.Reconciler, bool) {
	role := dashboard.Role(mux.Vars(r)["role"])
	rec, ok := s.reconcilers[role]
	if !ok {
		http.Error(w, "unknown role", http.StatusNotFound)
		return nil, false
	}
	return rec, true
}

func (s *Server) handleSelectSubject(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.reconcilerFor(w, r)
	if !ok {
		return
	}
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec.SelectSubject(req.ID)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.reconcilerFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec.Model())
}

func (s *Server) handlePickupReference(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.reconcilerFor(w, r)
	if !ok {
		return
	}
	var req struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rec.SetPickupReference(models.Coord{Lat: req.Lat, Lng: req.Lng})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["ride_id"]
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	// Cancellation is a passenger action; the outcome lands on the render
	// model via the refresh the reconciler runs after the upstream call.
	s.reconcilers[dashboard.RolePassenger].CancelRide(rideID, req.Reason)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	rides, err := s.upstream.AllRides(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, rides)
}

func (s *Server) handleListCabs(w http.ResponseWriter, r *http.Request) {
	cabs, err := s.upstream.AllCabs(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, cabs)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	role := dashboard.Role(mux.Vars(r)["role"])
	rec, ok := s.reconcilers[role]
	if !ok {
		http.Error(w, "unknown role", http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its error response.
		return
	}

	// Seed the new client with the current model before registering it. The
	// connection is not visible to Broadcast yet, so this write cannot
	// interleave with one; gorilla allows only a single concurrent writer.
	if err := conn.WriteJSON(rec.Model()); err != nil {
		conn.Close()
		return
	}
	id := uuid.NewString()
	s.hub.Add(role, id, conn)

	// Clients never send application messages; the read loop only notices
	// the close.
	go func() {
		defer func() {
			s.hub.Remove(role, id)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
