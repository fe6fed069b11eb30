package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ValentinKolb/netstack/lib/registry"
	"github.com/julienschmidt/httprouter"
)

// metricsServer serves the process metrics and the statistics of the active
// sessions over HTTP
type metricsServer struct {
	endpoint string
	bridge   *RPCServer
	server   *http.Server
	router   *httprouter.Router
}

func newMetricsServer(endpoint string, bridge *RPCServer) *metricsServer {
	m := &metricsServer{
		endpoint: endpoint,
		bridge:   bridge,
		router:   httprouter.New(),
	}
	m.setupRoutes()
	m.server = &http.Server{
		Addr:              endpoint,
		Handler:           m.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return m
}

func (m *metricsServer) setupRoutes() {
	m.router.GET("/metrics", m.handleMetrics)
	m.router.GET("/health", m.handleHealth)
	m.router.GET("/sessions", m.handleSessions)
	m.router.GET("/sessions/:id", m.handleSession)
}

// start listens on the endpoint and serves until stop is called
func (m *metricsServer) start() error {
	listener, err := net.Listen("tcp", m.endpoint)
	if err != nil {
		return err
	}
	Logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())
	if err := m.server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (m *metricsServer) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.server.Shutdown(ctx)
}

func (m *metricsServer) handleMetrics(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	registry.WritePrometheus(w)
}

func (m *metricsServer) handleHealth(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": m.bridge.Sessions(),
	})
}

func (m *metricsServer) handleSessions(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	stats := m.bridge.Stats()
	out := make(map[string]registry.Stats, len(stats))
	for id, s := range stats {
		out[strconv.FormatUint(id, 10)] = s
	}
	writeJSON(w, http.StatusOK, out)
}

func (m *metricsServer) handleSession(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	id, err := strconv.ParseUint(ps.ByName("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return
	}
	r, ok := m.bridge.sessions.Load(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		return
	}
	writeJSON(w, http.StatusOK, r.Stats())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Debugf("failed to write response: %v", err)
	}
}
