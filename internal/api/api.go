// Package api exposes the session over a small REST surface so external
// tooling can observe the simulated fleet and drive fault injection.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/profile"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/session"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/simerrors"
)

// Server serves the status and control API for one session controller.
type Server struct {
	ctrl   *session.Controller
	router *mux.Router
	logger *slog.Logger
}

// New creates the API server and registers all routes.
func New(ctrl *session.Controller) *Server {
	s := &Server{
		ctrl:   ctrl,
		router: mux.NewRouter(),
		logger: slog.Default().With("component", "api"),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(
		s.ctrl.Metrics().Registry(), promhttp.HandlerOpts{}))

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/nodes", s.handleNodes).Methods(http.MethodGet)
	v1.HandleFunc("/nodes/{id}", s.handleNode).Methods(http.MethodGet)
	v1.HandleFunc("/presets", s.handlePresets).Methods(http.MethodGet)

	v1.HandleFunc("/profile", s.handleSetProfile).Methods(http.MethodPut)
	v1.HandleFunc("/profile/preset", s.handleApplyPreset).Methods(http.MethodPost)
	v1.HandleFunc("/fleet/desired", s.handleSetDesired).Methods(http.MethodPut)
	v1.HandleFunc("/reconnect", s.handleReconnectAll).Methods(http.MethodPost)
	v1.HandleFunc("/disconnect", s.handleDisconnectAll).Methods(http.MethodPost)
	v1.HandleFunc("/nodes/{id}/lag-spike", s.handleLagSpike).Methods(http.MethodPost)
	v1.HandleFunc("/nodes/{id}/timeout", s.handleTimeout).Methods(http.MethodPost)
}

// Handler returns the router wrapped with CORS, same-origin by default.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: []string{},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)
}

type nodeView struct {
	ID                    string  `json:"id"`
	Role                  string  `json:"role"`
	State                 string  `json:"state"`
	Endpoint              string  `json:"endpoint,omitempty"`
	LagSpikeActive        bool    `json:"lag_spike_active"`
	LagSpikeRemainingMS   int     `json:"lag_spike_remaining_ms,omitempty"`
	TimeoutActive         bool    `json:"timeout_active"`
	TimeoutElapsedSeconds float64 `json:"timeout_elapsed_seconds,omitempty"`
}

func viewOf(info session.NodeInfo) nodeView {
	return nodeView{
		ID:                    info.ID,
		Role:                  string(info.Role),
		State:                 info.State.String(),
		Endpoint:              info.Endpoint,
		LagSpikeActive:        info.LagSpikeActive,
		LagSpikeRemainingMS:   info.LagSpikeRemainingMS,
		TimeoutActive:         info.TimeoutActive,
		TimeoutElapsedSeconds: info.TimeoutElapsedSeconds,
	}
}

type statusView struct {
	Profile        profileView `json:"profile"`
	NodeCount      int         `json:"node_count"`
	DesiredClients int         `json:"desired_thin_clients"`
	Timestamp      int64       `json:"timestamp"`
}

type profileView struct {
	Enabled        bool     `json:"enabled"`
	DelayMS        int      `json:"delay_ms"`
	JitterMS       int      `json:"jitter_ms"`
	DropPercent    int      `json:"drop_percent"`
	FuzzPercent    int      `json:"fuzz_percent"`
	Classification string   `json:"classification"`
	Advisories     []string `json:"advisories,omitempty"`
}

func profileViewOf(p profile.Profile) profileView {
	return profileView{
		Enabled:        p.Enabled,
		DelayMS:        p.DelayMS,
		JitterMS:       p.JitterMS,
		DropPercent:    p.DropPercent,
		FuzzPercent:    p.FuzzPercent,
		Classification: p.Classify().String(),
		Advisories:     p.Advisories(),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "peersim",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, statusView{
		Profile:        profileViewOf(s.ctrl.BaseProfile()),
		NodeCount:      len(s.ctrl.NodeInfos()),
		DesiredClients: s.ctrl.DesiredThinClients(),
		Timestamp:      time.Now().Unix(),
	})
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	infos := s.ctrl.NodeInfos()
	views := make([]nodeView, 0, len(infos))
	for _, info := range infos {
		views = append(views, viewOf(info))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	info, ok := s.ctrl.NodeInfo(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, simerrors.Newf(simerrors.CodeNodeNotFound, "no node %q", mux.Vars(r)["id"]))
		return
	}
	s.writeJSON(w, http.StatusOK, viewOf(info))
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	type presetView struct {
		Name    string      `json:"name"`
		Debug   bool        `json:"debug,omitempty"`
		Profile profileView `json:"profile"`
	}
	presets := s.ctrl.Presets()
	views := make([]presetView, 0, len(presets))
	for _, p := range presets {
		views = append(views, presetView{Name: p.Name, Debug: p.Debug, Profile: profileViewOf(p.Profile)})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled     bool `json:"enabled"`
		DelayMS     int  `json:"delay_ms"`
		JitterMS    int  `json:"jitter_ms"`
		DropPercent int  `json:"drop_percent"`
		FuzzPercent int  `json:"fuzz_percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, simerrors.Wrap(simerrors.CodeInvalidState, err, "decoding profile"))
		return
	}
	s.ctrl.SetBaseProfile(profile.Profile{
		Enabled:     req.Enabled,
		DelayMS:     req.DelayMS,
		JitterMS:    req.JitterMS,
		DropPercent: req.DropPercent,
		FuzzPercent: req.FuzzPercent,
	})
	s.writeJSON(w, http.StatusOK, profileViewOf(s.ctrl.BaseProfile()))
}

func (s *Server) handleApplyPreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, simerrors.Wrap(simerrors.CodeInvalidState, err, "decoding preset request"))
		return
	}
	if err := s.ctrl.ApplyPreset(req.Name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, profileViewOf(s.ctrl.BaseProfile()))
}

func (s *Server) handleSetDesired(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Desired int `json:"desired"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, simerrors.Wrap(simerrors.CodeInvalidState, err, "decoding fleet request"))
		return
	}
	s.ctrl.SetDesiredThinClients(req.Desired)
	s.writeJSON(w, http.StatusOK, map[string]int{"desired": s.ctrl.DesiredThinClients()})
}

func (s *Server) handleReconnectAll(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ReconnectAll()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisconnectAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	// An empty body is fine; the reason is diagnostic only.
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "api request"
	}
	s.ctrl.DisconnectAllFromServer(req.Reason)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLagSpike(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DurationMS int `json:"duration_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, simerrors.Wrap(simerrors.CodeInvalidState, err, "decoding lag spike request"))
		return
	}
	active, err := s.ctrl.ToggleLagSpike(mux.Vars(r)["id"], req.DurationMS)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (s *Server) handleTimeout(w http.ResponseWriter, r *http.Request) {
	active, err := s.ctrl.ToggleForcedTimeout(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encoding response failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := simerrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case simerrors.CodeNodeNotFound:
		status = http.StatusNotFound
	case simerrors.CodeEmulationDisabled:
		status = http.StatusConflict
	case simerrors.CodeInvalidState, simerrors.CodeInvalidEndpoint:
		status = http.StatusBadRequest
	}
	s.writeJSON(w, status, map[string]string{
		"code":  string(code),
		"error": err.Error(),
	})
}
