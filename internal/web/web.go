// Package web serves the read-only map endpoint and Prometheus metrics.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/roach88/gymlog/internal/gym"
)

// GymSource is the store surface the map endpoint reads.
type GymSource interface {
	GymsModifiedAfter(ctx context.Context, t time.Time) ([]gym.Gym, error)
}

// GymView is one gym as rendered for map clients.
type GymView struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Team         int     `json:"team"`
	TeamName     string  `json:"team_name"`
	Points       int     `json:"points"`
	Level        int     `json:"level"`
	InBattle     bool    `json:"in_battle"`
	Enabled      bool    `json:"enabled"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LastModified int64   `json:"last_modified"`
}

// GymsResponse is the body of GET /gyms.
type GymsResponse struct {
	// Timestamp is the newest last_modified returned, in unix seconds, or
	// the request's after value when nothing is newer. Clients pass it back
	// as after on their next poll.
	Timestamp int64     `json:"timestamp"`
	Gyms      []GymView `json:"gyms"`
}

// pinger is implemented by sources that can report their own health.
type pinger interface {
	Ping(ctx context.Context) error
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Server wires the HTTP routes.
type Server struct {
	gyms    GymSource
	metrics http.Handler
	logger  *slog.Logger
}

// NewServer creates a Server. metrics may be nil to omit /metrics.
func NewServer(gyms GymSource, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{gyms: gyms, metrics: metrics, logger: logger}
}

// Register attaches the routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/gyms", s.handleGyms)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// handleGyms serves GET /gyms?after=<unix seconds>.
func (s *Server) handleGyms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}

	var after int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", errors.New("after must be a non-negative unix timestamp"))
			return
		}
		after = v
	}

	gyms, err := s.gyms.GymsModifiedAfter(r.Context(), time.Unix(after, 0).UTC())
	if err != nil {
		s.logger.Error("query gyms failed", "after", after, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	resp := GymsResponse{Timestamp: after, Gyms: make([]GymView, 0, len(gyms))}
	for _, g := range gyms {
		modified := g.LastModified.Unix()
		if modified > resp.Timestamp {
			resp.Timestamp = modified
		}
		resp.Gyms = append(resp.Gyms, GymView{
			ID:           g.ID,
			Name:         g.Name,
			Description:  g.Description,
			Team:         g.Team,
			TeamName:     gym.TeamName(g.Team),
			Points:       g.Points,
			Level:        g.Level(),
			InBattle:     g.InBattle,
			Enabled:      g.Enabled,
			Latitude:     g.Latitude,
			Longitude:    g.Longitude,
			LastModified: modified,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.gyms.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Error("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
