// Package server exposes simulations and trace analysis over HTTP, and streams
// simulation frames to visualisation clients over a websocket.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"

	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/analysis"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/config"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/scenario"
	"github.com/dtanony/ADS-Safety-Benchmark-and-Shield/internal/trace"
)

// maxBody bounds request bodies; recorded traces are the largest payloads.
const maxBody = 64 << 20

// Server routes requests to the scenario and analysis packages.
type Server struct {
	profiles config.Profiles
	router   *mux.Router
	upgrader websocket.Upgrader
}

// New returns a server simulating with profiles.
func New(profiles config.Profiles) *Server {
	s := &Server{
		profiles: profiles,
		router:   mux.NewRouter(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
	s.router.Use(logRequests)
	s.router.HandleFunc("/profiles", s.handleProfiles).Methods("GET")
	s.router.HandleFunc("/simulate", s.handleSimulate).Methods("POST")
	s.router.HandleFunc("/simulate/ws", s.handleStream).Methods("GET")
	s.router.HandleFunc("/analyze", s.handleAnalyze).Methods("POST")
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("server: listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("server: writing response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.profiles)
}

func decodeInput(w http.ResponseWriter, r *http.Request) (scenario.Input, error) {
	var in scenario.Input
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&in); err != nil {
		return in, errors.Wrap(err, "invalid input JSON")
	}
	return in, nil
}

// handleSimulate runs one simulation and replies with its log.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sim, meta, err := in.Build(s.profiles)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := sim.RunContext(r.Context(), meta.MaxTime)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, scenario.Log{Meta: meta, Result: res, Output: sim.Frames})
}

// handleAnalyze evaluates a recorded trace posted as the request body. The name query
// parameter labels the record; it defaults to "trace.json".
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "trace.json"
	}
	tr, err := trace.Decode(http.MaxBytesReader(w, r.Body, maxBody), name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rec, err := analysis.Analyze(tr)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, trace.ErrNotFound) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// requestID is the context key of the per-request ID.
type requestID struct{}

// RequestID returns the ID logRequests assigned to the request, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestID{}).(string)
	return id
}

// statusRecorder captures the response status for the access log. It keeps the
// underlying writer hijackable for websocket upgrades.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewV4().String()
		w.Header().Set("X-Request-ID", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestID{}, id)))

		log.WithFields(log.Fields{
			"request":  id,
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		}).Info("server: request")
	})
}
