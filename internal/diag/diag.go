// Package diag exposes a loopback-only gorilla/mux debug server (spec
// §9 supplemented feature): session status, per-subscriber lane
// progress, and transport back-pressure counters, for operators
// debugging a stuck sync without instrumenting the host process.
package diag

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// StatusProvider is implemented by the host runtime to expose a
// snapshot of its current state without diag depending on internal/host
// (which would create an import cycle, since internal/host imports diag
// for the Status type).
type StatusProvider interface {
	Status() Status
}

// Status is the JSON body served at /status.
type Status struct {
	SessionID     string          `json:"session_id"`
	Cols, Rows    int             `json:"cols_rows"`
	Subscribers   []SubscriberRow `json:"subscribers"`
	HistoryRows   uint64          `json:"history_rows"`
}

// SubscriberRow summarizes one subscriber's lane progress.
type SubscriberRow struct {
	ID              string `json:"id"`
	ForegroundDone  bool   `json:"foreground_done"`
	RecentDone      bool   `json:"recent_done"`
	HistoryDone     bool   `json:"history_done"`
	PendingReassembly int  `json:"pending_reassembly"`
}

// Server is the loopback-only HTTP debug endpoint.
type Server struct {
	http   *http.Server
	router *mux.Router
}

// New builds a Server bound to provider's live status. It does not start
// listening until Serve is called.
func New(provider StatusProvider) *Server {
	r := mux.NewRouter()
	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(provider.Status())
	}).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return &Server{http: &http.Server{Handler: r}, router: r}
}

// Serve listens on 127.0.0.1:port, refusing any non-loopback bind so the
// debug endpoint can never be reached from outside the host machine.
func (s *Server) Serve(port int) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.http.Addr = addr
	return s.http.Serve(ln)
}

// Close shuts the server down.
func (s *Server) Close() error {
	return s.http.Close()
}
