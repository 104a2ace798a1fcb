package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/issuekit/jira-bridge/internal/audit"
	"github.com/issuekit/jira-bridge/internal/config"
	"github.com/issuekit/jira-bridge/internal/logger"
	"github.com/issuekit/jira-bridge/internal/rpc"
	"github.com/issuekit/jira-bridge/pkg/protocol"
)

var log = logger.ForComponent("server")

// Server is the HTTP transport: POST /rpc for JSON-RPC envelopes, GET / for
// a plain-text health acknowledgement. Each call is handled independently;
// the only shared state is the immutable Config and the audit store.
type Server struct {
	cfg        *config.Config
	dispatcher *rpc.Dispatcher
	auditStore *audit.Store
	httpServer *http.Server
}

// New wires the transport. The audit store may be nil, which disables
// call logging.
func New(cfg *config.Config, dispatcher *rpc.Dispatcher, auditStore *audit.Store) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: dispatcher,
		auditStore: auditStore,
	}

	s.httpServer = &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: s.Handler(),
	}

	return s
}

// Handler returns the route mux. Exposed so tests can drive the transport
// without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.HandleFunc("/", s.handleHealth)
	return mux
}

func (s *Server) ListenAndServe() error {
	log.Info("listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("jira-bridge is running\n"))
}

// handleRPC accepts one JSON-RPC envelope per call. Transport-level failures
// (undecodable body, missing method, incomplete credentials) answer with a
// bare {error} object and an HTTP error status, never a JSON-RPC envelope;
// everything past that point answers 200 with exactly one envelope.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writePlainError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req protocol.JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writePlainError(w, http.StatusBadRequest, "invalid JSON-RPC request body")
		return
	}

	if req.Method == "" {
		writePlainError(w, http.StatusBadRequest, "missing method")
		s.record(audit.Entry{Method: "", Status: audit.StatusRejected, Detail: "missing method"})
		return
	}

	if err := s.cfg.ValidateCredentials(); err != nil {
		writePlainError(w, http.StatusInternalServerError, err.Error())
		s.record(audit.Entry{Method: req.Method, Status: audit.StatusRejected, Detail: err.Error()})
		return
	}

	start := time.Now()
	resp := s.dispatcher.Dispatch(r.Context(), &req)
	elapsed := time.Since(start)

	entry := audit.Entry{
		Method:    req.Method,
		Status:    audit.StatusOK,
		ElapsedMS: elapsed.Milliseconds(),
	}
	if resp.Error != nil {
		entry.Status = audit.StatusError
		entry.Code = resp.Error.Code
		entry.Detail = resp.Error.Message
	}
	s.record(entry)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) record(e audit.Entry) {
	if s.auditStore == nil {
		return
	}
	if err := s.auditStore.Record(e); err != nil {
		log.Warn("failed to record audit entry", "error", err)
	}
}

func writePlainError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn("failed to write response", "error", err)
	}
}
