package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/issuekit/jira-bridge/internal/config"
	"github.com/issuekit/jira-bridge/internal/rpc"
)

type spyAdapter struct {
	calls  int
	result interface{}
	err    error
}

func (s *spyAdapter) CreateIssue(ctx context.Context, p rpc.CreateIssueParams) (interface{}, error) {
	s.calls++
	return s.result, s.err
}

func (s *spyAdapter) UpdateIssue(ctx context.Context, p rpc.UpdateIssueParams) (interface{}, error) {
	s.calls++
	return s.result, s.err
}

func (s *spyAdapter) GetIssue(ctx context.Context, p rpc.GetIssueParams) (interface{}, error) {
	s.calls++
	return s.result, s.err
}

func (s *spyAdapter) SearchIssues(ctx context.Context, p rpc.SearchIssuesParams) (interface{}, error) {
	s.calls++
	return s.result, s.err
}

func validConfig() *config.Config {
	return &config.Config{
		BaseURL:  "https://tracker.example.com",
		Username: "agent@example.com",
		APIToken: "secret",
	}
}

func newTestServer(cfg *config.Config, spy *spyAdapter) *Server {
	dispatcher := rpc.NewDispatcher(cfg, func(c *config.Config) rpc.Adapter { return spy })
	return New(cfg, dispatcher, nil)
}

func postRPC(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return envelope
}

func TestGetIssueSuccess(t *testing.T) {
	spy := &spyAdapter{result: map[string]interface{}{"key": "PROJ-1", "fields": map[string]interface{}{}}}
	srv := newTestServer(validConfig(), spy)

	rec := postRPC(t, srv.Handler(), `{"jsonrpc":"2.0","method":"get_issue","params":{"issueKey":"PROJ-1"},"id":1}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope["jsonrpc"] != "2.0" {
		t.Errorf("expected jsonrpc 2.0, got %v", envelope["jsonrpc"])
	}
	if envelope["id"] != float64(1) {
		t.Errorf("expected id 1 echoed, got %v", envelope["id"])
	}
	result, _ := envelope["result"].(map[string]interface{})
	if result["key"] != "PROJ-1" {
		t.Errorf("expected adapter result, got %v", envelope["result"])
	}
	if _, ok := envelope["error"]; ok {
		t.Error("expected no error field on success")
	}
	if spy.calls != 1 {
		t.Errorf("expected exactly one adapter call, got %d", spy.calls)
	}
}

func TestUnknownMethod(t *testing.T) {
	spy := &spyAdapter{}
	srv := newTestServer(validConfig(), spy)

	rec := postRPC(t, srv.Handler(), `{"method":"frobnicate","id":2}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for protocol-level errors, got %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	rpcError, _ := envelope["error"].(map[string]interface{})
	if rpcError == nil {
		t.Fatal("expected a JSON-RPC error")
	}
	if rpcError["code"] != float64(-32601) {
		t.Errorf("expected code -32601, got %v", rpcError["code"])
	}
	if rpcError["message"] != "Method not found" {
		t.Errorf("expected 'Method not found', got %v", rpcError["message"])
	}
	if envelope["id"] != float64(2) {
		t.Errorf("expected id 2 echoed, got %v", envelope["id"])
	}
	if spy.calls != 0 {
		t.Errorf("expected no adapter calls, got %d", spy.calls)
	}
}

func TestUpdateIssueResult(t *testing.T) {
	spy := &spyAdapter{result: map[string]interface{}{"ok": true}}
	srv := newTestServer(validConfig(), spy)

	rec := postRPC(t, srv.Handler(), `{"method":"update_issue","params":{"issueKey":"X-1","fields":{"summary":"a"}},"id":3}`)

	envelope := decodeEnvelope(t, rec)
	result, _ := envelope["result"].(map[string]interface{})
	if result["ok"] != true {
		t.Errorf("expected {ok: true}, got %v", envelope["result"])
	}
	if envelope["id"] != float64(3) {
		t.Errorf("expected id 3 echoed, got %v", envelope["id"])
	}
}

func TestMissingCredentials(t *testing.T) {
	spy := &spyAdapter{}
	cfg := &config.Config{Username: "agent@example.com", APIToken: "secret"}
	srv := newTestServer(cfg, spy)

	rec := postRPC(t, srv.Handler(), `{"method":"get_issue","params":{"issueKey":"PROJ-1"},"id":4}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !strings.Contains(body["error"], "JIRA_BASE_URL") {
		t.Errorf("expected the missing credential named, got %q", body["error"])
	}
	if _, ok := body["jsonrpc"]; ok {
		t.Error("expected a plain error body, not a JSON-RPC envelope")
	}
	if spy.calls != 0 {
		t.Errorf("expected no adapter calls without credentials, got %d", spy.calls)
	}
}

func TestAdapterFailure(t *testing.T) {
	spy := &spyAdapter{err: errors.New("dial tcp: connection refused")}
	srv := newTestServer(validConfig(), spy)

	rec := postRPC(t, srv.Handler(), `{"method":"create_issue","params":{"projectKey":"PROJ","summary":"s"},"id":7}`)

	envelope := decodeEnvelope(t, rec)
	rpcError, _ := envelope["error"].(map[string]interface{})
	if rpcError == nil {
		t.Fatal("expected a JSON-RPC error")
	}
	if rpcError["code"] != float64(-32000) {
		t.Errorf("expected code -32000, got %v", rpcError["code"])
	}
	if rpcError["message"] != "dial tcp: connection refused" {
		t.Errorf("expected underlying message, got %v", rpcError["message"])
	}
	if envelope["id"] != float64(7) {
		t.Errorf("expected id 7 echoed, got %v", envelope["id"])
	}
}

func TestAbsentIDStaysAbsent(t *testing.T) {
	spy := &spyAdapter{result: "done"}
	srv := newTestServer(validConfig(), spy)

	rec := postRPC(t, srv.Handler(), `{"method":"get_issue","params":{"issueKey":"PROJ-1"}}`)

	envelope := decodeEnvelope(t, rec)
	if _, ok := envelope["id"]; ok {
		t.Errorf("expected id to be absent, got %v", envelope["id"])
	}
	if envelope["result"] != "done" {
		t.Errorf("expected result, got %v", envelope["result"])
	}
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(validConfig(), &spyAdapter{})

	rec := postRPC(t, srv.Handler(), `{not json`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected a plain error message")
	}
}

func TestMissingMethod(t *testing.T) {
	spy := &spyAdapter{}
	srv := newTestServer(validConfig(), spy)

	rec := postRPC(t, srv.Handler(), `{"jsonrpc":"2.0","params":{},"id":9}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] != "missing method" {
		t.Errorf("expected 'missing method', got %q", body["error"])
	}
	if spy.calls != 0 {
		t.Errorf("expected no adapter calls, got %d", spy.calls)
	}
}

func TestRPCRequiresPost(t *testing.T) {
	srv := newTestServer(validConfig(), &spyAdapter{})

	req := httptest.NewRequest(http.MethodGet, "/rpc", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(validConfig(), &spyAdapter{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "jira-bridge") {
		t.Errorf("expected plain text acknowledgement, got %q", rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("expected text/plain, got %q", rec.Header().Get("Content-Type"))
	}
}
