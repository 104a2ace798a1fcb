package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/issuekit/jira-bridge/internal/config"
	"github.com/issuekit/jira-bridge/internal/logger"
	"github.com/issuekit/jira-bridge/pkg/protocol"
)

var log = logger.ForComponent("rpc")

// AdapterFactory builds a fresh Adapter for a single call. No adapter state
// survives across requests.
type AdapterFactory func(cfg *config.Config) Adapter

// Dispatcher resolves JSON-RPC methods and normalizes handler outcomes into
// the JSON-RPC result/error contract. The Config is injected once at
// construction; the Dispatcher never reads the environment itself.
type Dispatcher struct {
	cfg        *config.Config
	newAdapter AdapterFactory
}

func NewDispatcher(cfg *config.Config, factory AdapterFactory) *Dispatcher {
	return &Dispatcher{
		cfg:        cfg,
		newAdapter: factory,
	}
}

// Dispatch handles one envelope and always produces exactly one response
// envelope, echoing the request id verbatim (including its absence).
func (d *Dispatcher) Dispatch(ctx context.Context, req *protocol.JSONRPCRequest) *protocol.JSONRPCResponse {
	result, rpcErr := d.Call(ctx, req.Method, req.Params)
	if rpcErr != nil {
		return &protocol.JSONRPCResponse{
			JSONRPC: protocol.Version,
			ID:      req.ID,
			Error:   rpcErr,
		}
	}
	return protocol.NewResult(req.ID, result)
}

// Call resolves and executes a single method. The returned error carries the
// JSON-RPC code for the failure; transports wrap it for their wire format.
func (d *Dispatcher) Call(ctx context.Context, method string, params map[string]interface{}) (result interface{}, rpcErr *protocol.JSONRPCError) {
	m, ok := ParseMethod(method)
	if !ok {
		log.Debug("method not found", "method", method)
		return nil, &protocol.JSONRPCError{
			Code:    protocol.CodeMethodNotFound,
			Message: "Method not found",
		}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic recovered",
				"method", method,
				"panic", r,
				"stack", string(debug.Stack()))
			result = nil
			rpcErr = &protocol.JSONRPCError{
				Code:    protocol.CodeServerError,
				Message: fmt.Sprintf("handler panicked: %v", r),
			}
		}
	}()

	adapter := d.newAdapter(d.cfg)

	var err error
	switch m {
	case MethodCreateIssue:
		var p CreateIssueParams
		if err = decodeParams(params, &p); err == nil {
			result, err = adapter.CreateIssue(ctx, p)
		}
	case MethodUpdateIssue:
		var p UpdateIssueParams
		if err = decodeParams(params, &p); err == nil {
			result, err = adapter.UpdateIssue(ctx, p)
		}
	case MethodGetIssue:
		var p GetIssueParams
		if err = decodeParams(params, &p); err == nil {
			result, err = adapter.GetIssue(ctx, p)
		}
	case MethodSearchIssues:
		var p SearchIssuesParams
		if err = decodeParams(params, &p); err == nil {
			result, err = adapter.SearchIssues(ctx, p)
		}
	}

	if err != nil {
		log.Warn("handler failed", "method", method, "error", err)
		return nil, &protocol.JSONRPCError{
			Code:    protocol.CodeServerError,
			Message: err.Error(),
		}
	}

	return result, nil
}

func decodeParams(params map[string]interface{}, out interface{}) error {
	if params == nil {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse params: %w", err)
	}
	return nil
}
