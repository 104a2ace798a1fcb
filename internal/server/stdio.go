package server

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/issuekit/jira-bridge/internal/config"
	"github.com/issuekit/jira-bridge/internal/rpc"
	"github.com/issuekit/jira-bridge/pkg/protocol"
)

// StdioServer serves the same dispatcher over a newline-delimited JSON-RPC
// stream on stdin/stdout, for agents that attach as a child process instead
// of over HTTP.
type StdioServer struct {
	cfg        *config.Config
	dispatcher *rpc.Dispatcher
}

func NewStdioServer(cfg *config.Config, dispatcher *rpc.Dispatcher) *StdioServer {
	return &StdioServer{
		cfg:        cfg,
		dispatcher: dispatcher,
	}
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *stdioReadWriteCloser) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *stdioReadWriteCloser) Close() error {
	rerr := s.reader.Close()
	werr := s.writer.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

// Serve blocks until the peer disconnects or the context is canceled.
func (s *StdioServer) Serve(ctx context.Context) error {
	rwc := &stdioReadWriteCloser{
		reader: os.Stdin,
		writer: os.Stdout,
	}

	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.PlainObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	defer conn.Close()

	log.Info("serving on stdio")

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-conn.DisconnectNotify():
		return nil
	}
}

// handle adapts one jsonrpc2 request onto the dispatcher. HTTP status codes
// do not exist on this transport, so configuration failures surface as
// -32603 instead of a 500.
func (s *StdioServer) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	if err := s.cfg.ValidateCredentials(); err != nil {
		return nil, &jsonrpc2.Error{
			Code:    protocol.CodeInternalError,
			Message: err.Error(),
		}
	}

	var params map[string]interface{}
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, &jsonrpc2.Error{
				Code:    protocol.CodeServerError,
				Message: "failed to parse params: " + err.Error(),
			}
		}
	}

	result, rpcErr := s.dispatcher.Call(ctx, req.Method, params)
	if rpcErr != nil {
		return nil, &jsonrpc2.Error{
			Code:    int64(rpcErr.Code),
			Message: rpcErr.Message,
		}
	}

	return result, nil
}
