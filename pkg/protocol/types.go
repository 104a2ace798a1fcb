package protocol

// Version is the JSON-RPC protocol version stamped on every response.
// Inbound requests are expected to carry it but it is not enforced.
const Version = "2.0"

// Reserved JSON-RPC error codes used by the bridge.
const (
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

type JSONRPCRequest struct {
	JSONRPC string                 `json:"jsonrpc,omitempty"`
	ID      interface{}            `json:"id,omitempty"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id,omitempty"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string {
	return e.Message
}

// NewResult wraps a handler result into a response envelope, echoing the
// request id verbatim (an absent id stays absent).
func NewResult(id, result interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: Version,
		ID:      id,
		Result:  result,
	}
}

// NewError wraps a failure into a response envelope with the request id echoed.
func NewError(id interface{}, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: Version,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
}
