package transport

import "encoding/json"

// RequestID is a JSON-RPC request identifier. The bridge always assigns
// integer ids (spec.md §3 Session: "a monotonic request-id counter"),
// but server-originated requests still echo whatever id they carry, so
// decoding accepts either shape.
type RequestID struct {
	value any
}

// NewRequestID wraps an integer id assigned by this process.
func NewRequestID(id int64) RequestID { return RequestID{value: id} }

// Int returns the id as an int64 and true if it was numeric.
func (r RequestID) Int() (int64, bool) {
	switch v := r.value.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func (r RequestID) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.value)
}

func (r *RequestID) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	r.value = v
	return nil
}

// Envelope is the minimal JSON-RPC 2.0 shape shared by requests,
// responses and notifications; decode into this first to discover which
// of the three a message is.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *RequestID      `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// IsRequest reports whether e is a request (has both id and method).
func (e *Envelope) IsRequest() bool { return e.ID != nil && e.Method != "" }

// IsNotification reports whether e is a notification (method, no id).
func (e *Envelope) IsNotification() bool { return e.ID == nil && e.Method != "" }

// IsResponse reports whether e is a response (id, no method).
func (e *Envelope) IsResponse() bool { return e.ID != nil && e.Method == "" }

// RequestMessage is an outgoing or incoming JSON-RPC request.
type RequestMessage struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      RequestID `json:"id"`
	Method  string    `json:"method"`
	Params  any       `json:"params,omitempty"`
}

// NotificationMessage is an outgoing or incoming JSON-RPC notification.
type NotificationMessage struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// ResponseMessage is an outgoing or incoming JSON-RPC response.
type ResponseMessage struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      RequestID      `json:"id"`
	Result  any            `json:"result,omitempty"`
	Error   *ResponseError `json:"error,omitempty"`
}

// ResponseError is a JSON-RPC 2.0 error object.
type ResponseError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ResponseError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Standard JSON-RPC 2.0 error codes, for building error responses with
// NewError.
const (
	ErrCodeMethodNotFound = -32601
	ErrCodeInternalError  = -32603
)

// NewRequest builds a RequestMessage with the given id, method and params.
func NewRequest(id RequestID, method string, params any) RequestMessage {
	return RequestMessage{JSONRPC: "2.0", ID: id, Method: method, Params: params}
}

// NewNotification builds a NotificationMessage.
func NewNotification(method string, params any) NotificationMessage {
	return NotificationMessage{JSONRPC: "2.0", Method: method, Params: params}
}

// NewResult builds a successful ResponseMessage.
func NewResult(id RequestID, result any) ResponseMessage {
	return ResponseMessage{JSONRPC: "2.0", ID: id, Result: result}
}

// NewError builds an error ResponseMessage.
func NewError(id RequestID, code int64, message string) ResponseMessage {
	return ResponseMessage{JSONRPC: "2.0", ID: id, Error: &ResponseError{Code: code, Message: message}}
}
