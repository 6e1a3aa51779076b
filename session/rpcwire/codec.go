// Package rpcwire implements the newline-delimited JSON-RPC 2.0 codec that
// Electrum wallets speak: one JSON object (or array, for a batch) per line,
// with requests, notifications, and responses all multiplexed on the same
// connection.
package rpcwire

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// MaxLineSize bounds a single incoming JSON-RPC line, guarding against a
// misbehaving or hostile client flooding memory with one giant line.
const MaxLineSize = 1 << 20

// Request is a JSON-RPC request or notification (ID is nil for a
// notification, which gets no response).
type Request struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether r expects no response.
func (r *Request) IsNotification() bool { return len(r.ID) == 0 }

// Error is a JSON-RPC error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Standard JSON-RPC 2.0 error codes, plus Electrum's informal extensions.
const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
	ErrCostExceeded   = 1000
	ErrExcessHistory  = 1001
)

// Response is a JSON-RPC response or, with Method/Params set instead of
// ID/Result, an outbound notification to the client.
type Response struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  interface{}     `json:"params,omitempty"`
}

// Reader reads one JSON-RPC message (single request or a batch) per line.
type Reader struct {
	br *bufio.Reader
}

// NewReader wraps r for line-delimited JSON-RPC reading.
func NewReader(r io.Reader) *Reader {
	br := bufio.NewReaderSize(r, 4096)
	return &Reader{br: br}
}

// ReadBatch reads the next line and parses it as either a single request or
// a batch (JSON array) of requests.
func (r *Reader) ReadBatch() ([]*Request, error) {
	var line []byte
	for {
		chunk, err := r.br.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxLineSize {
			return nil, errors.New("json-rpc line exceeds MaxLineSize")
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && len(line) == 0 {
			return nil, err
		}
		break
	}
	trimmed := trimSpace(string(line))
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var reqs []*Request
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, errors.Wrap(err, "parse json-rpc batch")
		}
		if len(reqs) == 0 {
			return nil, errors.New("empty json-rpc batch")
		}
		return reqs, nil
	}
	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, errors.Wrap(err, "parse json-rpc request")
	}
	return []*Request{&req}, nil
}

func trimSpace(b string) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return []byte(b[start:end])
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }

// Encode serializes msg (or, for a batch, msgs) followed by a newline, the
// framing every Electrum client expects.
func Encode(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal json-rpc message")
	}
	return append(b, '\n'), nil
}
