package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/electrumx-go/electrumx/session/rpcwire"
	"github.com/electrumx-go/electrumx/wire"
)

// Session is one client connection's state: its protocol version, its
// scripthash subscriptions and their last-announced status, and its cost
// accounting.
type Session struct {
	id      uint64
	conn    Conn
	manager *Manager
	writer  *rpcwire.PaddedWriter
	reader  *rpcwire.Reader

	cost *CostLimiter

	mu              sync.Mutex
	versioned       bool
	protocolVersion string
	headersSub      bool
	subStatus       map[string]string // hashX (raw bytes as string) -> last status sent
	subKey          map[string]string // hashX (raw bytes as string) -> client's original scripthash hex
	subOutpoints    map[string]outpointSub
}

// outpointSub is one subscribed outpoint (blockchain.outpoint.subscribe),
// tracked by its natural-order tx hash and output index so status can be
// recomputed and diffed on every chain notification.
type outpointSub struct {
	txHash []byte
	outIdx uint32
	status string // JSON-encoded last-sent status, for change detection
}

func newSession(id uint64, conn Conn, m *Manager) *Session {
	return &Session{
		id:        id,
		conn:      conn,
		manager:   m,
		writer:    rpcwire.NewPaddedWriter(conn),
		reader:    rpcwire.NewReader(conn),
		cost:      NewCostLimiter(m.costSoftLimit, m.costHardLimit),
		subStatus:    make(map[string]string),
		subKey:       make(map[string]string),
		subOutpoints: make(map[string]outpointSub),
	}
}

func (s *Session) subscribedHashXs() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, 0, len(s.subStatus))
	for k := range s.subStatus {
		out = append(out, []byte(k))
	}
	return out
}

// run drives the session's read/dispatch/write loop until the connection
// closes or ctx is cancelled. Every Electrum session must call
// server.version before anything else is honored, matching the reference
// implementation's handshake enforcement.
func (s *Session) run(ctx context.Context) {
	defer s.writer.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		reqs, err := s.reader.ReadBatch()
		if err != nil {
			return
		}
		if reqs == nil {
			continue
		}

		if delay := s.cost.ThrottleDelay(); delay > 0 {
			time.Sleep(delay)
		}

		responses := make([]*rpcwire.Response, 0, len(reqs))
		for _, req := range reqs {
			resp := s.dispatch(ctx, req)
			if resp != nil {
				responses = append(responses, resp)
			}
		}
		if len(responses) == 0 {
			continue
		}

		var framed []byte
		var encErr error
		if len(reqs) > 1 {
			framed, encErr = rpcwire.Encode(responses)
		} else {
			framed, encErr = rpcwire.Encode(responses[0])
		}
		if encErr != nil {
			log.Warnf("session %d: encode response: %v", s.id, encErr)
			return
		}
		s.writer.Write(framed)

		if s.cost.Charge(float64(len(framed)) / 1000.0) {
			log.Infof("session %d: exceeded hard cost limit, disconnecting", s.id)
			return
		}
	}
}

func (s *Session) dispatch(ctx context.Context, req *rpcwire.Request) *rpcwire.Response {
	s.cost.Charge(requestBaseCost)

	s.mu.Lock()
	versioned := s.versioned
	s.mu.Unlock()

	if !versioned && req.Method != "server.version" {
		return errorResponse(req, rpcwire.ErrInvalidRequest, "server.version must be the first call")
	}

	handler, ok := methodTable[req.Method]
	if !ok {
		if req.IsNotification() {
			return nil
		}
		return errorResponse(req, rpcwire.ErrMethodNotFound, "unknown method "+req.Method)
	}

	result, err := handler(ctx, s, req.Params)
	if req.IsNotification() {
		return nil
	}
	if err != nil {
		if rpcErr, ok := err.(*rpcwire.Error); ok {
			return &rpcwire.Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
		}
		return errorResponse(req, rpcwire.ErrInternal, err.Error())
	}
	return &rpcwire.Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func errorResponse(req *rpcwire.Request, code int, msg string) *rpcwire.Response {
	if req.IsNotification() {
		return nil
	}
	return &rpcwire.Response{JSONRPC: "2.0", ID: req.ID, Error: &rpcwire.Error{Code: code, Message: msg}}
}

// notify sends an unsolicited JSON-RPC notification to the client.
func (s *Session) notify(method string, params interface{}) {
	framed, err := rpcwire.Encode(&rpcwire.Response{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		log.Warnf("session %d: encode notification: %v", s.id, err)
		return
	}
	s.writer.Write(framed)
}

// onChainNotify is called by the Manager on every coalesced chain update.
// It recomputes the status of every subscribed hashX that is in touched
// and, for any whose status changed, sends a scripthash.subscribe notification; it also sends
// a headers.subscribe notification if the session is subscribed to
// headers.
func (s *Session) onChainNotify(height uint32, touched map[string]struct{}) {
	s.mu.Lock()
	headersSub := s.headersSub
	var toCheck [][]byte
	for hashXStr := range s.subStatus {
		if _, ok := touched[hashXStr]; ok {
			toCheck = append(toCheck, []byte(hashXStr))
		}
	}
	s.mu.Unlock()

	if headersSub {
		if header, err := s.manager.backend.HeaderAtHeight(context.Background(), height); err == nil {
			s.notify("blockchain.headers.subscribe", []interface{}{headerNotification(height, header)})
		}
	}

	for _, hashX := range toCheck {
		status, err := s.manager.backend.StatusHash(hashX)
		if err != nil {
			continue
		}
		s.mu.Lock()
		last := s.subStatus[string(hashX)]
		changed := last != status
		if changed {
			s.subStatus[string(hashX)] = status
		}
		s.mu.Unlock()
		if changed {
			s.mu.Lock()
			key := s.subKey[string(hashX)]
			s.mu.Unlock()
			s.notify("blockchain.scripthash.subscribe", []interface{}{key, status})
		}
	}

	s.notifyOutpoints(context.Background())
}

// notifyOutpoints recomputes every subscribed outpoint's status and sends a
// blockchain.outpoint.subscribe notification for any whose status changed.
// notify.Coalescer only tracks touched hashXs, not touched outpoints, so
// unlike the scripthash path above this recomputes every subscription on
// each coalesced notify rather than filtering by a touched-outpoint set.
func (s *Session) notifyOutpoints(ctx context.Context) {
	s.mu.Lock()
	subs := make([]outpointSub, 0, len(s.subOutpoints))
	for _, sub := range s.subOutpoints {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		status, err := s.manager.backend.OutpointStatus(ctx, sub.txHash, sub.outIdx)
		if err != nil {
			continue
		}
		encoded, err := json.Marshal(status)
		if err != nil {
			continue
		}
		key := outpointKey(sub.txHash, sub.outIdx)
		s.mu.Lock()
		cur, ok := s.subOutpoints[key]
		changed := !ok || cur.status != string(encoded)
		if ok {
			cur.status = string(encoded)
			s.subOutpoints[key] = cur
		}
		s.mu.Unlock()
		if changed {
			s.notify("blockchain.outpoint.subscribe", []interface{}{
				[]interface{}{wire.HashToHexStr(sub.txHash), sub.outIdx}, status,
			})
		}
	}
}

func outpointKey(txHash []byte, outIdx uint32) string {
	b := make([]byte, len(txHash)+4)
	copy(b, txHash)
	b[len(txHash)] = byte(outIdx)
	b[len(txHash)+1] = byte(outIdx >> 8)
	b[len(txHash)+2] = byte(outIdx >> 16)
	b[len(txHash)+3] = byte(outIdx >> 24)
	return string(b)
}

func headerNotification(height uint32, header []byte) map[string]interface{} {
	return map[string]interface{}{
		"height": height,
		"hex":    hexEncode(header),
	}
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

func rawParam(params json.RawMessage, i int, v interface{}) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(params, &arr); err != nil {
		return err
	}
	if i >= len(arr) {
		return &rpcwire.Error{Code: rpcwire.ErrInvalidParams, Message: "missing parameter"}
	}
	return json.Unmarshal(arr[i], v)
}
