package session

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/electrumx-go/electrumx/logctx"
)

var log = logctx.Get(logctx.TagSession)

// Conn is the narrow stream interface Session needs: enough to run the
// line-delimited JSON-RPC codec over either a raw TCP/TLS socket or a
// websocket connection wrapped by wsConn.
type Conn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	RemoteAddr() net.Addr
}

// Manager owns every live Session and the listeners that accept new ones.
// It implements notify.Notifier so the mempool/block-processor coalescer
// can drive fan-out directly.
type Manager struct {
	backend Backend

	maxSessions   int
	costSoftLimit float64
	costHardLimit float64

	mu       sync.RWMutex
	sessions map[uint64]*Session
	nextID   uint64

	groups map[string]*Group // keyed by client IP

	wsUpgrader websocket.Upgrader
}

// NewManager returns a Manager serving clients against backend.
func NewManager(backend Backend, maxSessions int, costSoftLimit, costHardLimit float64) *Manager {
	return &Manager{
		backend:       backend,
		maxSessions:   maxSessions,
		costSoftLimit: costSoftLimit,
		costHardLimit: costHardLimit,
		sessions:      make(map[uint64]*Session),
		groups:        make(map[string]*Group),
	}
}

// ServeTCP accepts plaintext client connections on ln until ctx is done.
func (m *Manager) ServeTCP(ctx context.Context, ln net.Listener) error {
	return m.serve(ctx, ln, false)
}

// ServeTLS accepts TLS client connections on addr until ctx is done.
func (m *Manager) ServeTLS(ctx context.Context, addr string, cert tls.Certificate) error {
	ln, err := tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		return errors.Wrap(err, "listen tls")
	}
	return m.serve(ctx, ln, true)
}

func (m *Manager) serve(ctx context.Context, ln net.Listener, tlsListener bool) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return errors.Wrap(err, "accept connection")
			}
		}
		go m.handleConn(ctx, conn)
	}
}

// ServeWS serves websocket client connections on addr until ctx is done.
func (m *Manager) ServeWS(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := m.wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warnf("websocket upgrade failed: %v", err)
			return
		}
		m.handleConn(ctx, &wsConn{Conn: conn})
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "serve websocket")
	}
	return nil
}

func (m *Manager) handleConn(ctx context.Context, conn Conn) {
	m.mu.Lock()
	if len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		conn.Close()
		return
	}
	id := atomic.AddUint64(&m.nextID, 1)
	sess := newSession(id, conn, m)
	m.sessions[id] = sess
	m.mu.Unlock()

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	group := m.groupFor(host)
	group.Add(id, sess.cost)

	defer func() {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		group.Remove(id)
		for _, hashX := range sess.subscribedHashXs() {
			m.backend.Unsubscribe(hashX)
		}
		conn.Close()
	}()

	sess.run(ctx)
}

func (m *Manager) groupFor(host string) *Group {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[host]
	if !ok {
		g = NewGroup()
		m.groups[host] = g
	}
	return g
}

// SessionCount returns the number of currently connected sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Notify implements notify.Notifier: fan the touched hashX set out to every
// subscribed session, and every session to the new header if it is
// subscribed for headers.
func (m *Manager) Notify(height uint32, touched map[string]struct{}) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.onChainNotify(height, touched)
	}
}

// wsConn adapts a gorilla/websocket connection to the net.Conn-shaped
// stream Session expects, since the JSON-RPC codec is framed by newline
// either way (one text message per line).
type wsConn struct {
	*websocket.Conn
}

func (w *wsConn) Read(p []byte) (int, error) {
	_, r, err := w.Conn.NextReader()
	if err != nil {
		return 0, err
	}
	return r.Read(p)
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.Conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}
