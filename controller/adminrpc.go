package controller

import (
	"context"
	"net"

	"github.com/pkg/errors"

	"github.com/electrumx-go/electrumx/session/rpcwire"
)

// serveAdminRPC accepts local administrative connections speaking the same
// newline-delimited JSON-RPC framing as the wallet protocol, exposing the
// handful of operator commands grounded on the reference daemon's LocalRPC
// session class: getinfo, sessions and stop.
func (c *Controller) serveAdminRPC(ctx context.Context, addr string) error {
	ln, err := newTCPListener(addr)
	if err != nil {
		return err
	}
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
				return errors.Wrap(err, "accept admin connection")
			}
		}
		go c.handleAdminConn(conn)
	}
}

func (c *Controller) handleAdminConn(conn net.Conn) {
	defer conn.Close()
	reader := rpcwire.NewReader(conn)
	for {
		reqs, err := reader.ReadBatch()
		if err != nil {
			return
		}
		for _, req := range reqs {
			resp := c.handleAdminRequest(req)
			if resp == nil {
				continue
			}
			line, err := rpcwire.Encode(resp)
			if err != nil {
				return
			}
			if _, err := conn.Write(line); err != nil {
				return
			}
		}
	}
}

func (c *Controller) handleAdminRequest(req *rpcwire.Request) *rpcwire.Response {
	if req.IsNotification() {
		return nil
	}
	resp := &rpcwire.Response{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "getinfo":
		resp.Result = map[string]interface{}{
			"version":  serverVersion,
			"coin":     c.cfg.Coin,
			"height":   c.Height(),
			"sessions": c.manager.SessionCount(),
			"peers":    len(c.Peers()),
		}
	case "sessions":
		resp.Result = map[string]interface{}{"count": c.manager.SessionCount()}
	case "stop":
		resp.Result = "stopping"
		go c.requestShutdown()
	default:
		resp.Error = &rpcwire.Error{Code: rpcwire.ErrMethodNotFound, Message: "unknown admin method: " + req.Method}
	}
	return resp
}

func (c *Controller) requestShutdown() {
	c.shutdownOnce.Do(func() { close(c.shutdownCh) })
}
