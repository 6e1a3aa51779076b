package controller

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

func addrFor(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

func newTCPListener(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	return ln, nil
}
