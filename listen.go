package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// errPortInUse is returned when another process already listens on the API port.
var errPortInUse = errors.New("port already in use")

func listenTCP(host string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		return ln, nil
	}
	if isAddrInUse(err) {
		return nil, fmt.Errorf("%w: %s (set PORT or -port to use another): %v", errPortInUse, addr, err)
	}
	return nil, fmt.Errorf("listen on %s: %w", addr, err)
}
