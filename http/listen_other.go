//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package http

import (
	"errors"
	"net"
	"syscall"
)

func listenConfig(reusePort bool) net.ListenConfig {
	if !reusePort {
		return net.ListenConfig{}
	}
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return errors.New("http: SO_REUSEPORT is not supported on this platform")
		},
	}
}
