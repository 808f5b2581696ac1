//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package http

import (
	"context"
	"testing"

	"github.com/freekieb7/mudpie/test"
)

func TestServerReusePort(t *testing.T) {
	ts := newTestServer()
	ts.SetReusePort(true)
	serveInBackground(t, ts, func() error {
		return ts.ListenAndServe("127.0.0.1:0")
	})
	waitForState(t, ts, StateSupervising)

	addr := ts.Addr().String()
	resp, body := dialRoundTrip(t, addr, "GET /hello?reuse HTTP/1.1\r\n\r\n")
	test.AssertEqual(t, 200, resp.StatusCode)
	test.AssertBytes(t, "hello reuse", body)

	// A second socket with SO_REUSEPORT can bind the same port.
	lc := listenConfig(true)
	other, err := lc.Listen(context.Background(), "tcp", addr)
	test.RequireNoError(t, err)
	test.RequireNoError(t, other.Close())
}

func TestListenConfigWithoutReusePort(t *testing.T) {
	lc := listenConfig(false)
	first, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	test.RequireNoError(t, err)
	defer first.Close()

	_, err = lc.Listen(context.Background(), "tcp", first.Addr().String())
	test.AssertTrue(t, err != nil, "binding a used port without SO_REUSEPORT should fail")
}
