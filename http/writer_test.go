package http

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	nethttp "net/http"
	"testing"

	"github.com/freekieb7/mudpie/test"
)

func mustParse(t *testing.T, block string) *Request {
	t.Helper()
	req, err := parseRequest([]byte(block))
	test.RequireNoError(t, err)
	return req
}

func TestWriteResponse(t *testing.T) {
	req := mustParse(t, "GET /hello HTTP/1.1\r\n\r\n")
	res := NewResponse()
	res.SetBodyString("hello")
	res.SetHeader("X-B", "2")
	res.SetHeader("X-A", "1")

	var buf bytes.Buffer
	test.RequireNoError(t, WriteResponse(&buf, req, res))
	test.AssertEqual(t, ""+
		"HTTP/1.1 200 OK\r\n"+
		"Connection: close\r\n"+
		"Content-Length: 5\r\n"+
		"X-A: 1\r\n"+
		"X-B: 2\r\n"+
		"\r\n"+
		"hello", buf.String())
}

func TestWriteResponseHeadOmitsBody(t *testing.T) {
	req := mustParse(t, "HEAD /hello HTTP/1.1\r\n\r\n")
	res := NewHTMLResponse("<p>hi</p>")

	var buf bytes.Buffer
	test.RequireNoError(t, WriteResponse(&buf, req, res))
	// Nothing may follow the header block.
	test.AssertTrue(t, bytes.HasSuffix(buf.Bytes(), []byte("\r\n\r\n")), "body must not be sent")

	resp, err := nethttp.ReadResponse(bufio.NewReader(&buf), &nethttp.Request{Method: "HEAD"})
	test.RequireNoError(t, err)
	test.AssertEqual(t, int64(9), resp.ContentLength)
	test.AssertEqual(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestWriteResponseHTTP10(t *testing.T) {
	req := mustParse(t, "GET / HTTP/1.0\r\n\r\n")

	var buf bytes.Buffer
	test.RequireNoError(t, WriteResponse(&buf, req, NewResponse().WithText("x")))

	resp, err := nethttp.ReadResponse(bufio.NewReader(&buf), nil)
	test.RequireNoError(t, err)
	test.AssertEqual(t, "HTTP/1.0", resp.Proto)
	test.AssertTrue(t, resp.Close, "connection should be closed")
	body, err := io.ReadAll(resp.Body)
	test.RequireNoError(t, err)
	test.AssertBytes(t, "x", body)
}

func TestWriteResponseWithoutRequest(t *testing.T) {
	var buf bytes.Buffer
	test.RequireNoError(t, WriteResponse(&buf, nil, errorResponse(StatusBadRequest)))

	resp, err := nethttp.ReadResponse(bufio.NewReader(&buf), nil)
	test.RequireNoError(t, err)
	test.AssertEqual(t, "HTTP/1.1", resp.Proto)
	test.AssertEqual(t, 400, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	test.RequireNoError(t, err)
	test.AssertBytes(t, "Error 400: Bad Request", body)
}

func TestWriteResponseHandlerOverridesComputedHeaders(t *testing.T) {
	req := mustParse(t, "GET / HTTP/1.1\r\n\r\n")
	res := NewResponse()
	res.SetBodyString("abc")
	res.SetHeader("connection", "keep-alive")
	res.SetHeader("X-Other", "y")

	var buf bytes.Buffer
	test.RequireNoError(t, WriteResponse(&buf, req, res))
	test.AssertEqual(t, ""+
		"HTTP/1.1 200 OK\r\n"+
		"connection: keep-alive\r\n"+
		"Content-Length: 3\r\n"+
		"X-Other: y\r\n"+
		"\r\n"+
		"abc", buf.String())
}

func TestWriteResponseCustomStatus(t *testing.T) {
	res := NewResponse()
	res.SetCode(418, "I'm a teapot")

	var buf bytes.Buffer
	test.RequireNoError(t, WriteResponse(&buf, nil, res))
	test.AssertEqual(t, "HTTP/1.1 418 I'm a teapot\r\nConnection: close\r\nContent-Length: 0\r\n\r\n", buf.String())
}

func TestWriteResponseDefaultReasonPhrase(t *testing.T) {
	var buf bytes.Buffer
	test.RequireNoError(t, WriteResponse(&buf, nil, &Response{Code: StatusCreated}))
	test.AssertEqual(t, "HTTP/1.1 201 Created\r\nConnection: close\r\nContent-Length: 0\r\n\r\n", buf.String())
}

func TestWriteResponseWriteError(t *testing.T) {
	boom := errors.New("boom")
	err := WriteResponse(errWriter{boom}, nil, NewResponse())
	test.AssertErrorIs(t, err, boom)
}

type errWriter struct {
	err error
}

func (w errWriter) Write([]byte) (int, error) { return 0, w.err }
