package http

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/freekieb7/mudpie/test"
)

// fakeConn reads from r and records everything written.
type fakeConn struct {
	r       io.Reader
	written bytes.Buffer
}

func newFakeConn(s string) *fakeConn {
	return &fakeConn{r: strings.NewReader(s)}
}

func (c *fakeConn) Read(p []byte) (int, error)  { return c.r.Read(p) }
func (c *fakeConn) Write(p []byte) (int, error) { return c.written.Write(p) }

func TestReadRequestWithoutBody(t *testing.T) {
	conn := newFakeConn("GET /hello HTTP/1.1\r\nHost: localhost\r\n\r\n")

	req, err := ReadRequest(conn, DefaultMaxRequestBodySize)
	test.RequireNoError(t, err)
	test.AssertEqual(t, "get", req.Method())
	test.AssertEqual(t, "/hello", req.Path())
	test.AssertEqual(t, 0, len(req.Body()))
	test.AssertEqual(t, 0, conn.written.Len())
}

func TestReadRequestBodyTruncatedToContentLength(t *testing.T) {
	conn := newFakeConn("POST /x HTTP/1.1\r\nContent-Length: 5\r\n\r\nhelloGET /next HTTP/1.1\r\n\r\n")

	req, err := ReadRequest(conn, DefaultMaxRequestBodySize)
	test.RequireNoError(t, err)
	test.AssertBytes(t, "hello", req.Body())
	test.AssertEqual(t, 5, cap(req.Body()))
}

func TestReadRequestLargeBody(t *testing.T) {
	body := strings.Repeat("0123456789", 1000)
	conn := newFakeConn("POST /upload HTTP/1.1\r\nContent-Length: 10000\r\n\r\n" + body)

	req, err := ReadRequest(conn, DefaultMaxRequestBodySize)
	test.RequireNoError(t, err)
	test.AssertBytes(t, body, req.Body())
}

func TestReadRequestOneByteAtATime(t *testing.T) {
	conn := &fakeConn{r: iotest.OneByteReader(strings.NewReader(
		"POST /slow HTTP/1.0\r\nContent-Length: 3\r\n\r\nabc"))}

	req, err := ReadRequest(conn, DefaultMaxRequestBodySize)
	test.RequireNoError(t, err)
	test.AssertEqual(t, "http/1.0", req.Protocol())
	test.AssertBytes(t, "abc", req.Body())
}

func TestReadRequestExpectContinue(t *testing.T) {
	conn := newFakeConn("PUT /x HTTP/1.1\r\nExpect: 100-Continue\r\nContent-Length: 2\r\n\r\nok")

	req, err := ReadRequest(conn, DefaultMaxRequestBodySize)
	test.RequireNoError(t, err)
	test.AssertBytes(t, "ok", req.Body())
	test.AssertBytes(t, "HTTP/1.1 100 Continue\r\n\r\n", conn.written.Bytes())
}

func TestReadRequestNoContinueWithoutContentLength(t *testing.T) {
	conn := newFakeConn("GET /x HTTP/1.1\r\nExpect: 100-continue\r\n\r\n")

	_, err := ReadRequest(conn, DefaultMaxRequestBodySize)
	test.RequireNoError(t, err)
	test.AssertEqual(t, 0, conn.written.Len())
}

func TestReadRequestErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxBody  uint64
		expected error
	}{
		{"transfer encoding", "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n", 100, ErrLengthRequired},
		{"transfer encoding identity", "POST / HTTP/1.1\r\nTransfer-Encoding: identity\r\nContent-Length: 1\r\n\r\nx", 100, ErrLengthRequired},
		{"too large", "POST / HTTP/1.1\r\nContent-Length: 1000000000\r\n\r\n", 1000000, ErrTooLarge},
		{"one over", "POST / HTTP/1.1\r\nContent-Length: 11\r\n\r\n", 10, ErrTooLarge},
		{"bad content length", "POST / HTTP/1.1\r\nContent-Length: abc\r\n\r\n", 100, ErrInvalidRequest},
		{"negative content length", "POST / HTTP/1.1\r\nContent-Length: -1\r\n\r\n", 100, ErrInvalidRequest},
		{"repeated content length", "POST / HTTP/1.1\r\nContent-Length: 1\r\nContent-Length: 1\r\n\r\nx", 100, ErrInvalidRequest},
		{"bad version", "GET / HTTP/2.0\r\n\r\n", 100, ErrInvalidVersion},
		{"bad request line", "GET\r\n\r\n", 100, ErrInvalidRequest},
		{"bad header", "GET / HTTP/1.1\r\nNoColon\r\n\r\n", 100, ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConn(tt.input)
			req, err := ReadRequest(conn, tt.maxBody)
			test.AssertTrue(t, req == nil, "no request on error")
			test.AssertErrorIs(t, err, tt.expected)

			var ioErr *IOError
			test.AssertTrue(t, !errors.As(err, &ioErr), "protocol errors are not I/O errors")
		})
	}
}

func TestReadRequestParseErrorKeepsCause(t *testing.T) {
	_, err := ReadRequest(newFakeConn("GET * HTTP/1.1\r\n\r\n"), 100)
	test.AssertErrorIs(t, err, ErrInvalidRequest)
	test.AssertErrorIs(t, err, ErrInvalidAbsolutePath)
}

func TestReadRequestMaxBodyBoundary(t *testing.T) {
	req, err := ReadRequest(newFakeConn("POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\n0123456789"), 10)
	test.RequireNoError(t, err)
	test.AssertBytes(t, "0123456789", req.Body())
}

func TestReadRequestConnectionClosed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"partial header", "GET / HTTP/1.1\r\nHost: x\r\n"},
		{"partial body", "POST / HTTP/1.1\r\nContent-Length: 10\r\n\r\nabc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadRequest(newFakeConn(tt.input), 100)
			var ioErr *IOError
			test.AssertTrue(t, errors.As(err, &ioErr), "expected *IOError")
			test.AssertErrorIs(t, err, ErrConnectionClosed)
		})
	}
}

func TestReadRequestTransportError(t *testing.T) {
	boom := errors.New("boom")
	conn := &fakeConn{r: iotest.ErrReader(boom)}

	_, err := ReadRequest(conn, 100)
	var ioErr *IOError
	test.AssertTrue(t, errors.As(err, &ioErr), "expected *IOError")
	test.AssertErrorIs(t, err, boom)
}

func TestReadRequestHeaderTooLarge(t *testing.T) {
	input := "GET / HTTP/1.1\r\nX-Big: " + strings.Repeat("a", 200) + "\r\n\r\n"

	r := requestReader{rw: newFakeConn(input), maxBodySize: 100, maxHeaderSize: 64}
	_, err := r.read()
	test.AssertErrorIs(t, err, ErrHeaderTooLarge)

	// A block that fits exactly is accepted.
	small := "GET / HTTP/1.1\r\n\r\n"
	r = requestReader{rw: newFakeConn(small), maxBodySize: 100, maxHeaderSize: len(small)}
	_, err = r.read()
	test.RequireNoError(t, err)
}
