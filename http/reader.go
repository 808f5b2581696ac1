package http

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

const (
	readChunkSize = 4096

	envContentLength    = envHeaderPrefix + "content-length"
	envTransferEncoding = envHeaderPrefix + "transfer-encoding"
	envExpect           = envHeaderPrefix + "expect"
)

var (
	headerTerminator = []byte("\r\n\r\n")
	continueResponse = []byte("HTTP/1.1 100 Continue\r\n\r\n")
)

// ReadRequest reads one complete request (header block and body) from rw.
// rw is written to only to acknowledge "Expect: 100-continue".
//
// Errors are either an *IOError, after which the connection must be
// abandoned, or one of ErrInvalidRequest, ErrInvalidVersion,
// ErrLengthRequired, ErrTooLarge and ErrHeaderTooLarge, which map to an
// error response.
func ReadRequest(rw io.ReadWriter, maxBodySize uint64) (*Request, error) {
	r := requestReader{rw: rw, maxBodySize: maxBodySize}
	return r.read()
}

type requestReader struct {
	rw            io.ReadWriter
	maxBodySize   uint64
	maxHeaderSize int // 0 means unlimited

	buf []byte
}

func (r *requestReader) read() (*Request, error) {
	headerEnd, err := r.readHeaderBlock()
	if err != nil {
		return nil, err
	}

	req, err := parseRequest(r.buf[:headerEnd])
	if err != nil {
		if errors.Is(err, ErrBadVersion) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidVersion, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	// Chunked bodies are not supported, so any transfer coding is refused.
	if _, ok := req.environ[envTransferEncoding]; ok {
		return nil, ErrLengthRequired
	}

	rawLength, ok := req.environ[envContentLength]
	if !ok {
		return req, nil
	}
	length, err := parseUint(rawLength)
	if err != nil {
		return nil, fmt.Errorf("%w: content-length %q: %w", ErrInvalidRequest, rawLength, err)
	}
	if length > r.maxBodySize {
		return nil, ErrTooLarge
	}

	if expect, ok := req.environ[envExpect]; ok && strings.EqualFold(string(expect), "100-continue") {
		if _, err := r.rw.Write(continueResponse); err != nil {
			return nil, &IOError{Err: err}
		}
	}

	for uint64(len(r.buf)-headerEnd) < length {
		if err := r.fill(); err != nil {
			return nil, err
		}
	}
	// Anything past the declared length (a pipelined request, say) is dropped.
	end := headerEnd + int(length)
	req.body = r.buf[headerEnd:end:end]

	return req, nil
}

// readHeaderBlock reads until "\r\n\r\n" is buffered and returns the offset
// just past it.
func (r *requestReader) readHeaderBlock() (int, error) {
	searched := 0
	for {
		if i := indexBytes(r.buf[searched:], headerTerminator); i >= 0 {
			end := searched + i + len(headerTerminator)
			if r.maxHeaderSize > 0 && end > r.maxHeaderSize {
				return 0, ErrHeaderTooLarge
			}
			return end, nil
		}
		if r.maxHeaderSize > 0 && len(r.buf) >= r.maxHeaderSize {
			return 0, ErrHeaderTooLarge
		}
		// The terminator may straddle two reads.
		searched = max(0, len(r.buf)-len(headerTerminator)+1)
		if err := r.fill(); err != nil {
			return 0, err
		}
	}
}

// fill appends at most one chunk to the buffer. A read that returns no data
// means the peer went away.
func (r *requestReader) fill() error {
	r.buf = slices.Grow(r.buf, readChunkSize)
	n, err := r.rw.Read(r.buf[len(r.buf) : len(r.buf)+readChunkSize])
	r.buf = r.buf[:len(r.buf)+n]
	if n > 0 {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return &IOError{Err: ErrConnectionClosed}
	}
	return &IOError{Err: err}
}
