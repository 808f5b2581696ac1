package http

import (
	"bufio"
	"io"
	"slices"
	"strconv"
	"strings"
)

const DefaultWriteBufferSize = 4096 // 4kB

const (
	protocolLineHTTP10 = "HTTP/1.0"
	protocolLineHTTP11 = "HTTP/1.1"
)

type headerLine struct {
	name  string
	value string
}

// WriteResponse serializes res to w. req may be nil when the request could
// not be read; the status line then says HTTP/1.1 and the body is always
// sent. For HEAD requests the body is left off but Content-Length still
// reflects it.
//
// Connection: close and Content-Length are always emitted first. A handler
// header with the same name replaces the computed value.
func WriteResponse(w io.Writer, req *Request, res *Response) error {
	protocol := protocolLineHTTP11
	sendBody := true
	if req != nil {
		if req.Protocol() == string(protocolHTTP10) {
			protocol = protocolLineHTTP10
		}
		sendBody = req.Method() != "head"
	}

	lines := []headerLine{
		{name: "Connection", value: "close"},
		{name: "Content-Length", value: strconv.Itoa(len(res.Body))},
	}
	names := make([]string, 0, len(res.Headers))
	for name := range res.Headers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		value := res.Headers[name]
		i := slices.IndexFunc(lines[:2], func(l headerLine) bool {
			return strings.EqualFold(l.name, name)
		})
		if i >= 0 {
			lines[i] = headerLine{name: name, value: value}
			continue
		}
		lines = append(lines, headerLine{name: name, value: value})
	}

	bw := bufio.NewWriterSize(w, DefaultWriteBufferSize)
	bw.WriteString(protocol)
	bw.WriteByte(' ')
	bw.WriteString(strconv.Itoa(res.Code))
	bw.WriteByte(' ')
	status := res.Status
	if status == "" {
		status = StatusText(res.Code)
	}
	bw.WriteString(status)
	bw.Write(crlf)
	for _, l := range lines {
		bw.WriteString(l.name)
		bw.WriteString(": ")
		bw.WriteString(l.value)
		bw.Write(crlf)
	}
	bw.Write(crlf)
	if sendBody {
		bw.Write(res.Body)
	}
	return bw.Flush()
}
