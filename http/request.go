package http

import (
	"bytes"
	"context"
	"slices"
)

// Environ keys that are always present on a parsed request.
const (
	EnvMethod      = "method"
	EnvProtocol    = "protocol"
	EnvPath        = "path"
	EnvQueryString = "query_string"

	envHeaderPrefix = "http_"
)

// Request is a fully read client request. It is never modified after the
// reader hands it to the router, so handlers may share it freely.
type Request struct {
	environ map[string][]byte
	path    string
	method  string
	body    []byte

	id         string
	remoteAddr string
	ctx        context.Context
}

// Env returns a copy of the environ value stored under key.
//
// Keys are "method", "protocol", "path" (raw, not decoded), "query_string",
// and "http_<name>" for every header, name lowercased. Repeated headers are
// joined with "," in arrival order.
func (req *Request) Env(key string) ([]byte, bool) {
	v, ok := req.environ[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// EnvKeys returns every environ key in sorted order.
func (req *Request) EnvKeys() []string {
	keys := make([]string, 0, len(req.environ))
	for k := range req.environ {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Header returns the value of the named header. The name is matched case-insensitively.
func (req *Request) Header(name string) (string, bool) {
	v, ok := req.environ[envHeaderPrefix+string(toLowerASCII([]byte(name)))]
	return string(v), ok
}

// Path is the percent-decoded, UTF-8 (lossy) path used for routing.
// It does not normalize "/./" or "/../" components.
func (req *Request) Path() string {
	return req.path
}

// RawPath is the path exactly as sent by the client.
func (req *Request) RawPath() string {
	return string(req.environ[EnvPath])
}

// Method is the lowercased request method.
func (req *Request) Method() string {
	return req.method
}

// Protocol is "http/1.0" or "http/1.1".
func (req *Request) Protocol() string {
	return string(req.environ[EnvProtocol])
}

func (req *Request) QueryString() string {
	return string(req.environ[EnvQueryString])
}

// Body returns the request body. HTTP does not distinguish a missing body
// from an empty one, so this is never nil-vs-empty significant.
func (req *Request) Body() []byte {
	return req.body
}

// ID is a unique id assigned to the request when it was accepted.
func (req *Request) ID() string {
	return req.id
}

func (req *Request) RemoteAddr() string {
	return req.remoteAddr
}

// Context carries the request span. It is never nil.
func (req *Request) Context() context.Context {
	if req.ctx == nil {
		return context.Background()
	}
	return req.ctx
}
