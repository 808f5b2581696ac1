package http

import (
	"bytes"
	"errors"

	"golang.org/x/text/encoding/unicode"
)

var (
	ErrBadRequestLine          = errors.New("http: malformed request line")
	ErrBadVersion              = errors.New("http: unsupported protocol version")
	ErrInvalidAbsolutePath     = errors.New("http: request target is not an absolute path")
	ErrInvalidHeaderSeparator  = errors.New("http: header line without ':' separator")
	ErrInvalidHeaderWhitespace = errors.New("http: whitespace around header name")
)

var (
	protocolHTTP10 = []byte("http/1.0")
	protocolHTTP11 = []byte("http/1.1")
	methodOptions  = []byte("options")
	asteriskForm   = []byte("*")
)

// parseRequest parses a header block, request line included. The block must
// end with the blank line, i.e. "\r\n\r\n". The body is left empty.
//
// Obsolete line folding is rejected (RFC 7230 3.2.4): a continuation line
// starts with whitespace and so fails the header name check.
func parseRequest(block []byte) (*Request, error) {
	if !bytes.HasSuffix(block, headerTerminator) {
		panic("http: header block must end with CRLFCRLF")
	}

	lines := splitBytesOnCRLF(block)

	parts := splitBytesOn(lines[0], ' ', 2)
	if len(parts) != 3 {
		return nil, ErrBadRequestLine
	}
	// Split does not coalesce spaces for us.
	if len(parts[0]) == 0 || len(parts[1]) == 0 || len(parts[2]) == 0 {
		return nil, ErrBadRequestLine
	}

	method := toLowerASCII(parts[0])
	target := parts[1]
	protocol := toLowerASCII(parts[2])

	if !bytes.Equal(protocol, protocolHTTP10) && !bytes.Equal(protocol, protocolHTTP11) {
		return nil, ErrBadVersion
	}

	environ := make(map[string][]byte, len(lines)+4)
	environ[EnvMethod] = method
	environ[EnvProtocol] = protocol

	// The asterisk-form is only allowed for a server-wide OPTIONS request.
	if bytes.Equal(method, methodOptions) && bytes.Equal(target, asteriskForm) {
		environ[EnvPath] = bytes.Clone(target)
		environ[EnvQueryString] = []byte{}
	} else {
		if target[0] != '/' {
			return nil, ErrInvalidAbsolutePath
		}
		pathAndQuery := splitBytesOn(target, '?', 1)
		environ[EnvPath] = bytes.Clone(pathAndQuery[0])
		if len(pathAndQuery) > 1 {
			environ[EnvQueryString] = bytes.Clone(pathAndQuery[1])
		} else {
			environ[EnvQueryString] = []byte{}
		}
	}

	for _, line := range lines[1:] {
		if len(line) == 0 {
			break
		}

		nameAndValue := splitBytesOn(line, ':', 1)
		if len(nameAndValue) != 2 {
			return nil, ErrInvalidHeaderSeparator
		}
		name := nameAndValue[0]
		if len(strip(name)) != len(name) {
			return nil, ErrInvalidHeaderWhitespace
		}

		key := envHeaderPrefix + string(toLowerASCII(name))
		value := strip(nameAndValue[1])
		if prev, ok := environ[key]; ok {
			joined := make([]byte, 0, len(prev)+1+len(value))
			joined = append(joined, prev...)
			joined = append(joined, ',')
			environ[key] = append(joined, value...)
		} else {
			environ[key] = bytes.Clone(value)
		}
	}

	return &Request{
		environ: environ,
		path:    decodePath(environ[EnvPath]),
		method:  string(method),
		body:    []byte{},
	}, nil
}

// decodePath percent-decodes raw and replaces invalid UTF-8 with U+FFFD.
func decodePath(raw []byte) string {
	decoded := percentDecode(raw)
	valid, err := unicode.UTF8.NewDecoder().Bytes(decoded)
	if err != nil {
		return string(bytes.ToValidUTF8(decoded, []byte("\uFFFD")))
	}
	return string(valid)
}
