package http

import "strings"

// Handler produces the response for a routed request. Handlers are called
// concurrently from every worker and may panic; the server turns a panic
// into a 500.
type Handler interface {
	ServeHTTP(req *Request) *Response
}

type HandlerFunc func(req *Request) *Response

func (f HandlerFunc) ServeHTTP(req *Request) *Response {
	return f(req)
}

// Route is a single dispatch rule.
type Route struct {
	Path     string
	IsPrefix bool
	Methods  []string // lowercase
	Handler  Handler
}

func (route *Route) matchPath(path string) bool {
	if route.IsPrefix {
		return strings.HasPrefix(path, route.Path)
	}
	return path == route.Path
}

// parseMethods splits a comma separated method list, trimming and
// lowercasing every entry. Empty entries are skipped.
func parseMethods(methods string) []string {
	var out []string
	for _, m := range strings.Split(methods, ",") {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		out = append(out, string(toLowerASCII([]byte(m))))
	}
	return out
}
