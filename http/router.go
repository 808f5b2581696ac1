package http

import (
	"slices"
)

// Router maps (method, path) to a handler. Rules are tried in registration
// order and the first rule matching both path and method wins, so
// overlapping prefix rules resolve by order, not by specificity.
type Router struct {
	Routes []Route
}

func NewRouter() Router {
	return Router{
		Routes: make([]Route, 0),
	}
}

// AddPath registers an exact-match rule. methods is a comma separated list,
// e.g. "get,head".
func (router *Router) AddPath(methods string, path string, handler Handler) {
	router.add(methods, path, false, handler)
}

// AddPathPrefix registers a rule matching every path that starts with path.
func (router *Router) AddPathPrefix(methods string, path string, handler Handler) {
	router.add(methods, path, true, handler)
}

func (router *Router) GET(path string, handler HandlerFunc) {
	router.AddPath("get,head", path, handler)
}

func (router *Router) POST(path string, handler HandlerFunc) {
	router.AddPath("post", path, handler)
}

func (router *Router) add(methods string, path string, isPrefix bool, handler Handler) {
	if handler == nil {
		panic("http: nil handler for " + path)
	}
	router.Routes = append(router.Routes, Route{
		Path:     path,
		IsPrefix: isPrefix,
		Methods:  parseMethods(methods),
		Handler:  handler,
	})
}

// Route finds the handler for req. It returns ErrNotFound when no rule
// matches the path and a *MethodNotAllowedError when rules matched the path
// but not the method.
func (router *Router) Route(req *Request) (Handler, error) {
	return router.Match(req.Method(), req.Path())
}

// Match is Route for a lowercase method and a decoded path.
func (router *Router) Match(method string, path string) (Handler, error) {
	pathMatched := false
	var allowed []string
	for i := range router.Routes {
		route := &router.Routes[i]
		if !route.matchPath(path) {
			continue
		}
		pathMatched = true
		for _, m := range route.Methods {
			if m == method {
				return route.Handler, nil
			}
			if !slices.Contains(allowed, m) {
				allowed = append(allowed, m)
			}
		}
	}

	if !pathMatched {
		return nil, ErrNotFound
	}
	return nil, &MethodNotAllowedError{Allowed: allowed}
}

func (router Router) clone() Router {
	return Router{Routes: slices.Clone(router.Routes)}
}
