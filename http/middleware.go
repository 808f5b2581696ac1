package http

type Middleware func(next Handler) Handler

// Chain wraps handler so that the first middleware runs outermost.
func Chain(handler Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// HeaderMiddleware sets name on every response that does not carry it yet.
func HeaderMiddleware(name, value string) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(req *Request) *Response {
			res := next.ServeHTTP(req)
			if res == nil {
				return nil
			}
			if _, ok := res.Headers[name]; !ok {
				res.SetHeader(name, value)
			}
			return res
		})
	}
}

// RequestIDMiddleware echoes the request id in the X-Request-Id header.
func RequestIDMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(req *Request) *Response {
			res := next.ServeHTTP(req)
			if res != nil && req.ID() != "" {
				res.SetHeader("X-Request-Id", req.ID())
			}
			return res
		})
	}
}
