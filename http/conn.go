package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errNilResponse = errors.New("http: handler returned a nil response")

// connState is owned by the worker serving the connection.
type connState struct {
	rw         io.ReadWriter
	id         string
	remoteAddr string
	start      time.Time
	req        *Request
}

// serveConn reads one request, routes it, runs the handler and writes the
// response. Exactly one response is written unless the transport fails.
func (wc *workerContext) serveConn(rw io.ReadWriter, remoteAddr string) {
	c := &connState{
		rw:         rw,
		id:         uuid.NewString(),
		remoteAddr: remoteAddr,
		start:      time.Now(),
	}

	reader := requestReader{
		rw:            rw,
		maxBodySize:   wc.maxBodySize,
		maxHeaderSize: wc.maxHeaderSize,
	}
	req, err := reader.read()
	if err != nil {
		var ioErr *IOError
		if errors.As(err, &ioErr) {
			wc.logger.LogReadError(err)
			return
		}
		wc.respond(c, errorResponse(readErrorStatus(err)))
		return
	}
	req.id = c.id
	req.remoteAddr = c.remoteAddr

	ctx, span := wc.inst.tracer.Start(context.Background(), "HTTP "+strings.ToUpper(req.Method()),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method()),
			attribute.String("url.path", req.Path()),
			attribute.String("http.request.id", c.id),
			attribute.String("server.name", wc.name),
		),
	)
	defer span.End()
	req.ctx = ctx
	c.req = req

	handler, err := wc.router.Route(req)
	if err != nil {
		wc.respond(c, routingErrorResponse(err))
		return
	}
	wc.invoke(c, handler)
}

// invoke runs handler behind a fault boundary: unless the handler returns,
// the deferred func writes a 500. A recovered panic leaves the worker
// running; runtime.Goexit still ends it after the 500 is out, and the
// supervisor replaces it.
func (wc *workerContext) invoke(c *connState, handler Handler) {
	armed := true
	defer func() {
		if !armed {
			return
		}
		recovered := recover()
		var stack []byte
		if recovered != nil {
			stack = debug.Stack()
		}

		ctx := c.req.Context()
		span := trace.SpanFromContext(ctx)
		span.SetStatus(codes.Error, "handler did not return")
		if recovered != nil {
			span.RecordError(fmt.Errorf("panic: %v", recovered))
		}
		wc.inst.handlerPanics.Add(ctx, 1)
		wc.logger.LogHandlerPanic(c.req, recovered, stack)

		wc.respond(c, errorResponse(StatusInternalServerError))
	}()

	res := handler.ServeHTTP(c.req)
	armed = false

	if res == nil {
		wc.logger.LogHandlerPanic(c.req, errNilResponse, nil)
		res = errorResponse(StatusInternalServerError)
	}
	wc.respond(c, res)
}

// respond writes res and reports it. Write failures are logged and
// otherwise ignored; the connection is closed right after anyway.
func (wc *workerContext) respond(c *connState, res *Response) {
	if err := WriteResponse(c.rw, c.req, res); err != nil {
		wc.logger.LogWriteError(&IOError{Err: err})
	}

	elapsed := time.Since(c.start)
	entry := RequestLog{
		ID:         c.id,
		RemoteAddr: c.remoteAddr,
		Code:       res.Code,
		BodyLength: len(res.Body),
		Duration:   elapsed,
	}
	ctx := context.Background()
	if c.req != nil {
		entry.Method = c.req.Method()
		entry.Path = c.req.Path()
		ctx = c.req.Context()
		trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", res.Code))
	}

	wc.logger.LogRequest(entry)
	wc.inst.recordResponse(ctx, entry.Method, res.Code, elapsed)
}

func readErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidVersion):
		return StatusHTTPVersionNotSupported
	case errors.Is(err, ErrLengthRequired):
		return StatusLengthRequired
	case errors.Is(err, ErrTooLarge):
		return StatusRequestEntityTooLarge
	case errors.Is(err, ErrHeaderTooLarge):
		return StatusRequestHeaderFieldsTooLarge
	default:
		return StatusBadRequest
	}
}

func routingErrorResponse(err error) *Response {
	var notAllowed *MethodNotAllowedError
	if errors.As(err, &notAllowed) {
		res := errorResponse(StatusMethodNotAllowed)
		res.SetHeader("Allow", allowHeader(notAllowed.Allowed))
		return res
	}
	return errorResponse(StatusNotFound)
}

// allowHeader renders methods as a sorted, uppercase Allow value.
func allowHeader(methods []string) string {
	upper := make([]string, len(methods))
	for i, m := range methods {
		upper[i] = strings.ToUpper(m)
	}
	slices.Sort(upper)
	return strings.Join(upper, ", ")
}
