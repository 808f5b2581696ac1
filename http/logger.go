package http

import (
	"log/slog"
	"time"

	"github.com/rs/zerolog"
)

// RequestLog is what the server reports for every response it writes.
// Method and Path are empty when the request could not be read.
type RequestLog struct {
	ID         string
	RemoteAddr string
	Method     string
	Path       string
	Code       int
	BodyLength int
	Duration   time.Duration
}

// Logger receives the server's events. Implementations are called from
// every worker concurrently.
type Logger interface {
	LogRequest(entry RequestLog)
	LogAcceptError(err error)
	LogReadError(err error)
	LogWriteError(err error)
	LogHandlerPanic(req *Request, recovered any, stack []byte)
	LogWorkerExit(exit WorkerExit)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) LogRequest(RequestLog)                 {}
func (NopLogger) LogAcceptError(error)                  {}
func (NopLogger) LogReadError(error)                    {}
func (NopLogger) LogWriteError(error)                   {}
func (NopLogger) LogHandlerPanic(*Request, any, []byte) {}
func (NopLogger) LogWorkerExit(WorkerExit)              {}

// SlogLogger writes events to a *slog.Logger.
type SlogLogger struct {
	Logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{Logger: logger}
}

func (l *SlogLogger) LogRequest(entry RequestLog) {
	l.Logger.Info("request",
		"id", entry.ID,
		"remote_addr", entry.RemoteAddr,
		"method", entry.Method,
		"path", entry.Path,
		"code", entry.Code,
		"body_len", entry.BodyLength,
		"duration", entry.Duration,
	)
}

func (l *SlogLogger) LogAcceptError(err error) {
	l.Logger.Error("accept failed", "error", err)
}

func (l *SlogLogger) LogReadError(err error) {
	l.Logger.Warn("reading request failed", "error", err)
}

func (l *SlogLogger) LogWriteError(err error) {
	l.Logger.Warn("writing response failed", "error", err)
}

func (l *SlogLogger) LogHandlerPanic(req *Request, recovered any, stack []byte) {
	if recovered == nil {
		l.Logger.ErrorContext(req.Context(), "handler exited without returning", "id", req.ID(), "path", req.Path())
		return
	}
	l.Logger.ErrorContext(req.Context(), "handler panicked",
		"id", req.ID(),
		"path", req.Path(),
		"panic", recovered,
		"stack", string(stack),
	)
}

func (l *SlogLogger) LogWorkerExit(exit WorkerExit) {
	l.Logger.Error("worker died, starting another", "worker", exit.Worker, "exit", exit.String())
}

// ZerologLogger writes events to a zerolog.Logger.
type ZerologLogger struct {
	Logger zerolog.Logger
}

func (l ZerologLogger) LogRequest(entry RequestLog) {
	l.Logger.Info().
		Str("id", entry.ID).
		Str("remote_addr", entry.RemoteAddr).
		Str("method", entry.Method).
		Str("path", entry.Path).
		Int("code", entry.Code).
		Int("body_len", entry.BodyLength).
		Dur("duration", entry.Duration).
		Msg("request")
}

func (l ZerologLogger) LogAcceptError(err error) {
	l.Logger.Error().Err(err).Msg("accept failed")
}

func (l ZerologLogger) LogReadError(err error) {
	l.Logger.Warn().Err(err).Msg("reading request failed")
}

func (l ZerologLogger) LogWriteError(err error) {
	l.Logger.Warn().Err(err).Msg("writing response failed")
}

func (l ZerologLogger) LogHandlerPanic(req *Request, recovered any, stack []byte) {
	if recovered == nil {
		l.Logger.Error().Str("id", req.ID()).Str("path", req.Path()).Msg("handler exited without returning")
		return
	}
	l.Logger.Error().
		Str("id", req.ID()).
		Str("path", req.Path()).
		Interface("panic", recovered).
		Bytes("stack", stack).
		Msg("handler panicked")
}

func (l ZerologLogger) LogWorkerExit(exit WorkerExit) {
	l.Logger.Error().Uint64("worker", exit.Worker).Str("exit", exit.String()).Msg("worker died, starting another")
}
