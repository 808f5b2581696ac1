package http

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultNumWorkers         = 10
	DefaultMaxRequestBodySize = 1_000_000_000
	DefaultMaxHeaderSize      = 1 << 20 // 1MB

	// A worker death after this much quiet resets the respawn delay.
	respawnQuietPeriod = 10 * time.Second
)

type ServerState int32

const (
	StateConfiguring ServerState = iota
	StateListening
	StateSupervising
	StateClosed
)

func (state ServerState) String() string {
	switch state {
	case StateConfiguring:
		return "configuring"
	case StateListening:
		return "listening"
	case StateSupervising:
		return "supervising"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Server accepts connections on a fixed number of workers, each running its
// own blocking accept loop, and answers exactly one request per connection.
//
// Everything set through the Add* and Set* methods is copied into a
// read-only context when the server starts; calling them afterwards panics.
type Server struct {
	Name string

	router         Router
	numWorkers     int
	maxBodySize    uint64
	maxHeaderSize  int
	reusePort      bool
	tlsConfig      *tls.Config
	logger         Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider

	freezeOnce sync.Once
	frozen     atomic.Bool
	shared     *workerContext
	freezeErr  error

	state     atomic.Int32
	mu        sync.Mutex
	listener  net.Listener
	conns     *xsync.MapOf[net.Conn, struct{}]
	done      chan struct{}
	closeOnce sync.Once
}

// workerContext is shared by every worker and never modified once built.
type workerContext struct {
	name          string
	router        Router
	listener      net.Listener
	maxBodySize   uint64
	maxHeaderSize int
	logger        Logger
	inst          *instruments
}

func NewServer(name string) *Server {
	return &Server{
		Name:          name,
		router:        NewRouter(),
		numWorkers:    DefaultNumWorkers,
		maxBodySize:   DefaultMaxRequestBodySize,
		maxHeaderSize: DefaultMaxHeaderSize,
		logger:        NewSlogLogger(slog.Default()),
		conns:         xsync.NewMapOf[net.Conn, struct{}](),
		done:          make(chan struct{}),
	}
}

func (s *Server) mustConfigure(method string) {
	if s.frozen.Load() {
		panic("http: Server." + method + " called after the server started")
	}
}

// AddPath registers an exact path rule. methods is a comma separated list.
func (s *Server) AddPath(methods string, path string, handler Handler) {
	s.mustConfigure("AddPath")
	s.router.AddPath(methods, path, handler)
}

// AddPathPrefix registers a rule for every path starting with path.
func (s *Server) AddPathPrefix(methods string, path string, handler Handler) {
	s.mustConfigure("AddPathPrefix")
	s.router.AddPathPrefix(methods, path, handler)
}

func (s *Server) GET(path string, handler HandlerFunc) {
	s.mustConfigure("GET")
	s.router.GET(path, handler)
}

func (s *Server) POST(path string, handler HandlerFunc) {
	s.mustConfigure("POST")
	s.router.POST(path, handler)
}

// SetNumWorkers sets how many workers accept connections. n must be > 0.
func (s *Server) SetNumWorkers(n int) {
	s.mustConfigure("SetNumWorkers")
	if n <= 0 {
		panic(fmt.Sprintf("http: invalid worker count %d", n))
	}
	s.numWorkers = n
}

// SetMaxRequestBodySize limits Content-Length; larger requests get a 413.
func (s *Server) SetMaxRequestBodySize(n uint64) {
	s.mustConfigure("SetMaxRequestBodySize")
	s.maxBodySize = n
}

// SetMaxHeaderSize limits the header block; larger blocks get a 431.
// Zero disables the limit.
func (s *Server) SetMaxHeaderSize(n int) {
	s.mustConfigure("SetMaxHeaderSize")
	s.maxHeaderSize = n
}

// SetReusePort makes ListenAndServe bind with SO_REUSEPORT.
func (s *Server) SetReusePort(reusePort bool) {
	s.mustConfigure("SetReusePort")
	s.reusePort = reusePort
}

// SetTLSConfig layers TLS over every accepted connection.
func (s *Server) SetTLSConfig(config *tls.Config) {
	s.mustConfigure("SetTLSConfig")
	s.tlsConfig = config
}

func (s *Server) SetLogger(logger Logger) {
	s.mustConfigure("SetLogger")
	if logger == nil {
		logger = NopLogger{}
	}
	s.logger = logger
}

// SetMeterProvider overrides the global OpenTelemetry meter provider.
func (s *Server) SetMeterProvider(mp metric.MeterProvider) {
	s.mustConfigure("SetMeterProvider")
	s.meterProvider = mp
}

// SetTracerProvider overrides the global OpenTelemetry tracer provider.
func (s *Server) SetTracerProvider(tp trace.TracerProvider) {
	s.mustConfigure("SetTracerProvider")
	s.tracerProvider = tp
}

// State reports the listener lifecycle. ServeConn freezes the configuration
// without changing it, so a server used only through ServeConn stays in
// StateConfiguring; Frozen tells whether the setters still apply.
func (s *Server) State() ServerState {
	return ServerState(s.state.Load())
}

// Frozen reports whether Serve or ServeConn has ended the configuration
// phase. Every setter panics once it is true.
func (s *Server) Frozen() bool {
	return s.frozen.Load()
}

// Addr is the address of the listener passed to Serve, or nil before that.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// freeze ends the configuration phase.
func (s *Server) freeze() (*workerContext, error) {
	s.freezeOnce.Do(func() {
		s.frozen.Store(true)

		mp := s.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		tp := s.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		inst, err := newInstruments(mp, tp)
		if err != nil {
			s.freezeErr = fmt.Errorf("http: creating instruments: %w", err)
			return
		}

		s.shared = &workerContext{
			name:          s.Name,
			router:        s.router.clone(),
			maxBodySize:   s.maxBodySize,
			maxHeaderSize: s.maxHeaderSize,
			logger:        s.logger,
			inst:          inst,
		}
	})
	return s.shared, s.freezeErr
}

// ListenAndServe binds addr and calls Serve.
func (s *Server) ListenAndServe(addr string) error {
	lc := listenConfig(s.reusePort)
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// ListenAndServeTLS is ListenAndServe with the certificate from certFile and
// keyFile added to the server's TLS config.
func (s *Server) ListenAndServeTLS(addr, certFile, keyFile string) error {
	if s.frozen.Load() {
		return ErrServerStarted
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return err
	}
	config := &tls.Config{}
	if s.tlsConfig != nil {
		config = s.tlsConfig.Clone()
	}
	config.Certificates = append(config.Certificates, cert)
	s.SetTLSConfig(config)
	return s.ListenAndServe(addr)
}

// Serve starts the workers on listener and supervises them, replacing any
// worker that dies. It only returns after Close (ErrServerClosed), or when
// the listener stops accepting, once every worker has exited.
func (s *Server) Serve(listener net.Listener) error {
	base, err := s.freeze()
	if err != nil {
		listener.Close()
		return err
	}
	if !s.state.CompareAndSwap(int32(StateConfiguring), int32(StateListening)) {
		listener.Close()
		return ErrServerStarted
	}

	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	if s.isClosing() {
		listener.Close()
		s.state.Store(int32(StateClosed))
		return ErrServerClosed
	}

	shared := *base
	shared.listener = listener

	pool := NewWorkerPool(s.numWorkers)
	for range s.numWorkers {
		s.startWorker(pool, &shared)
	}
	s.state.Store(int32(StateSupervising))

	return s.supervise(pool, &shared)
}

func (s *Server) startWorker(pool *WorkerPool, shared *workerContext) {
	pool.Execute(func() {
		s.acceptLoop(shared)
	})
}

// supervise blocks on worker exits and starts a replacement for each one,
// keeping the worker count constant. Respawns back off when workers keep
// dying so a crashing handler cannot turn into a spawn storm.
func (s *Server) supervise(pool *WorkerPool, shared *workerContext) error {
	alive := s.numWorkers
	respawn := newRespawnBackOff()
	var lastDeath time.Time
	var serveErr error = ErrServerClosed

	for alive > 0 {
		exit, _ := pool.WaitForExit(context.Background())
		alive--

		if s.isClosing() {
			continue
		}
		if exit.Returned {
			// Accept loops only return once the listener is gone.
			serveErr = fmt.Errorf("http: listener stopped accepting: %w", net.ErrClosed)
			s.Close()
			continue
		}

		shared.logger.LogWorkerExit(exit)
		shared.inst.workerRestarts.Add(context.Background(), 1)

		if time.Since(lastDeath) > respawnQuietPeriod {
			respawn.Reset()
		}
		lastDeath = time.Now()
		select {
		case <-time.After(respawn.NextBackOff()):
		case <-s.done:
			continue
		}

		alive++
		s.startWorker(pool, shared)
	}

	s.state.Store(int32(StateClosed))
	return serveErr
}

func (s *Server) acceptLoop(shared *workerContext) {
	retry := newAcceptBackOff()
	for {
		conn, err := shared.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.isClosing() {
				return
			}
			shared.logger.LogAcceptError(err)
			select {
			case <-time.After(retry.NextBackOff()):
			case <-s.done:
				return
			}
			continue
		}
		retry.Reset()

		s.handleConn(shared, conn)
	}
}

func (s *Server) handleConn(shared *workerContext, conn net.Conn) {
	s.conns.Store(conn, struct{}{})
	shared.inst.activeConns.Add(context.Background(), 1)
	defer func() {
		conn.Close()
		s.conns.Delete(conn)
		shared.inst.activeConns.Add(context.Background(), -1)
	}()

	// Close may have swept the connection map just before Store.
	if s.isClosing() {
		return
	}
	shared.serveConn(conn, remoteAddrOf(conn))
}

// ServeConn runs the request pipeline on a single connection without a
// listener. It freezes the configuration like Serve does but leaves State at
// StateConfiguring, since no listener is involved; Serve may still be called
// afterwards. Closing conn is left to the caller.
func (s *Server) ServeConn(conn io.ReadWriter) error {
	shared, err := s.freeze()
	if err != nil {
		return err
	}
	shared.serveConn(conn, remoteAddrOf(conn))
	return nil
}

// Close stops accepting, closes every open connection and stops respawning
// workers. Serve returns ErrServerClosed once the workers are gone.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})

	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	var err error
	if listener != nil {
		if cerr := listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	s.conns.Range(func(conn net.Conn, _ struct{}) bool {
		conn.Close()
		return true
	})
	return err
}

func (s *Server) isClosing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func remoteAddrOf(conn any) string {
	if c, ok := conn.(interface{ RemoteAddr() net.Addr }); ok {
		if addr := c.RemoteAddr(); addr != nil {
			return addr.String()
		}
	}
	return ""
}

func newRespawnBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// newAcceptBackOff mirrors net/http: start at 5ms, cap at 1s.
func newAcceptBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
