package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/chazu/tlang/pkg/bytecode"
	"github.com/chazu/tlang/store"
)

// ExecServer serves ExecService over HTTP. Connect (HTTP/1.1 and HTTP/2)
// and cleartext gRPC share one listener.
type ExecServer struct {
	pool    *WorkerPool
	service *ExecService
	mux     *http.ServeMux
	logger  *slog.Logger

	mu   sync.Mutex
	http *http.Server
}

// ServerOption configures an ExecServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	workers   int
	vmOptions []bytecode.Option
	store     *store.ChunkStore
	logger    *slog.Logger
}

// WithWorkers sets the number of VM workers (default 4).
func WithWorkers(n int) ServerOption {
	return func(c *serverConfig) { c.workers = n }
}

// WithVMOptions sets the options every worker VM is built with.
func WithVMOptions(opts ...bytecode.Option) ServerOption {
	return func(c *serverConfig) { c.vmOptions = append(c.vmOptions, opts...) }
}

// WithStore enables the Store and ExecuteStored procedures.
func WithStore(s *store.ChunkStore) ServerOption {
	return func(c *serverConfig) { c.store = s }
}

// WithLogger sets the server logger (default slog.Default()).
func WithLogger(l *slog.Logger) ServerOption {
	return func(c *serverConfig) { c.logger = l }
}

// New creates an ExecServer and starts its worker pool.
func New(opts ...ServerOption) *ExecServer {
	cfg := &serverConfig{
		workers: 4,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pool := NewWorkerPool(cfg.workers, cfg.vmOptions...)
	s := &ExecServer{
		pool:    pool,
		service: NewExecService(pool, cfg.store, cfg.logger),
		mux:     http.NewServeMux(),
		logger:  cfg.logger,
	}

	// Register Connect/gRPC service handlers
	for path, handler := range s.service.Handlers(connect.WithRecover(s.recoverPanic)) {
		s.mux.Handle(path, handler)
	}

	return s
}

func (s *ExecServer) recoverPanic(ctx context.Context, spec connect.Spec, _ http.Header, p any) error {
	s.logger.Error("handler panic", "procedure", spec.Procedure, "panic", p)
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}

// Handler returns the HTTP handler, with h2c so gRPC clients can connect
// without TLS.
func (s *ExecServer) Handler() http.Handler {
	return h2c.NewHandler(s.mux, &http2.Server{})
}

// Service returns the underlying ExecService.
func (s *ExecServer) Service() *ExecService { return s.service }

// Serve accepts connections on l until Stop is called.
func (s *ExecServer) Serve(l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.http = srv
	s.mu.Unlock()

	s.logger.Info("tlang server listening",
		"addr", l.Addr().String(),
		"connect", "http://"+l.Addr().String()+ExecuteProcedure,
		"grpc", "grpc://"+l.Addr().String())

	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *ExecServer) ListenAndServe(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Stop shuts down the server and its workers.
func (s *ExecServer) Stop() {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			s.logger.Warn("shutdown", "error", err)
		}
	}
	s.pool.Stop()
}
