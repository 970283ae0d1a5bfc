package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const (
	DEFAULT_READ_TIMEOUT     = 60 * time.Second
	DEFAULT_WRITE_TIMEOUT    = DEFAULT_READ_TIMEOUT
	DEFAULT_SHUTDOWN_TIMEOUT = 30 * time.Second
)

// Server wraps http.Server with a non-blocking start and a graceful, idempotent stop.
type Server struct {
	*http.Server

	listener net.Listener
	done     chan struct{}
	serveErr error
	stopOnce sync.Once
	stopErr  error
}

// NewServer creates a Server with timeouts and handler.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *Server {
	return &Server{
		Server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		done: make(chan struct{}),
	}
}

// Start binds the listening socket and serves in the background.
// It returns once the socket accepts connections, so callers may issue requests immediately.
func (srv *Server) Start() error {
	addr := srv.Server.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("net.Listen error: %w", err)
	}
	srv.listener = ln

	go func() {
		defer close(srv.done)
		if err := srv.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.serveErr = err
			Sugar.Errorf("HTTP server stopped with error: %v", err)
		}
	}()
	Sugar.Infof("HTTP server listening on %s", ln.Addr())
	return nil
}

// ListenAddr returns the bound address, resolving a ":0" port. Empty before Start.
func (srv *Server) ListenAddr() string {
	if srv.listener == nil {
		return ""
	}
	return srv.listener.Addr().String()
}

// Stop gracefully shuts the server down and waits for the serve loop to exit.
func (srv *Server) Stop(ctx context.Context) error {
	srv.stopOnce.Do(func() {
		if srv.listener == nil {
			return
		}
		if err := srv.Server.Shutdown(ctx); err != nil {
			Sugar.Errorf("HTTP server shutdown error: %v", err)
			srv.stopErr = err
			return
		}
		<-srv.done
		srv.stopErr = srv.serveErr
		Sugar.Info("HTTP server shutdown success")
	})
	return srv.stopErr
}

// WaitForSignal blocks until SIGINT or SIGTERM arrives or ctx is done.
func WaitForSignal(ctx context.Context) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		Sugar.Infof("received %s, graceful shutting down HTTP server", sig)
	case <-ctx.Done():
	}
}
