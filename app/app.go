// Package app assembles the store, router and HTTP server into a running blog service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/cppla/blogposts/config"
	"github.com/cppla/blogposts/routes"
	"github.com/cppla/blogposts/store"
	"github.com/cppla/blogposts/utils"
)

// App is a running blog service.
type App struct {
	server     *utils.Server
	store      store.Store
	closeStore func(context.Context) error
}

// RunServer opens the store at cfg.DatabaseURL and serves the API on cfg.AppPort.
// It returns once the listener is bound. An AppPort of "0" picks a free port.
func RunServer(ctx context.Context, cfg config.AppConfig) (*App, error) {
	s, closeStore, err := config.OpenStore(ctx, cfg, cfg.DatabaseURL, utils.Logger)
	if err != nil {
		return nil, err
	}

	r := routes.SetupRouter(s, cfg)
	srv := utils.NewServer(listenAddr(cfg.AppPort), r, utils.DEFAULT_READ_TIMEOUT, utils.DEFAULT_WRITE_TIMEOUT)
	if err := srv.Start(); err != nil {
		if cerr := closeStore(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, fmt.Errorf("start server: %w", err)
	}

	return &App{server: srv, store: s, closeStore: closeStore}, nil
}

func listenAddr(port string) string {
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

// URL is the base URL of the running server, e.g. http://127.0.0.1:34567.
func (a *App) URL() string {
	host, port, err := net.SplitHostPort(a.server.ListenAddr())
	if err != nil {
		return "http://" + a.server.ListenAddr()
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Store returns the store the server reads and writes.
func (a *App) Store() store.Store {
	return a.store
}

// Close shuts the HTTP server down gracefully, then closes the store.
func (a *App) Close(ctx context.Context) error {
	err := a.server.Stop(ctx)
	if cerr := a.closeStore(ctx); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}
