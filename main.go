package main

import (
	"context"

	"github.com/cppla/blogposts/app"
	"github.com/cppla/blogposts/config"
	"github.com/cppla/blogposts/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	ctx := context.Background()
	a, err := app.RunServer(ctx, cfg)
	if err != nil {
		utils.Sugar.Fatalf("server failed to start: %v", err)
	}
	utils.Sugar.Infof("Serving blog posts on port %s (graceful)", cfg.AppPort)

	utils.WaitForSignal(ctx)

	shutdownCtx, cancel := context.WithTimeout(ctx, utils.DEFAULT_SHUTDOWN_TIMEOUT)
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil {
		utils.Sugar.Errorf("shutdown: %v", err)
	}
}
