package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/linectl/internal/config"
	"github.com/danmuck/linectl/internal/lineserver"
	"github.com/danmuck/linectl/internal/logging"
)

func main() {
	path := flag.String("config", "", "path to a linectl TOML config")
	listen := flag.String("listen", "", "listen address (overrides config)")
	reply := flag.String("reply", "", "reply mode: ack|echo|none (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *path != "" {
		loaded, err := config.Load(*path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "linesrv: %v\n", err)
			os.Exit(2)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *reply != "" {
		cfg.Server.Reply = *reply
	}

	logging.ConfigureRuntime(cfg.Log.Apply)
	defer logging.Close()

	handler, err := lineserver.HandlerFor(cfg.Server.Reply)
	if err != nil {
		logging.Errf("linesrv: %v", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := lineserver.New(lineserver.Config{
		ListenAddr:  cfg.Server.Listen,
		IdleTimeout: cfg.Server.IdleTimeout,
		Handler:     handler,
	})
	if err := srv.ListenAndServe(ctx); err != nil {
		logging.Errf("linesrv: %v", err)
		return
	}
	logging.Infof("linesrv stopped")
}
