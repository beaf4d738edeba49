package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/linectl/internal/config"
	"github.com/danmuck/linectl/internal/console"
	"github.com/danmuck/linectl/internal/logging"
	"github.com/danmuck/linectl/internal/sender"
)

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "linectl: %v\n", err)
		os.Exit(2)
	}

	logging.ConfigureRuntime(opts.cfg.Log.Apply)
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		logging.Errf("linectl: %v", err)
		_ = logging.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	s := sender.NewWithConfig(sender.Config{
		MaxResponseBytes: opts.cfg.MaxResponseBytes,
		Logger:           logging.Logger(),
	})
	c := console.New(consoleConfig(opts.cfg), s, os.Stdin, os.Stdout)

	if opts.command != "" {
		if _, ok := c.Exec(ctx, opts.command); !ok && opts.cfg.ExpectResponse {
			return errors.New("no response")
		}
		return nil
	}

	c.PrintBanner()
	return c.Run(ctx)
}

func consoleConfig(cfg config.Config) console.Config {
	return console.Config{
		Target:         cfg.Target,
		ExpectResponse: cfg.ExpectResponse,
		Prompt:         cfg.Prompt,
	}
}
