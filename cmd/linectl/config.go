package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/danmuck/linectl/internal/config"
)

type options struct {
	cfg     config.Config
	command string
}

// parseOptions loads the optional config file, then applies only the flags
// that were set explicitly.
func parseOptions(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("linectl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	defaults := config.Default()
	path := fs.String("config", "", "path to a linectl TOML config")
	host := fs.String("host", defaults.Target.Host, "listener host")
	port := fs.Int("port", defaults.Target.Port, "listener port")
	timeout := fs.Duration("timeout", defaults.Target.Timeout, "connect and read timeout")
	noReply := fs.Bool("no-reply", false, "send without waiting for a response line")
	maxResponse := fs.Int("max-response", defaults.MaxResponseBytes, "maximum response bytes to accumulate")
	command := fs.String("c", "", "send one command and exit")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg := defaults
	if *path != "" {
		loaded, err := config.Load(*path)
		if err != nil {
			return options{}, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			cfg.Target.Host = *host
		case "port":
			cfg.Target.Port = *port
		case "timeout":
			cfg.Target.Timeout = *timeout
		case "no-reply":
			cfg.ExpectResponse = !*noReply
		case "max-response":
			cfg.MaxResponseBytes = *maxResponse
		}
	})
	if err := config.Validate(cfg); err != nil {
		return options{}, fmt.Errorf("invalid options: %w", err)
	}
	return options{cfg: cfg, command: *command}, nil
}
