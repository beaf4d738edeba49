package lineserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/linectl/internal/logging"
)

const DefaultIdleTimeout = 30 * time.Second

// Handler consumes one trimmed, non-empty command line. When ok is true the
// reply is written back newline-terminated.
type Handler func(command string) (reply string, ok bool)

// AckHandler answers every command with OK.
func AckHandler(string) (string, bool) {
	return "OK", true
}

// EchoHandler answers with the command itself.
func EchoHandler(command string) (string, bool) {
	return command, true
}

// SilentHandler consumes commands without replying.
func SilentHandler(string) (string, bool) {
	return "", false
}

// HandlerFor resolves a reply mode name from config.
func HandlerFor(mode string) (Handler, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "ack":
		return AckHandler, nil
	case "echo":
		return EchoHandler, nil
	case "none", "silent":
		return SilentHandler, nil
	default:
		return nil, fmt.Errorf("lineserver: unknown reply mode %q", mode)
	}
}

// Config binds a listen address, per-line idle deadline, and handler.
type Config struct {
	ListenAddr  string
	IdleTimeout time.Duration
	Handler     Handler
}

// Server accepts line-oriented TCP clients and dispatches each command line.
type Server struct {
	cfg         Config
	clientCount atomic.Int64

	mu   sync.Mutex
	addr net.Addr
}

// New fills in the default idle timeout and AckHandler when unset.
func New(cfg Config) *Server {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Handler == nil {
		cfg.Handler = AckHandler
	}
	return &Server{cfg: cfg}
}

// Addr reports the bound address once Listen has succeeded.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Listen binds the configured address and records it for Addr.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", strings.TrimSpace(s.cfg.ListenAddr))
	if err != nil {
		return nil, fmt.Errorf("lineserver: listen %q: %w", s.cfg.ListenAddr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	return ln, nil
}

// ListenAndServe binds the configured address and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts on ln until ctx is canceled; ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer ln.Close()
	logging.Infof("lineserver listening addr=%q", ln.Addr().String())

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn reads one command per line and writes at most one reply per line.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	remote := conn.RemoteAddr().String()
	active := s.clientCount.Add(1)
	logging.Infof("lineserver client connected remote=%q active_clients=%d", remote, active)
	defer func() {
		remaining := s.clientCount.Add(-1)
		logging.Infof("lineserver client disconnected remote=%q active_clients=%d", remote, remaining)
	}()

	reader := bufio.NewReader(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		line, err := reader.ReadString('\n')
		if err != nil {
			// A trailing fragment without a newline is never dispatched.
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logging.Warnf("lineserver read err=%v", err)
			}
			return
		}
		command := strings.TrimSpace(line)
		if command == "" {
			continue
		}
		logging.Infof("lineserver received remote=%q command=%q", remote, command)
		reply, ok := s.cfg.Handler(command)
		if !ok {
			continue
		}
		if err := writeLine(conn, reply); err != nil {
			logging.Warnf("lineserver write err=%v", err)
			return
		}
	}
}

func writeLine(w io.Writer, reply string) error {
	_, err := io.WriteString(w, strings.TrimRight(reply, "\r\n")+"\n")
	return err
}
