package sender

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 12345
	DefaultTimeout          = 5 * time.Second
	DefaultMaxResponseBytes = 64 << 10

	readChunkSize = 1024
)

var (
	// ErrConnectTimeout reports a listener that did not accept within the timeout.
	ErrConnectTimeout  = errors.New("sender: connect timed out")
	// ErrTransport wraps refused, reset, and other socket-level faults.
	ErrTransport       = errors.New("sender: transport fault")
	// ErrInvalidEncoding reports reply bytes that do not decode as UTF-8.
	ErrInvalidEncoding = errors.New("sender: response is not valid utf-8")
)

// Target identifies the remote listener for one exchange.
type Target struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// DefaultTarget returns 127.0.0.1:12345 with a five second timeout.
func DefaultTarget() Target {
	return Target{
		Host:    DefaultHost,
		Port:    DefaultPort,
		Timeout: DefaultTimeout,
	}
}

// Addr returns host:port suitable for net.Dial.
func (t Target) Addr() string {
	return net.JoinHostPort(strings.TrimSpace(t.Host), strconv.Itoa(t.Port))
}

func (t Target) timeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}
	return t.Timeout
}

// Outcome records how the receive phase of an exchange ended.
type Outcome string

const (
	OutcomeSent       Outcome = "sent"
	OutcomeLine       Outcome = "line"
	OutcomePeerClosed Outcome = "peer_closed"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeTruncated  Outcome = "truncated"
)

// Reply is the result of one exchange. Received is false when no bytes
// arrived; Text may still be empty when the reply was only whitespace.
type Reply struct {
	Outcome  Outcome
	Text     string
	Received bool
}

// Config tunes a Sender. A non-positive MaxResponseBytes uses the default cap.
type Config struct {
	MaxResponseBytes int
	Logger           zerolog.Logger
}

// DefaultConfig caps replies at DefaultMaxResponseBytes and logs globally.
func DefaultConfig() Config {
	return Config{
		MaxResponseBytes: DefaultMaxResponseBytes,
		Logger:           log.Logger,
	}
}

// Sender performs independent one-shot exchanges. It holds no connection
// state and is safe for concurrent use.
type Sender struct {
	maxResponseBytes int
	log              zerolog.Logger
}

// New constructs a Sender logging to the process-wide logger.
func New() *Sender {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig constructs a Sender from cfg.
func NewWithConfig(cfg Config) *Sender {
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	return &Sender{
		maxResponseBytes: cfg.MaxResponseBytes,
		log:              cfg.Logger,
	}
}

// NormalizeLine appends the newline delimiter when it is missing.
func NormalizeLine(line string) string {
	if strings.HasSuffix(line, "\n") {
		return line
	}
	return line + "\n"
}

// Send runs one exchange and converts every failure into a single logged
// diagnostic. The boolean is false when there is no reply value.
func (s *Sender) Send(ctx context.Context, target Target, line string, expectResponse bool) (string, bool) {
	reply, err := s.Exchange(ctx, target, line, expectResponse)
	if err != nil {
		s.report(target, err)
		return "", false
	}
	if !reply.Received {
		return "", false
	}
	return reply.Text, true
}

// Exchange dials target, writes the normalized line, and when
// expectResponse is set reads until a newline, peer close, timeout, or the
// response cap. The connection is closed before Exchange returns.
func (s *Sender) Exchange(ctx context.Context, target Target, line string, expectResponse bool) (Reply, error) {
	addr := target.Addr()
	timeout := target.timeout()
	payload := NormalizeLine(line)

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Reply{}, classifyDialErr(addr, err)
	}
	defer conn.Close()

	// One deadline bounds write and read; cancellation pulls it forward.
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Reply{}, fmt.Errorf("%w: set deadline %s: %w", ErrTransport, addr, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := conn.Write([]byte(payload)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Reply{}, fmt.Errorf("sender: write %s: %w", addr, ctxErr)
		}
		return Reply{}, fmt.Errorf("%w: write %s: %w", ErrTransport, addr, err)
	}
	s.log.Info().Str("addr", addr).Str("line", strings.TrimSpace(payload)).Msg("sent")

	if !expectResponse {
		return Reply{Outcome: OutcomeSent}, nil
	}

	raw, outcome, err := s.readReply(ctx, conn, addr)
	if err != nil {
		return Reply{}, err
	}
	switch outcome {
	case OutcomeTimeout:
		s.log.Warn().Str("addr", addr).Dur("timeout", timeout).Msg("timeout waiting for response")
	case OutcomeTruncated:
		s.log.Warn().Str("addr", addr).Int("limit", s.maxResponseBytes).Msg("response exceeded limit, truncated")
	}
	if len(raw) == 0 {
		s.log.Info().Str("addr", addr).Str("outcome", string(outcome)).Msg("no response received or connection closed")
		return Reply{Outcome: outcome}, nil
	}
	if !utf8.Valid(raw) {
		return Reply{Outcome: outcome}, fmt.Errorf("%w: %d bytes from %s", ErrInvalidEncoding, len(raw), addr)
	}
	text := strings.TrimSpace(string(raw))
	s.log.Info().Str("addr", addr).Str("response", text).Msg("received")
	return Reply{Outcome: outcome, Text: text, Received: true}, nil
}

// readReply accumulates bytes up to and including the first newline. Bytes
// after the delimiter are discarded; the delimiter itself is trimmed later.
func (s *Sender) readReply(ctx context.Context, conn net.Conn, addr string) ([]byte, Outcome, error) {
	var buf bytes.Buffer
	chunk := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			if i := bytes.IndexByte(chunk[:n], '\n'); i >= 0 {
				buf.Write(chunk[:i+1])
				return s.capped(buf.Bytes(), OutcomeLine)
			}
			buf.Write(chunk[:n])
			if buf.Len() >= s.maxResponseBytes {
				return s.capped(buf.Bytes(), OutcomeTruncated)
			}
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), OutcomePeerClosed, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", fmt.Errorf("sender: read %s: %w", addr, ctxErr)
		}
		if isTimeout(err) {
			return buf.Bytes(), OutcomeTimeout, nil
		}
		return nil, "", fmt.Errorf("%w: read %s: %w", ErrTransport, addr, err)
	}
}

func (s *Sender) capped(raw []byte, outcome Outcome) ([]byte, Outcome, error) {
	if len(raw) <= s.maxResponseBytes {
		return raw, outcome, nil
	}
	return trimPartialRune(raw[:s.maxResponseBytes]), OutcomeTruncated, nil
}

// trimPartialRune drops a multi-byte sequence cut short by truncation.
func trimPartialRune(b []byte) []byte {
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		if !utf8.RuneStart(b[len(b)-i]) {
			continue
		}
		if !utf8.FullRune(b[len(b)-i:]) {
			return b[:len(b)-i]
		}
		return b
	}
	return b
}

func (s *Sender) report(target Target, err error) {
	addr := target.Addr()
	switch {
	case errors.Is(err, context.Canceled):
		s.log.Warn().Str("addr", addr).Err(err).Msg("exchange canceled")
	case errors.Is(err, ErrConnectTimeout):
		s.log.Error().Str("addr", addr).Dur("timeout", target.timeout()).Msg("connection timed out")
	case errors.Is(err, ErrTransport):
		s.log.Error().Str("addr", addr).Err(err).Msg("error connecting or sending data")
	default:
		s.log.Error().Str("addr", addr).Err(err).Msg("unexpected error")
	}
}

func classifyDialErr(addr string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("sender: dial %s: %w", addr, err)
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %s: %w", ErrConnectTimeout, addr, err)
	}
	return fmt.Errorf("%w: dial %s: %w", ErrTransport, addr, err)
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
