package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/danmuck/linectl/internal/sender"
	"github.com/danmuck/linectl/internal/testutil/testlog"
)

type sendCall struct {
	target sender.Target
	line   string
	expect bool
}

type fakeSender struct {
	calls []sendCall
	reply func(line string) (string, bool)
}

func (f *fakeSender) Send(_ context.Context, target sender.Target, line string, expect bool) (string, bool) {
	f.calls = append(f.calls, sendCall{target: target, line: line, expect: expect})
	if f.reply == nil {
		return "", false
	}
	return f.reply(line)
}

func testConfig() Config {
	return Config{
		Target:         sender.DefaultTarget(),
		ExpectResponse: true,
		Prompt:         "Cmd> ",
	}
}

func TestRunSendsLinesUntilExit(t *testing.T) {
	testlog.Start(t)

	fake := &fakeSender{reply: func(line string) (string, bool) {
		return "ack " + line, true
	}}
	in := strings.NewReader("step\n\n   \nrun 10\nEXIT\nnever\n")
	var out bytes.Buffer

	if err := New(testConfig(), fake, in, &out).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("unexpected calls: %+v", fake.calls)
	}
	if fake.calls[0].line != "step" || fake.calls[1].line != "run 10" {
		t.Fatalf("unexpected lines: %+v", fake.calls)
	}
	if !fake.calls[0].expect || fake.calls[0].target.Addr() != "127.0.0.1:12345" {
		t.Fatalf("unexpected call parameters: %+v", fake.calls[0])
	}
	if !strings.Contains(out.String(), "ack step\n") || !strings.Contains(out.String(), "ack run 10\n") {
		t.Fatalf("replies not printed: %q", out.String())
	}
	if strings.Count(out.String(), "Cmd> ") != 5 {
		t.Fatalf("unexpected prompt count: %q", out.String())
	}
}

func TestRunQuitIsCaseInsensitive(t *testing.T) {
	testlog.Start(t)

	fake := &fakeSender{}
	var out bytes.Buffer
	if err := New(testConfig(), fake, strings.NewReader("Quit\r\nstep\n"), &out).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no sends, got %+v", fake.calls)
	}
}

func TestRunNoReplyPrintsNothing(t *testing.T) {
	testlog.Start(t)

	fake := &fakeSender{}
	var out bytes.Buffer
	if err := New(testConfig(), fake, strings.NewReader("step\n"), &out).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := out.String(); got != "Cmd> Cmd> \n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestRunEOFSendsTrailingLine(t *testing.T) {
	testlog.Start(t)

	fake := &fakeSender{}
	var out bytes.Buffer
	if err := New(testConfig(), fake, strings.NewReader("first\nlast"), &out).Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fake.calls) != 2 || fake.calls[1].line != "last" {
		t.Fatalf("unexpected calls: %+v", fake.calls)
	}
}

func TestRunExitsOnCancel(t *testing.T) {
	testlog.Start(t)

	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	errCh := make(chan error, 1)
	go func() {
		errCh <- New(testConfig(), &fakeSender{}, pr, &out).Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not return after cancel")
	}
	if !strings.Contains(out.String(), "Exiting client.") {
		t.Fatalf("missing exit message: %q", out.String())
	}
	if _, err := pw.Write([]byte("late\n")); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected input closed on cancel, got %v", err)
	}
}

func TestRunReadFaultEndsLoop(t *testing.T) {
	testlog.Start(t)

	boom := errors.New("tty gone")
	err := New(testConfig(), &fakeSender{}, iotest.ErrReader(boom), io.Discard).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected read fault, got %v", err)
	}
}

func TestRunPanicEndsLoop(t *testing.T) {
	testlog.Start(t)

	fake := &fakeSender{reply: func(string) (string, bool) {
		panic("sender exploded")
	}}
	err := New(testConfig(), fake, strings.NewReader("step\nstep\n"), io.Discard).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "sender exploded") {
		t.Fatalf("expected loop error, got %v", err)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("loop continued after fault: %+v", fake.calls)
	}
}

func TestPrintBanner(t *testing.T) {
	var out bytes.Buffer
	New(testConfig(), &fakeSender{}, strings.NewReader(""), &out).PrintBanner()
	if !strings.Contains(out.String(), "127.0.0.1:12345") || !strings.Contains(out.String(), "'exit' or 'quit'") {
		t.Fatalf("unexpected banner: %q", out.String())
	}
}
