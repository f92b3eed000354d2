package serial

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"ledmcu/proto"
)

// pipePort reads from a pipe and records writes.
type pipePort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu  sync.Mutex
	out strings.Builder
}

func newPipePort() *pipePort {
	r, w := io.Pipe()
	return &pipePort{r: r, w: w}
}

func (p *pipePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *pipePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *pipePort) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.String()
}

func (p *pipePort) feed(t *testing.T, s string) {
	t.Helper()
	if _, err := io.WriteString(p.w, s); err != nil {
		t.Errorf("feed: %v", err)
	}
}

// pollPort never blocks: an empty read returns 0, nil like a UART with
// nothing buffered.
type pollPort struct {
	mu  sync.Mutex
	in  []byte
	err error
}

func (p *pollPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.in) == 0 {
		return 0, p.err
	}
	n := copy(b, p.in)
	p.in = p.in[n:]
	return n, nil
}

func (p *pollPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *pollPort) put(s string) {
	p.mu.Lock()
	p.in = append(p.in, s...)
	p.mu.Unlock()
}

func (p *pollPort) fail(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func next(t *testing.T, c *Console) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := c.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	return ev.String()
}

func TestBareJSONLineBecomesCommand(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := newPipePort()
	c := New(port, Options{})
	defer c.Close()
	defer port.w.Close()

	if err := c.Subscribe("led"); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if got := port.written(); got != "SUB led\r\n" {
		t.Fatalf("written = %q, want SUB line", got)
	}

	go port.feed(t, `{"led_state":"Rotate","color":"Blue","percentage":20,"speed":3}`+"\r\n")
	text := next(t, c)
	if !strings.HasPrefix(text, proto.EventMarker) {
		t.Fatalf("event = %q, want %q prefix", text, proto.EventMarker)
	}
	if !strings.Contains(text, `topic: Some("led")`) {
		t.Fatalf("event = %q, want the subscribed topic", text)
	}
	cmd, err := proto.ExtractCommand(text)
	if err != nil {
		t.Fatalf("ExtractCommand: %v", err)
	}
	want := proto.Command{Mode: proto.ModeRotate, Color: proto.ColorBlue, Percentage: 20, Speed: 3}
	if cmd != want {
		t.Fatalf("cmd = %v, want %v", cmd, want)
	}
}

func TestEventLinesPassThrough(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := newPipePort()
	c := New(port, Options{})
	defer c.Close()

	ev := proto.WrapEvent(9, "led", []byte(`{"led_state":"Off","color":"Red","percentage":0}`))
	go func() {
		port.feed(t, "\r\n"+ev+"\nConnected\n")
		port.w.Close()
	}()

	if got := next(t, c); got != ev {
		t.Fatalf("first = %q, want %q", got, ev)
	}
	if got := next(t, c); got != "Connected" {
		t.Fatalf("second = %q, want Connected", got)
	}
	if _, err := c.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Next after end of input = %v, want io.EOF", err)
	}
}

func TestLongLineIsDiscarded(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := newPipePort()
	c := New(port, Options{MaxLine: 8})
	defer c.Close()
	defer port.w.Close()

	go port.feed(t, strings.Repeat("x", 20)+"\nshort\n")
	if got := next(t, c); got != "short" {
		t.Fatalf("line = %q, want short", got)
	}
	if got := c.Overflow(); got != 1 {
		t.Fatalf("Overflow() = %d, want 1", got)
	}
}

func TestIdlePortIsPolled(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := &pollPort{}
	c := New(port, Options{PollInterval: time.Millisecond})

	time.AfterFunc(20*time.Millisecond, func() { port.put("Connected\n") })
	if got := next(t, c); got != "Connected" {
		t.Fatalf("line = %q, want Connected", got)
	}

	port.fail(errors.New("uart overrun"))
	_, err := c.Next(context.Background())
	if err == nil || !strings.Contains(err.Error(), "uart overrun") {
		t.Fatalf("Next = %v, want the read error", err)
	}
	c.Close()
}

func TestCloseEndsNext(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := &pollPort{}
	c := New(port, Options{PollInterval: time.Millisecond})
	c.Close()

	if _, err := c.Next(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("Next after Close = %v, want io.EOF", err)
	}
	if err := c.Subscribe("led"); err == nil {
		t.Fatal("Subscribe after Close succeeded")
	}
}

func TestNextHonoursContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	port := &pollPort{}
	c := New(port, Options{PollInterval: time.Millisecond})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Next = %v, want deadline exceeded", err)
	}
}
