//go:build !tinygo

package app

import (
	"context"
	"errors"
	"image/color"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"ledmcu/hal"
	"ledmcu/proto"
	"ledmcu/services/listener"
	"ledmcu/services/render"
)

type recordStrip struct {
	mu     sync.Mutex
	n      int
	frames [][]color.RGBA
	fail   error
}

func (s *recordStrip) Len() int { return s.n }

func (s *recordStrip) WriteColors(buf []color.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.frames = append(s.frames, append([]color.RGBA(nil), buf...))
	return nil
}

func (s *recordStrip) last() []color.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// testHAL is a host HAL whose strip records every frame.
type testHAL struct {
	hal.HAL
	strip   *recordStrip
	console io.ReadWriter
}

func (h testHAL) Strip() hal.Strip { return h.strip }

func (h testHAL) Console() io.ReadWriter { return h.console }

func newTestHAL(t *testing.T, n int) testHAL {
	t.Helper()
	h, err := hal.New(hal.Options{StripLength: n})
	if err != nil {
		t.Fatalf("hal.New: %v", err)
	}
	return testHAL{HAL: h, strip: &recordStrip{n: n}}
}

type chanEvent string

func (e chanEvent) String() string { return string(e) }

type chanTransport struct {
	events chan listener.Event
}

func (c *chanTransport) Subscribe(string) error { return nil }

func (c *chanTransport) Next(ctx context.Context) (listener.Event, error) {
	select {
	case ev, ok := <-c.events:
		if !ok {
			return nil, io.EOF
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Strip.Length = 10
	cfg.Strip.OnHold = time.Millisecond
	cfg.Strip.RotateBase = 10 * time.Millisecond
	cfg.Strip.RetryDelay = time.Millisecond
	cfg.MQTT.SubscribeDelay = 0
	cfg.MQTT.RetryInterval = time.Millisecond
	cfg.Log.Level = "error"
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func isDarkFrame(buf []color.RGBA) bool {
	if buf == nil {
		return false
	}
	for _, c := range buf {
		if !render.IsDark(c) {
			return false
		}
	}
	return true
}

func TestCommandsFromBusAndButton(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newTestHAL(t, 10)
	tr := &chanTransport{events: make(chan listener.Event, 4)}
	sys, err := Start(context.Background(), h, testConfig(), tr)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	tr.events <- chanEvent(proto.WrapEvent(1, "led", []byte(`{"led_state":"On","color":"Red","percentage":50}`)))
	waitFor(t, "red frame", func() bool {
		f := h.strip.last()
		return f != nil && f[0] == proto.ColorRed.RGBA() && render.IsDark(f[1])
	})

	if err := hal.VirtualButton(h.HAL).Press(); err != nil {
		t.Fatalf("Press: %v", err)
	}
	waitFor(t, "dark frame", func() bool {
		return sys.Stats().Writes == 2 && isDarkFrame(h.strip.last())
	})

	st := sys.Stats()
	if st.Received != 1 || st.Presses != 1 || st.Writes != 2 {
		t.Fatalf("Stats() = %+v", st)
	}
	if err := sys.Step(); err != nil {
		t.Fatalf("Step() = %v", err)
	}

	close(tr.events)
	if err := sys.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
}

func TestCommandsFromConsole(t *testing.T) {
	defer goleak.VerifyNone(t)

	r, w := io.Pipe()
	defer w.Close()
	h := newTestHAL(t, 10)
	h.console = struct {
		io.Reader
		io.Writer
	}{r, io.Discard}

	cfg := testConfig()
	cfg.MQTT.Enabled = false
	cfg.Button.Enabled = false
	cfg.Console.Enabled = true
	cfg.Console.PollInterval = time.Millisecond
	sys, err := Start(context.Background(), h, cfg, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	go io.WriteString(w, "hello\r\n"+`{"led_state":"On","color":"Green","percentage":30}`+"\r\n")
	waitFor(t, "green frame", func() bool {
		f := h.strip.last()
		return f != nil && f[0] == proto.ColorGreen.RGBA() && render.IsDark(f[1]) && f[3] == proto.ColorGreen.RGBA()
	})
	if st := sys.Stats(); st.Received != 1 || st.DecodeDropped != 0 {
		t.Fatalf("Stats() = %+v", st)
	}

	if err := sys.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
}

func TestConsoleEnabledWithoutPort(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newTestHAL(t, 10)
	cfg := testConfig()
	cfg.MQTT.Enabled = false
	cfg.Console.Enabled = true
	sys, err := Start(context.Background(), h, cfg, nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sys.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
}

func TestSinkFailureIsFatal(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newTestHAL(t, 10)
	h.strip.fail = errors.New("strip bus fault")
	sys, err := Start(context.Background(), h, testConfig(), nil)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	_ = hal.VirtualButton(h.HAL).Press()

	var stepErr error
	waitFor(t, "fault", func() bool {
		stepErr = sys.Step()
		return stepErr != nil
	})
	var se *render.SinkError
	if !errors.As(stepErr, &se) {
		t.Fatalf("Step() = %v, want *render.SinkError", stepErr)
	}
	if err := sys.Step(); err != stepErr {
		t.Fatalf("second Step() = %v, want the same fault", err)
	}

	// The fault is painted on the preview framebuffer.
	buf := h.Display().Framebuffer().Buffer()
	lit := false
	for i := 0; i+1 < len(buf); i += 2 {
		if buf[i] == 0xFF && buf[i+1] == 0xFF {
			lit = true
			break
		}
	}
	if !lit {
		t.Fatal("fault text not drawn")
	}

	if err := sys.Stop(); !errors.As(err, &se) {
		t.Fatalf("Stop() = %v, want the sink fault", err)
	}
}

func TestNewReportsInvalidConfig(t *testing.T) {
	h := newTestHAL(t, 10)
	cfg := testConfig()
	cfg.Strip.Length = 0

	step := New(context.Background(), h, cfg, nil)
	if err := step(); err == nil {
		t.Fatal("step() = nil for an invalid config")
	}
}

func TestStopBlanksStrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := newTestHAL(t, 10)
	tr := &chanTransport{events: make(chan listener.Event, 1)}
	sys, err := Start(context.Background(), h, testConfig(), tr)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	tr.events <- chanEvent(proto.WrapEvent(1, "led", []byte(`{"led_state":"Rotate","color":"Green","percentage":20,"speed":2}`)))
	waitFor(t, "animation", func() bool { return sys.Stats().Writes >= 3 })

	if err := sys.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	if !isDarkFrame(h.strip.last()) {
		t.Fatal("strip not blanked on Stop")
	}
}
