//go:build !tinygo

package hal

import "os"

// hostConsole reads commands from stdin. Writes share the log stream's lock
// so console replies never split a log line.
type hostConsole struct {
	r   *os.File
	out *hostLogger
}

func (c *hostConsole) Read(p []byte) (int, error) {
	if c.r == nil {
		return 0, ErrNotImplemented
	}
	return c.r.Read(p)
}

func (c *hostConsole) Write(p []byte) (int, error) {
	if c.out == nil {
		return 0, ErrNotImplemented
	}
	c.out.mu.Lock()
	defer c.out.mu.Unlock()
	return c.out.w.Write(p)
}
