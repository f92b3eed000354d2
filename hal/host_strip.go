//go:build !tinygo

package hal

import (
	"fmt"
	"image/color"
	"strings"
	"sync"
)

const (
	previewCell    = 8
	previewStripH  = 16
	previewMinW    = 320
	previewHeight  = 64
	previewCellGap = 1
)

// previewStrip renders frames into the host framebuffer as a row of cells.
type previewStrip struct {
	mu     sync.Mutex
	n      int
	fb     *hostFramebuffer
	logger Logger
	trace  bool
	frame  []color.RGBA
	writes uint64
}

func newPreviewStrip(n int, fb *hostFramebuffer, logger Logger, trace bool) *previewStrip {
	return &previewStrip{
		n:      n,
		fb:     fb,
		logger: logger,
		trace:  trace,
		frame:  make([]color.RGBA, n),
	}
}

func previewSize(n int) (w, h int) {
	return max(n*previewCell, previewMinW), previewHeight
}

func (s *previewStrip) Len() int { return s.n }

func (s *previewStrip) WriteColors(buf []color.RGBA) error {
	if len(buf) != s.n {
		return fmt.Errorf("strip: frame has %d pixels, strip has %d", len(buf), s.n)
	}

	s.mu.Lock()
	copy(s.frame, buf)
	s.writes++
	seq := s.writes
	s.mu.Unlock()

	if s.fb != nil {
		for i, c := range buf {
			s.fb.fillRect(i*previewCell, 0, previewCell-previewCellGap, previewStripH, rgb565(c.R, c.G, c.B))
		}
	}
	if s.trace && s.logger != nil {
		s.logger.WriteLineString(fmt.Sprintf("strip: #%d %s", seq, FrameString(buf)))
	}
	return nil
}

// Frame returns a copy of the last written frame.
func (s *previewStrip) Frame() []color.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]color.RGBA, len(s.frame))
	copy(out, s.frame)
	return out
}

// FrameString renders a frame compactly: '.' for dark pixels, the first
// letter of the closest primary otherwise.
func FrameString(buf []color.RGBA) string {
	var b strings.Builder
	b.Grow(len(buf))
	for _, c := range buf {
		b.WriteByte(pixelRune(c))
	}
	return b.String()
}

func pixelRune(c color.RGBA) byte {
	switch {
	case IsDark(c):
		return '.'
	case c.R > 0 && c.G > 0 && c.B > 0:
		return 'W'
	case c.R > 0 && c.G > 0:
		return 'Y'
	case c.R > 0 && c.B > 0:
		return 'P'
	case c.R > 0:
		return 'R'
	case c.G > 0:
		return 'G'
	default:
		return 'B'
	}
}
