//go:build !tinygo && cgo

package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// hostKeyboard maps window keys to the virtual button.
type hostKeyboard struct {
	key ebiten.Key
}

func newHostKeyboard() *hostKeyboard {
	return &hostKeyboard{key: ebiten.KeySpace}
}

// poll reports key transitions this tick. Pressing pulls the active-low
// button down; releasing it is the rising edge.
func (k *hostKeyboard) poll() (pressed, released bool) {
	return inpututil.IsKeyJustPressed(k.key), inpututil.IsKeyJustReleased(k.key)
}
