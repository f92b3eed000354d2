//go:build !linux && !tinygo

package hal

import "errors"

type cdevPin struct {
	VirtualPin
}

func newCdevPin(chip string, offset int) (*cdevPin, error) {
	_ = chip
	_ = offset
	return nil, errors.New("gpiocdev lines require linux")
}
