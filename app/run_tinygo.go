//go:build tinygo

package app

import (
	"context"
	"time"

	"ledmcu/hal"
	"ledmcu/services/listener"
)

const stepInterval = 100 * time.Millisecond

// Run starts the firmware and blocks forever. A fatal fault panics so the
// board resets.
func Run(h hal.HAL, cfg Config, tr listener.Transport) {
	bootDiagStart(h)
	bootDiagSetStep("starting")
	step := New(context.Background(), h, cfg, tr)
	bootDiagSetStep("running")
	for {
		if err := step(); err != nil {
			bootDiagSetStep("fault: " + err.Error())
			panic(err)
		}
		time.Sleep(stepInterval)
	}
}
