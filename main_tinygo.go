//go:build tinygo

package main

import (
	"strconv"

	"ledmcu/app"
	"ledmcu/hal"
)

// Board settings, overridable at link time with -ldflags "-X main.stripPin=16".
var (
	stripLength = "60"
	stripPin    = "2"
	buttonPin   = "1"
	logLevel    = "info"
)

func main() {
	cfg := app.DefaultConfig()
	// The MCU build has no network stack. Commands come from the button and
	// from JSON lines on the serial console.
	cfg.MQTT.Enabled = false
	cfg.Console.Enabled = true
	cfg.Strip.Length = atoi(stripLength, cfg.Strip.Length)
	cfg.Strip.Pin = atoi(stripPin, cfg.Strip.Pin)
	cfg.Button.Pin = atoi(buttonPin, cfg.Button.Pin)
	cfg.Log.Level = logLevel

	h, err := hal.New(cfg.HALOptions())
	if err != nil {
		panic(err)
	}
	app.Run(h, cfg, nil)
}

func atoi(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
