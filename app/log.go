package app

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"ledmcu/hal"
)

// lineWriter feeds slog records to the HAL logger, one record per line.
type lineWriter struct {
	l hal.Logger
}

func (w lineWriter) Write(p []byte) (int, error) {
	if w.l != nil {
		w.l.WriteLineBytes(bytes.TrimRight(p, "\r\n"))
	}
	return len(p), nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: want debug, info, warn or error", s)
	}
	return lvl, nil
}

// NewLogger returns a text slog logger writing through the HAL line sink.
func NewLogger(l hal.Logger, level string) *slog.Logger {
	lvl, _ := parseLevel(level)
	return slog.New(slog.NewTextHandler(lineWriter{l: l}, &slog.HandlerOptions{Level: lvl}))
}
