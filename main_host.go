//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ledmcu/app"
	"ledmcu/hal"
	"ledmcu/services/listener"
	"ledmcu/transport/mqtt"
)

// bus adapts the MQTT client to the listener transport.
type bus struct {
	c *mqtt.Client
}

func (b bus) Subscribe(topic string) error { return b.c.Subscribe(topic) }

func (b bus) Next(ctx context.Context) (listener.Event, error) {
	ev, err := b.c.Next(ctx)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		hcfg       hal.HeadlessConfig
		configPath string
		noMQTT     bool
		noButton   bool
		console    bool
		strict     bool
		host       string
		port       int
		topic      string
		chip       string
		line       int
		length     int
		level      string
		frames     bool
	)
	flag.StringVar(&configPath, "config", "", "YAML config file.")
	flag.BoolVar(&hcfg.Enabled, "headless", false, "Run without a window.")
	flag.IntVar(&hcfg.Hz, "hz", 60, "Tick rate in headless mode.")
	flag.Uint64Var(&hcfg.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")
	flag.BoolVar(&noMQTT, "no-mqtt", false, "Do not connect to the broker.")
	flag.BoolVar(&noButton, "no-button", false, "Do not arm the button.")
	flag.BoolVar(&console, "console", false, "Also read JSON commands from stdin, one per line.")
	flag.BoolVar(&strict, "strict", false, "Treat a malformed command as fatal.")
	flag.StringVar(&host, "broker", "localhost", "MQTT broker host.")
	flag.IntVar(&port, "port", 1883, "MQTT broker port.")
	flag.StringVar(&topic, "topic", "led", "Command topic.")
	flag.StringVar(&chip, "gpiochip", "", "gpiocdev chip for the button, e.g. gpiochip0.")
	flag.IntVar(&line, "line", 0, "gpiocdev line offset of the button.")
	flag.IntVar(&length, "length", 60, "Number of pixels on the strip.")
	flag.StringVar(&level, "log-level", "info", "debug, info, warn or error.")
	flag.BoolVar(&frames, "trace-frames", false, "Log every strip frame.")
	flag.Parse()

	cfg := app.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = app.LoadConfig(configPath); err != nil {
			return err
		}
	}
	// Flags given on the command line win over the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "no-mqtt":
			cfg.MQTT.Enabled = !noMQTT
		case "no-button":
			cfg.Button.Enabled = !noButton
		case "console":
			cfg.Console.Enabled = console
		case "strict":
			cfg.MQTT.StrictDecode = strict
		case "broker":
			cfg.MQTT.Host = host
		case "port":
			cfg.MQTT.Port = port
		case "topic":
			cfg.MQTT.Topic = topic
		case "gpiochip":
			cfg.Button.GPIOChip = chip
		case "line":
			cfg.Button.Line = line
		case "length":
			cfg.Strip.Length = length
		case "log-level":
			cfg.Log.Level = level
		case "trace-frames":
			cfg.Log.Frames = frames
		}
	})
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tr listener.Transport
	if cfg.MQTT.Enabled {
		opts := mqtt.DefaultOptions()
		opts.Host = cfg.MQTT.Host
		opts.Port = cfg.MQTT.Port
		opts.ClientPrefix = cfg.MQTT.ClientPrefix
		opts.Username = cfg.MQTT.Username
		opts.Password = cfg.MQTT.Password
		opts.KeepAlive = cfg.MQTT.KeepAlive

		c, err := mqtt.Dial(ctx, opts, app.NewLogger(stdoutLogger{}, cfg.Log.Level))
		if err != nil {
			return err
		}
		defer c.Close()
		tr = bus{c: c}
	}

	var sys *app.System
	newApp := func(h hal.HAL) func() error {
		s, err := app.Start(ctx, h, cfg, tr)
		if err != nil {
			return func() error { return err }
		}
		sys = s
		return s.Step
	}

	var err error
	if hcfg.Enabled {
		err = hal.RunHeadless(ctx, cfg.HALOptions(), newApp, hcfg)
	} else {
		err = hal.RunWindow(cfg.HALOptions(), newApp)
	}
	if sys != nil {
		if serr := sys.Stop(); err == nil {
			err = serr
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type stdoutLogger struct{}

func (stdoutLogger) WriteLineString(s string) { fmt.Fprintln(os.Stdout, s) }
func (stdoutLogger) WriteLineBytes(b []byte)  { fmt.Fprintln(os.Stdout, string(b)) }
