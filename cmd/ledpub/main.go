//go:build !tinygo

// Command ledpub publishes LED commands to the command topic.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"time"

	"ledmcu/proto"
	"ledmcu/transport/mqtt"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ledpub: %v\n", err)
		os.Exit(2)
	}
}

// run returns instead of exiting so the deferred client close always runs.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ledpub", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		broker     = fs.String("broker", "localhost", "MQTT broker host.")
		port       = fs.Int("port", 1883, "MQTT broker port.")
		topic      = fs.String("topic", "led", "Command topic.")
		state      = fs.String("state", "On", "Off|On|Rotate.")
		colorName  = fs.String("color", "White", "White|Red|Green|Blue|Yellow|Purple.")
		percentage = fs.Uint("percentage", 100, "Share of lit pixels, 1-100.")
		speed      = fs.Uint64("speed", 1, "Rotate speed divisor.")
		repeat     = fs.Int("repeat", 1, "Publish N times (0 = until interrupted).")
		interval   = fs.Duration("interval", time.Second, "Delay between repeats.")
		dryRun     = fs.Bool("dry-run", false, "Print the payload and its event form instead of publishing.")
		verbose    = fs.Bool("v", false, "Log transport events.")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd, err := buildCommand(*state, *colorName, *percentage, *speed)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	if *dryRun {
		fmt.Fprintln(stdout, string(payload))
		fmt.Fprintln(stdout, proto.WrapEvent(0, *topic, payload))
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var w io.Writer = io.Discard
	if *verbose {
		w = stderr
	}
	opts := mqtt.DefaultOptions()
	opts.Host = *broker
	opts.Port = *port
	opts.ClientPrefix = "ledpub"
	c, err := mqtt.Dial(ctx, opts, slog.New(slog.NewTextHandler(w, nil)))
	if err != nil {
		return err
	}
	defer c.Close()

	for i := 0; *repeat == 0 || i < *repeat; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(*interval):
			}
		}
		if err := c.Publish(*topic, payload); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s -> %s\n", cmd, *topic)
	}
	return nil
}

func buildCommand(state, colorName string, percentage uint, speed uint64) (proto.Command, error) {
	var cmd proto.Command
	if err := cmd.Mode.UnmarshalJSON(quote(state)); err != nil {
		return cmd, err
	}
	if err := cmd.Color.UnmarshalJSON(quote(colorName)); err != nil {
		return cmd, err
	}
	if percentage > 100 {
		return cmd, fmt.Errorf("percentage %d out of range [1,100]", percentage)
	}
	cmd.Percentage = uint8(percentage)
	if cmd.Mode == proto.ModeRotate {
		if speed > math.MaxUint32 {
			return cmd, fmt.Errorf("speed %d out of range [1,%d]", speed, uint32(math.MaxUint32))
		}
		cmd.Speed = uint32(speed)
	}
	if err := cmd.Validate(); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// quote turns a flag value like "rotate" into the JSON enum form "Rotate".
func quote(s string) []byte {
	s = strings.TrimSpace(s)
	if s != "" {
		s = strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	}
	return []byte(`"` + s + `"`)
}
