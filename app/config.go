package app

import (
	"errors"
	"fmt"
	"time"

	"ledmcu/hal"
	"ledmcu/services/listener"
	"ledmcu/services/render"
)

type Config struct {
	Strip   StripConfig   `yaml:"strip"`
	Button  ButtonConfig  `yaml:"button"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Console ConsoleConfig `yaml:"console"`
	Log     LogConfig     `yaml:"log"`
}

type StripConfig struct {
	Length int `yaml:"length"`
	// Pin is the data pin on the microcontroller.
	Pin        int           `yaml:"pin"`
	OnHold     time.Duration `yaml:"on_hold"`
	RotateBase time.Duration `yaml:"rotate_base"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

type ButtonConfig struct {
	Enabled bool `yaml:"enabled"`
	// Pin is the MCU pin number, or the virtual pin index on the host.
	Pin int `yaml:"pin"`
	// GPIOChip and Line select a Linux gpiocdev line, e.g. "gpiochip0" and 17.
	GPIOChip string `yaml:"gpio_chip"`
	Line     int    `yaml:"line"`
}

type MQTTConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Topic            string        `yaml:"topic"`
	ClientPrefix     string        `yaml:"client_prefix"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	KeepAlive        time.Duration `yaml:"keep_alive"`
	SubscribeDelay   time.Duration `yaml:"subscribe_delay"`
	RetryInterval    time.Duration `yaml:"retry_interval"`
	MaxRetryInterval time.Duration `yaml:"max_retry_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	StrictDecode     bool          `yaml:"strict_decode"`
}

// ConsoleConfig enables commands over the serial console, one JSON command or
// received event per line. Topic, retries and strict decoding are shared with
// the mqtt section.
type ConsoleConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxLine      int           `yaml:"max_line"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Frames logs every strip frame (host only).
	Frames bool `yaml:"frames"`
}

func DefaultConfig() Config {
	rc := render.DefaultConfig()
	lc := listener.DefaultConfig()
	return Config{
		Strip: StripConfig{
			Length:     60,
			Pin:        2,
			OnHold:     rc.OnHold,
			RotateBase: rc.RotateBase,
			RetryDelay: rc.RetryDelay,
		},
		Button: ButtonConfig{
			Enabled: true,
			Pin:     1,
		},
		MQTT: MQTTConfig{
			Enabled:          true,
			Host:             "localhost",
			Port:             1883,
			Topic:            lc.Topic,
			ClientPrefix:     "led-mcu",
			KeepAlive:        30 * time.Second,
			SubscribeDelay:   lc.SubscribeDelay,
			RetryInterval:    lc.RetryInterval,
			MaxRetryInterval: lc.MaxRetryInterval,
		},
		Console: ConsoleConfig{
			PollInterval: 10 * time.Millisecond,
			MaxLine:      512,
		},
		Log: LogConfig{Level: "info"},
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.Strip.Length <= 0 {
		errs = append(errs, fmt.Errorf("strip.length must be positive, got %d", c.Strip.Length))
	}
	if c.Strip.OnHold < 0 || c.Strip.RotateBase <= 0 || c.Strip.RetryDelay <= 0 {
		errs = append(errs, errors.New("strip: on_hold must not be negative, rotate_base and retry_delay must be positive"))
	}
	if c.MQTT.Enabled {
		if c.MQTT.Topic == "" {
			errs = append(errs, errors.New("mqtt.topic is empty"))
		}
		if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
			errs = append(errs, fmt.Errorf("mqtt.port %d out of range", c.MQTT.Port))
		}
		if c.MQTT.RetryInterval <= 0 {
			errs = append(errs, errors.New("mqtt.retry_interval must be positive"))
		}
		if c.MQTT.MaxRetries < 0 {
			errs = append(errs, errors.New("mqtt.max_retries must not be negative"))
		}
	}
	if c.Console.Enabled {
		if c.MQTT.Topic == "" && !c.MQTT.Enabled {
			errs = append(errs, errors.New("mqtt.topic is empty"))
		}
		if c.Console.PollInterval <= 0 {
			errs = append(errs, errors.New("console.poll_interval must be positive"))
		}
		if c.Console.MaxLine <= 0 {
			errs = append(errs, errors.New("console.max_line must be positive"))
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// HALOptions maps the board section of the config onto HAL options.
func (c Config) HALOptions() hal.Options {
	return hal.Options{
		StripLength: c.Strip.Length,
		StripPin:    c.Strip.Pin,
		ButtonPin:   c.Button.Pin,
		GPIOChip:    c.Button.GPIOChip,
		ButtonLine:  c.Button.Line,
		TraceFrames: c.Log.Frames,
		Console:     c.Console.Enabled,
	}
}

func (c Config) renderConfig() render.Config {
	return render.Config{
		OnHold:     c.Strip.OnHold,
		RotateBase: c.Strip.RotateBase,
		RetryDelay: c.Strip.RetryDelay,
	}
}

func (c Config) listenerConfig() listener.Config {
	return listener.Config{
		Topic:            c.MQTT.Topic,
		SubscribeDelay:   c.MQTT.SubscribeDelay,
		RetryInterval:    c.MQTT.RetryInterval,
		MaxRetryInterval: c.MQTT.MaxRetryInterval,
		MaxRetries:       c.MQTT.MaxRetries,
		StrictDecode:     c.MQTT.StrictDecode,
	}
}
