package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
)

// StripLength is the default number of pixels on the strip.
const StripLength = 60

// Mode selects how the strip is rendered.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeOn
	ModeRotate
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "Off"
	case ModeOn:
		return "On"
	case ModeRotate:
		return "Rotate"
	default:
		return "unknown"
	}
}

func (m Mode) MarshalJSON() ([]byte, error) {
	switch m {
	case ModeOff, ModeOn, ModeRotate:
		return json.Marshal(m.String())
	default:
		return nil, fmt.Errorf("led_state: invalid mode %d", m)
	}
}

func (m *Mode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("led_state: %w", err)
	}
	switch s {
	case "Off":
		*m = ModeOff
	case "On":
		*m = ModeOn
	case "Rotate":
		*m = ModeRotate
	default:
		return fmt.Errorf("led_state: unknown variant %q", s)
	}
	return nil
}

// Color is one entry of the fixed palette.
type Color uint8

const (
	ColorWhite Color = iota
	ColorRed
	ColorGreen
	ColorBlue
	ColorYellow
	ColorPurple
)

var palette = [...]struct {
	name string
	rgba color.RGBA
}{
	ColorWhite:  {"White", color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}},
	ColorRed:    {"Red", color.RGBA{R: 0xFF, A: 0xFF}},
	ColorGreen:  {"Green", color.RGBA{G: 0xFF, A: 0xFF}},
	ColorBlue:   {"Blue", color.RGBA{B: 0xFF, A: 0xFF}},
	ColorYellow: {"Yellow", color.RGBA{R: 0xFF, G: 0xFF, A: 0xFF}},
	ColorPurple: {"Purple", color.RGBA{R: 0x80, B: 0x80, A: 0xFF}},
}

func (c Color) valid() bool { return int(c) < len(palette) }

func (c Color) String() string {
	if !c.valid() {
		return "unknown"
	}
	return palette[c].name
}

// RGBA returns the pixel value of the palette entry.
// Unknown colors render dark.
func (c Color) RGBA() color.RGBA {
	if !c.valid() {
		return color.RGBA{}
	}
	return palette[c].rgba
}

func (c Color) MarshalJSON() ([]byte, error) {
	if !c.valid() {
		return nil, fmt.Errorf("color: invalid color %d", c)
	}
	return json.Marshal(c.String())
}

func (c *Color) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	for i := range palette {
		if palette[i].name == s {
			*c = Color(i)
			return nil
		}
	}
	return fmt.Errorf("color: unknown variant %q", s)
}

// Command is the unit exchanged between producers and the render engine.
type Command struct {
	Mode       Mode   `json:"led_state"`
	Color      Color  `json:"color"`
	Percentage uint8  `json:"percentage"`
	Speed      uint32 `json:"speed"`
}

// OffCommand is what the button sends: Off with every other field at its default.
var OffCommand = Command{Mode: ModeOff}

// InitialCommand is the retained command before anything has been rendered.
var InitialCommand = Command{Mode: ModeOff, Color: ColorWhite, Percentage: 1}

// Equal compares the visual pattern identity. Speed does not participate.
func (c Command) Equal(o Command) bool {
	return c.Mode == o.Mode && c.Color == o.Color && c.Percentage == o.Percentage
}

// Validate keeps zero percentages and speeds away from the render divisors.
func (c Command) Validate() error {
	if !c.Color.valid() {
		return fmt.Errorf("color %d out of palette", c.Color)
	}
	switch c.Mode {
	case ModeOff:
		return nil
	case ModeOn, ModeRotate:
	default:
		return fmt.Errorf("invalid mode %d", c.Mode)
	}
	if c.Percentage < 1 || c.Percentage > 100 {
		return fmt.Errorf("percentage %d out of range [1,100]", c.Percentage)
	}
	if c.Mode == ModeRotate && c.Speed == 0 {
		return fmt.Errorf("rotate requires speed > 0")
	}
	return nil
}

func (c Command) String() string {
	switch c.Mode {
	case ModeOff:
		return "Off"
	case ModeRotate:
		return fmt.Sprintf("Rotate(%s %d%% speed=%d)", c.Color, c.Percentage, c.Speed)
	default:
		return fmt.Sprintf("%s(%s %d%%)", c.Mode, c.Color, c.Percentage)
	}
}

// Stride is the spacing between lit pixels for a percentage in [1,100].
func Stride(percentage uint8) int {
	if percentage == 0 {
		return 0
	}
	return 100 / int(percentage)
}

// wireCommand tells absent fields apart from zero values. Only speed is optional.
type wireCommand struct {
	Mode       *Mode   `json:"led_state"`
	Color      *Color  `json:"color"`
	Percentage *uint8  `json:"percentage"`
	Speed      *uint32 `json:"speed"`
}

// DecodeCommandJSON strictly decodes a Command: unknown fields are rejected
// and led_state, color and percentage must be present.
func DecodeCommandJSON(b []byte) (Command, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var w wireCommand
	if err := dec.Decode(&w); err != nil {
		return Command{}, err
	}
	if dec.More() {
		return Command{}, fmt.Errorf("trailing data after command")
	}

	switch {
	case w.Mode == nil:
		return Command{}, fmt.Errorf("missing field %q", "led_state")
	case w.Color == nil:
		return Command{}, fmt.Errorf("missing field %q", "color")
	case w.Percentage == nil:
		return Command{}, fmt.Errorf("missing field %q", "percentage")
	}
	cmd := Command{Mode: *w.Mode, Color: *w.Color, Percentage: *w.Percentage}
	if w.Speed != nil {
		cmd.Speed = *w.Speed
	}
	return cmd, nil
}
