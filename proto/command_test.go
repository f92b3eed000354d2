package proto

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStride(t *testing.T) {
	tests := []struct {
		pct  uint8
		want int
	}{
		{1, 100},
		{3, 33},
		{33, 3},
		{50, 2},
		{51, 1},
		{100, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Stride(tt.pct); got != tt.want {
			t.Fatalf("Stride(%d) = %d, want %d", tt.pct, got, tt.want)
		}
	}
}

func TestCommandEqualIgnoresSpeed(t *testing.T) {
	a := Command{Mode: ModeRotate, Color: ColorBlue, Percentage: 50, Speed: 5}
	b := a
	b.Speed = 9
	if !a.Equal(b) {
		t.Fatal("commands differing only in speed should be equal")
	}

	for _, c := range []Command{
		{Mode: ModeOn, Color: ColorBlue, Percentage: 50, Speed: 5},
		{Mode: ModeRotate, Color: ColorRed, Percentage: 50, Speed: 5},
		{Mode: ModeRotate, Color: ColorBlue, Percentage: 51, Speed: 5},
	} {
		if a.Equal(c) {
			t.Fatalf("%s should differ from %s", a, c)
		}
	}
}

func TestCommandValidate(t *testing.T) {
	valid := []Command{
		OffCommand,
		InitialCommand,
		{Mode: ModeOn, Color: ColorWhite, Percentage: 1},
		{Mode: ModeOn, Color: ColorPurple, Percentage: 100},
		{Mode: ModeRotate, Color: ColorRed, Percentage: 10, Speed: 1},
	}
	for _, c := range valid {
		if err := c.Validate(); err != nil {
			t.Fatalf("Validate(%+v): %v", c, err)
		}
	}

	invalid := []Command{
		{Mode: ModeOn, Color: ColorRed},
		{Mode: ModeOn, Color: ColorRed, Percentage: 101},
		{Mode: ModeRotate, Color: ColorRed, Percentage: 10},
		{Mode: ModeOn, Color: Color(42), Percentage: 10},
		{Mode: Mode(9), Color: ColorRed, Percentage: 10},
	}
	for _, c := range invalid {
		if err := c.Validate(); err == nil {
			t.Fatalf("Validate(%+v) = nil, want error", c)
		}
	}
}

func TestCommandJSONWireNames(t *testing.T) {
	b, err := json.Marshal(Command{Mode: ModeRotate, Color: ColorYellow, Percentage: 30, Speed: 4})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"led_state":"Rotate","color":"Yellow","percentage":30,"speed":4}`
	if string(b) != want {
		t.Fatalf("Marshal() = %s, want %s", b, want)
	}
}

func TestDecodeCommandJSONTrailingData(t *testing.T) {
	_, err := DecodeCommandJSON([]byte(`{"led_state":"Off","color":"Red","percentage":1,"speed":0} {}`))
	if err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("DecodeCommandJSON() err = %v, want trailing data error", err)
	}
}

func TestDecodeCommandJSONRequiredFields(t *testing.T) {
	tests := []struct {
		in      string
		missing string
	}{
		{`{}`, "led_state"},
		{`{"color":"Red","percentage":50}`, "led_state"},
		{`{"led_state":"Off","percentage":0}`, "color"},
		{`{"led_state":"On","color":"Red","speed":3}`, "percentage"},
	}
	for _, tt := range tests {
		_, err := DecodeCommandJSON([]byte(tt.in))
		if err == nil || !strings.Contains(err.Error(), tt.missing) {
			t.Fatalf("DecodeCommandJSON(%s) err = %v, want missing %q", tt.in, err, tt.missing)
		}
	}

	cmd, err := DecodeCommandJSON([]byte(`{"led_state":"Off","color":"White","percentage":0}`))
	if err != nil || cmd != OffCommand {
		t.Fatalf("DecodeCommandJSON(Off) = %v, %v; want %v", cmd, err, OffCommand)
	}
}

func TestColorRGBA(t *testing.T) {
	for c := ColorWhite; c <= ColorPurple; c++ {
		px := c.RGBA()
		if px.R == 0 && px.G == 0 && px.B == 0 {
			t.Fatalf("%s renders dark", c)
		}
	}
	if px := Color(99).RGBA(); px.R != 0 || px.G != 0 || px.B != 0 {
		t.Fatalf("unknown color renders %+v, want dark", px)
	}
}
