package proto

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractCommandRoundTrip(t *testing.T) {
	cmds := []Command{
		{Mode: ModeOn, Color: ColorRed, Percentage: 50},
		{Mode: ModeRotate, Color: ColorBlue, Percentage: 50, Speed: 5},
		{Mode: ModeOn, Color: ColorPurple, Percentage: 100},
		{Mode: ModeOff, Color: ColorWhite, Percentage: 1},
	}

	for _, want := range cmds {
		b, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal(%s): %v", want, err)
		}
		ev := WrapEvent(3, "led", b)

		got, err := ExtractCommand(ev)
		if err != nil {
			t.Fatalf("ExtractCommand(%q): %v", ev, err)
		}
		if !got.Equal(want) {
			t.Fatalf("ExtractCommand() = %s, want %s", got, want)
		}
		if got.Speed != want.Speed {
			t.Fatalf("ExtractCommand() speed = %d, want %d", got.Speed, want.Speed)
		}
	}
}

func TestExtractCommandDebugEnvelope(t *testing.T) {
	ev := `Received { id: 1, topic: Some(\"led\"), data: Ok(\"{\\\"led_state\\\":\\\"On\\\",\\\"color\\\":\\\"Green\\\",\\\"percentage\\\":25,\\\"speed\\\":0}\"), details: Complete }`

	got, err := ExtractCommand(ev)
	if err != nil {
		t.Fatalf("ExtractCommand: %v", err)
	}
	want := Command{Mode: ModeOn, Color: ColorGreen, Percentage: 25}
	if !got.Equal(want) {
		t.Fatalf("ExtractCommand() = %s, want %s", got, want)
	}
}

func TestExtractCommandMissingMarker(t *testing.T) {
	for _, ev := range []string{
		"",
		"Received { id: 1, topic: Some(\"led\"), details: Complete }",
		`Received { data: Err("boom") }`,
		`Received { data: Ok("{}`,
	} {
		_, err := ExtractCommand(ev)
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("ExtractCommand(%q) err = %v, want FormatError", ev, err)
		}
	}
}

func TestExtractCommandDecodeErrors(t *testing.T) {
	cases := []string{
		`not json`,
		`{"led_state":"Blink","color":"Red","percentage":10,"speed":0}`,
		`{"led_state":"On","color":"Orange","percentage":10,"speed":0}`,
		`{"led_state":"On","color":"Red","percentage":10,"speed":0,"extra":1}`,
		`{"led_state":"On","color":"Red","percentage":0,"speed":0}`,
		`{"led_state":"On","color":"Red","percentage":101,"speed":0}`,
		`{"led_state":"On","color":"Red","percentage":300,"speed":0}`,
		`{"led_state":"Rotate","color":"Red","percentage":10,"speed":0}`,
		`{"led_state":"On","color":"Red","percentage":-1,"speed":0}`,
		`{}`,
		`{"color":"Red","percentage":50}`,
		`{"led_state":"Off","percentage":50}`,
		`{"led_state":"Off","color":"Red"}`,
		`{"led_state":null,"color":"Red","percentage":50}`,
	}

	for _, content := range cases {
		ev := WrapEvent(1, "led", []byte(content))
		_, err := ExtractCommand(ev)
		var de *DecodeError
		if !errors.As(err, &de) {
			t.Fatalf("ExtractCommand(%s) err = %v, want DecodeError", content, err)
		}
		if de.Unwrap() == nil {
			t.Fatalf("DecodeError for %s has no cause", content)
		}
	}
}

func TestExtractCommandSpeedOptional(t *testing.T) {
	ev := WrapEvent(1, "led", []byte(`{"led_state":"On","color":"Yellow","percentage":20}`))
	got, err := ExtractCommand(ev)
	if err != nil {
		t.Fatalf("ExtractCommand: %v", err)
	}
	if got.Speed != 0 || got.Color != ColorYellow || got.Percentage != 20 {
		t.Fatalf("ExtractCommand() = %+v", got)
	}
}
