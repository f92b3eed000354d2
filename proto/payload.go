package proto

import (
	"fmt"
	"strings"
)

// EventMarker prefixes the textual form of inbound message events.
const EventMarker = "Received"

const (
	payloadStart = `data: Ok("`
	payloadEnd   = `")`
)

// FormatError reports an event string without the data envelope.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "payload format: " + e.Reason
}

// DecodeError reports envelope content that is not a valid Command.
type DecodeError struct {
	Content string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("payload decode %q: %v", e.Content, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ExtractCommand pulls the JSON fragment out of a debug-rendered event and decodes it.
//
// The fragment sits between `data: Ok("` and the next `")` once every backslash
// has been stripped from the event.
func ExtractCommand(event string) (Command, error) {
	content, err := ExtractContent(event)
	if err != nil {
		return Command{}, err
	}

	cmd, err := DecodeCommandJSON([]byte(content))
	if err != nil {
		return Command{}, &DecodeError{Content: content, Err: err}
	}
	if err := cmd.Validate(); err != nil {
		return Command{}, &DecodeError{Content: content, Err: err}
	}
	return cmd, nil
}

// ExtractContent returns the unescaped envelope content of an event.
func ExtractContent(event string) (string, error) {
	s := strings.ReplaceAll(event, `\`, "")

	start := strings.Index(s, payloadStart)
	if start < 0 {
		return "", &FormatError{Reason: "missing " + payloadStart + " marker"}
	}
	s = s[start+len(payloadStart):]

	end := strings.Index(s, payloadEnd)
	if end < 0 {
		return "", &FormatError{Reason: "unterminated data envelope"}
	}
	return s[:end], nil
}

// WrapEvent renders a payload the way the transport's debug formatting does.
func WrapEvent(id uint16, topic string, payload []byte) string {
	return fmt.Sprintf("%s { id: %d, topic: Some(%q), data: Ok(%q), details: Complete }",
		EventMarker, id, topic, string(payload))
}
