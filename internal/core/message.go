package core

import (
	"errors"
	"strings"
)

var ErrEmptyEvent = errors.New("empty event")

// Message is one `event:payload` frame. The payload may itself contain ':'.
type Message struct {
	Event   string
	Payload string
}

func NewMessage(event, payload string) Message {
	return Message{Event: event, Payload: payload}
}

// ParseMessage splits a frame on the first ':' only.
func ParseMessage(data Frame) (Message, error) {
	raw := strings.TrimRight(string(data), "\r\n")
	event, payload, _ := strings.Cut(raw, ":")
	event = strings.TrimSpace(event)
	if event == "" {
		return Message{}, ErrEmptyEvent
	}
	return Message{Event: event, Payload: payload}, nil
}

func (m Message) String() string {
	return m.Event + ":" + m.Payload
}

func (m Message) Frame() Frame {
	return Frame(m.String())
}

// SplitPair splits "a<sep>b" on the first sep. ok is false when sep is missing.
func SplitPair(payload, sep string) (string, string, bool) {
	a, b, ok := strings.Cut(payload, sep)
	return a, b, ok
}
