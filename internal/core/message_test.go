package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		event   string
		payload string
	}{
		{"event only", "requestTurn", "requestTurn", ""},
		{"event and payload", "ack:S1", "ack", "S1"},
		{"payload keeps delimiter", "setLastWords:see you: later", "setLastWords", "see you: later"},
		{"trailing newline", "pong:0\n", "pong", "0"},
		{"empty payload", "ping:", "ping", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage(Frame(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.event, msg.Event)
			assert.Equal(t, tt.payload, msg.Payload)
		})
	}
}

func TestParseMessage_Empty(t *testing.T) {
	_, err := ParseMessage(Frame(":payload"))
	assert.ErrorIs(t, err, ErrEmptyEvent)

	_, err = ParseMessage(nil)
	assert.ErrorIs(t, err, ErrEmptyEvent)
}

func TestMessage_Frame(t *testing.T) {
	assert.Equal(t, "connecting:S1", string(NewMessage("connecting", "S1").Frame()))
}

func TestSplitPair(t *testing.T) {
	a, b, ok := SplitPair("secret-7", "-")
	assert.True(t, ok)
	assert.Equal(t, "secret", a)
	assert.Equal(t, "7", b)

	_, _, ok = SplitPair("nodash", "-")
	assert.False(t, ok)
}

type recordingConn struct{ frames []Frame }

func (c *recordingConn) TrySend(f Frame) error { c.frames = append(c.frames, f); return nil }
func (c *recordingConn) Close()                {}

func TestSend(t *testing.T) {
	assert.ErrorIs(t, Send(nil, NewMessage("ping", "0")), ErrConnClosed)

	c := &recordingConn{}
	require.NoError(t, Send(c, NewMessage("ping", "0")))
	assert.Equal(t, []Frame{Frame("ping:0")}, c.frames)
}
