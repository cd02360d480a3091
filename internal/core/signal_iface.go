package core

import "errors"

// Frame is a raw text payload.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Send encodes msg and queues it on conn.
func Send(conn SignalConnection, msg Message) error {
	if conn == nil {
		return ErrConnClosed
	}
	return conn.TrySend(msg.Frame())
}
