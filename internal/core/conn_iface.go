package core

type Frame []byte

type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// SessionID identifies a browser client by its client-token cookie.
type SessionID string
